package geo

import (
	"strings"
	"sync"
	"time"

	"github.com/ipsentry/ipsentry/pkg/models"
)

type cacheEntry struct {
	record    models.GeoRecord
	expiresAt time.Time
	negative  bool
}

// recordCache is a sharded TTL cache keyed by the IP string verbatim.
// Positive records use the long TTL; fail/error records use the short
// negative TTL so transient provider failures self-heal without
// hammering the provider.
type recordCache struct {
	shards      []cacheShard
	ttl         time.Duration
	negativeTTL time.Duration
	maxEntries  int
}

type cacheShard struct {
	mu    sync.Mutex
	items map[string]cacheEntry
}

func newRecordCache(shards int, ttl, negativeTTL time.Duration, maxEntries int) *recordCache {
	if shards <= 0 {
		shards = 16
	}
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	c := &recordCache{
		shards:      make([]cacheShard, shards),
		ttl:         ttl,
		negativeTTL: negativeTTL,
		maxEntries:  maxEntries,
	}
	for i := range c.shards {
		c.shards[i].items = make(map[string]cacheEntry)
	}
	return c
}

func (c *recordCache) get(key string, now time.Time) (models.GeoRecord, bool) {
	if c == nil || strings.TrimSpace(key) == "" {
		return models.GeoRecord{}, false
	}
	shard := &c.shards[c.shardIndex(key)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	entry, ok := shard.items[key]
	if !ok {
		return models.GeoRecord{}, false
	}
	if now.After(entry.expiresAt) || now.Equal(entry.expiresAt) {
		delete(shard.items, key)
		return models.GeoRecord{}, false
	}
	return entry.record, true
}

func (c *recordCache) set(key string, record models.GeoRecord, now time.Time, negative bool) {
	if c == nil || strings.TrimSpace(key) == "" {
		return
	}
	ttl := c.ttl
	if negative {
		ttl = c.negativeTTL
	}
	shard := &c.shards[c.shardIndex(key)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.items[key] = cacheEntry{record: record, expiresAt: now.Add(ttl), negative: negative}
	if len(shard.items) > c.maxEntries {
		c.sweepShardLocked(shard, now)
	}
}

func (c *recordCache) size() int {
	total := 0
	for i := range c.shards {
		shard := &c.shards[i]
		shard.mu.Lock()
		total += len(shard.items)
		shard.mu.Unlock()
	}
	return total
}

// sweepShardLocked drops expired entries first, then arbitrary ones
// until the shard is back under its cap.
func (c *recordCache) sweepShardLocked(shard *cacheShard, now time.Time) {
	for key, entry := range shard.items {
		if now.After(entry.expiresAt) {
			delete(shard.items, key)
		}
	}
	for key := range shard.items {
		if len(shard.items) <= c.maxEntries {
			break
		}
		delete(shard.items, key)
	}
}

func (c *recordCache) shardIndex(key string) int {
	return int(fnv32a(key) % uint32(len(c.shards)))
}

func fnv32a(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	hash := uint32(offset32)
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= prime32
	}
	return hash
}

// Package geo resolves the geographic/ownership origin of IP addresses
// through an ordered provider chain, with a TTL cache in front of it.
//
// The resolver never returns an error for a failed lookup: every
// outcome is encoded in the returned GeoRecord's status field, and
// every terminal outcome (success, provider-reported negative, or
// exhausted providers) is written to the cache so repeated lookups of
// a dead address do not turn into repeated wasted calls.
package geo

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/ipsentry/ipsentry/pkg/faults"
	"github.com/ipsentry/ipsentry/pkg/metrics"
	"github.com/ipsentry/ipsentry/pkg/models"
	"github.com/ipsentry/ipsentry/pkg/netaddr"
)

// Options configures a Resolver. Zero values fall back to the
// documented defaults.
type Options struct {
	// PositiveTTL is how long successful records stay cached. Default 1h.
	PositiveTTL time.Duration

	// NegativeTTL is how long fail/error records stay cached. Default 5m.
	NegativeTTL time.Duration

	// Timeout bounds each individual provider attempt. Default 5s.
	Timeout time.Duration

	// MaxRetries is the number of attempts per provider. Default 3.
	MaxRetries int

	// Concurrency bounds simultaneous resolutions in ResolveAll. Default 10.
	Concurrency int

	// BaseBackoff is the first retry delay; it doubles per attempt up
	// to MaxBackoff. Defaults 500ms and 8s.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// MaxCacheEntries caps the cache per shard. Default 10000.
	MaxCacheEntries int

	// Logger receives provider failure notices. Defaults to the
	// standard logger.
	Logger *log.Logger
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.PositiveTTL <= 0 {
		opts.PositiveTTL = time.Hour
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = 5 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 10
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 8 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return opts
}

// Stats is a point-in-time snapshot of resolver counters.
type Stats struct {
	Requests      uint64            `json:"requests"`
	CacheHits     uint64            `json:"cache_hits"`
	CacheMisses   uint64            `json:"cache_misses"`
	Errors        uint64            `json:"errors"`
	BreakerBlocks uint64            `json:"breaker_blocks"`
	HitRate       float64           `json:"cache_hit_rate"`
	CacheEntries  int               `json:"cache_entries"`
	Breakers      map[string]string `json:"circuit_breakers"`
}

// Resolver owns the geolocation cache and provider chain. Construct
// one at service start with New and share it between callers; all
// methods are safe for concurrent use.
type Resolver struct {
	opts      Options
	providers []Provider
	breakers  []*breaker
	cache     *recordCache
	group     singleflight.Group
	sem       *semaphore.Weighted
	now       func() time.Time

	requests      atomic.Uint64
	hits          atomic.Uint64
	misses        atomic.Uint64
	errors        atomic.Uint64
	breakerBlocks atomic.Uint64
}

// New creates a Resolver that tries providers in the given order.
func New(opts Options, providers ...Provider) *Resolver {
	opts = opts.withDefaults()
	r := &Resolver{
		opts:      opts,
		providers: providers,
		breakers:  make([]*breaker, len(providers)),
		cache:     newRecordCache(16, opts.PositiveTTL, opts.NegativeTTL, opts.MaxCacheEntries),
		sem:       semaphore.NewWeighted(int64(opts.Concurrency)),
		now:       time.Now,
	}
	for i := range providers {
		r.breakers[i] = newBreaker(5, 60*time.Second, 3)
	}
	return r
}

// Resolve returns the origin of ip. It never returns an error: invalid
// input and exhausted providers both yield a record with an error
// status. Concurrent calls for the same uncached IP share a single
// resolution; ctx cancellation releases the caller but lets an
// in-flight resolution finish and populate the cache.
func (r *Resolver) Resolve(ctx context.Context, ip string) models.GeoRecord {
	ip = strings.TrimSpace(ip)
	r.requests.Add(1)

	if !netaddr.IsValid(ip) {
		return models.GeoRecord{IP: ip, Status: models.StatusError, Message: "invalid IP address"}
	}

	now := r.now()
	if rec, ok := r.cache.get(ip, now); ok {
		r.hits.Add(1)
		metrics.CacheHits.Inc()
		rec.Cached = true
		return rec
	}
	r.misses.Add(1)
	metrics.CacheMisses.Inc()

	if netaddr.IsLocalOrPrivate(ip) {
		// Local addresses never change; cache with the positive TTL.
		rec := models.GeoRecord{IP: ip, Status: models.StatusSuccess, Local: true}
		r.cache.set(ip, rec, now, false)
		return rec
	}

	ch := r.group.DoChan(ip, func() (any, error) {
		// Double-check under single-flight: a racing caller may have
		// populated the cache between our miss and this call.
		if rec, ok := r.cache.get(ip, r.now()); ok {
			return rec, nil
		}
		rec := r.lookup(ip)
		rec.Flag = models.CountryFlag(rec.CountryCode)
		r.cache.set(ip, rec, r.now(), rec.Status != models.StatusSuccess)
		return rec, nil
	})

	select {
	case res := <-ch:
		return res.Val.(models.GeoRecord)
	case <-ctx.Done():
		// The flight keeps running on its own timeouts and will cache
		// its result for future callers.
		return models.GeoRecord{IP: ip, Status: models.StatusError, Message: "lookup canceled"}
	}
}

// ResolveAll resolves a batch of IPs with bounded concurrency,
// deduplicating on the way in. Cancelling ctx skips resolutions that
// have not started; started ones run to completion.
func (r *Resolver) ResolveAll(ctx context.Context, ips []string) map[string]models.GeoRecord {
	seen := make(map[string]struct{}, len(ips))
	unique := make([]string, 0, len(ips))
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		if _, ok := seen[ip]; ok {
			continue
		}
		seen[ip] = struct{}{}
		unique = append(unique, ip)
	}

	results := make(map[string]models.GeoRecord, len(unique))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ip := range unique {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			results[ip] = models.GeoRecord{IP: ip, Status: models.StatusError, Message: "lookup canceled"}
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(ip string) {
			defer wg.Done()
			defer r.sem.Release(1)
			rec := r.Resolve(ctx, ip)
			mu.Lock()
			results[ip] = rec
			mu.Unlock()
		}(ip)
	}

	wg.Wait()
	return results
}

// lookup walks the provider chain. Detached from any caller context:
// once a resolution is in flight it finishes on its own per-attempt
// timeouts so the completed work can be cached.
func (r *Resolver) lookup(ip string) models.GeoRecord {
	var lastFail *models.GeoRecord
	var lastMessage string

	for i, p := range r.providers {
		br := r.breakers[i]
		if !br.allow() {
			r.breakerBlocks.Add(1)
			metrics.BreakerBlocks.Inc()
			continue
		}

		rec, err := r.lookupProvider(p, ip)
		if err == nil {
			br.recordSuccess()
			if rec.Status == models.StatusSuccess {
				metrics.ProviderRequests.WithLabelValues(p.Name(), "success").Inc()
				return rec
			}
			// The provider's terminal negative; remember it but give
			// the rest of the chain a chance.
			metrics.ProviderRequests.WithLabelValues(p.Name(), "fail").Inc()
			fail := rec
			lastFail = &fail
			continue
		}

		br.recordFailure()
		metrics.ProviderRequests.WithLabelValues(p.Name(), "error").Inc()
		r.opts.Logger.Printf("geo: provider %s failed for %s: %v", p.Name(), ip, err)
		lastMessage = err.Error()
	}

	// A terminal negative from some provider is a truthful answer even
	// when the rest of the chain errored; prefer it over a transport
	// error. Both are cached with the short TTL by the caller.
	if lastFail != nil {
		return *lastFail
	}

	r.errors.Add(1)
	metrics.LookupErrors.Inc()

	if lastMessage == "" {
		lastMessage = "no provider available"
	}
	return models.GeoRecord{IP: ip, Status: models.StatusError, Message: lastMessage}
}

// lookupProvider attempts one provider with bounded retry and
// exponential backoff. Only transient faults (timeout, 429, 5xx) are
// retried; anything else surfaces immediately so the chain advances.
func (r *Resolver) lookupProvider(p Provider, ip string) (models.GeoRecord, error) {
	delay := r.opts.BaseBackoff
	var lastErr error

	for attempt := 0; attempt < r.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
			if delay > r.opts.MaxBackoff {
				delay = r.opts.MaxBackoff
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
		rec, err := p.Lookup(ctx, ip)
		cancel()

		if err == nil {
			return rec, nil
		}
		lastErr = err
		if !faults.Retryable(err) {
			return models.GeoRecord{}, err
		}
	}
	return models.GeoRecord{}, lastErr
}

// Stats returns a snapshot of the resolver counters.
func (r *Resolver) Stats() Stats {
	hits := r.hits.Load()
	misses := r.misses.Load()
	s := Stats{
		Requests:      r.requests.Load(),
		CacheHits:     hits,
		CacheMisses:   misses,
		Errors:        r.errors.Load(),
		BreakerBlocks: r.breakerBlocks.Load(),
		CacheEntries:  r.cache.size(),
		Breakers:      make(map[string]string, len(r.providers)),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total) * 100
	}
	for i, p := range r.providers {
		s.Breakers[p.Name()] = r.breakers[i].currentState()
	}
	return s
}

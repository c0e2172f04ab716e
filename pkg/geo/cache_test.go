package geo

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ipsentry/ipsentry/pkg/models"
)

func TestCacheTTL(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := newRecordCache(4, time.Hour, 5*time.Minute, 100)

	rec := models.GeoRecord{IP: "8.8.8.8", Status: models.StatusSuccess, Country: "United States"}
	c.set("8.8.8.8", rec, base, false)

	got, ok := c.get("8.8.8.8", base.Add(59*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, rec, got)

	_, ok = c.get("8.8.8.8", base.Add(61*time.Minute))
	assert.False(t, ok, "entry should expire after the positive TTL")
}

func TestCacheNegativeTTL(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := newRecordCache(4, time.Hour, 5*time.Minute, 100)

	rec := models.GeoRecord{IP: "203.0.113.5", Status: models.StatusError, Message: "timeout"}
	c.set("203.0.113.5", rec, base, true)

	_, ok := c.get("203.0.113.5", base.Add(4*time.Minute))
	assert.True(t, ok, "negative entry should be served within its TTL")

	_, ok = c.get("203.0.113.5", base.Add(6*time.Minute))
	assert.False(t, ok, "negative entry should expire after the short TTL")
}

func TestCacheMissAndEmptyKey(t *testing.T) {
	now := time.Now()
	c := newRecordCache(4, time.Hour, 5*time.Minute, 100)

	_, ok := c.get("1.2.3.4", now)
	assert.False(t, ok)

	c.set("", models.GeoRecord{}, now, false)
	assert.Equal(t, 0, c.size())
}

func TestCacheSweepOnOverflow(t *testing.T) {
	now := time.Now()
	c := newRecordCache(1, time.Hour, 5*time.Minute, 10)

	for i := 0; i < 25; i++ {
		ip := fmt.Sprintf("192.0.2.%d", i)
		c.set(ip, models.GeoRecord{IP: ip, Status: models.StatusSuccess}, now, false)
	}
	assert.LessOrEqual(t, c.size(), 11, "sweep should keep the shard near its cap")
}

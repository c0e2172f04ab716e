package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/ipsentry/ipsentry/pkg/config"
	"github.com/ipsentry/ipsentry/pkg/engine"
	"github.com/ipsentry/ipsentry/pkg/geo"
	"github.com/ipsentry/ipsentry/pkg/metrics"
	"github.com/ipsentry/ipsentry/pkg/models"
	"github.com/ipsentry/ipsentry/pkg/netaddr"
	"github.com/ipsentry/ipsentry/pkg/risk"
	"github.com/ipsentry/ipsentry/pkg/security"
	"github.com/ipsentry/ipsentry/pkg/storage"
)

var (
	scanEngine *engine.Engine
	cfg        *config.Config
	startedAt  = time.Now()
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	var err error
	cfg = config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("config error: %v", err)
		}
	}

	logger := log.Default()
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	// 1. Build the provider chain in configured order.
	var providers []geo.Provider
	var mmdb *geo.MMDBProvider
	for _, name := range cfg.Geo.Providers {
		switch name {
		case "mmdb":
			if cfg.Geo.CityDBPath == "" {
				log.Printf("mmdb provider configured without city_db_path, skipping")
				continue
			}
			mmdb, err = geo.NewMMDBProvider(cfg.Geo.CityDBPath, cfg.Geo.ASNDBPath)
			if err != nil {
				log.Fatalf("mmdb provider: %v", err)
			}
			providers = append(providers, mmdb)
		case "ip-api":
			providers = append(providers, geo.NewIPAPIProvider(cfg.Geo.Timeout()))
		case "ipapi":
			providers = append(providers, geo.NewIPAPICoProvider(cfg.Geo.Timeout()))
		}
	}
	if mmdb != nil {
		defer mmdb.Close()
	}

	resolver := geo.New(geo.Options{
		PositiveTTL: cfg.Geo.PositiveTTL(),
		NegativeTTL: cfg.Geo.NegativeTTL(),
		Timeout:     cfg.Geo.Timeout(),
		MaxRetries:  cfg.Geo.MaxRetries,
		Concurrency: cfg.Geo.BulkConcurrency,
		Logger:      logger,
	}, providers...)

	// 2. Scan history backend.
	var store storage.ScanStore
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err = storage.NewSQLiteStore(cfg.Storage.Path, cfg.Storage.MaxScans)
		if err != nil {
			log.Fatalf("sqlite store: %v", err)
		}
	default:
		store = storage.NewMemoryStore(cfg.Storage.MaxScans)
	}
	defer store.Close()

	// 3. Assemble the engine.
	classifier := risk.NewClassifier(cfg.Risk.HighRiskPorts, cfg.Risk.ExpectedPorts)
	aggregator := security.NewAggregator(cfg.Risk.ExpectedPorts, cfg.Risk.HighRiskPorts, security.Thresholds{
		Excellent: cfg.Score.Excellent,
		Good:      cfg.Score.Good,
		Moderate:  cfg.Score.Moderate,
		HighRisk:  cfg.Score.HighRisk,
	})
	scanEngine = engine.New(resolver, classifier, aggregator, store, logger)

	// 4. HTTP API.
	r := gin.Default()
	v1 := r.Group("/api/v1")
	v1.POST("/scan", handleScan)
	v1.GET("/geo/:ip", handleGeo)
	v1.POST("/geo/bulk", handleGeoBulk)
	v1.GET("/scans", handleScans)
	v1.GET("/stats", handleStats)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("ipsentry listening on %s (%d geo providers)", addr, len(providers))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

type scanRequest struct {
	Connections []models.ConnectionRecord `json:"connections"`
}

func handleScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := scanEngine.Scan(c.Request.Context(), req.Connections)
	c.JSON(http.StatusOK, report)
}

func handleGeo(c *gin.Context) {
	ip := c.Param("ip")
	// Unparsable addresses are rejected at the boundary, before the
	// resolver ever sees them.
	if !netaddr.IsValid(ip) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	record := scanEngine.Lookup(c.Request.Context(), ip)
	c.JSON(http.StatusOK, record)
}

type bulkRequest struct {
	IPs []string `json:"ips"`
}

func handleGeoBulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.IPs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ips must not be empty"})
		return
	}

	records := scanEngine.LookupAll(c.Request.Context(), req.IPs, cfg.Geo.BulkLimit)
	c.JSON(http.StatusOK, gin.H{"results": records, "count": len(records)})
}

func handleScans(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}

	scans, err := scanEngine.History(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": scans, "count": len(scans)})
}

func handleStats(c *gin.Context) {
	stats := scanEngine.ResolverStats()
	c.JSON(http.StatusOK, gin.H{
		"uptime":           time.Since(startedAt).Round(time.Second).String(),
		"started":          humanize.Time(startedAt),
		"requests":         stats.Requests,
		"requests_pretty":  humanize.Comma(int64(stats.Requests)),
		"cache_hits":       stats.CacheHits,
		"cache_misses":     stats.CacheMisses,
		"cache_hit_rate":   fmt.Sprintf("%.2f%%", stats.HitRate),
		"cache_entries":    stats.CacheEntries,
		"lookup_errors":    stats.Errors,
		"breaker_blocks":   stats.BreakerBlocks,
		"circuit_breakers": stats.Breakers,
	})
}

// Package engine orchestrates a security scan: it resolves the origin
// of every remote endpoint, classifies each connection, and aggregates
// the batch into a single assessment.
package engine

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/ipsentry/ipsentry/pkg/geo"
	"github.com/ipsentry/ipsentry/pkg/metrics"
	"github.com/ipsentry/ipsentry/pkg/models"
	"github.com/ipsentry/ipsentry/pkg/risk"
	"github.com/ipsentry/ipsentry/pkg/security"
	"github.com/ipsentry/ipsentry/pkg/storage"
)

// Engine is the top-level scan coordinator.
//
// The engine is the sole owner of the geolocation resolver: the risk
// classifier never performs lookups itself, it only receives resolved
// records. Connection enumeration stays outside this library; callers
// hand the engine the records their enumerator produced.
type Engine struct {
	resolver   *geo.Resolver
	classifier *risk.Classifier
	aggregator *security.Aggregator
	store      storage.ScanStore
	logger     *log.Logger
	now        func() time.Time
}

// New creates an Engine. store may be nil to disable scan history.
func New(resolver *geo.Resolver, classifier *risk.Classifier, aggregator *security.Aggregator, store storage.ScanStore, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		resolver:   resolver,
		classifier: classifier,
		aggregator: aggregator,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// Scan analyzes a batch of connection records and returns the full
// report. One malformed connection or one unresolvable address never
// aborts the scan; the worst case is a degraded but complete result.
func (e *Engine) Scan(ctx context.Context, connections []models.ConnectionRecord) *models.ScanReport {
	// ResolveAll keys its results by the trimmed address; trim here so
	// padded records map back to their resolution.
	ips := make([]string, 0, len(connections))
	for _, conn := range connections {
		if ip := strings.TrimSpace(conn.RemoteIP); ip != "" {
			ips = append(ips, ip)
		}
	}
	resolved := e.resolver.ResolveAll(ctx, ips)

	classified := make([]models.ClassifiedConnection, 0, len(connections))
	for _, conn := range connections {
		ip := strings.TrimSpace(conn.RemoteIP)
		geoRec, ok := resolved[ip]
		if !ok {
			geoRec = models.GeoRecord{IP: ip, Status: models.StatusError, Message: "not resolved"}
		}

		level, reasons := e.classifier.Classify(conn, geoRec)
		if reasons == nil {
			reasons = []string{}
		}
		classified = append(classified, models.ClassifiedConnection{
			ConnectionRecord: conn,
			Geo:              geoRec,
			Risk:             level,
			Reasons:          reasons,
		})
		metrics.ConnectionsClassified.WithLabelValues(string(level)).Inc()
	}

	report := &models.ScanReport{
		Timestamp:   e.now().UTC(),
		Connections: classified,
		Summary:     e.aggregator.Aggregate(classified),
	}

	metrics.ScansTotal.Inc()
	metrics.SecurityScore.Set(float64(report.Summary.Score))

	if e.store != nil {
		// History is best-effort; a storage failure degrades the scan,
		// it does not fail it.
		if err := e.store.SaveReport(report); err != nil {
			e.logger.Printf("engine: failed to persist scan: %v", err)
		}
	}
	return report
}

// Lookup resolves a single IP address.
func (e *Engine) Lookup(ctx context.Context, ip string) models.GeoRecord {
	return e.resolver.Resolve(ctx, ip)
}

// LookupAll resolves a batch of IP addresses, deduplicated, capped at
// limit distinct addresses when limit is positive.
func (e *Engine) LookupAll(ctx context.Context, ips []string, limit int) map[string]models.GeoRecord {
	if limit > 0 && len(ips) > limit {
		ips = ips[:limit]
	}
	return e.resolver.ResolveAll(ctx, ips)
}

// History returns up to limit recent scan records, newest first.
func (e *Engine) History(limit int) ([]models.ScanRecord, error) {
	if e.store == nil {
		return []models.ScanRecord{}, nil
	}
	return e.store.RecentScans(limit)
}

// ResolverStats returns a snapshot of the resolver counters.
func (e *Engine) ResolverStats() geo.Stats {
	return e.resolver.Stats()
}

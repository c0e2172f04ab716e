package storage

import "github.com/ipsentry/ipsentry/pkg/models"

// ScanStore defines the interface for persisting scan history.
// Implementations store only the per-scan summary; individual
// connection records are never persisted.
type ScanStore interface {
	// SaveReport persists the summary of a completed scan.
	SaveReport(report *models.ScanReport) error

	// RecentScans returns up to limit scan records, newest first.
	RecentScans(limit int) ([]models.ScanRecord, error)

	// Close releases any underlying resources.
	Close() error
}

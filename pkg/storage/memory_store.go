package storage

import (
	"errors"
	"sync"

	"github.com/ipsentry/ipsentry/pkg/models"
)

// MemoryStore keeps scan history in RAM, bounded to the most recent
// maxScans entries. Suitable for the default single-operator setup
// where history need not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	scans    []models.ScanRecord
	nextID   int64
	maxScans int
}

// NewMemoryStore creates a memory store retaining up to maxScans
// records.
func NewMemoryStore(maxScans int) *MemoryStore {
	if maxScans <= 0 {
		maxScans = 100
	}
	return &MemoryStore{nextID: 1, maxScans: maxScans}
}

// SaveReport appends the scan's summary, evicting the oldest record
// once the retention bound is reached.
func (m *MemoryStore) SaveReport(report *models.ScanReport) error {
	if report == nil {
		return errors.New("report must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scans = append(m.scans, models.ScanRecord{
		ID:        m.nextID,
		Timestamp: report.Timestamp,
		Summary:   report.Summary,
	})
	m.nextID++
	if len(m.scans) > m.maxScans {
		m.scans = m.scans[len(m.scans)-m.maxScans:]
	}
	return nil
}

// RecentScans returns up to limit records, newest first.
func (m *MemoryStore) RecentScans(limit int) ([]models.ScanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.scans) {
		limit = len(m.scans)
	}
	out := make([]models.ScanRecord, 0, limit)
	for i := len(m.scans) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.scans[i])
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

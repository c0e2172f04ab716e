package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/ipsentry/ipsentry/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SQLiteStore persists scan history to a local SQLite database so the
// operator can compare scans across restarts.
type SQLiteStore struct {
	db       *sql.DB
	maxScans int
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the schema exists.
func NewSQLiteStore(path string, maxScans int) (*SQLiteStore, error) {
	if maxScans <= 0 {
		maxScans = 100
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL,
		total_connections INTEGER NOT NULL,
		danger INTEGER NOT NULL,
		warning INTEGER NOT NULL,
		info INTEGER NOT NULL,
		secure INTEGER NOT NULL,
		suspicious_ports INTEGER NOT NULL,
		geo_failures INTEGER NOT NULL,
		score INTEGER NOT NULL,
		grade TEXT NOT NULL,
		recommendations TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, maxScans: maxScans}, nil
}

// SaveReport inserts the scan summary and prunes rows beyond the
// retention bound.
func (s *SQLiteStore) SaveReport(report *models.ScanReport) error {
	if report == nil {
		return errors.New("report must not be nil")
	}

	recs, err := json.Marshal(report.Summary.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}

	sum := report.Summary
	_, err = s.db.Exec(`
		INSERT INTO scans (created_at, total_connections, danger, warning, info,
			secure, suspicious_ports, geo_failures, score, grade, recommendations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.Timestamp.UTC().Format(time.RFC3339Nano),
		sum.TotalConnections, sum.Danger, sum.Warning, sum.Info,
		sum.Secure, sum.SuspiciousPorts, sum.GeoFailures,
		sum.Score, sum.Grade, string(recs),
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	_, err = s.db.Exec(`
		DELETE FROM scans WHERE id NOT IN (
			SELECT id FROM scans ORDER BY id DESC LIMIT ?
		)`, s.maxScans)
	if err != nil {
		return fmt.Errorf("prune scans: %w", err)
	}
	return nil
}

// RecentScans returns up to limit records, newest first.
func (s *SQLiteStore) RecentScans(limit int) ([]models.ScanRecord, error) {
	if limit <= 0 || limit > s.maxScans {
		limit = s.maxScans
	}

	rows, err := s.db.Query(`
		SELECT id, created_at, total_connections, danger, warning, info,
			secure, suspicious_ports, geo_failures, score, grade, recommendations
		FROM scans ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var out []models.ScanRecord
	for rows.Next() {
		var rec models.ScanRecord
		var createdAt, recsJSON string
		if err := rows.Scan(
			&rec.ID, &createdAt,
			&rec.Summary.TotalConnections, &rec.Summary.Danger, &rec.Summary.Warning,
			&rec.Summary.Info, &rec.Summary.Secure, &rec.Summary.SuspiciousPorts,
			&rec.Summary.GeoFailures, &rec.Summary.Score, &rec.Summary.Grade,
			&recsJSON,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
		if err := json.Unmarshal([]byte(recsJSON), &rec.Summary.Recommendations); err != nil {
			rec.Summary.Recommendations = []string{}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

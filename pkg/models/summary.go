package models

import "time"

// Security grades derived from the numeric score.
const (
	GradeExcellent = "excellent"
	GradeGood      = "good"
	GradeModerate  = "moderate"
	GradeHighRisk  = "high-risk"
	GradeCritical  = "critical"
)

// SecuritySummary is the aggregated assessment of one scan. It is
// created fresh per aggregation call and never partially updated.
type SecuritySummary struct {
	TotalConnections int `json:"total_connections"`

	// Counts per risk level.
	Danger  int `json:"danger"`
	Warning int `json:"warning"`
	Info    int `json:"info"`

	// Secure counts connections whose remote port is in the configured
	// expected/secure set.
	Secure int `json:"secure"`

	// SuspiciousPorts counts connections using a configured high-risk
	// port, regardless of their final level.
	SuspiciousPorts int `json:"suspicious_ports"`

	// GeoFailures counts connections whose origin could not be
	// resolved.
	GeoFailures int `json:"geo_failures"`

	// Score is the overall security score, 0-100.
	Score int `json:"score"`

	// Grade is the human-readable bucket for Score.
	Grade string `json:"grade"`

	// Recommendations are advisory strings, most severe first, at most
	// three.
	Recommendations []string `json:"recommendations"`
}

// ScanReport is the full output of one scan: every classified
// connection plus the aggregate summary.
type ScanReport struct {
	Timestamp   time.Time              `json:"timestamp"`
	Connections []ClassifiedConnection `json:"connections"`
	Summary     SecuritySummary        `json:"summary"`
}

// ScanRecord is the persisted form of a scan: the summary and when it
// ran. Per-connection detail is not retained.
type ScanRecord struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Summary   SecuritySummary `json:"summary"`
}

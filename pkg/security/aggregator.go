// Package security aggregates classified connections into a single
// security assessment: per-level counts, a 0-100 score, a grade, and
// a short list of recommendations.
package security

import (
	"github.com/ipsentry/ipsentry/pkg/models"
)

// Thresholds are the inclusive lower score bounds for each grade.
type Thresholds struct {
	Excellent int
	Good      int
	Moderate  int
	HighRisk  int
}

// DefaultThresholds returns the documented 90/75/60/40 grade bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{Excellent: 90, Good: 75, Moderate: 60, HighRisk: 40}
}

// Score deduction weights and the clean-profile bonus.
const (
	dangerWeight  = 12
	warningWeight = 4
	cleanBonus    = 5
)

// Aggregator computes security summaries. Pure: no side effects, no
// retained state between calls.
type Aggregator struct {
	expected   map[int]struct{}
	suspicious map[int]struct{}
	thresholds Thresholds
}

// NewAggregator builds an aggregator over the configured expected and
// high-risk port sets.
func NewAggregator(expectedPorts, highRiskPorts []int, thresholds Thresholds) *Aggregator {
	expected := make(map[int]struct{}, len(expectedPorts))
	for _, p := range expectedPorts {
		expected[p] = struct{}{}
	}
	suspicious := make(map[int]struct{}, len(highRiskPorts))
	for _, p := range highRiskPorts {
		suspicious[p] = struct{}{}
	}
	return &Aggregator{expected: expected, suspicious: suspicious, thresholds: thresholds}
}

// Aggregate computes the summary for one batch of classified
// connections. An empty batch yields a perfect score: "no data" is not
// "insecure". A connection with a malformed risk level counts as info
// rather than failing the batch.
func (a *Aggregator) Aggregate(connections []models.ClassifiedConnection) models.SecuritySummary {
	summary := models.SecuritySummary{
		TotalConnections: len(connections),
		Recommendations:  []string{},
	}

	for _, conn := range connections {
		switch conn.Risk.Normalize() {
		case models.RiskDanger:
			summary.Danger++
		case models.RiskWarning:
			summary.Warning++
		default:
			summary.Info++
		}
		if _, ok := a.expected[conn.RemotePort]; ok {
			summary.Secure++
		}
		if _, ok := a.suspicious[conn.RemotePort]; ok {
			summary.SuspiciousPorts++
		}
		if !conn.Geo.Resolved() {
			summary.GeoFailures++
		}
	}

	summary.Score = a.score(summary)
	summary.Grade = a.grade(summary.Score)
	summary.Recommendations = a.recommendations(summary)
	return summary
}

func (a *Aggregator) score(s models.SecuritySummary) int {
	score := 100
	score -= dangerWeight * s.Danger
	if score < 0 {
		score = 0
	}
	score -= warningWeight * s.Warning
	if score < 0 {
		score = 0
	}

	if s.TotalConnections > 0 && s.Danger == 0 {
		if float64(s.Secure)/float64(s.TotalConnections) >= 0.8 {
			score += cleanBonus
			if score > 100 {
				score = 100
			}
		}
	}
	return score
}

func (a *Aggregator) grade(score int) string {
	switch {
	case score >= a.thresholds.Excellent:
		return models.GradeExcellent
	case score >= a.thresholds.Good:
		return models.GradeGood
	case score >= a.thresholds.Moderate:
		return models.GradeModerate
	case score >= a.thresholds.HighRisk:
		return models.GradeHighRisk
	default:
		return models.GradeCritical
	}
}

// recommendations emits at most three advisories, most severe first.
func (a *Aggregator) recommendations(s models.SecuritySummary) []string {
	recs := []string{}
	if s.Danger > 0 {
		recs = append(recs, "terminate high-risk connections immediately")
	}
	if s.SuspiciousPorts > 0 && len(recs) < 3 {
		recs = append(recs, "verify connections using suspicious ports are legitimate")
	}
	if s.Warning > 2 && len(recs) < 3 {
		recs = append(recs, "review firewall rules for flagged connections")
	}
	if s.GeoFailures > 0 && len(recs) < 3 {
		recs = append(recs, "investigate connections with unverifiable origins")
	}
	if s.TotalConnections > 0 && len(recs) < 3 {
		if float64(s.Secure)/float64(s.TotalConnections) < 0.3 {
			recs = append(recs, "prefer secure protocols (HTTPS, SSH) for outbound traffic")
		}
	}
	if len(recs) > 3 {
		recs = recs[:3]
	}
	return recs
}

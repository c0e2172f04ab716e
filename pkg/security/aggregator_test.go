package security

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ipsentry/ipsentry/pkg/models"
)

var (
	testExpected = []int{22, 80, 443}
	testHighRisk = []int{4444, 31337}
)

func newTestAggregator() *Aggregator {
	return NewAggregator(testExpected, testHighRisk, DefaultThresholds())
}

func classified(risk models.RiskLevel, port int, resolved bool) models.ClassifiedConnection {
	status := models.StatusSuccess
	if !resolved {
		status = models.StatusError
	}
	return models.ClassifiedConnection{
		ConnectionRecord: models.ConnectionRecord{RemoteIP: "203.0.113.5", RemotePort: port, Status: "ESTABLISHED"},
		Geo:              models.GeoRecord{IP: "203.0.113.5", Status: status},
		Risk:             risk,
	}
}

func TestAggregateEmptyBatch(t *testing.T) {
	summary := newTestAggregator().Aggregate(nil)

	assert.Equal(t, 0, summary.TotalConnections)
	assert.Equal(t, 100, summary.Score)
	assert.Equal(t, models.GradeExcellent, summary.Grade)
	assert.Empty(t, summary.Recommendations)
	assert.NotNil(t, summary.Recommendations, "recommendations serialize as [] not null")
}

func TestAggregateMixedBatch(t *testing.T) {
	summary := newTestAggregator().Aggregate([]models.ClassifiedConnection{
		classified(models.RiskDanger, 4444, true),
		classified(models.RiskWarning, 8422, true),
		classified(models.RiskInfo, 443, true),
	})

	assert.Equal(t, 3, summary.TotalConnections)
	assert.Equal(t, 1, summary.Danger)
	assert.Equal(t, 1, summary.Warning)
	assert.Equal(t, 1, summary.Info)
	assert.Equal(t, 1, summary.Secure)
	assert.Equal(t, 1, summary.SuspiciousPorts)
	assert.Equal(t, 0, summary.GeoFailures)
	assert.Equal(t, 84, summary.Score) // 100 - 12 - 4
	assert.Equal(t, models.GradeGood, summary.Grade)
}

func TestAggregateScoreClampsAtZero(t *testing.T) {
	conns := make([]models.ClassifiedConnection, 10)
	for i := range conns {
		conns[i] = classified(models.RiskDanger, 4444, true)
	}
	summary := newTestAggregator().Aggregate(conns)

	assert.Equal(t, 0, summary.Score)
	assert.Equal(t, models.GradeCritical, summary.Grade)
}

func TestAggregateCleanProfileBonus(t *testing.T) {
	// 10 connections, all on expected ports, no danger: the 80% secure
	// ratio earns the bonus on top of the warning deductions.
	conns := make([]models.ClassifiedConnection, 10)
	for i := range conns {
		level := models.RiskInfo
		if i < 3 {
			level = models.RiskWarning
		}
		conns[i] = classified(level, 443, true)
	}
	summary := newTestAggregator().Aggregate(conns)

	assert.Equal(t, 93, summary.Score) // 100 - 3*4 + 5
	assert.Equal(t, models.GradeExcellent, summary.Grade)
}

func TestAggregateBonusCappedAtHundred(t *testing.T) {
	summary := newTestAggregator().Aggregate([]models.ClassifiedConnection{
		classified(models.RiskInfo, 443, true),
		classified(models.RiskInfo, 22, true),
	})

	assert.Equal(t, 100, summary.Score)
	assert.Equal(t, models.GradeExcellent, summary.Grade)
}

func TestAggregateNoBonusWithDanger(t *testing.T) {
	// All secure ports, but one danger verdict forfeits the bonus.
	summary := newTestAggregator().Aggregate([]models.ClassifiedConnection{
		classified(models.RiskDanger, 443, true),
		classified(models.RiskInfo, 443, true),
		classified(models.RiskInfo, 443, true),
		classified(models.RiskInfo, 443, true),
		classified(models.RiskInfo, 443, true),
	})

	assert.Equal(t, 88, summary.Score) // 100 - 12, no bonus
}

func TestAggregateMalformedRiskCountsAsInfo(t *testing.T) {
	summary := newTestAggregator().Aggregate([]models.ClassifiedConnection{
		classified(models.RiskLevel("severe"), 443, true),
	})

	assert.Equal(t, 1, summary.Info)
	assert.Equal(t, 0, summary.Danger)
	assert.Equal(t, 0, summary.Warning)
}

func TestAggregateGeoFailures(t *testing.T) {
	summary := newTestAggregator().Aggregate([]models.ClassifiedConnection{
		classified(models.RiskWarning, 8422, false),
		classified(models.RiskInfo, 443, true),
	})

	assert.Equal(t, 1, summary.GeoFailures)
	assert.Contains(t, summary.Recommendations, "investigate connections with unverifiable origins")
}

func TestRecommendationsOrderAndCap(t *testing.T) {
	// Trip every advisory at once: only the three most severe survive.
	conns := []models.ClassifiedConnection{
		classified(models.RiskDanger, 4444, false),
		classified(models.RiskWarning, 8422, false),
		classified(models.RiskWarning, 8423, false),
		classified(models.RiskWarning, 8424, false),
	}
	summary := newTestAggregator().Aggregate(conns)

	assert.Equal(t, []string{
		"terminate high-risk connections immediately",
		"verify connections using suspicious ports are legitimate",
		"review firewall rules for flagged connections",
	}, summary.Recommendations)
}

func TestGradeBoundaries(t *testing.T) {
	a := newTestAggregator()
	tests := []struct {
		score int
		grade string
	}{
		{100, models.GradeExcellent},
		{90, models.GradeExcellent},
		{89, models.GradeGood},
		{75, models.GradeGood},
		{74, models.GradeModerate},
		{60, models.GradeModerate},
		{59, models.GradeHighRisk},
		{40, models.GradeHighRisk},
		{39, models.GradeCritical},
		{0, models.GradeCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.grade, a.grade(tt.score), "score %d", tt.score)
	}
}

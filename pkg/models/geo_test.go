package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolved(t *testing.T) {
	assert.True(t, GeoRecord{Status: StatusSuccess}.Resolved())
	assert.False(t, GeoRecord{Status: StatusFail}.Resolved())
	assert.False(t, GeoRecord{Status: StatusError}.Resolved())
	assert.False(t, GeoRecord{}.Resolved())
}

func TestCountryFlag(t *testing.T) {
	assert.Equal(t, "\U0001F1F3\U0001F1F1", CountryFlag("NL"))
	assert.Equal(t, "\U0001F1E9\U0001F1EA", CountryFlag("de"), "lowercase codes are accepted")

	white := CountryFlag("")
	assert.Equal(t, white, CountryFlag("X"))
	assert.Equal(t, white, CountryFlag("USA"))
	assert.Equal(t, white, CountryFlag("1A"))
}

func TestRiskLevelNormalize(t *testing.T) {
	assert.Equal(t, RiskDanger, RiskDanger.Normalize())
	assert.Equal(t, RiskWarning, RiskWarning.Normalize())
	assert.Equal(t, RiskInfo, RiskInfo.Normalize())
	assert.Equal(t, RiskInfo, RiskLevel("severe").Normalize())
	assert.Equal(t, RiskInfo, RiskLevel("").Normalize())
}

func TestRiskLevelRank(t *testing.T) {
	assert.Greater(t, RiskDanger.Rank(), RiskWarning.Rank())
	assert.Greater(t, RiskWarning.Rank(), RiskInfo.Rank())
}

package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ipsentry/ipsentry/pkg/models"
)

var (
	testHighRisk = []int{1337, 4444, 6666, 12345, 31337}
	testExpected = []int{22, 25, 53, 80, 123, 443, 587, 993, 995}
)

func successGeo(ip string) models.GeoRecord {
	return models.GeoRecord{IP: ip, Status: models.StatusSuccess, CountryCode: "US"}
}

func TestClassifyDecisionOrder(t *testing.T) {
	c := NewClassifier(testHighRisk, testExpected)

	tests := []struct {
		name        string
		conn        models.ConnectionRecord
		geo         models.GeoRecord
		wantLevel   models.RiskLevel
		wantReasons []string
	}{
		{
			name:      "private address is never flagged regardless of port",
			conn:      models.ConnectionRecord{RemoteIP: "192.168.1.5", RemotePort: 4444, Status: "ESTABLISHED"},
			geo:       models.GeoRecord{IP: "192.168.1.5", Status: models.StatusSuccess, Local: true},
			wantLevel: models.RiskInfo,
		},
		{
			name:        "high-risk port on public address",
			conn:        models.ConnectionRecord{RemoteIP: "203.0.113.5", RemotePort: 4444, Status: "ESTABLISHED"},
			geo:         successGeo("203.0.113.5"),
			wantLevel:   models.RiskDanger,
			wantReasons: []string{"connection to high-risk port 4444"},
		},
		{
			name:        "high-risk port outranks geolocation failure",
			conn:        models.ConnectionRecord{RemoteIP: "203.0.113.5", RemotePort: 31337, Status: "ESTABLISHED"},
			geo:         models.GeoRecord{IP: "203.0.113.5", Status: models.StatusError},
			wantLevel:   models.RiskDanger,
			wantReasons: []string{"connection to high-risk port 31337"},
		},
		{
			name:        "unresolvable origin",
			conn:        models.ConnectionRecord{RemoteIP: "203.0.113.5", RemotePort: 443, Status: "ESTABLISHED"},
			geo:         models.GeoRecord{IP: "203.0.113.5", Status: models.StatusError, Message: "timeout"},
			wantLevel:   models.RiskWarning,
			wantReasons: []string{"unable to verify origin of remote address"},
		},
		{
			name:        "provider-reported failure also counts as unverified",
			conn:        models.ConnectionRecord{RemoteIP: "203.0.113.5", RemotePort: 443, Status: "ESTABLISHED"},
			geo:         models.GeoRecord{IP: "203.0.113.5", Status: models.StatusFail},
			wantLevel:   models.RiskWarning,
			wantReasons: []string{"unable to verify origin of remote address"},
		},
		{
			name:        "established connection on uncommon port",
			conn:        models.ConnectionRecord{RemoteIP: "203.0.113.5", RemotePort: 8422, Status: "ESTABLISHED"},
			geo:         successGeo("203.0.113.5"),
			wantLevel:   models.RiskWarning,
			wantReasons: []string{"established connection on uncommon port 8422"},
		},
		{
			name:      "uncommon port not established",
			conn:      models.ConnectionRecord{RemoteIP: "203.0.113.5", RemotePort: 8422, Status: "TIME_WAIT"},
			geo:       successGeo("203.0.113.5"),
			wantLevel: models.RiskInfo,
		},
		{
			name:      "expected port established",
			conn:      models.ConnectionRecord{RemoteIP: "203.0.113.6", RemotePort: 443, Status: "ESTABLISHED"},
			geo:       successGeo("203.0.113.6"),
			wantLevel: models.RiskInfo,
		},
		{
			name:      "malformed remote address treated as not local",
			conn:      models.ConnectionRecord{RemoteIP: "not-an-ip", RemotePort: 443, Status: "ESTABLISHED"},
			geo:       models.GeoRecord{IP: "not-an-ip", Status: models.StatusError},
			wantLevel: models.RiskWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, reasons := c.Classify(tt.conn, tt.geo)
			assert.Equal(t, tt.wantLevel, level)
			if tt.wantReasons != nil {
				assert.Equal(t, tt.wantReasons, reasons)
			}
			if tt.wantLevel == models.RiskInfo {
				assert.Empty(t, reasons, "info classifications carry no reasons")
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier(testHighRisk, testExpected)
	conn := models.ConnectionRecord{RemoteIP: "203.0.113.5", RemotePort: 4444, Status: "ESTABLISHED"}
	geo := successGeo("203.0.113.5")

	level1, reasons1 := c.Classify(conn, geo)
	level2, reasons2 := c.Classify(conn, geo)
	assert.Equal(t, level1, level2)
	assert.Equal(t, reasons1, reasons2)
}

func TestClassifyCustomRule(t *testing.T) {
	c := NewClassifier(testHighRisk, testExpected)
	c.AddRule(suspiciousProcess{})

	conn := models.ConnectionRecord{RemoteIP: "203.0.113.5", RemotePort: 443, Status: "TIME_WAIT", Process: "nc"}
	level, reasons := c.Classify(conn, successGeo("203.0.113.5"))
	assert.Equal(t, models.RiskWarning, level)
	assert.Equal(t, []string{"connection owned by suspicious process nc"}, reasons)
}

// suspiciousProcess is a test-only custom rule.
type suspiciousProcess struct{}

func (suspiciousProcess) Name() string { return "suspicious_process" }

func (suspiciousProcess) Evaluate(conn models.ConnectionRecord, _ models.GeoRecord) (models.RiskLevel, []string, bool) {
	if conn.Process == "nc" {
		return models.RiskWarning, []string{"connection owned by suspicious process nc"}, true
	}
	return models.RiskInfo, nil, false
}

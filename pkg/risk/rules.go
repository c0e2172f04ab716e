package risk

import (
	"fmt"

	"github.com/ipsentry/ipsentry/pkg/models"
	"github.com/ipsentry/ipsentry/pkg/netaddr"
)

// Rule is one step of the classification chain. Evaluate returns the
// level and reasons when the rule matches; matched=false hands the
// connection to the next rule.
type Rule interface {
	// Name uniquely identifies the rule (for logs and audits).
	Name() string

	Evaluate(conn models.ConnectionRecord, geo models.GeoRecord) (level models.RiskLevel, reasons []string, matched bool)
}

// privateExemption exempts traffic on the operator's own networks.
// It must run first: LAN traffic is never flagged, regardless of port.
type privateExemption struct{}

func (privateExemption) Name() string { return "private_exemption" }

func (privateExemption) Evaluate(conn models.ConnectionRecord, _ models.GeoRecord) (models.RiskLevel, []string, bool) {
	if netaddr.IsLocalOrPrivate(conn.RemoteIP) {
		return models.RiskInfo, nil, true
	}
	return models.RiskInfo, nil, false
}

// highRiskPort flags ports historically associated with remote-access
// trojans and reverse shells. Definitive evidence: it outranks every
// softer heuristic evaluated after it.
type highRiskPort struct {
	ports map[int]struct{}
}

func (highRiskPort) Name() string { return "high_risk_port" }

func (r highRiskPort) Evaluate(conn models.ConnectionRecord, _ models.GeoRecord) (models.RiskLevel, []string, bool) {
	if _, ok := r.ports[conn.RemotePort]; ok {
		return models.RiskDanger, []string{fmt.Sprintf("connection to high-risk port %d", conn.RemotePort)}, true
	}
	return models.RiskInfo, nil, false
}

// unverifiedOrigin flags connections whose remote address could not be
// geolocated.
type unverifiedOrigin struct{}

func (unverifiedOrigin) Name() string { return "unverified_origin" }

func (unverifiedOrigin) Evaluate(_ models.ConnectionRecord, geo models.GeoRecord) (models.RiskLevel, []string, bool) {
	if !geo.Resolved() {
		return models.RiskWarning, []string{"unable to verify origin of remote address"}, true
	}
	return models.RiskInfo, nil, false
}

// uncommonPort flags established connections outside the operator's
// expected port set. A weaker signal than an explicit bad-port match,
// hence evaluated later.
type uncommonPort struct {
	expected map[int]struct{}
}

func (uncommonPort) Name() string { return "uncommon_port" }

func (r uncommonPort) Evaluate(conn models.ConnectionRecord, _ models.GeoRecord) (models.RiskLevel, []string, bool) {
	if conn.Status != "ESTABLISHED" {
		return models.RiskInfo, nil, false
	}
	if _, ok := r.expected[conn.RemotePort]; ok {
		return models.RiskInfo, nil, false
	}
	return models.RiskWarning, []string{fmt.Sprintf("established connection on uncommon port %d", conn.RemotePort)}, true
}

func portSet(ports []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ports))
	for _, p := range ports {
		set[p] = struct{}{}
	}
	return set
}

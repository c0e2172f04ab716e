package models

// ConnectionRecord is one live network connection as reported by the
// OS connection enumerator. Records are read-only to this library and
// created fresh on every scan; they are never persisted.
type ConnectionRecord struct {
	// Protocol is "TCP" or "UDP".
	Protocol string `json:"protocol"`

	// LocalAddr is the local endpoint in "ip:port" form. May be empty
	// for sockets the enumerator could not fully resolve.
	LocalAddr string `json:"local_addr,omitempty"`

	// RemoteIP is the remote address as a textual IPv4 or IPv6 literal.
	RemoteIP string `json:"remote_ip"`

	// RemotePort is the remote port (0-65535).
	RemotePort int `json:"remote_port"`

	// Status is the connection state, e.g. "ESTABLISHED", "TIME_WAIT".
	Status string `json:"status"`

	// Process is the name of the owning process, or "unknown".
	Process string `json:"process,omitempty"`
}

// RiskLevel is the ordinal classification of how concerning a
// connection appears: danger > warning > info.
type RiskLevel string

const (
	RiskInfo    RiskLevel = "info"
	RiskWarning RiskLevel = "warning"
	RiskDanger  RiskLevel = "danger"
)

// Rank returns the severity rank of the level for sorting and
// tie-breaks. Unknown values rank as info.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskDanger:
		return 2
	case RiskWarning:
		return 1
	default:
		return 0
	}
}

// Normalize maps any unrecognized level to RiskInfo so that readers of
// a classified connection always see a total, defaulted value.
func (l RiskLevel) Normalize() RiskLevel {
	switch l {
	case RiskInfo, RiskWarning, RiskDanger:
		return l
	default:
		return RiskInfo
	}
}

// ClassifiedConnection pairs a connection record with its resolved
// geolocation and the assigned risk. Immutable once produced.
type ClassifiedConnection struct {
	ConnectionRecord

	// Geo is the resolved origin of the remote endpoint.
	Geo GeoRecord `json:"geo"`

	// Risk is the assigned level.
	Risk RiskLevel `json:"risk"`

	// Reasons explains the classification, most relevant first. Empty
	// for info-level connections.
	Reasons []string `json:"reasons"`
}

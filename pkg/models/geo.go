package models

// Resolution status values carried by GeoRecord.Status.
const (
	// StatusSuccess means a provider (or the private-address
	// short-circuit) produced an answer.
	StatusSuccess = "success"

	// StatusFail means a provider gave a well-formed negative answer
	// (e.g. "reserved range", "not found"). Terminal for that IP until
	// the negative TTL expires.
	StatusFail = "fail"

	// StatusError means every provider was exhausted without a usable
	// answer (timeouts, transport failures, malformed responses).
	StatusError = "error"
)

// GeoRecord is the geographic/ownership origin of one IP address.
// Records are created by the resolver, cached, and replaced wholesale
// on refresh; they are never mutated in place.
//
// Invariant: a record with Status != StatusSuccess carries no
// coordinates.
type GeoRecord struct {
	IP     string `json:"ip"`
	Status string `json:"status"`

	// Message is a human-readable explanation for fail/error records.
	Message string `json:"message,omitempty"`

	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Region      string `json:"region,omitempty"`
	City        string `json:"city,omitempty"`
	Zip         string `json:"zip,omitempty"`

	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`

	Timezone string `json:"timezone,omitempty"`
	ISP      string `json:"isp,omitempty"`
	Org      string `json:"org,omitempty"`
	ASN      string `json:"asn,omitempty"`

	// Flag is the emoji flag derived from CountryCode, for the
	// presentation layer.
	Flag string `json:"flag,omitempty"`

	// Local marks private/loopback/link-local addresses that were
	// short-circuited without a provider lookup.
	Local bool `json:"local,omitempty"`

	// Cached is true when the record was served from the cache.
	Cached bool `json:"cached,omitempty"`
}

// Resolved reports whether the record carries a usable origin.
func (g GeoRecord) Resolved() bool {
	return g.Status == StatusSuccess
}

// CountryFlag converts a two-letter ISO country code to its
// regional-indicator emoji. Returns the white flag for anything else.
func CountryFlag(code string) string {
	if len(code) != 2 {
		return "\U0001F3F3️"
	}
	a, b := code[0], code[1]
	if a >= 'a' && a <= 'z' {
		a -= 'a' - 'A'
	}
	if b >= 'a' && b <= 'z' {
		b -= 'a' - 'A'
	}
	if a < 'A' || a > 'Z' || b < 'A' || b > 'Z' {
		return "\U0001F3F3️"
	}
	return string([]rune{rune(a) + 127397, rune(b) + 127397})
}

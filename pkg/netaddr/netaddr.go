// Package netaddr classifies textual IP addresses. It exists so that
// the resolver and the risk classifier agree on what "local" means.
package netaddr

import (
	"net/netip"
	"strings"
)

// localPrefixes are the ranges treated as local/private. Containment is
// checked on parsed addresses; prefix-string matching would wrongly
// include 172.0-15.x.x and 172.32-255.x.x.
var localPrefixes = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),    // IPv4 loopback
	netip.MustParsePrefix("169.254.0.0/16"), // IPv4 link-local
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),   // IPv6 loopback
	netip.MustParsePrefix("fc00::/7"),  // IPv6 unique-local
	netip.MustParsePrefix("fe80::/10"), // IPv6 link-local
}

// IsValid reports whether ip parses as an IPv4 or IPv6 literal.
func IsValid(ip string) bool {
	_, err := netip.ParseAddr(strings.TrimSpace(ip))
	return err == nil
}

// IsLocalOrPrivate reports whether ip is loopback, link-local, or part
// of a private range. Malformed input returns false so callers can
// treat unparsable addresses as "not local" without failing the
// pipeline. Pure function, safe for concurrent use.
func IsLocalOrPrivate(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range localPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

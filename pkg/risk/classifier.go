// Package risk assigns a risk level to individual network connections.
//
// Classification is a first-match-wins walk over an ordered rule
// chain. The default chain implements, in order: private-network
// exemption, high-risk port match, unverifiable origin, uncommon
// established port. Classification is pure: the same connection and
// geolocation always produce the same result.
package risk

import "github.com/ipsentry/ipsentry/pkg/models"

// Classifier evaluates connections against an ordered rule chain.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds the default chain from the configured high-risk
// and expected port sets.
func NewClassifier(highRiskPorts, expectedPorts []int) *Classifier {
	return &Classifier{
		rules: []Rule{
			privateExemption{},
			highRiskPort{ports: portSet(highRiskPorts)},
			unverifiedOrigin{},
			uncommonPort{expected: portSet(expectedPorts)},
		},
	}
}

// AddRule appends a custom rule to the chain. Appended rules run after
// the default chain and therefore cannot override its matches.
func (c *Classifier) AddRule(r Rule) {
	c.rules = append(c.rules, r)
}

// Classify returns the risk level for conn given its resolved
// geolocation, plus the reasons behind it. Connections matching no
// rule are info with no reasons.
func (c *Classifier) Classify(conn models.ConnectionRecord, geo models.GeoRecord) (models.RiskLevel, []string) {
	for _, rule := range c.rules {
		if level, reasons, matched := rule.Evaluate(conn, geo); matched {
			return level, reasons
		}
	}
	return models.RiskInfo, nil
}

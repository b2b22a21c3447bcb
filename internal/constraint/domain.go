// Package constraint loads policy documents, classifies free text into a
// domain and composes the constraint text that applies to a request.
package constraint

import "strings"

// Domain is a professional domain tag selecting a constraint document.
type Domain string

// Known domains. General is the zero-match default and has no document.
const (
	General        Domain = "general"
	SafetyCritical Domain = "safety_critical"
	Medical        Domain = "medical"
	Legal          Domain = "legal"
	AIML           Domain = "ai_ml"
	CloudDevOps    Domain = "cloud_devops"
	Engineering    Domain = "engineering"
)

// Priority orders domains most safety-sensitive first. When several domains
// match, the first one in this list wins.
var Priority = []Domain{
	SafetyCritical,
	Medical,
	Legal,
	AIML,
	CloudDevOps,
	Engineering,
}

// fallbackKeywords guarantees classification works when no keyword
// sections can be found on disk.
var fallbackKeywords = map[Domain][]string{
	Engineering: {"database", "performance", "api", "refactor", "test", "query", "code"},
}

// ParseDomain maps a tag to a known domain. Unknown tags return General, false.
func ParseDomain(s string) (Domain, bool) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if !d.Known() {
		return General, false
	}
	return d, true
}

// Known reports whether d is General or in Priority.
func (d Domain) Known() bool {
	if d == General {
		return true
	}
	for _, p := range Priority {
		if p == d {
			return true
		}
	}
	return false
}

func (d Domain) String() string { return string(d) }

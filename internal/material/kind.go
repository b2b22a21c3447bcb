// Package material gathers supporting evidence ("materials") for a topic.
//
// Each Kind has exactly one gatherer, resolved from a table built when the
// Collector is created. Local kinds read constraint documents or the
// repository and always produce text. Augmented kinds start from local
// text and try to extend it through an augment.Augmenter under a per-depth
// timeout, keeping the local text when the call fails or runs late.
package material

import (
	"strings"
	"time"

	"github.com/fyrsmithlabs/corethink/internal/config"
)

// Kind is one category of material.
type Kind string

const (
	Constraints       Kind = "constraints"
	RiskFactors       Kind = "risk_factors"
	DomainKnowledge   Kind = "domain_knowledge"
	RepositoryContext Kind = "repository_context"
	Precedents        Kind = "precedents"
	Implications      Kind = "implications"
	Patterns          Kind = "patterns"
)

// AllKinds lists every supported kind, local ones first.
var AllKinds = []Kind{
	Constraints, RiskFactors, DomainKnowledge, RepositoryContext,
	Precedents, Implications, Patterns,
}

// DefaultKinds is used when a request names no kinds.
var DefaultKinds = []Kind{Constraints, Precedents, Implications}

// Augmented reports whether k is extended by external augmentation.
func (k Kind) Augmented() bool {
	switch k {
	case Precedents, Implications, Patterns:
		return true
	}
	return false
}

// Supported reports whether k has a gatherer.
func (k Kind) Supported() bool {
	for _, s := range AllKinds {
		if s == k {
			return true
		}
	}
	return false
}

// ParseKinds splits a comma-separated list, trimming, lowercasing and
// dropping duplicates while keeping order. Unknown kinds are kept so the
// bundle can report them. An empty list yields DefaultKinds.
func ParseKinds(csv string) []Kind {
	seen := make(map[Kind]bool)
	var out []Kind
	for _, part := range strings.Split(csv, ",") {
		k := Kind(strings.ToLower(strings.TrimSpace(part)))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	if len(out) == 0 {
		return append([]Kind(nil), DefaultKinds...)
	}
	return out
}

// Depth controls how much time augmentation gets.
type Depth string

const (
	Minimal       Depth = "minimal"
	Standard      Depth = "standard"
	Comprehensive Depth = "comprehensive"
)

// ParseDepth maps s to a Depth. Unknown values return Standard, false.
func ParseDepth(s string) (Depth, bool) {
	switch d := Depth(strings.ToLower(strings.TrimSpace(s))); d {
	case Minimal, Standard, Comprehensive:
		return d, true
	case "":
		return Standard, true
	default:
		return Standard, false
	}
}

// Timeout returns the augmentation budget for d.
func (d Depth) Timeout(cfg config.CollectorConfig) time.Duration {
	switch d {
	case Minimal:
		return cfg.TimeoutMinimal
	case Comprehensive:
		return cfg.TimeoutComprehensive
	default:
		return cfg.TimeoutStandard
	}
}

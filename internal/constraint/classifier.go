package constraint

import (
	"strings"

	"go.uber.org/zap"
)

// KeywordIndex maps domains to their classification keywords.
// It is immutable after construction and safe for concurrent readers.
type KeywordIndex struct {
	keywords map[Domain][]string
	fallback bool
}

// NewKeywordIndex builds an index from parsed documents. Domains without
// keywords are dropped with a warning. If no domain has keywords the
// built-in fallback set is used so Classify never has an empty index.
func NewKeywordIndex(docs map[Domain]Document, logger *zap.Logger) *KeywordIndex {
	if logger == nil {
		logger = zap.NewNop()
	}

	ix := &KeywordIndex{keywords: make(map[Domain][]string)}
	for _, d := range Priority {
		doc, ok := docs[d]
		if !ok {
			continue
		}
		if len(doc.Keywords) == 0 {
			logger.Warn("domain has no keywords, dropped from classification",
				zap.String("domain", string(d)))
			continue
		}
		ix.keywords[d] = append([]string(nil), doc.Keywords...)
	}

	if len(ix.keywords) == 0 {
		logger.Warn("no keyword sections found, using built-in fallback keywords")
		for d, kws := range fallbackKeywords {
			ix.keywords[d] = append([]string(nil), kws...)
		}
		ix.fallback = true
	}

	return ix
}

// Classify returns the highest-priority domain with a keyword that occurs in
// text (case-insensitive substring match), or General.
func (ix *KeywordIndex) Classify(text string) Domain {
	lower := strings.ToLower(text)
	for _, d := range Priority {
		for _, kw := range ix.keywords[d] {
			if strings.Contains(lower, kw) {
				return d
			}
		}
	}
	return General
}

// Matches returns every domain with at least one matching keyword, in
// priority order, with the keywords that matched.
func (ix *KeywordIndex) Matches(text string) map[Domain][]string {
	lower := strings.ToLower(text)
	out := make(map[Domain][]string)
	for _, d := range Priority {
		for _, kw := range ix.keywords[d] {
			if strings.Contains(lower, kw) {
				out[d] = append(out[d], kw)
			}
		}
	}
	return out
}

// Domains returns the indexed domains in priority order.
func (ix *KeywordIndex) Domains() []Domain {
	var out []Domain
	for _, d := range Priority {
		if _, ok := ix.keywords[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Keywords returns a copy of the keywords for d.
func (ix *KeywordIndex) Keywords(d Domain) []string {
	return append([]string(nil), ix.keywords[d]...)
}

// UsingFallback reports whether the built-in keyword set is in use.
func (ix *KeywordIndex) UsingFallback() bool {
	return ix.fallback
}

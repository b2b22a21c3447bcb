package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksregexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Finding is one redacted secret. The secret value itself is not kept.
type Finding struct {
	RuleID string
	Line   int
}

// Result is the outcome of a Redact call.
type Result struct {
	Text     string
	Findings []Finding
}

// Count returns the number of secrets redacted.
func (r Result) Count() int { return len(r.Findings) }

// RuleCounts returns redactions per rule.
func (r Result) RuleCounts() map[string]int {
	counts := make(map[string]int, len(r.Findings))
	for _, f := range r.Findings {
		counts[f.RuleID]++
	}
	return counts
}

type pattern struct {
	id    string
	re    *regexp.Regexp
	group int
}

// assignment-style credentials that gitleaks only flags above an entropy threshold
var extraPatterns = []pattern{
	{id: "password-assignment", re: regexp.MustCompile(`(?i)(?:password|passwd|pwd|secret)\s*[:=]\s*['"]?([^\s'"]{8,})`), group: 1},
	{id: "database-url", re: regexp.MustCompile(`(?i)(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^:\s]+:([^@\s]+)@`), group: 1},
	{id: "bearer-token", re: regexp.MustCompile(`(?i)bearer\s+([A-Za-z0-9_\-\.=]{20,})`), group: 1},
}

// Redactor replaces secrets in text.
type Redactor struct {
	cfg      gitleaksconfig.Config
	allow    []*regexp.Regexp
	disabled bool
}

var (
	defaultCfg     gitleaksconfig.Config
	defaultCfgErr  error
	defaultCfgOnce sync.Once
)

// gitleaks parses its embedded rule set on every NewDetectorDefaultConfig call
func baseConfig() (gitleaksconfig.Config, error) {
	defaultCfgOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			defaultCfgErr = fmt.Errorf("loading gitleaks rules: %w", err)
			return
		}
		defaultCfg = d.Config
	})
	return defaultCfg, defaultCfgErr
}

// NewRedactor builds a redactor using the gitleaks default rules and the
// given allowlist, which may be nil.
func NewRedactor(allow *Allowlist) (*Redactor, error) {
	cfg, err := baseConfig()
	if err != nil {
		return nil, err
	}
	r := &Redactor{cfg: cfg}

	if !allow.Empty() {
		// copy so the shared default config is never mutated
		cfg.Allowlists = append([]*gitleaksconfig.Allowlist(nil), cfg.Allowlists...)
		al := &gitleaksconfig.Allowlist{
			Description: "corethink project and user allowlist",
			StopWords:   allow.StopWords,
		}
		for _, p := range allow.Regexes {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRegex, p, err)
			}
			al.Regexes = append(al.Regexes, (*gitleaksregexp.Regexp)(re))
			r.allow = append(r.allow, re)
		}
		cfg.Allowlists = append(cfg.Allowlists, al)
		r.cfg = cfg
	}
	return r, nil
}

// Disabled returns a redactor that passes text through unchanged.
func Disabled() *Redactor {
	return &Redactor{disabled: true}
}

func (r *Redactor) allowed(s string) bool {
	for _, re := range r.allow {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

type span struct {
	start, end int
	rule       string
}

// Redact replaces every detected secret with a [REDACTED:rule-id] marker.
func (r *Redactor) Redact(text string) Result {
	if r == nil || r.disabled || text == "" {
		return Result{Text: text}
	}

	var spans []span

	// a fresh detector per call; Detector accumulates findings internally
	detector := detect.NewDetector(r.cfg)
	for _, f := range detector.DetectString(text) {
		if f.Secret == "" {
			continue
		}
		for off := 0; ; {
			i := strings.Index(text[off:], f.Secret)
			if i < 0 {
				break
			}
			start := off + i
			spans = append(spans, span{start: start, end: start + len(f.Secret), rule: f.RuleID})
			off = start + len(f.Secret)
		}
	}

	for _, p := range extraPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*p.group], m[2*p.group+1]
			if start < 0 || r.allowed(text[start:end]) {
				continue
			}
			spans = append(spans, span{start: start, end: end, rule: p.id})
		}
	}

	if len(spans) == 0 {
		return Result{Text: text}
	}
	return apply(text, spans)
}

// apply merges overlapping spans and substitutes a marker for each.
func apply(text string, spans []span) Result {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	merged := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start < last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	res := Result{Findings: make([]Finding, 0, len(merged))}
	var b strings.Builder
	prev := 0
	for _, s := range merged {
		b.WriteString(text[prev:s.start])
		b.WriteString("[REDACTED:" + s.rule + "]")
		prev = s.end
		res.Findings = append(res.Findings, Finding{
			RuleID: s.rule,
			Line:   strings.Count(text[:s.start], "\n") + 1,
		})
	}
	b.WriteString(text[prev:])
	res.Text = b.String()
	return res
}

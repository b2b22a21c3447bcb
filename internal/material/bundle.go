package material

import (
	"fmt"
	"strings"
	"time"
)

// Source says where an entry's text came from.
type Source string

const (
	SourceLocal       Source = "local"
	SourceAugmented   Source = "augmented"
	SourceFallback    Source = "fallback"
	SourceUnsupported Source = "unsupported"
)

// Reason classifies a degradation.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonError       Reason = "error"
	ReasonDisabled    Reason = "disabled"
	ReasonLocalError  Reason = "local_error"
	ReasonUnsupported Reason = "unsupported"
)

// Degradation records why an entry holds fallback text.
type Degradation struct {
	Kind   Kind
	Reason Reason
	Err    error
}

func (d Degradation) String() string {
	if d.Err != nil {
		return fmt.Sprintf("%s (%s: %v)", d.Kind, d.Reason, d.Err)
	}
	return fmt.Sprintf("%s (%s)", d.Kind, d.Reason)
}

// Entry is the gathered text for one kind.
type Entry struct {
	Kind        Kind
	Text        string
	Source      Source
	Elapsed     time.Duration
	Degradation *Degradation
}

// Bundle holds one entry per requested kind, in request order.
type Bundle struct {
	Topic   string
	Domain  string
	Depth   Depth
	Entries []Entry
	Elapsed time.Duration
}

// Get returns the text for k.
func (b Bundle) Get(k Kind) (string, bool) {
	for _, e := range b.Entries {
		if e.Kind == k {
			return e.Text, true
		}
	}
	return "", false
}

// Kinds returns the entry kinds in order.
func (b Bundle) Kinds() []Kind {
	out := make([]Kind, len(b.Entries))
	for i, e := range b.Entries {
		out[i] = e.Kind
	}
	return out
}

// Degraded returns the degradations of all entries. Disabled augmentation
// is an expected configuration, not a degradation, and is excluded.
func (b Bundle) Degraded() []Degradation {
	var out []Degradation
	for _, e := range b.Entries {
		if e.Degradation != nil && e.Degradation.Reason != ReasonDisabled {
			out = append(out, *e.Degradation)
		}
	}
	return out
}

// DegradedKinds returns the kinds listed by Degraded.
func (b Bundle) DegradedKinds() []Kind {
	var out []Kind
	for _, d := range b.Degraded() {
		out = append(out, d.Kind)
	}
	return out
}

// AugmentedKinds returns kinds whose text was extended externally.
func (b Bundle) AugmentedKinds() []Kind {
	var out []Kind
	for _, e := range b.Entries {
		if e.Source == SourceAugmented {
			out = append(out, e.Kind)
		}
	}
	return out
}

// Text renders the bundle as one document with a heading per kind.
func (b Bundle) Text() string {
	var sb strings.Builder
	for i, e := range b.Entries {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "### %s\n\n%s", e.Kind, e.Text)
	}
	return sb.String()
}

// Summary is a one-line description for logs and audit records.
func (b Bundle) Summary() string {
	s := fmt.Sprintf("%d kinds in %s", len(b.Entries), b.Elapsed.Round(time.Millisecond))
	if d := b.DegradedKinds(); len(d) > 0 {
		parts := make([]string, len(d))
		for i, k := range d {
			parts[i] = string(k)
		}
		s += ", degraded: " + strings.Join(parts, ", ")
	}
	return s
}

package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/corethink/internal/constraint"
	"github.com/fyrsmithlabs/corethink/internal/material"
	"github.com/fyrsmithlabs/corethink/internal/reasoning"
	"github.com/fyrsmithlabs/corethink/internal/scoring"
)

// MaterialSummary is the collection metadata carried on a verdict.
type MaterialSummary struct {
	Kinds     []material.Kind `json:"kinds"`
	Degraded  []string        `json:"degraded,omitempty"`
	Augmented []material.Kind `json:"augmented,omitempty"`
	Elapsed   time.Duration   `json:"elapsed"`
}

func summarize(b material.Bundle) MaterialSummary {
	s := MaterialSummary{
		Kinds:     b.Kinds(),
		Augmented: b.AugmentedKinds(),
		Elapsed:   b.Elapsed,
	}
	for _, d := range b.Degraded() {
		s.Degraded = append(s.Degraded, d.String())
	}
	return s
}

// Verdict is the terminal output of RunReasoning.
type Verdict struct {
	InvocationID string                 `json:"invocation_id"`
	Disposition  reasoning.Disposition  `json:"disposition"`
	Confidence   scoring.Band           `json:"confidence"`
	Breakdown    scoring.Breakdown      `json:"confidence_breakdown"`
	Rationale    string                 `json:"rationale"`
	Domain       constraint.Domain      `json:"domain"`
	Kind         reasoning.JudgmentKind `json:"judgment_kind"`
	Depth        material.Depth         `json:"depth"`
	StageOutputs []string               `json:"stage_outputs"`
	StageErrors  []reasoning.StageError `json:"stage_errors,omitempty"`
	Materials    MaterialSummary        `json:"materials"`
	Elapsed      time.Duration          `json:"elapsed"`
}

// Degraded reports whether any stage failed or any material degraded.
func (v Verdict) Degraded() bool {
	return len(v.StageErrors) > 0 || len(v.Materials.Degraded) > 0
}

// qualityFooter is appended to the emit output after scoring.
func qualityFooter(v Verdict) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("Reasoning quality:\n")
	fmt.Fprintf(&b, "- Domain: %s\n", v.Domain)
	fmt.Fprintf(&b, "- Judgment: %s at %s depth\n", v.Kind, v.Depth)
	fmt.Fprintf(&b, "- Materials: %d kinds", len(v.Materials.Kinds))
	if len(v.Materials.Degraded) > 0 {
		fmt.Fprintf(&b, ", local fallback for %s", strings.Join(v.Materials.Degraded, ", "))
	}
	b.WriteString("\n")
	if len(v.StageErrors) > 0 {
		fmt.Fprintf(&b, "- Stage errors: %d\n", len(v.StageErrors))
	}
	fmt.Fprintf(&b, "- Elapsed: %s\n", v.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "- Confidence: %s. This band is a text heuristic over compliance wording, "+
		"material volume and uncertainty wording; it is not a calibrated probability.", v.Breakdown)
	return b.String()
}

// Text renders the verdict for transports that return plain text.
func (v Verdict) Text() string {
	return fmt.Sprintf("Disposition: %s\nConfidence: %s\nDomain: %s\n\n%s",
		v.Disposition, v.Confidence, v.Domain, v.Rationale)
}

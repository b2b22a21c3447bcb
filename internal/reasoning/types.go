// Package reasoning runs the four-stage text pipeline (parse, reason, plan,
// emit) that turns a request, its constraints and its materials into a
// verdict.
//
// Stages are pure text transformations. Each one reads the immutable input
// and the outputs of earlier stages and returns new text; it never edits a
// previous output. A stage that errors or panics still produces output: the
// partial text followed by a [STAGE ERROR] block. The pipeline always runs
// all four stages.
package reasoning

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/corethink/internal/constraint"
	"github.com/fyrsmithlabs/corethink/internal/material"
)

// Disposition is the final categorical recommendation.
type Disposition string

const (
	Proceed Disposition = "PROCEED"
	Caution Disposition = "CAUTION"
	Reject  Disposition = "REJECT"
)

// FromJudgment converts a rule-check judgment.
func FromJudgment(j constraint.Judgment) Disposition {
	return Disposition(j)
}

// ErrDispositionSet is returned when a stage tries to change a recorded
// disposition.
var ErrDispositionSet = errors.New("disposition already recorded")

// ErrInvalidDisposition is returned for values outside PROCEED, CAUTION and REJECT.
var ErrInvalidDisposition = errors.New("invalid disposition")

// Valid reports whether d is one of the three dispositions.
func (d Disposition) Valid() bool {
	switch d {
	case Proceed, Caution, Reject:
		return true
	}
	return false
}

// JudgmentKind selects what the caller wants out of the pipeline.
type JudgmentKind string

const (
	EvaluateAndDecide JudgmentKind = "evaluate_and_decide"
	Validate          JudgmentKind = "validate"
	Plan              JudgmentKind = "plan"
)

// ParseJudgmentKind maps s to a kind. Unknown values return EvaluateAndDecide, false.
func ParseJudgmentKind(s string) (JudgmentKind, bool) {
	switch k := JudgmentKind(strings.ToLower(strings.TrimSpace(s))); k {
	case EvaluateAndDecide, Validate, Plan:
		return k, true
	case "":
		return EvaluateAndDecide, true
	default:
		return EvaluateAndDecide, false
	}
}

// StageID identifies one of the four stages.
type StageID int

const (
	StageParse StageID = iota + 1
	StageReason
	StagePlan
	StageEmit
)

var stageNames = map[StageID]string{
	StageParse:  "parse",
	StageReason: "reason",
	StagePlan:   "plan",
	StageEmit:   "emit",
}

func (s StageID) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "unknown"
}

// AllStages returns the stages in execution order.
func AllStages() []StageID {
	return []StageID{StageParse, StageReason, StagePlan, StageEmit}
}

// Input is the immutable context shared by every stage.
type Input struct {
	Request     string
	Kind        JudgmentKind
	Domain      constraint.Domain
	Constraints constraint.Composition
	Materials   material.Bundle
}

// State is what a stage sees: the input plus earlier outputs.
type State struct {
	Input   Input
	outputs []string

	disposition Disposition
}

// SetDisposition records the preliminary disposition. It can be set once per
// run; later stages read it with Disposition.
func (s *State) SetDisposition(d Disposition) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDisposition, d)
	}
	if s.disposition != "" {
		return ErrDispositionSet
	}
	s.disposition = d
	return nil
}

// Disposition returns the recorded disposition, if any.
func (s *State) Disposition() (Disposition, bool) {
	return s.disposition, s.disposition != ""
}

// Output returns the output of an earlier stage, or "".
func (s *State) Output(id StageID) string {
	i := int(id) - 1
	if i < 0 || i >= len(s.outputs) {
		return ""
	}
	return s.outputs[i]
}

// Outputs returns a copy of the outputs produced so far.
func (s *State) Outputs() []string {
	out := make([]string, len(s.outputs))
	copy(out, s.outputs)
	return out
}

// StageError records a stage that failed and was converted to text.
type StageError struct {
	Stage StageID
	Err   string
}

// Result is the outcome of one pipeline run.
type Result struct {
	Outputs     []string
	Disposition Disposition
	Errors      []StageError
}

// Final returns the emit stage output.
func (r Result) Final() string {
	if len(r.Outputs) < int(StageEmit) {
		return ""
	}
	return r.Outputs[StageEmit-1]
}

// Text joins all stage outputs; this is the text the confidence scorer reads.
func (r Result) Text() string {
	return strings.Join(r.Outputs, "\n\n")
}

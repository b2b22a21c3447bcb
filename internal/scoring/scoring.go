// Package scoring derives a coarse confidence band for a verdict.
//
// The score is a heuristic built from three text signals. It is not a
// calibrated probability and should not be read as one.
package scoring

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/corethink/internal/config"
)

// Band is a qualitative confidence rating.
type Band string

const (
	High   Band = "HIGH"
	Medium Band = "MEDIUM"
	Low    Band = "LOW"
)

// Breakdown explains how a band was reached. Points are out of 3.
type Breakdown struct {
	Compliance     float64
	Materials      float64
	NoUncertainty  float64
	Points         float64
	Band           Band
	MarkersMatched []string
}

func (b Breakdown) String() string {
	return fmt.Sprintf("%s (compliance %.1f, materials %.1f, consistency %.1f = %.1f/3)",
		b.Band, b.Compliance, b.Materials, b.NoUncertainty, b.Points)
}

// Scorer holds the thresholds and marker lists.
type Scorer struct {
	highThreshold int
	lowThreshold  int
	compliance    []string
	violation     []string
	uncertainty   []string
}

// New creates a Scorer from config. Markers are matched case-insensitively.
func New(cfg config.ScoringConfig) *Scorer {
	return &Scorer{
		highThreshold: cfg.MaterialHighThreshold,
		lowThreshold:  cfg.MaterialLowThreshold,
		compliance:    lowerAll(cfg.ComplianceMarkers),
		violation:     lowerAll(cfg.ViolationMarkers),
		uncertainty:   lowerAll(cfg.UncertaintyMarkers),
	}
}

// NewDefault creates a Scorer with the default thresholds.
func NewDefault() *Scorer {
	return New(config.Default().Scoring)
}

// Score returns the confidence band.
func (s *Scorer) Score(reasoning, materials string) Band {
	return s.Explain(reasoning, materials).Band
}

// Explain scores and returns the per-signal breakdown.
//
//   - compliance: a compliance marker is present and no violation marker is
//   - materials: 1 point at or above the high threshold, 0.5 at the low one
//   - consistency: no uncertainty or contradiction marker in the reasoning
//
// 3 points or more is HIGH, 2 or more is MEDIUM, anything less is LOW.
// The materials signal only grows with length, so adding material never
// lowers the band.
func (s *Scorer) Explain(reasoning, materials string) Breakdown {
	lower := strings.ToLower(reasoning)
	var b Breakdown

	if matchAny(lower, s.compliance) != "" && matchAny(lower, s.violation) == "" {
		b.Compliance = 1
	}

	switch n := len(materials); {
	case n >= s.highThreshold:
		b.Materials = 1
	case n >= s.lowThreshold:
		b.Materials = 0.5
	}

	for _, m := range s.uncertainty {
		if strings.Contains(lower, m) {
			b.MarkersMatched = append(b.MarkersMatched, m)
		}
	}
	if len(b.MarkersMatched) == 0 {
		b.NoUncertainty = 1
	}

	b.Points = b.Compliance + b.Materials + b.NoUncertainty
	switch {
	case b.Points >= 3:
		b.Band = High
	case b.Points >= 2:
		b.Band = Medium
	default:
		b.Band = Low
	}
	return b
}

func matchAny(s string, markers []string) string {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return m
		}
	}
	return ""
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package constraint

import (
	"fmt"
	"strings"
)

// Strength is the modal strength of a textual rule.
type Strength string

const (
	Never  Strength = "NEVER"
	Must   Strength = "MUST"
	Should Strength = "SHOULD"
)

// Severity of a finding.
type Severity string

const (
	Violation Severity = "violation"
	Warning   Severity = "warning"
)

// Judgment is the disposition implied by a set of findings.
type Judgment string

const (
	Proceed Judgment = "PROCEED"
	Caution Judgment = "CAUTION"
	Reject  Judgment = "REJECT"
)

// Finding is one textual rule that matched a proposed change.
type Finding struct {
	Rule     string
	Strength Strength
	Severity Severity
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s", f.Strength, f.Message)
}

type rule struct {
	name     string
	strength Strength
	severity Severity
	message  string
	match    func(lower string) bool
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Rules are checked in order; the result lists every match.
var rules = []rule{
	{
		name:     "no_debug_output",
		strength: Never,
		severity: Violation,
		message:  "debug output added (print, console.log or fmt.Println)",
		match: func(s string) bool {
			return containsAny(s, "print(", "console.log", "fmt.println")
		},
	},
	{
		name:     "public_api_change",
		strength: Must,
		severity: Violation,
		message:  "possible public API change; keep backward compatibility and version the interface",
		match: func(s string) bool {
			return strings.Contains(s, "api") && containsAny(s, "public", "external")
		},
	},
	{
		name:     "function_docs",
		strength: Should,
		severity: Warning,
		message:  "function changed; update its documentation",
		match: func(s string) bool {
			return containsAny(s, "def ", "function", "func ")
		},
	},
}

// CheckChange runs the textual rule checks against a proposed change. This is
// substring matching only; it does not analyze code.
func CheckChange(text string) []Finding {
	lower := strings.ToLower(text)
	var out []Finding
	for _, r := range rules {
		if r.match(lower) {
			out = append(out, Finding{
				Rule:     r.name,
				Strength: r.strength,
				Severity: r.severity,
				Message:  r.message,
			})
		}
	}
	return out
}

// Judge returns REJECT on any violation, CAUTION on any warning, else PROCEED.
func Judge(findings []Finding) Judgment {
	j := Proceed
	for _, f := range findings {
		switch f.Severity {
		case Violation:
			return Reject
		case Warning:
			j = Caution
		}
	}
	return j
}

// Split separates findings by severity.
func Split(findings []Finding) (violations, warnings []Finding) {
	for _, f := range findings {
		if f.Severity == Violation {
			violations = append(violations, f)
		} else {
			warnings = append(warnings, f)
		}
	}
	return violations, warnings
}

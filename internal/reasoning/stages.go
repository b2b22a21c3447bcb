package reasoning

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/corethink/internal/constraint"
)

// DefaultHandlers returns the built-in parse, reason, plan and emit stages.
func DefaultHandlers() []Handler {
	return []Handler{
		HandlerFunc{ID: StageParse, Fn: parseStage},
		HandlerFunc{ID: StageReason, Fn: reasonStage},
		HandlerFunc{ID: StagePlan, Fn: planStage},
		HandlerFunc{ID: StageEmit, Fn: emitStage},
	}
}

var (
	emphasisWord = regexp.MustCompile(`(?i)\b(must|never|should|always|only|maybe|perhaps|might|could|not|don't|cannot|required?)\b`)
	sentenceEnd  = regexp.MustCompile(`[.!?]+\s+|\n+`)
	absoluteWord = regexp.MustCompile(`\b(MUST|NEVER|SHALL)\b`)
	soft         = regexp.MustCompile(`\b(SHOULD|MAY|RECOMMENDED)\b`)
)

// emphasisSentences returns request sentences carrying modal or hedging
// words, verbatim.
func emphasisSentences(text string) []string {
	var out []string
	for _, s := range sentenceEnd.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" && emphasisWord.MatchString(s) {
			out = append(out, s)
		}
	}
	return out
}

// constraintLines splits constraint text into absolute and negotiable lines.
func constraintLines(text string) (absolute, negotiable []string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*"))
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
		case absoluteWord.MatchString(line):
			absolute = append(absolute, line)
		case soft.MatchString(line):
			negotiable = append(negotiable, line)
		}
	}
	return absolute, negotiable
}

func bullets(b *strings.Builder, lines []string, empty string) {
	if len(lines) == 0 {
		fmt.Fprintf(b, "- %s\n", empty)
		return
	}
	for _, l := range lines {
		fmt.Fprintf(b, "- %s\n", l)
	}
}

var intentByKind = map[JudgmentKind]string{
	EvaluateAndDecide: "Decide whether the request should go ahead and how.",
	Validate:          "Check the proposed change against the applicable constraints.",
	Plan:              "Produce a staged plan for carrying out the request safely.",
}

var outcomeByKind = map[JudgmentKind]string{
	EvaluateAndDecide: "A PROCEED, CAUTION or REJECT decision with one concrete next action.",
	Validate:          "A list of rule findings and the disposition they imply.",
	Plan:              "An ordered, minimal-change-first plan with verification checkpoints.",
}

func parseStage(_ context.Context, st *State) (string, error) {
	in := st.Input
	var b strings.Builder

	b.WriteString("## Stage 1: Parse\n\n")
	b.WriteString("### Request (verbatim)\n\n")
	b.WriteString(in.Request)
	b.WriteString("\n\n### Intent\n\n")
	b.WriteString(intentByKind[in.Kind])
	fmt.Fprintf(&b, "\n\n### Object\n\n%s\n", firstSentence(in.Request))

	b.WriteString("\n### Constraints in scope\n\n")
	fmt.Fprintf(&b, "Domain: %s\n", in.Domain)
	abs, neg := constraintLines(in.Constraints.Text)
	fmt.Fprintf(&b, "Absolute rules: %d, negotiable rules: %d\n", len(abs), len(neg))

	b.WriteString("\n### Emphasis and qualifiers (verbatim)\n\n")
	bullets(&b, emphasisSentences(in.Request), "none stated")

	b.WriteString("\n### Expected outcome\n\n")
	b.WriteString(outcomeByKind[in.Kind])
	return b.String(), nil
}

// quote renders text as a markdown block quote so no request line starts a
// line of the surrounding output.
func quote(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func firstSentence(s string) string {
	parts := sentenceEnd.Split(strings.TrimSpace(s), 2)
	if len(parts) == 0 || parts[0] == "" {
		return "(empty request)"
	}
	return parts[0]
}

var sensitiveDomains = map[constraint.Domain]bool{
	constraint.SafetyCritical: true,
	constraint.Medical:        true,
	constraint.Legal:          true,
}

// preliminary decides the stage 2 disposition and the reasons for it.
func preliminary(in Input, findings []constraint.Finding) (Disposition, []string) {
	d := FromJudgment(constraint.Judge(findings))
	var why []string

	violations, warnings := constraint.Split(findings)
	for _, v := range violations {
		why = append(why, "rule violation: "+v.String())
	}
	for _, w := range warnings {
		why = append(why, "rule warning: "+w.String())
	}

	if d == Proceed && sensitiveDomains[in.Domain] {
		d = Caution
		why = append(why, fmt.Sprintf("domain %s requires human review before any change", in.Domain))
	}
	if d == Proceed && in.Constraints.IsDegraded() {
		d = Caution
		why = append(why, "applicable constraints were only partially available")
	}
	if len(why) == 0 {
		why = append(why, "no rule matched and the domain does not require extra review")
	}
	return d, why
}

func reasonStage(_ context.Context, st *State) (string, error) {
	in := st.Input
	if st.Output(StageParse) == "" {
		return "", fmt.Errorf("parse output missing")
	}

	findings := constraint.CheckChange(in.Request)
	violations, warnings := constraint.Split(findings)
	abs, neg := constraintLines(in.Constraints.Text)

	var b strings.Builder
	b.WriteString("## Stage 2: Reason\n\n")
	fmt.Fprintf(&b, "### Core problem\n\n%s\n", firstSentence(in.Request))

	b.WriteString("\n### Constraint classification\n\nAbsolute:\n")
	bullets(&b, abs, "none listed")
	b.WriteString("\nNegotiable:\n")
	bullets(&b, neg, "none listed")
	b.WriteString("\nImplicit:\n- Changes stay reversible and reviewable.\n- The live tree is only touched after a sandbox trial.\n")

	b.WriteString("\n### Rule checks\n\n")
	if len(violations) == 0 {
		b.WriteString("Compliance: compliant, no absolute rule matched the request.\n")
	}
	for _, v := range violations {
		fmt.Fprintf(&b, "VIOLATION: %s\n", v)
	}
	for _, w := range warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}

	b.WriteString("\n### Candidate solutions\n\n")
	b.WriteString("1. Minimal change: the smallest edit that satisfies the request.\n")
	b.WriteString("2. Staged change: split the work and verify after each step.\n")
	b.WriteString("3. Defer: collect more evidence before changing anything.\n")

	b.WriteString("\n### Risk assessment\n\n")
	fmt.Fprintf(&b, "- Domain: %s\n", in.Domain)
	fmt.Fprintf(&b, "- Material sections: %d\n", len(in.Materials.Entries))
	if d := in.Materials.Degraded(); len(d) > 0 {
		parts := make([]string, len(d))
		for i, x := range d {
			parts[i] = fmt.Sprintf("%s (%s)", x.Kind, x.Reason)
		}
		fmt.Fprintf(&b, "- Materials degraded: %s\n", strings.Join(parts, ", "))
	}
	for _, x := range in.Constraints.Degraded {
		fmt.Fprintf(&b, "- Constraints degraded: %s\n", x)
	}

	d, why := preliminary(in, findings)
	if err := st.SetDisposition(d); err != nil {
		return b.String(), err
	}
	b.WriteString("\n### Preliminary judgment\n\n")
	fmt.Fprintf(&b, "Disposition: %s\n", d)
	b.WriteString("Reasons:\n")
	bullets(&b, why, "")
	b.WriteString("Confidence label: provisional until the verdict is scored")
	return b.String(), nil
}

func planStage(_ context.Context, st *State) (string, error) {
	in := st.Input
	d, ok := st.Disposition()
	if !ok {
		return "", fmt.Errorf("reason stage recorded no disposition")
	}

	var b strings.Builder
	b.WriteString("## Stage 3: Plan\n\n### Execution steps (minimal change first)\n\n")

	var steps []string
	switch d {
	case Reject:
		steps = []string{
			"Stop: do not apply the change as proposed.",
			"Rework the proposal to remove every rule violation listed in stage 2.",
			"Resubmit the revised proposal for validation.",
		}
	default:
		steps = []string{
			"Record the current behaviour relevant to: " + in.Request,
			"Create a sandbox and apply the smallest version of the change there.",
			"Run the verification checkpoints below inside the sandbox.",
			"Promote the change only after every checkpoint passes.",
		}
		if d == Caution {
			steps = append([]string{"Resolve or explicitly accept each warning from stage 2."}, steps...)
		}
		if in.Kind == Plan {
			steps = append(steps, "Repeat in small increments for any remaining scope.")
		}
	}
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}

	b.WriteString("\n### Verification checkpoints\n\n")
	abs, _ := constraintLines(in.Constraints.Text)
	for _, a := range abs {
		fmt.Fprintf(&b, "- [ ] %s\n", a)
	}
	b.WriteString("- [ ] Existing tests pass in the sandbox.\n")
	b.WriteString("- [ ] The diff touches only what the request names.\n")

	b.WriteString("\n### Why this judgment\n\n")
	fmt.Fprintf(&b, "The preliminary disposition is %s for domain %s. ", d, in.Domain)
	switch d {
	case Proceed:
		b.WriteString("No textual rule matched and the constraints were fully available.")
	case Caution:
		b.WriteString("The change is acceptable only with the extra review steps above.")
	case Reject:
		b.WriteString("At least one absolute rule matched the request.")
	}
	return b.String(), nil
}

var nextAction = map[Disposition]string{
	Proceed: "Apply the smallest version of the change in a sandbox, run the checkpoints, then promote it.",
	Caution: "Address the warnings from stage 2, trial the change in a sandbox, and get a review before promoting it.",
	Reject:  "Do not apply this change. Remove the listed violations and resubmit.",
}

func emitStage(_ context.Context, st *State) (string, error) {
	in := st.Input
	d, ok := st.Disposition()
	if !ok {
		return "", fmt.Errorf("reason stage recorded no disposition")
	}
	if st.Output(StagePlan) == "" {
		return "", fmt.Errorf("plan output missing")
	}

	findings := constraint.CheckChange(in.Request)
	abs, _ := constraintLines(in.Constraints.Text)

	var b strings.Builder
	b.WriteString("## Verdict\n\n")
	fmt.Fprintf(&b, "Disposition: %s\n", d)
	b.WriteString("Request:\n")
	b.WriteString(quote(in.Request))
	fmt.Fprintf(&b, "Domain: %s\n", in.Domain)
	fmt.Fprintf(&b, "Next action: %s\n", nextAction[d])
	fmt.Fprintf(&b, "Confidence statement: this verdict rests on %d rule findings, %d absolute constraints and %d material sections",
		len(findings), len(abs), len(in.Materials.Entries))
	if kinds := in.Materials.DegradedKinds(); len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		fmt.Fprintf(&b, "; local fallbacks were used for %s", strings.Join(names, ", "))
	}
	b.WriteString(". It reflects text matching against written policy, not an analysis of the code.")
	return b.String(), nil
}

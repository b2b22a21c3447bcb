package material

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/corethink/internal/constraint"
)

// Request is the input handed to every gatherer.
type Request struct {
	Topic  string
	Domain constraint.Domain
	Depth  Depth
}

// Gatherer produces local text for one kind.
type Gatherer interface {
	Gather(ctx context.Context, req Request) (string, error)
}

// GathererFunc adapts a function to Gatherer.
type GathererFunc func(ctx context.Context, req Request) (string, error)

// Gather calls f.
func (f GathererFunc) Gather(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// placeholder is substituted when a local gatherer fails.
func placeholder(k Kind, err error) string {
	return fmt.Sprintf("[%s unavailable: %v] No local %s could be produced; treat this area as unreviewed.",
		k, err, strings.ReplaceAll(string(k), "_", " "))
}

type constraintsGatherer struct {
	store *constraint.Store
}

func (g constraintsGatherer) Gather(_ context.Context, req Request) (string, error) {
	c := g.store.Compose(req.Domain)
	text := c.Text
	if c.IsDegraded() {
		notes := make([]string, len(c.Degraded))
		for i, d := range c.Degraded {
			notes[i] = d.String()
		}
		text += "\n\n(fallback used: " + strings.Join(notes, "; ") + ")"
	}
	return text, nil
}

var domainSensitivity = map[constraint.Domain]string{
	constraint.SafetyCritical: "critical: failures can injure people; require independent review and a tested rollback",
	constraint.Medical:        "high: patient data and clinical outcomes; privacy and audit obligations apply",
	constraint.Legal:          "high: contractual and regulatory exposure; wording changes need sign-off",
	constraint.AIML:           "elevated: model behaviour shifts silently; evaluate on held-out data",
	constraint.CloudDevOps:    "elevated: blast radius spans environments; stage rollouts and keep rollback ready",
	constraint.Engineering:    "moderate: regressions are usually recoverable; keep changes small and tested",
	constraint.General:        "baseline: no domain-specific sensitivity detected",
}

type riskGatherer struct{}

func (riskGatherer) Gather(_ context.Context, req Request) (string, error) {
	var b strings.Builder
	sens, ok := domainSensitivity[req.Domain]
	if !ok {
		sens = domainSensitivity[constraint.General]
	}
	fmt.Fprintf(&b, "Domain: %s\nSensitivity: %s\n", req.Domain, sens)

	findings := constraint.CheckChange(req.Topic)
	if len(findings) == 0 {
		b.WriteString("Rule checks: no textual rule matched the topic.")
		return b.String(), nil
	}
	b.WriteString("Rule checks:")
	for _, f := range findings {
		fmt.Fprintf(&b, "\n- %s [%s]", f, f.Severity)
	}
	return b.String(), nil
}

type domainKnowledgeGatherer struct {
	store *constraint.Store
}

func (g domainKnowledgeGatherer) Gather(_ context.Context, req Request) (string, error) {
	if req.Domain == constraint.General {
		return "No specialised domain detected; only the baseline constraints apply.", nil
	}
	doc, ok := g.store.Document(req.Domain)
	if !ok {
		return "", fmt.Errorf("%w: %s", constraint.ErrDomainMissing, req.Domain)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\n\n%s", req.Domain, doc.Body)
	if kws := g.store.Index().Keywords(req.Domain); len(kws) > 0 {
		fmt.Fprintf(&b, "\n\nIndicative terms: %s", strings.Join(kws, ", "))
	}
	return b.String(), nil
}

// augmentedBase is the local text for augmented kinds; it is also the
// fallback when augmentation fails.
type augmentedBase struct {
	kind Kind
}

var augmentedGuidance = map[Kind]string{
	Precedents:   "Local notes only. Look for earlier changes of the same shape in version history and review how they were rolled out.",
	Implications: "Local notes only. Consider callers, stored data, operational load and rollback cost before committing.",
	Patterns:     "Local notes only. Prefer the smallest change that fits existing conventions; isolate it behind a clear interface.",
}

func (g augmentedBase) Gather(_ context.Context, req Request) (string, error) {
	return fmt.Sprintf("Topic: %s\n%s", req.Topic, augmentedGuidance[g.kind]), nil
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/corethink/internal/audit"
	"github.com/fyrsmithlabs/corethink/internal/constraint"
	"github.com/fyrsmithlabs/corethink/internal/logging"
	"github.com/fyrsmithlabs/corethink/internal/sandbox"
	"go.uber.org/zap"
)

func errorText(op string, err error) string {
	return fmt.Sprintf("Error: %s failed: %v", op, err)
}

// CreateSandbox creates or replaces the sandbox for root and returns its
// path, or error text.
func (o *Orchestrator) CreateSandbox(ctx context.Context, root string) string {
	ctx, log, _ := o.begin(ctx, "create_sandbox")
	start := o.now()

	h, err := o.reg.Sandbox().Create(ctx, root)
	var out string
	if err != nil {
		log.Warn(ctx, "sandbox creation failed", zap.String("root", root), zap.Error(err))
		out = errorText("create_sandbox", err)
	} else {
		out = h.Path
	}
	o.record("create_sandbox", start, []audit.Input{{Key: "repo_root", Value: root}}, out, "", err)
	return out
}

// RemoveSandbox removes the sandbox for root.
func (o *Orchestrator) RemoveSandbox(ctx context.Context, root string) string {
	ctx, log, _ := o.begin(ctx, "remove_sandbox")
	start := o.now()

	err := o.reg.Sandbox().Remove(ctx, root)
	var out string
	switch {
	case errors.Is(err, sandbox.ErrNoSandbox):
		out = "No sandbox to remove for " + root
		err = nil
	case err != nil:
		log.Warn(ctx, "sandbox removal failed", zap.String("root", root), zap.Error(err))
		out = errorText("remove_sandbox", err)
	default:
		out = "Sandbox removed for " + root
	}
	o.record("remove_sandbox", start, []audit.Input{{Key: "repo_root", Value: root}}, out, "", err)
	return out
}

// SandboxDiff returns the changes made inside the sandbox for root.
func (o *Orchestrator) SandboxDiff(ctx context.Context, root string) string {
	ctx, _, _ = o.begin(ctx, "sandbox_diff")
	start := o.now()

	diff, err := o.reg.Sandbox().Diff(ctx, root)
	out := diff
	switch {
	case err != nil:
		out = errorText("sandbox_diff", err)
	case strings.TrimSpace(diff) == "":
		out = "No changes in sandbox."
	}
	o.record("sandbox_diff", start, []audit.Input{{Key: "repo_root", Value: root}},
		fmt.Sprintf("%d bytes of diff", len(diff)), "", err)
	return out
}

// ApplyPatch applies patch inside the sandbox for root. With check set the
// patch is only verified.
func (o *Orchestrator) ApplyPatch(ctx context.Context, root, patch string, check bool) string {
	ctx, _, _ = o.begin(ctx, "apply_patch")
	start := o.now()

	res, err := o.reg.Sandbox().ApplyPatch(ctx, root, patch, check)
	var out string
	switch {
	case err != nil:
		out = errorText("apply_patch", err)
		if res != nil && strings.TrimSpace(res.Output) != "" {
			out += "\n" + strings.TrimSpace(res.Output)
		}
	case res.DryRun:
		out = "Patch applies cleanly (check only, nothing changed)."
	default:
		out = "Patch applied inside the sandbox."
	}
	o.record("apply_patch", start, []audit.Input{
		{Key: "repo_root", Value: root},
		{Key: "check", Value: fmt.Sprint(check)},
		{Key: "patch", Value: patch},
	}, out, "", err)
	return out
}

// ValidateChange runs the textual rule checks over a proposed change and
// reports the findings with a PROCEED, CAUTION or REJECT judgment.
func (o *Orchestrator) ValidateChange(ctx context.Context, proposed, background string) string {
	start := o.now()

	out, _ := o.validate(proposed, background)
	o.record("validate_change", start, []audit.Input{
		{Key: "proposed_change", Value: proposed},
		{Key: "context", Value: background},
	}, out, "", nil)
	return out
}

func (o *Orchestrator) validate(proposed, background string) (string, constraint.Judgment) {
	domain := o.reg.Constraints().Classify(proposed, background)
	findings := constraint.CheckChange(proposed)
	violations, warnings := constraint.Split(findings)
	judgment := constraint.Judge(findings)

	var b strings.Builder
	b.WriteString("## Constraint Validation\n\n")
	fmt.Fprintf(&b, "Domain: %s\n", domain)
	fmt.Fprintf(&b, "Judgment: %s\n\n", judgment)

	section := func(title string, fs []constraint.Finding) {
		fmt.Fprintf(&b, "### %s\n\n", title)
		if len(fs) == 0 {
			b.WriteString("- none\n\n")
			return
		}
		for _, f := range fs {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}
	section("Violations", violations)
	section("Warnings", warnings)

	switch judgment {
	case constraint.Reject:
		b.WriteString("Resolve the violations before applying this change.")
	case constraint.Caution:
		b.WriteString("Address the warnings or record why they do not apply.")
	default:
		b.WriteString("No textual rule matched; review against the full constraint set still applies.")
	}
	return b.String(), judgment
}

// ExecuteWithSafeguards trials action in a sandbox. Live execution is never
// performed: without dryRun the call only reports that policy.
func (o *Orchestrator) ExecuteWithSafeguards(ctx context.Context, action, root string, dryRun bool) string {
	ctx, log, _ := o.begin(ctx, "execute_with_safeguards")
	start := o.now()

	validation, judgment := o.validate(action, "")

	var b strings.Builder
	b.WriteString("## Safeguarded Execution\n\n")
	fmt.Fprintf(&b, "Action: %s\n", action)
	fmt.Fprintf(&b, "Repository: %s\n", root)
	fmt.Fprintf(&b, "Dry run: %t\n\n", dryRun)

	var err error
	if !dryRun {
		b.WriteString("Live execution is not performed. Rerun with dry_run enabled to trial the action in a sandbox, " +
			"then review the sandbox diff before applying anything to the repository.\n\n")
	} else {
		h, cerr := o.reg.Sandbox().Create(ctx, root)
		if cerr != nil {
			err = cerr
			log.Warn(ctx, "sandbox creation failed", zap.Error(cerr))
			fmt.Fprintf(&b, "%s\n\n", errorText("create_sandbox", cerr))
		} else {
			fmt.Fprintf(&b, "Sandbox: %s\n", h.Path)
			fmt.Fprintf(&b, "Isolation: %s", h.Mechanism)
			if h.Branch != "" {
				fmt.Fprintf(&b, " on branch %s", h.Branch)
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "Created: %s\n\n", h.CreatedAt.Format(time.RFC3339))
			b.WriteString("Apply the change inside the sandbox, inspect the diff, then remove the sandbox.\n\n")
		}
	}
	b.WriteString(validation)

	out := b.String()
	o.record("execute_with_safeguards", start, []audit.Input{
		{Key: "action", Value: action},
		{Key: "repo_root", Value: root},
		{Key: "dry_run", Value: fmt.Sprint(dryRun)},
		{Key: "judgment", Value: string(judgment)},
	}, out, "", err)
	return out
}

// RecentHistory returns the last n audit entries.
func (o *Orchestrator) RecentHistory(n int) ([]audit.Entry, error) {
	return o.reg.Audit().Recent(n)
}

// SearchHistory searches audit entries.
func (o *Orchestrator) SearchHistory(query string, limit int) ([]audit.Entry, error) {
	return o.reg.Audit().Search(query, limit)
}

// HistoryStats reports on the audit log.
func (o *Orchestrator) HistoryStats() (audit.Stats, error) {
	return o.reg.Audit().Stats()
}

// ClearHistory empties the audit log.
func (o *Orchestrator) ClearHistory(ctx context.Context) error {
	if err := o.reg.Audit().Clear(); err != nil {
		return err
	}
	logging.FromZap(o.logger).Info(ctx, "reasoning history cleared")
	return nil
}

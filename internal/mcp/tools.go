package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/corethink/internal/audit"
)

// ===== REASONING TOOLS =====

type classifyInput struct {
	Request     string   `json:"request" jsonschema:"required,Free-text description of the intended change or question"`
	DomainHints []string `json:"domain_hints,omitempty" jsonschema:"Extra words appended to the request before classification"`
}

type classifyOutput struct {
	Domain      string   `json:"domain" jsonschema:"Detected domain"`
	Constraints string   `json:"constraints" jsonschema:"Baseline plus domain constraints"`
	Degraded    []string `json:"degraded,omitempty" jsonschema:"Constraint sources that could not be loaded"`
}

type collectInput struct {
	Topic string `json:"topic" jsonschema:"required,Topic to gather materials for"`
	Kinds string `json:"kinds,omitempty" jsonschema:"Comma-separated material kinds (default: constraints,precedents,implications)"`
	Depth string `json:"depth,omitempty" jsonschema:"minimal, standard or comprehensive (default: standard)"`
}

type collectOutput struct {
	Domain    string   `json:"domain"`
	Kinds     []string `json:"kinds"`
	Degraded  []string `json:"degraded,omitempty"`
	ElapsedMs int64    `json:"elapsed_ms"`
	Text      string   `json:"text"`
}

type reasonInput struct {
	Request      string `json:"request" jsonschema:"required,The change or question to evaluate"`
	JudgmentKind string `json:"judgment_kind,omitempty" jsonschema:"evaluate_and_decide, validate or plan (default: evaluate_and_decide)"`
	Depth        string `json:"depth,omitempty" jsonschema:"minimal, standard or comprehensive (default: standard)"`
}

type reasonOutput struct {
	InvocationID string   `json:"invocation_id"`
	Disposition  string   `json:"disposition" jsonschema:"PROCEED, CAUTION or REJECT"`
	Confidence   string   `json:"confidence" jsonschema:"HIGH, MEDIUM or LOW (heuristic)"`
	Domain       string   `json:"domain"`
	Rationale    string   `json:"rationale"`
	Degraded     []string `json:"degraded,omitempty"`
	StageErrors  int      `json:"stage_errors"`
	ElapsedMs    int64    `json:"elapsed_ms"`
}

type validateInput struct {
	ProposedChange string `json:"proposed_change" jsonschema:"required,Description or diff of the change"`
	Context        string `json:"context,omitempty" jsonschema:"Surrounding context used for domain detection"`
}

type textOutput struct {
	Text string `json:"text"`
}

func (s *Server) registerReasoningTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "classify_and_compose",
		Description: "Classify a request into a domain and return the applicable constraints",
	}, instrument(s, "classify_and_compose", func(ctx context.Context, in classifyInput) (*mcp.CallToolResult, classifyOutput, error) {
		if strings.TrimSpace(in.Request) == "" {
			return nil, classifyOutput{}, errors.New("request is required")
		}
		comp := s.orch.ClassifyAndCompose(ctx, in.Request, in.DomainHints...)
		out := classifyOutput{Domain: string(comp.Domain), Constraints: comp.Text}
		for _, d := range comp.Degraded {
			out.Degraded = append(out.Degraded, d.String())
		}
		return textResult(comp.Text), out, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "collect_materials",
		Description: "Gather supporting materials for a topic, one section per requested kind",
	}, instrument(s, "collect_materials", func(ctx context.Context, in collectInput) (*mcp.CallToolResult, collectOutput, error) {
		if strings.TrimSpace(in.Topic) == "" {
			return nil, collectOutput{}, errors.New("topic is required")
		}
		b := s.orch.CollectMaterials(ctx, in.Topic, in.Kinds, in.Depth)
		out := collectOutput{Domain: b.Domain, ElapsedMs: b.Elapsed.Milliseconds(), Text: b.Text()}
		for _, k := range b.Kinds() {
			out.Kinds = append(out.Kinds, string(k))
		}
		for _, k := range b.DegradedKinds() {
			out.Degraded = append(out.Degraded, string(k))
		}
		return textResult(out.Text), out, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "run_reasoning",
		Description: "Run the four-stage reasoning pipeline and return a PROCEED / CAUTION / REJECT verdict",
	}, instrument(s, "run_reasoning", func(ctx context.Context, in reasonInput) (*mcp.CallToolResult, reasonOutput, error) {
		if strings.TrimSpace(in.Request) == "" {
			return nil, reasonOutput{}, errors.New("request is required")
		}
		v := s.orch.RunReasoning(ctx, in.Request, in.JudgmentKind, in.Depth)
		out := reasonOutput{
			InvocationID: v.InvocationID,
			Disposition:  string(v.Disposition),
			Confidence:   string(v.Confidence),
			Domain:       string(v.Domain),
			Rationale:    v.Rationale,
			Degraded:     v.Materials.Degraded,
			StageErrors:  len(v.StageErrors),
			ElapsedMs:    v.Elapsed.Milliseconds(),
		}
		return textResult(v.Text()), out, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "validate_against_constraints",
		Description: "Check a proposed change against the textual MUST / NEVER / SHOULD rules",
	}, instrument(s, "validate_against_constraints", func(ctx context.Context, in validateInput) (*mcp.CallToolResult, textOutput, error) {
		if strings.TrimSpace(in.ProposedChange) == "" {
			return nil, textOutput{}, errors.New("proposed_change is required")
		}
		text := s.orch.ValidateChange(ctx, in.ProposedChange, in.Context)
		return textResult(text), textOutput{Text: text}, nil
	}))
}

// ===== SANDBOX TOOLS =====

type repoInput struct {
	RepoRoot string `json:"repo_root" jsonschema:"required,Path inside the git repository"`
}

type executeInput struct {
	Action   string `json:"action" jsonschema:"required,Action to trial"`
	RepoRoot string `json:"repo_root" jsonschema:"required,Repository root"`
	DryRun   *bool  `json:"dry_run,omitempty" jsonschema:"Trial in a sandbox (default: true). Live execution is never performed."`
}

type patchInput struct {
	RepoRoot string `json:"repo_root" jsonschema:"required,Repository root whose sandbox receives the patch"`
	Patch    string `json:"patch" jsonschema:"required,Unified diff"`
	Check    bool   `json:"check,omitempty" jsonschema:"Only verify that the patch applies"`
}

func requireRoot(root string) error {
	if strings.TrimSpace(root) == "" {
		return errors.New("repo_root is required")
	}
	return nil
}

func (s *Server) registerSandboxTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "execute_with_safeguards",
		Description: "Trial an action in an isolated sandbox and validate it against constraints",
	}, instrument(s, "execute_with_safeguards", func(ctx context.Context, in executeInput) (*mcp.CallToolResult, textOutput, error) {
		if err := requireRoot(in.RepoRoot); err != nil {
			return nil, textOutput{}, err
		}
		dryRun := in.DryRun == nil || *in.DryRun
		text := s.orch.ExecuteWithSafeguards(ctx, in.Action, in.RepoRoot, dryRun)
		return textResult(text), textOutput{Text: text}, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_sandbox",
		Description: "Create or replace the sandbox for a repository and return its path",
	}, instrument(s, "create_sandbox", func(ctx context.Context, in repoInput) (*mcp.CallToolResult, textOutput, error) {
		if err := requireRoot(in.RepoRoot); err != nil {
			return nil, textOutput{}, err
		}
		text := s.orch.CreateSandbox(ctx, in.RepoRoot)
		res := textResult(text)
		res.IsError = strings.HasPrefix(text, "Error:")
		return res, textOutput{Text: text}, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "remove_sandbox",
		Description: "Remove the sandbox for a repository",
	}, instrument(s, "remove_sandbox", func(ctx context.Context, in repoInput) (*mcp.CallToolResult, textOutput, error) {
		if err := requireRoot(in.RepoRoot); err != nil {
			return nil, textOutput{}, err
		}
		text := s.orch.RemoveSandbox(ctx, in.RepoRoot)
		return textResult(text), textOutput{Text: text}, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "sandbox_diff",
		Description: "Show changes made inside the sandbox",
	}, instrument(s, "sandbox_diff", func(ctx context.Context, in repoInput) (*mcp.CallToolResult, textOutput, error) {
		if err := requireRoot(in.RepoRoot); err != nil {
			return nil, textOutput{}, err
		}
		text := s.orch.SandboxDiff(ctx, in.RepoRoot)
		return textResult(text), textOutput{Text: text}, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "apply_patch",
		Description: "Apply a unified diff inside the sandbox, or only check that it applies",
	}, instrument(s, "apply_patch", func(ctx context.Context, in patchInput) (*mcp.CallToolResult, textOutput, error) {
		if err := requireRoot(in.RepoRoot); err != nil {
			return nil, textOutput{}, err
		}
		text := s.orch.ApplyPatch(ctx, in.RepoRoot, in.Patch, in.Check)
		res := textResult(text)
		res.IsError = strings.HasPrefix(text, "Error:")
		return res, textOutput{Text: text}, nil
	}))
}

// ===== HISTORY TOOLS =====

type historyInput struct {
	Query string `json:"query,omitempty" jsonschema:"Case-insensitive text to search for"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum entries to return (default: 10)"`
}

type historyEntry struct {
	Timestamp string `json:"timestamp"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
}

type historyOutput struct {
	Entries []historyEntry `json:"entries"`
	Count   int            `json:"count"`
}

type emptyInput struct{}

func toHistory(entries []audit.Entry) historyOutput {
	out := historyOutput{Entries: make([]historyEntry, 0, len(entries)), Count: len(entries)}
	for _, e := range entries {
		out.Entries = append(out.Entries, historyEntry{
			Timestamp: e.Timestamp.Format("2006-01-02 15:04:05"),
			Kind:      e.Kind,
			Text:      e.Text,
		})
	}
	return out
}

func renderHistory(h historyOutput) string {
	if h.Count == 0 {
		return "No matching history entries."
	}
	parts := make([]string, len(h.Entries))
	for i, e := range h.Entries {
		parts[i] = e.Text
	}
	return strings.Join(parts, "\n\n")
}

func (s *Server) registerHistoryTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "history_recent",
		Description: "Return the most recent reasoning history entries",
	}, instrument(s, "history_recent", func(ctx context.Context, in historyInput) (*mcp.CallToolResult, historyOutput, error) {
		limit := in.Limit
		if limit <= 0 {
			limit = 10
		}
		entries, err := s.orch.RecentHistory(limit)
		if err != nil {
			return nil, historyOutput{}, err
		}
		out := toHistory(entries)
		return textResult(renderHistory(out)), out, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "history_search",
		Description: "Search reasoning history, newest first",
	}, instrument(s, "history_search", func(ctx context.Context, in historyInput) (*mcp.CallToolResult, historyOutput, error) {
		if strings.TrimSpace(in.Query) == "" {
			return nil, historyOutput{}, errors.New("query is required")
		}
		limit := in.Limit
		if limit <= 0 {
			limit = 10
		}
		entries, err := s.orch.SearchHistory(in.Query, limit)
		if err != nil {
			return nil, historyOutput{}, err
		}
		out := toHistory(entries)
		return textResult(renderHistory(out)), out, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "history_stats",
		Description: "Report reasoning history size and rotation settings",
	}, instrument(s, "history_stats", func(ctx context.Context, _ emptyInput) (*mcp.CallToolResult, textOutput, error) {
		st, err := s.orch.HistoryStats()
		if err != nil {
			return nil, textOutput{}, err
		}
		text := st.String()
		return textResult(text), textOutput{Text: text}, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "history_clear",
		Description: "Clear the reasoning history. Rotated backups are kept.",
	}, instrument(s, "history_clear", func(ctx context.Context, _ emptyInput) (*mcp.CallToolResult, textOutput, error) {
		if err := s.orch.ClearHistory(ctx); err != nil {
			return nil, textOutput{}, fmt.Errorf("clearing history: %w", err)
		}
		return textResult("History cleared."), textOutput{Text: "History cleared."}, nil
	}))
}

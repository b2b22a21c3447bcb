package http

import "github.com/fyrsmithlabs/corethink/internal/orchestrator"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReasonRequest is the request body for POST /api/v1/reason.
type ReasonRequest struct {
	Request      string `json:"request"`
	JudgmentKind string `json:"judgment_kind,omitempty"`
	Depth        string `json:"depth,omitempty"`
}

// ReasonResponse is the response body for POST /api/v1/reason.
type ReasonResponse struct {
	Verdict orchestrator.Verdict `json:"verdict"`
	Text    string               `json:"text"`
}

// ClassifyRequest is the request body for POST /api/v1/classify.
type ClassifyRequest struct {
	Request     string   `json:"request"`
	DomainHints []string `json:"domain_hints,omitempty"`
}

// ClassifyResponse is the response body for POST /api/v1/classify.
type ClassifyResponse struct {
	Domain      string   `json:"domain"`
	Constraints string   `json:"constraints"`
	Degraded    []string `json:"degraded,omitempty"`
}

// ValidateRequest is the request body for POST /api/v1/validate.
type ValidateRequest struct {
	ProposedChange string `json:"proposed_change"`
	Context        string `json:"context,omitempty"`
}

// TextResponse carries a rendered operation result.
type TextResponse struct {
	Text string `json:"text"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Services map[string]string `json:"services"`
	History  *HistoryStatus    `json:"history,omitempty"`
}

// HistoryStatus summarizes the audit log.
type HistoryStatus struct {
	Entries   int   `json:"entries"`
	SizeBytes int64 `json:"size_bytes"`
}

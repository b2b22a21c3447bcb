package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	constraintsURI = "corethink://constraints"
	historyURI     = "corethink://history"
)

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         constraintsURI,
		Name:        "constraints",
		Description: "Baseline constraints applied to every request",
		MIMEType:    "text/markdown",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      constraintsURI,
				MIMEType: "text/markdown",
				Text:     s.orch.GetConstraintsText(),
			}},
		}, nil
	})

	s.mcp.AddResource(&mcp.Resource{
		URI:         historyURI,
		Name:        "history",
		Description: "Most recent reasoning history entries",
		MIMEType:    "text/markdown",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      historyURI,
				MIMEType: "text/markdown",
				Text:     s.orch.GetAuditLogTail(10),
			}},
		}, nil
	})
}

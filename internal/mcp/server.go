// Package mcp exposes the orchestrator over the Model Context Protocol.
//
// The server is a thin adapter: each tool decodes its arguments, calls one
// orchestrator operation and returns the rendered text plus a structured
// copy of the result. No reasoning logic lives here.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corethink/internal/logging"
	"github.com/fyrsmithlabs/corethink/internal/orchestrator"
)

// Server is the corethink MCP server.
type Server struct {
	mcp     *mcp.Server
	orch    *orchestrator.Orchestrator
	metrics *Metrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "corethink")
	Name string

	// Version is the server version
	Version string

	Logger *zap.Logger

	// Meter records tool metrics. Nil uses the global provider.
	Meter metric.Meter
}

// DefaultConfig returns the default server identity.
func DefaultConfig() *Config {
	return &Config{
		Name:    "corethink",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates a server exposing orch.
func NewServer(cfg *Config, orch *orchestrator.Orchestrator) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		orch:    orch,
		metrics: NewMetrics(cfg.Meter, logger),
		logger:  logger,
	}

	s.registerReasoningTools()
	s.registerSandboxTools()
	s.registerHistoryTools()
	s.registerResources()
	return s, nil
}

// Run serves on the stdio transport until ctx ends or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.mcp }

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// instrument wraps a tool body with metrics and a tool-tagged context.
func instrument[In, Out any](s *Server, name string, fn func(context.Context, In) (*mcp.CallToolResult, Out, error)) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		ctx = logging.WithTool(ctx, name)
		s.metrics.IncrementActive(ctx, name)
		res, out, err := fn(ctx, in)
		s.metrics.DecrementActive(ctx, name)
		s.metrics.RecordInvocation(ctx, name, time.Since(start), err)
		if err != nil {
			s.logger.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		}
		return res, out, err
	}
}

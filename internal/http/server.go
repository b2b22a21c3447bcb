// Package http provides the corethink HTTP API.
//
// Like the MCP adapter it only decodes requests and calls the orchestrator.
// /metrics exposes the Prometheus registry populated by the core packages.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corethink/internal/logging"
	"github.com/fyrsmithlabs/corethink/internal/orchestrator"
)

// Server provides HTTP endpoints for corethink.
type Server struct {
	echo    *echo.Echo
	orch    *orchestrator.Orchestrator
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
}

// NewServer creates a new HTTP server.
func NewServer(orch *orchestrator.Orchestrator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := NewHTTPMetrics(nil, logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(metrics.MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		orch:    orch,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/constraints", s.handleConstraints)
	v1.POST("/classify", s.handleClassify)
	v1.POST("/reason", s.handleReason)
	v1.POST("/validate", s.handleValidate)
	v1.GET("/history", s.handleHistory)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	resp := StatusResponse{
		Status:   "ok",
		Version:  s.config.Version,
		Services: s.orch.Status(),
	}
	if st, err := s.orch.HistoryStats(); err == nil {
		resp.History = &HistoryStatus{Entries: st.Entries, SizeBytes: st.SizeBytes}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleConstraints(c echo.Context) error {
	return c.String(http.StatusOK, s.orch.GetConstraintsText())
}

func (s *Server) handleClassify(c echo.Context) error {
	var req ClassifyRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid classify request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Request) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "request field is required")
	}

	comp := s.orch.ClassifyAndCompose(c.Request().Context(), req.Request, req.DomainHints...)
	resp := ClassifyResponse{Domain: string(comp.Domain), Constraints: comp.Text}
	for _, d := range comp.Degraded {
		resp.Degraded = append(resp.Degraded, d.String())
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleReason(c echo.Context) error {
	var req ReasonRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid reason request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Request) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "request field is required")
	}

	ctx := c.Request().Context()
	if id := logging.RequestIDFromContext(ctx); id != "" {
		ctx = logging.WithInvocationID(ctx, id)
	}
	v := s.orch.RunReasoning(ctx, req.Request, req.JudgmentKind, req.Depth)
	s.metrics.RecordVerdict(ctx, v)
	return c.JSON(http.StatusOK, ReasonResponse{Verdict: v, Text: v.Text()})
}

func (s *Server) handleValidate(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid validate request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.ProposedChange) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "proposed_change field is required")
	}
	text := s.orch.ValidateChange(c.Request().Context(), req.ProposedChange, req.Context)
	return c.JSON(http.StatusOK, TextResponse{Text: text})
}

func (s *Server) handleHistory(c echo.Context) error {
	n := 10
	if v := c.QueryParam("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
	}
	return c.JSON(http.StatusOK, TextResponse{Text: s.orch.GetAuditLogTail(n)})
}

// Start starts the HTTP server. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

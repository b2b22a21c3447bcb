package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/corethink/internal/http"
	"github.com/fyrsmithlabs/corethink/internal/mcp"
	"github.com/fyrsmithlabs/corethink/internal/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run corethink as an MCP server speaking JSON-RPC over stdin/stdout.

Logs are written to stderr. The server exits when the client disconnects
or on SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return a.run(cmd, func(ctx context.Context) error {
				srv, err := mcp.NewServer(&mcp.Config{
					Name:    "corethink",
					Version: version,
					Logger:  a.logger.Underlying().Named("mcp"),
					Meter:   a.tel.Meter(telemetry.InstrumentationName),
				}, a.orch)
				if err != nil {
					return fmt.Errorf("failed to create MCP server: %w", err)
				}
				if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				a.logger.Info(ctx, "MCP server shutdown complete")
				return nil
			})
		},
	}
}

func newHTTPCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API exposing /health, /metrics and /api/v1/* endpoints.

Examples:
  corethink http
  corethink http --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return a.run(cmd, func(ctx context.Context) error {
				if port > 0 {
					a.cfg.Server.Port = port
				}
				srv, err := httpserver.NewServer(a.orch, a.logger.Underlying().Named("http"), &httpserver.Config{
					Host:    a.cfg.Server.Host,
					Port:    a.cfg.Server.Port,
					Version: version,
				})
				if err != nil {
					return fmt.Errorf("failed to create http server: %w", err)
				}

				errCh := make(chan error, 1)
				go func() { errCh <- srv.Start() }()

				select {
				case err := <-errCh:
					return err
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Error(shutdownCtx, "http shutdown failed", zap.Error(err))
					return err
				}
				return <-errCh
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override server.http_port")
	return cmd
}

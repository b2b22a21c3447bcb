// Corethink is a constraint-guided reasoning engine for code agents.
//
// It runs as an MCP server on stdio (the default way agents use it), as an
// HTTP API, or as one-shot CLI commands against the same orchestrator.
//
// Usage:
//
//	# MCP server on stdio
//	corethink serve
//
//	# HTTP API on the configured port
//	corethink http
//
//	# One-shot verdict
//	corethink reason "improve database query performance"
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corethink/internal/config"
	"github.com/fyrsmithlabs/corethink/internal/logging"
	"github.com/fyrsmithlabs/corethink/internal/orchestrator"
	"github.com/fyrsmithlabs/corethink/internal/services"
	"github.com/fyrsmithlabs/corethink/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the process-wide state shared by subcommands.
type app struct {
	configPath string
	repoRoot   string
	allowlist  string
	logLevel   string

	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
	orch   *orchestrator.Orchestrator
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "corethink",
		Short: "Constraint-guided reasoning for code agents",
		Long: `corethink classifies requests into domains, composes the applicable
constraints, gathers supporting material and runs a four-stage reasoning
pipeline that ends in a PROCEED, CAUTION or REJECT verdict.

Changes can be trialled in an isolated git worktree sandbox, and every
invocation is appended to a markdown reasoning history.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.config/corethink/config.yaml)")
	root.PersistentFlags().StringVar(&a.repoRoot, "repo", "", "repository root for repository_context and .gitleaks.toml (default: working directory)")
	root.PersistentFlags().StringVar(&a.allowlist, "allowlist", services.DefaultUserAllowlist(), "user secret allowlist (gitleaks TOML)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newServeCmd(a),
		newHTTPCmd(a),
		newClassifyCmd(a),
		newReasonCmd(a),
		newCollectCmd(a),
		newValidateCmd(a),
		newSandboxCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return root
}

// init loads configuration and wires every service. Logs go to stderr so
// stdout stays free for MCP framing and command output.
func (a *app) init(ctx context.Context) error {
	cfg, err := config.LoadWithFile(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.tel = tel

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	if tel.IsDegraded() {
		logger.Warn(ctx, "telemetry degraded, continuing without export", zap.Error(tel.DegradedReason()))
	}

	tracer := tel.Tracer(telemetry.InstrumentationName)
	reg, err := services.Build(cfg, services.BuildOptions{
		Logger:         logger.Underlying(),
		Tracer:         tracer,
		RepositoryRoot: a.repoRoot,
		UserAllowlist:  a.allowlist,
		Metrics:        true,
	})
	if err != nil {
		return fmt.Errorf("failed to build services: %w", err)
	}

	a.orch = orchestrator.New(reg,
		orchestrator.WithLogger(logger.Underlying().Named("orchestrator")),
		orchestrator.WithTracer(tracer),
		orchestrator.WithMetrics(orchestrator.NewMetrics()),
	)
	return nil
}

// close flushes telemetry and the logger.
func (a *app) close(ctx context.Context) {
	if a.tel != nil {
		if err := a.tel.Shutdown(ctx); err != nil && a.logger != nil {
			a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// run wires the app, runs fn and tears down afterwards.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.init(ctx); err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))
	return fn(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "corethink %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", gitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", buildDate)
		},
	}
}

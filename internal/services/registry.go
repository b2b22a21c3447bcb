package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/corethink/internal/audit"
	"github.com/fyrsmithlabs/corethink/internal/augment"
	"github.com/fyrsmithlabs/corethink/internal/config"
	"github.com/fyrsmithlabs/corethink/internal/constraint"
	"github.com/fyrsmithlabs/corethink/internal/material"
	"github.com/fyrsmithlabs/corethink/internal/reasoning"
	"github.com/fyrsmithlabs/corethink/internal/sandbox"
	"github.com/fyrsmithlabs/corethink/internal/scoring"
	"github.com/fyrsmithlabs/corethink/internal/secrets"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Registry provides access to all corethink services.
type Registry interface {
	Config() *config.Config
	Constraints() *constraint.Store
	Collector() *material.Collector
	Pipeline() *reasoning.Pipeline
	Scorer() *scoring.Scorer
	Sandbox() *sandbox.Manager
	Audit() *audit.Log
	Redactor() *secrets.Redactor
}

// Options configures the registry with service instances.
type Options struct {
	Config      *config.Config
	Constraints *constraint.Store
	Collector   *material.Collector
	Pipeline    *reasoning.Pipeline
	Scorer      *scoring.Scorer
	Sandbox     *sandbox.Manager
	Audit       *audit.Log
	Redactor    *secrets.Redactor
}

type registry struct {
	opts Options
}

// NewRegistry creates a registry from already-built services.
func NewRegistry(opts Options) Registry {
	return &registry{opts: opts}
}

func (r *registry) Config() *config.Config          { return r.opts.Config }
func (r *registry) Constraints() *constraint.Store  { return r.opts.Constraints }
func (r *registry) Collector() *material.Collector  { return r.opts.Collector }
func (r *registry) Pipeline() *reasoning.Pipeline   { return r.opts.Pipeline }
func (r *registry) Scorer() *scoring.Scorer         { return r.opts.Scorer }
func (r *registry) Sandbox() *sandbox.Manager       { return r.opts.Sandbox }
func (r *registry) Audit() *audit.Log               { return r.opts.Audit }
func (r *registry) Redactor() *secrets.Redactor     { return r.opts.Redactor }

// BuildOptions are process-level inputs to Build.
type BuildOptions struct {
	Logger *zap.Logger
	Tracer trace.Tracer

	// RepositoryRoot is inspected by the repository_context gatherer and
	// searched for a .gitleaks.toml allowlist. Defaults to the working
	// directory.
	RepositoryRoot string

	// UserAllowlist is an optional gitleaks-format allowlist file.
	UserAllowlist string

	// Metrics registers Prometheus collectors.
	Metrics bool
}

// DefaultUserAllowlist returns ~/.config/corethink/allowlist.toml.
func DefaultUserAllowlist() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "corethink", "allowlist.toml")
}

// Build wires every service from cfg.
func Build(cfg *config.Config, opts BuildOptions) (Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	root := opts.RepositoryRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		root = wd
	}

	store := constraint.NewStore(cfg.Constraints, logger.Named("constraint"))

	aug, err := augment.New(cfg.Augment, logger.Named("augment"))
	if err != nil {
		return nil, fmt.Errorf("creating augmenter: %w", err)
	}

	collectorOpts := []material.Option{
		material.WithLogger(logger.Named("material")),
		material.WithRepository(root, cfg.Sandbox.SkipPatterns()),
	}
	pipeline := reasoning.New(logger.Named("reasoning"))
	sandboxOpts := []sandbox.Option{sandbox.WithLogger(logger.Named("sandbox"))}
	if opts.Tracer != nil {
		collectorOpts = append(collectorOpts, material.WithTracer(opts.Tracer))
		pipeline.SetTracer(opts.Tracer)
	}
	if opts.Metrics {
		collectorOpts = append(collectorOpts, material.WithMetrics(material.NewMetrics()))
		sandboxOpts = append(sandboxOpts, sandbox.WithMetrics(sandbox.NewMetrics()))
	}

	redactor := secrets.Disabled()
	if cfg.Audit.RedactSecrets {
		allow, err := secrets.LoadAllowlists(root, opts.UserAllowlist)
		if err != nil {
			return nil, fmt.Errorf("loading secret allowlists: %w", err)
		}
		redactor, err = secrets.NewRedactor(allow)
		if err != nil {
			return nil, fmt.Errorf("creating redactor: %w", err)
		}
	}

	return NewRegistry(Options{
		Config:      cfg,
		Constraints: store,
		Collector:   material.NewCollector(store, aug, cfg.Collector, collectorOpts...),
		Pipeline:    pipeline,
		Scorer:      scoring.New(cfg.Scoring),
		Sandbox:     sandbox.NewManager(cfg.Sandbox, sandboxOpts...),
		Audit: audit.New(cfg.Audit,
			audit.WithLogger(logger.Named("audit")),
			audit.WithRedactor(redactor)),
		Redactor: redactor,
	}), nil
}

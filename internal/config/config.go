// Package config provides configuration loading for corethink.
//
// Values come from a YAML file, environment variables, and hard-coded
// defaults. Every section maps onto one component of the reasoning core.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete corethink configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Constraints ConstraintsConfig `koanf:"constraints"`
	Collector   CollectorConfig   `koanf:"collector"`
	Augment     AugmentConfig     `koanf:"augment"`
	Scoring     ScoringConfig     `koanf:"scoring"`
	Sandbox     SandboxConfig     `koanf:"sandbox"`
	Audit       AuditConfig       `koanf:"audit"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ConstraintsConfig locates the baseline and per-domain policy documents.
type ConstraintsConfig struct {
	Dir           string `koanf:"dir"`
	BaselineFile  string `koanf:"baseline_file"`
	KeywordHeader string `koanf:"keyword_header"`
}

// CollectorConfig controls material collection.
type CollectorConfig struct {
	TimeoutMinimal       time.Duration `koanf:"timeout_minimal"`
	TimeoutStandard      time.Duration `koanf:"timeout_standard"`
	TimeoutComprehensive time.Duration `koanf:"timeout_comprehensive"`
	MaxParallel          int           `koanf:"max_parallel"`
	RepositoryMaxFiles   int           `koanf:"repository_max_files"`
}

// AugmentConfig configures the slow external augmentation provider.
type AugmentConfig struct {
	Provider  string  `koanf:"provider"` // "disabled" or "openai"
	BaseURL   string  `koanf:"base_url"`
	Model     string  `koanf:"model"`
	APIKey    Secret  `koanf:"api_key"`
	RateLimit float64 `koanf:"rate_limit"` // requests per second
	Burst     int     `koanf:"burst"`
}

// ScoringConfig holds the confidence heuristic thresholds and markers.
type ScoringConfig struct {
	MaterialHighThreshold int      `koanf:"material_high_threshold"`
	MaterialLowThreshold  int      `koanf:"material_low_threshold"`
	ComplianceMarkers     []string `koanf:"compliance_markers"`
	ViolationMarkers      []string `koanf:"violation_markers"`
	UncertaintyMarkers    []string `koanf:"uncertainty_markers"`
}

// SandboxConfig controls sandbox placement and the copy fallback.
type SandboxConfig struct {
	DirName      string   `koanf:"dir_name"`
	BranchPrefix string   `koanf:"branch_prefix"`
	Excludes     []string `koanf:"excludes"`
}

// SkipPatterns returns the sandbox directory followed by Excludes. Anything
// that walks the live tree skips these.
func (c SandboxConfig) SkipPatterns() []string {
	return append([]string{c.DirName}, c.Excludes...)
}

// AuditConfig controls the reasoning history log.
type AuditConfig struct {
	Enabled         bool   `koanf:"enabled"`
	Path            string `koanf:"path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RotationEnabled bool   `koanf:"rotation_enabled"`
	RedactSecrets   bool   `koanf:"redact_secrets"`
	MaxInputChars   int    `koanf:"max_input_chars"`
}

// LoggingConfig is the subset of logging settings exposed through config files.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig is the subset of OpenTelemetry settings exposed through config files.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	ServiceName string  `koanf:"service_name"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9090,
			ShutdownTimeout: 10 * time.Second,
		},
		Constraints: ConstraintsConfig{
			Dir:           "constraints",
			BaselineFile:  "constraints.txt",
			KeywordHeader: "## Keywords",
		},
		Collector: CollectorConfig{
			TimeoutMinimal:       2 * time.Second,
			TimeoutStandard:      5 * time.Second,
			TimeoutComprehensive: 15 * time.Second,
			MaxParallel:          8,
			RepositoryMaxFiles:   200,
		},
		Augment: AugmentConfig{
			Provider:  "disabled",
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			RateLimit: 2,
			Burst:     2,
		},
		Scoring: ScoringConfig{
			MaterialHighThreshold: 1000,
			MaterialLowThreshold:  300,
			ComplianceMarkers:     []string{"compliant"},
			ViolationMarkers:      []string{"violation:"},
			UncertaintyMarkers: []string{
				"contradiction", "contradicts", "inconsistent",
				"uncertain", "maybe", "perhaps", "not sure",
				"[stage error]", "degraded",
			},
		},
		Sandbox: SandboxConfig{
			DirName:      ".sandbox",
			BranchPrefix: "corethink-sandbox",
			Excludes: []string{
				".git",
				"**/__pycache__",
				"**/*.pyc",
				".env",
				"node_modules",
			},
		},
		Audit: AuditConfig{
			Enabled:         true,
			Path:            "logs/reasoning_history.md",
			MaxSizeMB:       10,
			RotationEnabled: true,
			RedactSecrets:   true,
			MaxInputChars:   200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			ServiceName: "corethink",
			Insecure:    true,
			SampleRate:  1.0,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Constraints.BaselineFile == "" {
		return errors.New("constraints.baseline_file is required")
	}
	if strings.TrimSpace(c.Constraints.KeywordHeader) == "" {
		return errors.New("constraints.keyword_header is required")
	}

	if c.Collector.TimeoutMinimal <= 0 || c.Collector.TimeoutStandard <= 0 || c.Collector.TimeoutComprehensive <= 0 {
		return errors.New("collector timeouts must be positive")
	}
	if c.Collector.MaxParallel < 1 {
		return fmt.Errorf("collector.max_parallel must be >= 1, got %d", c.Collector.MaxParallel)
	}

	switch c.Augment.Provider {
	case "", "disabled", "openai":
	default:
		return fmt.Errorf("unknown augment provider: %q", c.Augment.Provider)
	}
	if c.Augment.RateLimit < 0 {
		return errors.New("augment.rate_limit cannot be negative")
	}

	if c.Scoring.MaterialLowThreshold < 0 || c.Scoring.MaterialHighThreshold <= 0 {
		return errors.New("scoring thresholds must be positive")
	}
	if c.Scoring.MaterialLowThreshold >= c.Scoring.MaterialHighThreshold {
		return fmt.Errorf("scoring.material_low_threshold (%d) must be below material_high_threshold (%d)",
			c.Scoring.MaterialLowThreshold, c.Scoring.MaterialHighThreshold)
	}

	if c.Sandbox.DirName == "" || c.Sandbox.DirName == "." || c.Sandbox.DirName == ".." {
		return fmt.Errorf("invalid sandbox.dir_name: %q", c.Sandbox.DirName)
	}
	if strings.ContainsAny(c.Sandbox.DirName, `/\`) {
		return fmt.Errorf("sandbox.dir_name must be a single path element: %q", c.Sandbox.DirName)
	}

	if c.Audit.Enabled && c.Audit.Path == "" {
		return errors.New("audit.path is required when audit is enabled")
	}
	if c.Audit.MaxSizeMB < 0 || c.Audit.MaxInputChars < 0 {
		return errors.New("audit sizes cannot be negative")
	}

	return nil
}

package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/corethink/internal/config"
	"github.com/fyrsmithlabs/corethink/internal/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Empty(t *testing.T) {
	reg := NewRegistry(Options{})
	assert.Nil(t, reg.Constraints())
	assert.Nil(t, reg.Collector())
	assert.Nil(t, reg.Pipeline())
	assert.Nil(t, reg.Sandbox())
	assert.Nil(t, reg.Audit())
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "constraints.txt"), []byte("Baseline rules.\n"), 0o644))

	cfg := config.Default()
	cfg.Constraints.Dir = dir
	cfg.Audit.Path = filepath.Join(dir, "history.md")

	reg, err := Build(cfg, BuildOptions{RepositoryRoot: dir})
	require.NoError(t, err)

	assert.Same(t, cfg, reg.Config())
	assert.NotNil(t, reg.Collector())
	assert.NotNil(t, reg.Pipeline())
	assert.NotNil(t, reg.Scorer())
	assert.NotNil(t, reg.Sandbox())
	assert.NotNil(t, reg.Redactor())
	assert.Equal(t, cfg.Audit.Path, reg.Audit().Path())

	base, err := reg.Constraints().Baseline()
	require.NoError(t, err)
	assert.Equal(t, "Baseline rules.", base)
}

func TestBuild_RepositoryContextSkipsSandboxDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "constraints.txt"), []byte("Baseline rules.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".sandbox", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".sandbox", "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".sandbox", "pkg", "util.go"), []byte("package pkg\n"), 0o644))

	cfg := config.Default()
	cfg.Constraints.Dir = dir
	cfg.Audit.Enabled = false

	reg, err := Build(cfg, BuildOptions{RepositoryRoot: dir})
	require.NoError(t, err)

	b := reg.Collector().Collect(context.Background(), "tidy the readme",
		[]material.Kind{material.RepositoryContext}, material.Standard)
	text, ok := b.Get(material.RepositoryContext)
	require.True(t, ok)
	assert.NotContains(t, text, ".sandbox")
	assert.Contains(t, text, "Top level: constraints.txt, main.go")
	assert.Contains(t, text, "Files: 2")
}

func TestBuild_RejectsBadAllowlist(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitleaks.toml"), []byte("[allowlist\n"), 0o644))

	cfg := config.Default()
	cfg.Audit.Path = filepath.Join(dir, "history.md")
	_, err := Build(cfg, BuildOptions{RepositoryRoot: dir})
	assert.Error(t, err)
}

func TestBuild_OpenAIRequiresKey(t *testing.T) {
	cfg := config.Default()
	cfg.Augment.Provider = "openai"
	_, err := Build(cfg, BuildOptions{RepositoryRoot: t.TempDir()})
	assert.Error(t, err)
}

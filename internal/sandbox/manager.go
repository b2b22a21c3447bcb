// Package sandbox manages disposable, isolated copies of a working tree.
//
// A sandbox is a git worktree on a fresh branch, created under a fixed
// directory name inside the repository root. When git cannot create the
// worktree because of a permission error, the tree is copied instead,
// skipping version-control metadata and caches. At most one sandbox exists
// per repository root; all lifecycle operations on a root are serialized by
// a per-root mutex.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/corethink/internal/config"
	"github.com/go-git/go-git/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotRepository means the root is not inside a git repository.
	ErrNotRepository = errors.New("not a git repository")

	// ErrPermission means the worktree could not be created for lack of permission.
	ErrPermission = errors.New("permission denied")

	// ErrNoSandbox means no sandbox exists for the root.
	ErrNoSandbox = errors.New("no active sandbox")

	// ErrNoHistory means the repository has no commit to branch from.
	ErrNoHistory = errors.New("repository has no commits")
)

// Mechanism is how a sandbox was isolated.
type Mechanism string

const (
	Worktree Mechanism = "worktree"
	Copy     Mechanism = "copy"
)

// Handle describes one live sandbox.
type Handle struct {
	ID        string
	Root      string
	Path      string
	Branch    string // empty for copies
	Head      string
	Mechanism Mechanism
	CreatedAt time.Time
}

// Manager creates and removes sandboxes.
type Manager struct {
	cfg    config.SandboxConfig
	runner Runner
	logger *zap.Logger

	metrics *Metrics
	now     func() time.Time

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	active map[string]*Handle
}

// Option configures a Manager.
type Option func(*Manager)

// WithRunner replaces the git runner.
func WithRunner(r Runner) Option {
	return func(m *Manager) { m.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(mt *Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates a Manager.
func NewManager(cfg config.SandboxConfig, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		runner: ExecRunner{},
		logger: zap.NewNop(),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
		active: make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// canonical resolves root to an absolute, symlink-free path.
func canonical(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Clean(abs), nil
}

func (m *Manager) lock(root string) func() {
	m.mu.Lock()
	l, ok := m.locks[root]
	if !ok {
		l = &sync.Mutex{}
		m.locks[root] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// PathFor returns the sandbox directory for root.
func (m *Manager) PathFor(root string) (string, error) {
	root, err := canonical(root)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, m.cfg.DirName), nil
}

// Count returns the number of sandboxes this manager is tracking.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Active returns the tracked sandbox for root.
func (m *Manager) Active(root string) (*Handle, bool) {
	root, err := canonical(root)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.active[root]
	if !ok {
		return nil, false
	}
	cp := *h
	return &cp, true
}

// Create replaces any existing sandbox for root with a new one at HEAD.
func (m *Manager) Create(ctx context.Context, root string) (h *Handle, err error) {
	root, err = canonical(root)
	if err != nil {
		return nil, err
	}
	unlock := m.lock(root)
	defer unlock()

	mech := Worktree
	defer func() { m.metrics.record("create", mech, err) }()

	head, err := m.resolveHead(root)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(root, m.cfg.DirName)
	if path == root {
		return nil, fmt.Errorf("sandbox path resolves to the repository root")
	}

	if err := m.teardownLocked(ctx, root, path); err != nil && !errors.Is(err, ErrNoSandbox) {
		m.logger.Warn("failed to remove previous sandbox", zap.String("path", path), zap.Error(err))
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, fmt.Errorf("previous sandbox at %s could not be removed", path)
	}

	now := m.now()
	id := now.Format("20060102-150405") + "-" + uuid.NewString()[:8]
	h = &Handle{
		ID:        id,
		Root:      root,
		Path:      path,
		Head:      head,
		CreatedAt: now,
	}

	branch := m.cfg.BranchPrefix + "-" + id
	_, err = m.runner.Run(ctx, root, nil, "worktree", "add", "-b", branch, path, "HEAD")
	switch {
	case err == nil:
		h.Branch = branch
		h.Mechanism = Worktree
	case isPermission(err):
		m.logger.Warn("worktree creation denied, copying tree instead",
			zap.String("root", root), zap.Error(err))
		mech = Copy
		_ = os.RemoveAll(path)
		if cerr := copyTree(root, path, m.copyExcludes()); cerr != nil {
			_ = os.RemoveAll(path)
			return nil, fmt.Errorf("%w: worktree failed and copy fallback failed: %v", ErrPermission, cerr)
		}
		h.Mechanism = Copy
	default:
		return nil, fmt.Errorf("creating worktree: %w", err)
	}

	m.mu.Lock()
	m.active[root] = h
	m.metrics.setActive(len(m.active))
	m.mu.Unlock()

	m.logger.Info("sandbox created",
		zap.String("root", root),
		zap.String("path", path),
		zap.String("mechanism", string(h.Mechanism)),
		zap.String("branch", h.Branch))

	cp := *h
	return &cp, nil
}

func (m *Manager) resolveHead(root string) (string, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%w: %s", ErrNotRepository, root)
		}
		return "", fmt.Errorf("opening repository: %w", err)
	}
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoHistory, err)
	}
	return ref.Hash().String(), nil
}

func (m *Manager) copyExcludes() []string {
	return m.cfg.SkipPatterns()
}

// Destroy removes the sandbox described by h.
func (m *Manager) Destroy(ctx context.Context, h *Handle) error {
	if h == nil {
		return ErrNoSandbox
	}
	return m.Remove(ctx, h.Root)
}

// Remove removes the sandbox for root, whether tracked by this process or
// left behind by an earlier one.
func (m *Manager) Remove(ctx context.Context, root string) (err error) {
	root, err = canonical(root)
	if err != nil {
		return err
	}
	unlock := m.lock(root)
	defer unlock()

	return m.teardownLocked(ctx, root, filepath.Join(root, m.cfg.DirName))
}

// teardownLocked removes whatever sandbox exists at path. The root lock
// must be held.
func (m *Manager) teardownLocked(ctx context.Context, root, path string) (err error) {
	m.mu.Lock()
	h := m.active[root]
	m.mu.Unlock()

	_, statErr := os.Stat(path)
	if h == nil && errors.Is(statErr, fs.ErrNotExist) {
		return ErrNoSandbox
	}

	mech := Copy
	branch := ""
	if h != nil {
		mech, branch = h.Mechanism, h.Branch
	} else if b := m.orphanBranch(ctx, path); b != "" {
		mech, branch = Worktree, b
	} else if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
		mech = Worktree
	}
	defer func() { m.metrics.record("remove", mech, err) }()

	if mech == Worktree {
		if _, rerr := m.runner.Run(ctx, root, nil, "worktree", "remove", "--force", path); rerr != nil {
			m.logger.Debug("worktree remove failed, deleting directory", zap.Error(rerr))
		}
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing sandbox directory: %w", err)
	}
	if mech == Worktree {
		if _, perr := m.runner.Run(ctx, root, nil, "worktree", "prune"); perr != nil {
			m.logger.Debug("worktree prune failed", zap.Error(perr))
		}
		if branch != "" {
			if _, berr := m.runner.Run(ctx, root, nil, "branch", "-D", branch); berr != nil {
				m.logger.Warn("failed to delete sandbox branch", zap.String("branch", branch), zap.Error(berr))
			}
		}
	}

	m.mu.Lock()
	delete(m.active, root)
	m.metrics.setActive(len(m.active))
	m.mu.Unlock()

	m.logger.Info("sandbox removed", zap.String("root", root), zap.String("path", path))
	return nil
}

// orphanBranch returns the sandbox branch checked out at path, if it has
// the configured prefix.
func (m *Manager) orphanBranch(ctx context.Context, path string) string {
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return ""
	}
	out, err := m.runner.Run(ctx, path, nil, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return ""
	}
	b := strings.TrimSpace(out)
	if strings.HasPrefix(b, m.cfg.BranchPrefix+"-") {
		return b
	}
	return ""
}

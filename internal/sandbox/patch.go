package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNoVCS means the sandbox is a plain copy and has no git metadata.
var ErrNoVCS = errors.New("sandbox has no version control")

// PatchResult reports the outcome of ApplyPatch.
type PatchResult struct {
	Applied bool
	DryRun  bool
	Output  string
}

// tracked returns the handle for root. A sandbox left on disk by another
// process is adopted so diff and apply work across CLI invocations.
func (m *Manager) tracked(ctx context.Context, root string) (*Handle, error) {
	root, err := canonical(root)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	h, ok := m.active[root]
	m.mu.Unlock()
	if ok {
		cp := *h
		return &cp, nil
	}
	return m.adopt(ctx, root)
}

func (m *Manager) adopt(ctx context.Context, root string) (*Handle, error) {
	path := filepath.Join(root, m.cfg.DirName)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w for %s", ErrNoSandbox, root)
	}

	h := &Handle{
		ID:        uuid.NewString(),
		Root:      root,
		Path:      path,
		Mechanism: Copy,
		CreatedAt: info.ModTime(),
	}
	if branch := m.orphanBranch(ctx, path); branch != "" {
		head, err := m.runner.Run(ctx, path, nil, "rev-parse", "HEAD")
		if err != nil {
			return nil, fmt.Errorf("resolving sandbox head: %w", err)
		}
		h.Mechanism = Worktree
		h.Branch = branch
		h.Head = strings.TrimSpace(head)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.active[root]; ok {
		h = cur
	} else {
		m.active[root] = h
		m.metrics.setActive(len(m.active))
	}
	cp := *h
	return &cp, nil
}

// Diff returns the working-tree changes in the sandbox relative to the
// commit it was created from, including untracked files.
func (m *Manager) Diff(ctx context.Context, root string) (string, error) {
	h, err := m.tracked(ctx, root)
	if err != nil {
		return "", err
	}
	unlock := m.lock(h.Root)
	defer unlock()

	if h.Mechanism != Worktree {
		return "", fmt.Errorf("diff %s: %w", h.Path, ErrNoVCS)
	}
	if _, err := m.runner.Run(ctx, h.Path, nil, "add", "--intent-to-add", "--all"); err != nil {
		return "", fmt.Errorf("staging intent: %w", err)
	}
	out, err := m.runner.Run(ctx, h.Path, nil, "diff", h.Head)
	m.metrics.record("diff", h.Mechanism, err)
	if err != nil {
		return "", err
	}
	return out, nil
}

// ApplyPatch applies a unified diff inside the sandbox. With dryRun set
// the patch is only checked.
func (m *Manager) ApplyPatch(ctx context.Context, root, patch string, dryRun bool) (*PatchResult, error) {
	h, err := m.tracked(ctx, root)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(patch) == "" {
		return nil, errors.New("empty patch")
	}
	unlock := m.lock(h.Root)
	defer unlock()

	f, err := os.CreateTemp("", "corethink-*.patch")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	if !strings.HasSuffix(patch, "\n") {
		patch += "\n"
	}
	if _, err := f.WriteString(patch); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	args := []string{"apply"}
	if dryRun {
		args = append(args, "--check")
	}
	args = append(args, f.Name())

	var env []string
	if h.Mechanism == Copy {
		// keep git from discovering the enclosing repository
		env = []string{"GIT_CEILING_DIRECTORIES=" + filepath.Dir(h.Path)}
	}

	out, err := m.runner.Run(ctx, h.Path, env, args...)
	m.metrics.record("apply", h.Mechanism, err)
	if err != nil {
		return &PatchResult{DryRun: dryRun, Output: out}, fmt.Errorf("applying patch: %w", err)
	}
	return &PatchResult{Applied: !dryRun, DryRun: dryRun, Output: out}, nil
}

package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/corethink/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gitEnv() []string {
	return append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
}

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = gitEnv()
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "__pycache__"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "__pycache__", "m.pyc"), []byte("x"), 0o644))
	run("add", "README.md")
	run("commit", "-q", "-m", "initial")
	return dir
}

func gitOut(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = gitEnv()
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return string(out)
}

func testConfig() config.SandboxConfig {
	return config.Default().Sandbox
}

// deniedRunner fails worktree creation with a permission error.
type deniedRunner struct {
	ExecRunner
}

func (r deniedRunner) Run(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	if len(args) >= 2 && args[0] == "worktree" && args[1] == "add" {
		return "fatal: could not create directory: Permission denied",
			&CommandError{Args: args, Output: "Permission denied", Err: errors.New("exit status 128")}
	}
	return r.ExecRunner.Run(ctx, dir, env, args...)
}

func TestCreate_Worktree(t *testing.T) {
	root := initRepo(t)
	m := NewManager(testConfig())
	ctx := context.Background()

	h, err := m.Create(ctx, root)
	require.NoError(t, err)

	canon, _ := canonical(root)
	assert.Equal(t, Worktree, h.Mechanism)
	assert.Equal(t, filepath.Join(canon, ".sandbox"), h.Path)
	assert.NotEqual(t, canon, h.Path)
	assert.True(t, strings.HasPrefix(h.Branch, "corethink-sandbox-"))
	assert.FileExists(t, filepath.Join(h.Path, "README.md"))

	active, ok := m.Active(root)
	require.True(t, ok)
	assert.Equal(t, h.ID, active.ID)

	require.NoError(t, m.Destroy(ctx, h))
	assert.NoDirExists(t, h.Path)
	assert.NotContains(t, gitOut(t, root, "branch", "--list"), h.Branch)
	_, ok = m.Active(root)
	assert.False(t, ok)
}

func TestCreate_ReplacesExisting(t *testing.T) {
	root := initRepo(t)
	m := NewManager(testConfig())
	ctx := context.Background()

	first, err := m.Create(ctx, root)
	require.NoError(t, err)
	second, err := m.Create(ctx, root)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	branches := gitOut(t, root, "branch", "--list")
	assert.NotContains(t, branches, first.Branch)
	assert.Contains(t, branches, second.Branch)
}

func TestCreate_ConcurrentLeavesOneSandbox(t *testing.T) {
	root := initRepo(t)
	m := NewManager(testConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Create(ctx, root)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	list := gitOut(t, root, "worktree", "list")
	assert.Len(t, strings.Split(strings.TrimSpace(list), "\n"), 2)
	assert.Equal(t, 1, strings.Count(gitOut(t, root, "branch", "--list"), "corethink-sandbox-"))
}

func TestCreate_NotRepository(t *testing.T) {
	m := NewManager(testConfig())
	_, err := m.Create(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestCreate_PermissionFallbackCopies(t *testing.T) {
	root := initRepo(t)
	m := NewManager(testConfig(), WithRunner(deniedRunner{}))
	ctx := context.Background()

	h, err := m.Create(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, Copy, h.Mechanism)
	assert.Empty(t, h.Branch)
	assert.FileExists(t, filepath.Join(h.Path, "README.md"))
	assert.NoDirExists(t, filepath.Join(h.Path, ".git"))
	assert.NoDirExists(t, filepath.Join(h.Path, "__pycache__"))
	assert.NoDirExists(t, filepath.Join(h.Path, ".sandbox"))

	_, err = m.Diff(ctx, root)
	assert.ErrorIs(t, err, ErrNoVCS)

	require.NoError(t, m.Remove(ctx, root))
	assert.NoDirExists(t, h.Path)
}

func TestRemove_Orphan(t *testing.T) {
	root := initRepo(t)
	ctx := context.Background()

	h, err := NewManager(testConfig()).Create(ctx, root)
	require.NoError(t, err)

	// a fresh manager has no record of the sandbox
	other := NewManager(testConfig())
	require.NoError(t, other.Remove(ctx, root))
	assert.NoDirExists(t, h.Path)
	assert.NotContains(t, gitOut(t, root, "branch", "--list"), h.Branch)
}

func TestRemove_NoSandbox(t *testing.T) {
	root := initRepo(t)
	err := NewManager(testConfig()).Remove(context.Background(), root)
	assert.ErrorIs(t, err, ErrNoSandbox)
}

const readmePatch = `diff --git a/README.md b/README.md
--- a/README.md
+++ b/README.md
@@ -1 +1,2 @@
 hello
+world
`

func TestApplyPatchAndDiff(t *testing.T) {
	root := initRepo(t)
	m := NewManager(testConfig())
	ctx := context.Background()

	h, err := m.Create(ctx, root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Destroy(ctx, h) })

	res, err := m.ApplyPatch(ctx, root, readmePatch, true)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.False(t, res.Applied)

	content, err := os.ReadFile(filepath.Join(h.Path, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))

	res, err = m.ApplyPatch(ctx, root, readmePatch, false)
	require.NoError(t, err)
	assert.True(t, res.Applied)

	diff, err := m.Diff(ctx, root)
	require.NoError(t, err)
	assert.Contains(t, diff, "+world")

	original, err := os.ReadFile(filepath.Join(root, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(original))
}

func TestDiff_AdoptsSandboxFromAnotherManager(t *testing.T) {
	root := initRepo(t)
	ctx := context.Background()

	h, err := NewManager(testConfig()).Create(ctx, root)
	require.NoError(t, err)

	other := NewManager(testConfig())
	t.Cleanup(func() { _ = other.Remove(ctx, root) })

	_, err = other.ApplyPatch(ctx, root, readmePatch, false)
	require.NoError(t, err)

	diff, err := other.Diff(ctx, root)
	require.NoError(t, err)
	assert.Contains(t, diff, "+world")

	adopted, ok := other.Active(root)
	require.True(t, ok)
	assert.Equal(t, Worktree, adopted.Mechanism)
	assert.Equal(t, h.Branch, adopted.Branch)
	assert.Equal(t, h.Head, adopted.Head)
}

func TestApplyPatch_Errors(t *testing.T) {
	root := initRepo(t)
	m := NewManager(testConfig())
	ctx := context.Background()

	_, err := m.ApplyPatch(ctx, root, readmePatch, false)
	assert.ErrorIs(t, err, ErrNoSandbox)

	h, err := m.Create(ctx, root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Destroy(ctx, h) })

	_, err = m.ApplyPatch(ctx, root, "  ", false)
	assert.Error(t, err)

	_, err = m.ApplyPatch(ctx, root, "diff --git a/nope b/nope\n--- a/nope\n+++ b/nope\n@@ -1 +1 @@\n-x\n+y\n", false)
	assert.Error(t, err)
}

func TestIsPermission(t *testing.T) {
	assert.False(t, isPermission(nil))
	assert.True(t, isPermission(os.ErrPermission))
	assert.True(t, isPermission(&CommandError{Output: "error: Operation not permitted"}))
	assert.False(t, isPermission(&CommandError{Output: "fatal: invalid reference"}))
}

func TestCopyTree_Excludes(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "a", "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a", "keep.txt"), []byte("k"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a", "x.pyc"), []byte("p"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".env"), []byte("SECRET=1"), 0o600))

	dst := filepath.Join(t.TempDir(), "out")
	require.NoError(t, copyTree(src, dst, []string{"**/*.pyc", ".env", "**/node_modules"}))

	assert.FileExists(t, filepath.Join(dst, "a", "keep.txt"))
	assert.NoFileExists(t, filepath.Join(dst, "a", "x.pyc"))
	assert.NoFileExists(t, filepath.Join(dst, ".env"))
	assert.NoDirExists(t, filepath.Join(dst, "a", "node_modules"))
}

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// Runner executes git commands.
type Runner interface {
	Run(ctx context.Context, dir string, env []string, args ...string) (string, error)
}

// CommandError carries the output of a failed git command.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.Args, " "), e.Err, out)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner runs the git binary.
type ExecRunner struct{}

// Run executes git with args in dir and returns combined output.
func (ExecRunner) Run(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), &CommandError{Args: args, Output: out.String(), Err: err}
	}
	return out.String(), nil
}

// isPermission reports whether err is a permission-denied class failure.
func isPermission(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		out := strings.ToLower(ce.Output)
		return strings.Contains(out, "permission denied") || strings.Contains(out, "operation not permitted")
	}
	return false
}

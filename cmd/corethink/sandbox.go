package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSandboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Manage the isolated sandbox for a repository",
		Long: `Manage the sandbox used to trial changes.

The sandbox is a git worktree at <repo>/.sandbox on a throwaway branch. When
worktrees cannot be created the repository is copied instead.

Examples:
  corethink sandbox create .
  git diff | corethink sandbox apply . -
  corethink sandbox diff .
  corethink sandbox remove .`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create [repo]",
			Short: "Create or replace the sandbox",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return sandboxOp(a, cmd, args, func(ctx context.Context, root string) string {
					return a.orch.CreateSandbox(ctx, root)
				})
			},
		},
		&cobra.Command{
			Use:   "remove [repo]",
			Short: "Remove the sandbox",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return sandboxOp(a, cmd, args, func(ctx context.Context, root string) string {
					return a.orch.RemoveSandbox(ctx, root)
				})
			},
		},
		&cobra.Command{
			Use:   "diff [repo]",
			Short: "Show changes made inside the sandbox",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return sandboxOp(a, cmd, args, func(ctx context.Context, root string) string {
					return a.orch.SandboxDiff(ctx, root)
				})
			},
		},
		newSandboxApplyCmd(a),
	)
	return cmd
}

func newSandboxApplyCmd(a *app) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "apply <repo> <patch-file|->",
		Short: "Apply a unified diff inside the sandbox",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				patch []byte
				err   error
			)
			if args[1] == "-" {
				patch, err = io.ReadAll(cmd.InOrStdin())
			} else {
				patch, err = os.ReadFile(args[1])
			}
			if err != nil {
				return fmt.Errorf("failed to read patch: %w", err)
			}
			return sandboxOp(a, cmd, args[:1], func(ctx context.Context, root string) string {
				return a.orch.ApplyPatch(ctx, root, string(patch), check)
			})
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "only verify that the patch applies")
	return cmd
}

// sandboxOp runs a text-returning sandbox operation. Results starting with
// "Error:" become a non-zero exit.
func sandboxOp(a *app, cmd *cobra.Command, args []string, op func(ctx context.Context, root string) string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	return a.run(cmd, func(ctx context.Context) error {
		out := op(ctx, root)
		fmt.Fprintln(cmd.OutOrStdout(), out)
		if strings.HasPrefix(out, "Error:") {
			return fmt.Errorf("sandbox operation failed")
		}
		return nil
	})
}

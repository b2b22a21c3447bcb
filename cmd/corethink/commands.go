package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// readArg returns args joined, or stdin when the only argument is "-".
func readArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		args = []string{string(b)}
	}
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", fmt.Errorf("no input provided")
	}
	return text, nil
}

func newClassifyCmd(a *app) *cobra.Command {
	var hints []string
	cmd := &cobra.Command{
		Use:   "classify <request...>",
		Short: "Print the detected domain and composed constraints",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readArg(cmd, args)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context) error {
				comp := a.orch.ClassifyAndCompose(ctx, req, hints...)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Domain: %s\n", comp.Domain)
				for _, d := range comp.Degraded {
					fmt.Fprintf(out, "Degraded: %s\n", d)
				}
				fmt.Fprintf(out, "\n%s\n", comp.Text)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&hints, "hint", nil, "extra domain hint words")
	return cmd
}

func newReasonCmd(a *app) *cobra.Command {
	var (
		kind   string
		depth  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "reason <request...>",
		Short: "Run the reasoning pipeline and print the verdict",
		Long: `Run the four-stage reasoning pipeline over a request.

Examples:
  corethink reason "improve database query performance"
  corethink reason --kind plan --depth comprehensive "migrate the session store"
  echo "drop the legacy table" | corethink reason -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readArg(cmd, args)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context) error {
				v := a.orch.RunReasoning(ctx, req, kind, depth)
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(v)
				}
				fmt.Fprintln(cmd.OutOrStdout(), v.Text())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "evaluate_and_decide", "judgment kind: evaluate_and_decide, validate, plan")
	cmd.Flags().StringVar(&depth, "depth", "standard", "material depth: minimal, standard, comprehensive")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verdict as JSON")
	return cmd
}

func newCollectCmd(a *app) *cobra.Command {
	var (
		kinds string
		depth string
	)
	cmd := &cobra.Command{
		Use:   "collect <topic...>",
		Short: "Gather materials for a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := readArg(cmd, args)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context) error {
				b := a.orch.CollectMaterials(ctx, topic, kinds, depth)
				fmt.Fprintln(cmd.OutOrStdout(), b.Text())
				fmt.Fprintln(os.Stderr, b.Summary())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kinds, "kinds", "", "comma-separated material kinds")
	cmd.Flags().StringVar(&depth, "depth", "standard", "material depth: minimal, standard, comprehensive")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	var background string
	cmd := &cobra.Command{
		Use:   "validate <change...>",
		Short: "Check a proposed change against the textual rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			change, err := readArg(cmd, args)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context) error {
				fmt.Fprintln(cmd.OutOrStdout(), a.orch.ValidateChange(ctx, change, background))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&background, "context", "", "surrounding context used for domain detection")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit int
		query string
		stats bool
		clear bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show, search or clear the reasoning history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				out := cmd.OutOrStdout()
				switch {
				case clear:
					if err := a.orch.ClearHistory(ctx); err != nil {
						return err
					}
					fmt.Fprintln(out, "History cleared.")
				case stats:
					st, err := a.orch.HistoryStats()
					if err != nil {
						return err
					}
					fmt.Fprintln(out, st)
				case query != "":
					entries, err := a.orch.SearchHistory(query, limit)
					if err != nil {
						return err
					}
					if len(entries) == 0 {
						fmt.Fprintln(out, "No matching history entries.")
					}
					for _, e := range entries {
						fmt.Fprintf(out, "%s\n\n", e.Text)
					}
				default:
					fmt.Fprintln(out, a.orch.GetAuditLogTail(limit))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum entries")
	cmd.Flags().StringVarP(&query, "search", "s", "", "search text")
	cmd.Flags().BoolVar(&stats, "stats", false, "print log statistics")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the log (rotated backups are kept)")
	cmd.MarkFlagsMutuallyExclusive("clear", "stats", "search")
	return cmd
}

package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gonnet/gonnet/pkg/stores"
	"github.com/gonnet/gonnet/pkg/workspace"
)

func newHistoryCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded evaluations",
		Long: `Inspect the evaluation store written by eval --cache-db.

Every cached run is recorded with its outcome, duration and the content
digests of the files it imported. Old entries can be pruned by age.`,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database with recorded evaluations")

	cmd.AddCommand(newHistoryListCommand(&dbPath))
	cmd.AddCommand(newHistoryShowCommand(&dbPath))
	cmd.AddCommand(newHistoryPruneCommand(&dbPath))

	return cmd
}

// historyStore opens the store named by --db, falling back to the
// workspace cache section.
func historyStore(cmd *cobra.Command, dbPath string) (*stores.SQLiteStore, error) {
	if dbPath == "" {
		ws, err := loadWorkspace()
		if err != nil {
			return nil, err
		}
		if ws != nil && ws.Cache != nil {
			dbPath = ws.Cache.Path
		}
	}
	if dbPath == "" {
		return nil, fmt.Errorf("no evaluation store configured: pass --db or add a cache section to %s", workspace.DefaultName)
	}
	return openStore(cmd.Context(), dbPath)
}

func newHistoryListCommand(dbPath *string) *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded evaluations, newest first",
		Example: `  # Most recent evaluations
  gonnet history list --db .gonnet/evals.db

  # Page through older entries
  gonnet history list --db .gonnet/evals.db --limit 50 --offset 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyStore(cmd, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			evals, err := store.ListEvaluations(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(evals, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode evaluations: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			if len(evals) == 0 {
				fmt.Println("No evaluations recorded")
				return nil
			}

			fmt.Printf("%-36s  %-9s  %-7s  %10s  %-19s  %s\n", "ID", "STATUS", "KIND", "DURATION", "CREATED", "ENTRY")
			for _, eval := range evals {
				fmt.Printf("%-36s  %-9s  %-7s  %8dms  %-19s  %s\n",
					eval.ID,
					eval.Status,
					eval.Kind,
					eval.DurationMS,
					eval.CreatedAt.Format("2006-01-02 15:04:05"),
					summarizeEntry(eval),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")

	return cmd
}

func newHistoryShowCommand(dbPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded evaluation with its dependency snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyStore(cmd, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			eval, err := store.GetEvaluation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			deps, err := store.ListDependencies(cmd.Context(), eval.ID)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(struct {
					Evaluation   *stores.Evaluation  `json:"evaluation"`
					Dependencies []stores.Dependency `json:"dependencies"`
				}{eval, deps}, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode evaluation: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("ID:          %s\n", eval.ID)
			fmt.Printf("Entry:       %s\n", summarizeEntry(eval))
			fmt.Printf("Kind:        %s\n", eval.Kind)
			fmt.Printf("Status:      %s\n", eval.Status)
			fmt.Printf("Fingerprint: %s\n", eval.Fingerprint)
			fmt.Printf("Duration:    %dms\n", eval.DurationMS)
			fmt.Printf("Created:     %s\n", eval.CreatedAt.Format(time.RFC3339))
			if eval.Error != nil {
				fmt.Printf("Error:       %s\n", *eval.Error)
			}
			if len(deps) > 0 {
				fmt.Println("Dependencies:")
				for _, dep := range deps {
					fmt.Printf("  %s  %s\n", dep.ContentSHA256[:12], dep.Path)
				}
			}
			if eval.Output != "" {
				fmt.Println("Output:")
				fmt.Println(eval.Output)
			}
			return nil
		},
	}

	return cmd
}

func newHistoryPruneCommand(dbPath *string) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded evaluations older than a cutoff",
		Example: `  # Drop entries older than a week
  gonnet history prune --db .gonnet/evals.db

  # Keep only the last day
  gonnet history prune --db .gonnet/evals.db --older-than 24h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyStore(cmd, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			cutoff := time.Now().UTC().Add(-olderThan)
			pruned, err := store.PruneBefore(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d evaluation(s)\n", pruned)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "age threshold for deletion")

	return cmd
}

// summarizeEntry renders an evaluation's entry for display. Snippet
// sources collapse to one truncated line.
func summarizeEntry(eval *stores.Evaluation) string {
	if eval.Kind != stores.KindSnippet {
		return eval.Entry
	}
	entry := strings.Join(strings.Fields(eval.Entry), " ")
	if len(entry) > 40 {
		entry = entry[:37] + "..."
	}
	return entry
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gonnet/gonnet/pkg/stores"
	"github.com/gonnet/gonnet/pkg/workspace"
)

var (
	// Global flags
	workspaceFile string
	verbose       bool
	jsonOutput    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gonnet",
		Short: "Gonnet - lazy configuration language evaluator",
		Long: `Gonnet evaluates documents written in a lazy, object-oriented
configuration language and manifests the result as JSON.

Features:
  - Lazy evaluation with object inheritance and field merging
  - External variables and top-level arguments
  - Import resolution via library paths or a host callback
  - Cached evaluations keyed by options and import contents
  - Policy checks on manifested output (OPA/Rego)
  - Watch mode with Prometheus metrics`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&workspaceFile, "workspace", "w", "", "workspace file path (default: nearest gonnet.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newEvalCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

// loadWorkspace resolves the workspace file from the --workspace flag or by
// searching upward from the working directory. A missing workspace is not
// an error; commands then run on flag values alone.
func loadWorkspace() (*workspace.Workspace, error) {
	path := workspaceFile
	if path == "" {
		found, err := workspace.Find(".")
		if errors.Is(err, workspace.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		path = found
	}

	ws, err := workspace.Load(path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", ws.Path).Msg("Workspace loaded")
	return ws, nil
}

// openStore opens and migrates the evaluation store at path, creating the
// parent directory on first use.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

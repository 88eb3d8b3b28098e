package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gonnet/gonnet/pkg/stores"
	"github.com/gonnet/gonnet/pkg/vm"
	"github.com/gonnet/gonnet/pkg/workspace"
)

// snippetName is the document name evaluation errors report for --exec
// input.
const snippetName = "<cmdline>"

// evalFlags collects the evaluation flags shared by eval, check and watch.
type evalFlags struct {
	jpaths        []string
	extStrs       []string
	extCodes      []string
	tlaStrs       []string
	tlaCodes      []string
	maxStack      int
	maxTrace      int
	preserveOrder bool
}

func (f *evalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.jpaths, "jpath", "J", nil, "library search directory (repeatable)")
	cmd.Flags().StringArrayVar(&f.extStrs, "ext-str", nil, "external variable as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.extCodes, "ext-code", nil, "external variable as name=code (repeatable)")
	cmd.Flags().StringArrayVar(&f.tlaStrs, "tla-str", nil, "top-level argument as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.tlaCodes, "tla-code", nil, "top-level argument as name=code (repeatable)")
	cmd.Flags().IntVar(&f.maxStack, "max-stack", vm.DefaultMaxStack, "evaluation recursion depth limit")
	cmd.Flags().IntVar(&f.maxTrace, "max-trace", vm.DefaultMaxTrace, "trace frames rendered in errors, 0 renders all")
	cmd.Flags().BoolVar(&f.preserveOrder, "preserve-order", false, "manifest object fields in declaration order")
}

// options layers the flag values over the workspace settings. Scalar flags
// override only when set on the command line, so workspace values survive
// unused flag defaults; bindings shadow workspace bindings per name.
func (f *evalFlags) options(cmd *cobra.Command, ws *workspace.Workspace) ([]vm.Option, error) {
	var opts []vm.Option
	if ws != nil {
		opts = ws.Options()
	}
	opts = append(opts, vm.WithLogger(log.Logger), vm.WithContext(cmd.Context()))

	if len(f.jpaths) > 0 {
		opts = append(opts, vm.WithLibraryPaths(f.jpaths...))
	}

	bindings := []struct {
		flag  string
		specs []string
		bind  func(name, value string) vm.Option
	}{
		{"ext-str", f.extStrs, vm.WithExtVar},
		{"ext-code", f.extCodes, vm.WithExtCode},
		{"tla-str", f.tlaStrs, vm.WithTLAVar},
		{"tla-code", f.tlaCodes, vm.WithTLACode},
	}
	for _, b := range bindings {
		for _, spec := range b.specs {
			name, value, err := splitBinding(b.flag, spec)
			if err != nil {
				return nil, err
			}
			opts = append(opts, b.bind(name, value))
		}
	}

	if cmd.Flags().Changed("max-stack") {
		opts = append(opts, vm.WithMaxStack(f.maxStack))
	}
	if cmd.Flags().Changed("max-trace") {
		opts = append(opts, vm.WithMaxTrace(f.maxTrace))
	}
	if cmd.Flags().Changed("preserve-order") {
		opts = append(opts, vm.WithPreserveOrder(f.preserveOrder))
	}

	return opts, nil
}

// effectiveJPaths returns the import search directories in resolution
// order: workspace entries first, flag entries after them.
func (f *evalFlags) effectiveJPaths(ws *workspace.Workspace) []string {
	var paths []string
	if ws != nil {
		paths = append(paths, ws.JPaths...)
	}
	return append(paths, f.jpaths...)
}

// splitBinding parses a name=value flag argument.
func splitBinding(flag, spec string) (string, string, error) {
	name, value, ok := strings.Cut(spec, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid --%s value %q: expected name=value", flag, spec)
	}
	return name, value, nil
}

func newEvalCommand() *cobra.Command {
	var (
		flags      evalFlags
		snippet    string
		outputFile string
		cacheDB    string
	)

	cmd := &cobra.Command{
		Use:   "eval [file]",
		Short: "Evaluate a document and print its manifested JSON",
		Long: `Evaluate a document and print the manifested JSON result.

The entry is either a file argument or an inline snippet given with
--exec. Imports resolve relative to the importing document first, then
through the library paths from -J flags and the workspace file.

With --cache-db results are stored in a SQLite database keyed by the
entry, the evaluation options and the content digests of every imported
file. A later identical invocation whose imports are unchanged is served
from the store without evaluating.`,
		Example: `  # Evaluate a file
  gonnet eval config.gsn

  # Evaluate an inline snippet
  gonnet eval -e '{ port: 8080 }'

  # Bind external variables and search lib/ for imports
  gonnet eval -J lib --ext-str env=prod config.gsn

  # Pass top-level arguments to a function document
  gonnet eval --tla-str region=eu-west-1 cluster.gsn

  # Cache results across invocations
  gonnet eval --cache-db .gonnet/evals.db config.gsn`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && snippet != "" {
				return fmt.Errorf("cannot combine a file argument with --exec")
			}
			if len(args) == 0 && snippet == "" {
				return fmt.Errorf("specify a file to evaluate or --exec with a snippet")
			}

			ws, err := loadWorkspace()
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, ws)
			if err != nil {
				return err
			}

			kind := stores.KindSnippet
			entry := snippet
			if len(args) == 1 {
				kind = stores.KindFile
				entry, err = filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("failed to resolve entry path: %w", err)
				}
			}

			dbPath := cacheDB
			if dbPath == "" && ws != nil && ws.Cache != nil {
				dbPath = ws.Cache.Path
			}

			var result string
			if dbPath != "" {
				result, err = evaluateCached(cmd, dbPath, kind, entry, &flags, ws, opts)
			} else {
				result, err = evaluateEntry(kind, entry, opts)
			}
			if err != nil {
				return err
			}

			return writeOutput(outputFile, result)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&snippet, "exec", "e", "", "evaluate the given snippet instead of a file")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write output to file instead of stdout")
	cmd.Flags().StringVar(&cacheDB, "cache-db", "", "SQLite database for cached evaluations")

	return cmd
}

func evaluateEntry(kind, entry string, opts []vm.Option) (string, error) {
	if kind == stores.KindFile {
		return vm.EvaluateFile(entry, opts...)
	}
	return vm.EvaluateSnippet(snippetName, entry, opts...)
}

// evaluateCached serves the evaluation from the store when a previous run
// with the same fingerprint and unchanged imports exists, and records the
// outcome otherwise. Failed evaluations are recorded too; only successful
// ones are served.
func evaluateCached(cmd *cobra.Command, dbPath, kind, entry string, flags *evalFlags, ws *workspace.Workspace, opts []vm.Option) (string, error) {
	ctx := cmd.Context()

	store, err := openStore(ctx, dbPath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	fingerprint := evaluationFingerprint(kind, entry, flags, ws)

	cached, err := store.LookupCached(ctx, entry, kind, fingerprint)
	if err != nil {
		return "", err
	}
	if cached != nil {
		deps, err := store.ListDependencies(ctx, cached.ID)
		if err != nil {
			return "", err
		}
		if stores.DependenciesFresh(deps) {
			log.Debug().Str("evaluation", cached.ID).Msg("Serving cached result")
			return cached.Output, nil
		}
		log.Debug().Str("evaluation", cached.ID).Msg("Cached result is stale")
	}

	// The recorder resolves imports the way the evaluator's own filesystem
	// resolver does and digests every file it reads, the entry document
	// included. Snippets stay on the plain resolver: they have no entry
	// file and their imports resolve through library paths only, so the
	// stored result carries no dependency snapshot.
	var recorder *importRecorder
	if kind == stores.KindFile {
		recorder = newImportRecorder(flags.effectiveJPaths(ws))
		opts = append(opts, vm.WithImportCallback(recorder.resolve))
	}

	start := time.Now()
	result, evalErr := evaluateEntry(kind, entry, opts)
	duration := time.Since(start)

	eval := &stores.Evaluation{
		ID:          uuid.New().String(),
		Entry:       entry,
		Kind:        kind,
		Fingerprint: fingerprint,
		Output:      result,
		Status:      stores.EvaluationSucceeded,
		DurationMS:  duration.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	if evalErr != nil {
		msg := evalErr.Error()
		eval.Status = stores.EvaluationFailed
		eval.Error = &msg
	}

	var deps []stores.Dependency
	if recorder != nil {
		deps = recorder.dependencies()
	}
	if err := store.CreateEvaluation(ctx, eval, deps); err != nil {
		log.Warn().Err(err).Msg("Failed to record evaluation")
	}

	return result, evalErr
}

// evaluationFingerprint digests everything that shapes an evaluation's
// output besides imported file contents: the entry, the workspace file and
// the binding and limit flags. The dependency snapshot covers the contents.
func evaluationFingerprint(kind, entry string, flags *evalFlags, ws *workspace.Workspace) string {
	lines := []string{"kind=" + kind, "entry=" + entry}
	if ws != nil {
		if data, err := os.ReadFile(ws.Path); err == nil {
			lines = append(lines, "workspace="+stores.Checksum(data))
		}
	}
	for _, p := range flags.jpaths {
		lines = append(lines, "jpath="+p)
	}
	for _, s := range flags.extStrs {
		lines = append(lines, "ext-str="+s)
	}
	for _, s := range flags.extCodes {
		lines = append(lines, "ext-code="+s)
	}
	for _, s := range flags.tlaStrs {
		lines = append(lines, "tla-str="+s)
	}
	for _, s := range flags.tlaCodes {
		lines = append(lines, "tla-code="+s)
	}
	lines = append(lines,
		fmt.Sprintf("max-stack=%d", flags.maxStack),
		fmt.Sprintf("max-trace=%d", flags.maxTrace),
		fmt.Sprintf("preserve-order=%t", flags.preserveOrder),
	)
	return stores.Checksum([]byte(strings.Join(lines, "\n")))
}

// importRecorder resolves imports like the evaluator's filesystem resolver
// while recording a content digest for every file it reads. The digests
// become the dependency snapshot stored with the evaluation.
type importRecorder struct {
	jpaths []string
	deps   map[string]string
}

func newImportRecorder(jpaths []string) *importRecorder {
	return &importRecorder{
		jpaths: jpaths,
		deps:   make(map[string]string),
	}
}

// resolve implements the import callback contract: absolute paths read
// directly, relative paths against the importing document's directory
// first and each library path after it.
func (r *importRecorder) resolve(base, rel string) (string, string, bool, error) {
	var candidates []string
	if filepath.IsAbs(rel) {
		candidates = []string{filepath.Clean(rel)}
	} else {
		candidates = append(candidates, filepath.Join(base, rel))
		for _, lib := range r.jpaths {
			candidates = append(candidates, filepath.Join(lib, rel))
		}
	}

	for _, candidate := range candidates {
		contents, err := os.ReadFile(candidate)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", "", false, err
		}
		// First read wins, matching the evaluator's content pinning.
		if _, ok := r.deps[candidate]; !ok {
			r.deps[candidate] = stores.Checksum(contents)
		}
		return candidate, string(contents), true, nil
	}

	return "", "", false, nil
}

// dependencies returns the recorded files sorted by path.
func (r *importRecorder) dependencies() []stores.Dependency {
	deps := make([]stores.Dependency, 0, len(r.deps))
	for path, sum := range r.deps {
		deps = append(deps, stores.Dependency{Path: path, ContentSHA256: sum})
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Path < deps[j].Path })
	return deps
}

// paths returns the recorded file paths.
func (r *importRecorder) paths() []string {
	paths := make([]string, 0, len(r.deps))
	for path := range r.deps {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// writeOutput prints the manifested document, or writes it to path when -o
// is given. The trailing newline is added here; the library returns none.
func writeOutput(path, result string) error {
	if path == "" || path == "-" {
		fmt.Println(result)
		return nil
	}
	if err := os.WriteFile(path, []byte(result+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

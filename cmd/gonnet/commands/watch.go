package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gonnet/gonnet/pkg/policy"
	"github.com/gonnet/gonnet/pkg/stores"
	"github.com/gonnet/gonnet/pkg/telemetry"
	"github.com/gonnet/gonnet/pkg/vm"
)

// watchDebounce coalesces filesystem event bursts into a single reload.
const watchDebounce = 500 * time.Millisecond

func newWatchCommand() *cobra.Command {
	var (
		flags       evalFlags
		outputFile  string
		policyPaths []string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-evaluate a document whenever it or its imports change",
		Long: `Evaluate a document, then keep watching it and every file it imports
and re-evaluate on change.

The watched set follows the import graph: imports added by an edit are
picked up on the next reload, removed ones stop triggering reloads.
Evaluation failures are reported and watching continues.

When policies are configured the manifested output is checked after
every evaluation, and edits to the policy files themselves hot-reload
the policy set. With --metrics-addr a Prometheus endpoint reports
evaluation counts, durations and reload outcomes while the watch runs.`,
		Example: `  # Re-render on every change
  gonnet watch config.gsn

  # Keep an output file up to date
  gonnet watch -o rendered.json config.gsn

  # Check the output against policies after each change
  gonnet watch --policy policies/ config.gsn

  # Expose Prometheus metrics while watching
  gonnet watch --metrics-addr :9090 config.gsn`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace()
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, ws)
			if err != nil {
				return err
			}
			entry, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve entry path: %w", err)
			}

			session := &watchSession{
				entry:      entry,
				jpaths:     flags.effectiveJPaths(ws),
				baseOpts:   opts,
				outputFile: outputFile,
			}

			// Policy checking with hot reload of the policy files.
			if paths := policyCheckPaths(policyPaths, ws); len(paths) > 0 {
				checker, err := policy.NewEngine(log.Logger)
				if err != nil {
					return err
				}
				if err := checker.LoadPolicies(cmd.Context(), paths); err != nil {
					return err
				}
				loader := policy.NewLoader(log.Logger)
				err = loader.Watch(cmd.Context(), paths, func(policies []policy.Policy) error {
					return checker.ReloadPolicies(cmd.Context(), policies)
				})
				if err != nil {
					return err
				}
				defer loader.StopWatching()
				session.checker = checker
			}

			mcfg := telemetry.DefaultConfig().Metrics
			mcfg.Enabled = metricsAddr != ""
			if metricsAddr != "" {
				mcfg.ListenAddress = metricsAddr
			}
			metrics, err := telemetry.NewMetrics(mcfg)
			if err != nil {
				return err
			}
			if err := metrics.StartMetricsServer(); err != nil {
				return err
			}
			session.metrics = metrics
			session.baseOpts = append(session.baseOpts, vm.WithMetrics(metrics))

			events, err := telemetry.NewEventPublisher(telemetry.DefaultConfig().Events)
			if err != nil {
				return err
			}
			events.Subscribe(func(event telemetry.Event) {
				log.Debug().
					Str("type", event.Type).
					Str("source_file", event.SourceFile).
					Msg(event.Message)
			}, nil)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := events.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("Event publisher shutdown incomplete")
				}
			}()
			session.events = events

			return session.run(cmd.Context())
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write output to file instead of stdout")
	cmd.Flags().StringArrayVar(&policyPaths, "policy", nil, "policy file or directory to check after each evaluation (repeatable)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address while watching")

	return cmd
}

// watchSession re-evaluates one entry document as its import graph
// changes on disk.
type watchSession struct {
	entry      string
	jpaths     []string
	baseOpts   []vm.Option
	outputFile string

	checker *policy.Engine
	metrics *telemetry.Metrics
	events  *telemetry.EventPublisher

	watcher *fsnotify.Watcher
	watched map[string]bool // directories registered with the watcher
	files   map[string]bool // files whose changes trigger a reload
}

func (s *watchSession) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()
	s.watcher = watcher
	s.watched = make(map[string]bool)
	s.files = make(map[string]bool)

	s.events.Publish(telemetry.Event{
		Type:       telemetry.EventTypeWatchStarted,
		Source:     "watch",
		SourceFile: s.entry,
		Message:    fmt.Sprintf("Watching %s", s.entry),
		Level:      telemetry.EventLevelInfo,
	})
	s.metrics.SetActiveWatches(1)
	defer s.metrics.SetActiveWatches(0)

	log.Info().Str("entry", s.entry).Msg("Watching for changes")
	s.reload(ctx, "start")

	// The debounce timer fires into the channel so reloads run on this
	// goroutine, never concurrently with each other.
	reloads := make(chan string, 1)
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !s.files[filepath.Clean(event.Name)] {
				continue
			}
			log.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Watched file changed")
			trigger := event.Name
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case reloads <- trigger:
				default:
				}
			})

		case trigger := <-reloads:
			s.reload(ctx, trigger)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

// reload evaluates the entry once and re-targets the watch to the files
// this evaluation actually read.
func (s *watchSession) reload(ctx context.Context, trigger string) {
	recorder := newImportRecorder(s.jpaths)
	opts := append(append([]vm.Option(nil), s.baseOpts...), vm.WithImportCallback(recorder.resolve))

	evaluationID := uuid.New().String()
	s.events.PublishEvalStarted(evaluationID, s.entry, stores.KindFile)

	start := time.Now()
	result, err := vm.EvaluateFile(s.entry, opts...)
	duration := time.Since(start)

	// On failure the recorder still holds everything read before the
	// error, so the broken import graph stays watched.
	s.retarget(recorder.paths())

	if err != nil {
		s.events.PublishEvalFailed(evaluationID, s.entry, err.Error())
		s.events.PublishWatchReload(s.entry, trigger, "failure")
		s.metrics.RecordWatchReload("failure")
		log.Error().Err(err).Str("entry", s.entry).Msg("Evaluation failed")
		return
	}
	s.events.PublishEvalCompleted(evaluationID, s.entry, duration)

	if err := writeOutput(s.outputFile, result); err != nil {
		s.events.PublishWatchReload(s.entry, trigger, "failure")
		s.metrics.RecordWatchReload("failure")
		log.Error().Err(err).Msg("Failed to write output")
		return
	}

	if s.checker != nil {
		s.checkResult(ctx, result)
	}

	s.events.PublishWatchReload(s.entry, trigger, "success")
	s.metrics.RecordWatchReload("success")
	log.Info().
		Str("entry", s.entry).
		Dur("duration", duration).
		Int("files", len(s.files)).
		Msg("Evaluation reloaded")
}

// retarget replaces the watched set with the entry plus the given files.
// Directories are watched rather than files: editors replace files on
// save and a file watch dies with the old inode.
func (s *watchSession) retarget(paths []string) {
	files := map[string]bool{filepath.Clean(s.entry): true}
	for _, p := range paths {
		files[filepath.Clean(p)] = true
	}
	s.files = files

	dirs := make(map[string]bool)
	for f := range files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if s.watched[dir] {
			continue
		}
		if err := s.watcher.Add(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Failed to watch directory")
			continue
		}
		s.watched[dir] = true
	}
	for dir := range s.watched {
		if dirs[dir] {
			continue
		}
		_ = s.watcher.Remove(dir)
		delete(s.watched, dir)
	}
}

// checkResult runs the loaded policies against a manifested output and
// reports violations through the log, metrics and events.
func (s *watchSession) checkResult(ctx context.Context, manifested string) {
	result, err := s.checker.CheckManifest(ctx, manifested, s.entry)
	if err != nil {
		log.Error().Err(err).Msg("Policy check failed")
		return
	}

	decision := "allow"
	if !result.Allowed {
		decision = "deny"
	}
	s.metrics.RecordPolicyCheck(decision)

	for i := range result.Violations {
		v := &result.Violations[i]
		s.metrics.RecordPolicyViolation(string(v.Severity))
		s.events.PublishPolicyViolation(s.entry, v.Policy, string(v.Severity), v.Message)
		log.Warn().
			Str("policy", v.Policy).
			Str("severity", string(v.Severity)).
			Msg(v.Message)
	}

	if result.Allowed {
		log.Info().
			Int("policies", len(result.EvaluatedPolicies)).
			Msg("Policy check passed")
	} else {
		log.Error().
			Int("violations", len(result.Violations)).
			Msg("Policy check denied")
	}
}

package vm

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gonnet/gonnet/pkg/engine"
	"github.com/gonnet/gonnet/pkg/telemetry"
)

// DefaultMaxStack is the evaluation recursion depth limit applied when no
// explicit limit is set.
const DefaultMaxStack = engine.DefaultMaxStack

// DefaultMaxTrace is the number of trace frames rendered into errors when
// no explicit limit is set.
const DefaultMaxTrace = 20

// EvaluateFile evaluates the document at path and returns its manifested
// JSON. The path resolves like any other import: absolute paths are read
// directly, relative paths resolve against the working directory, and the
// configured import callback, when present, handles resolution entirely.
//
// All failures return a *Error carrying a Kind, a message and a bounded
// evaluation trace.
func EvaluateFile(path string, opts ...Option) (string, error) {
	s, err := newSession(opts)
	if err != nil {
		return "", err
	}
	return s.run("file", path, func(i *engine.Interp) (engine.Value, error) {
		return i.EvaluateFile(path)
	})
}

// EvaluateSnippet evaluates source as a document named name and returns
// its manifested JSON. The name appears in error positions and traces but
// does not exist on disk; relative imports from a snippet resolve only
// through the import callback or the configured library paths.
func EvaluateSnippet(name, source string, opts ...Option) (string, error) {
	s, err := newSession(opts)
	if err != nil {
		return "", err
	}
	return s.run("snippet", name, func(i *engine.Interp) (engine.Value, error) {
		return i.EvaluateSnippet(name, source)
	})
}

// session holds the validated configuration for one evaluation: parsed
// bindings, the owned resolver with its content cache, and the telemetry
// handles. Sessions are built per call and confined to one goroutine.
type session struct {
	cfg      config
	ext      []binding
	tla      []binding
	resolver engine.Importer
	logger   zerolog.Logger
	ctx      context.Context
	metrics  *telemetry.Metrics
}

func newSession(opts []Option) (*session, error) {
	cfg := config{
		MaxStack: DefaultMaxStack,
		MaxTrace: DefaultMaxTrace,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(cfg.Natives))
	for _, nf := range cfg.Natives {
		if err := nf.validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[nf.Name]; ok {
			return nil, newError(KindNativeRegistration, "native function %s registered twice", nf.Name)
		}
		seen[nf.Name] = struct{}{}
	}

	ext, err := parseBindings("extvar", cfg.ExtVars, cfg.ExtCodes)
	if err != nil {
		return nil, err
	}
	tla, err := parseBindings("top-level-arg", cfg.TLAVars, cfg.TLACodes)
	if err != nil {
		return nil, err
	}

	metrics := cfg.Metrics
	if metrics == nil {
		// A disabled collector keeps call sites unconditional.
		metrics, _ = telemetry.NewMetrics(telemetry.MetricsConfig{})
	}

	var resolver engine.Importer
	if cfg.ImportCallback != nil {
		resolver = newCallbackResolver(cfg.ImportCallback, metrics)
	} else {
		resolver = newPathResolver(cfg.LibraryPaths, metrics)
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("component", "vm").Logger()

	ctx := cfg.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	return &session{
		cfg:      cfg,
		ext:      ext,
		tla:      tla,
		resolver: resolver,
		logger:   logger,
		ctx:      ctx,
		metrics:  metrics,
	}, nil
}

// run wraps one evaluation with its span, log records and metrics.
func (s *session) run(kind, source string, eval func(*engine.Interp) (engine.Value, error)) (string, error) {
	tracer := otel.Tracer("github.com/gonnet/gonnet/pkg/vm")
	_, span := tracer.Start(s.ctx, "vm.evaluate", trace.WithAttributes(
		telemetry.AttrEvalKind.String(kind),
		telemetry.AttrEvalSource.String(source),
	))
	defer span.End()

	logger := s.logger.With().Str("kind", kind).Str("source", source).Logger()
	start := time.Now()
	manifested, err := s.evaluate(eval)
	duration := time.Since(start)

	if err != nil {
		s.metrics.RecordEvaluation(kind, "error", duration)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Dur("duration", duration).Msg("evaluation failed")
		return "", err
	}

	s.metrics.RecordEvaluation(kind, "ok", duration)
	s.metrics.RecordManifestBytes(len(manifested))
	span.SetStatus(codes.Ok, "")
	logger.Debug().
		Dur("duration", duration).
		Int("manifest_bytes", len(manifested)).
		Msg("evaluation completed")
	return manifested, nil
}

// evaluate builds the interpreter, binds externals and natives, evaluates
// the entry document, applies top-level arguments when the result is a
// function, and manifests the final value.
func (s *session) evaluate(eval func(*engine.Interp) (engine.Value, error)) (string, error) {
	i := engine.New(engine.Options{
		MaxStack:      s.cfg.MaxStack,
		PreserveOrder: s.cfg.PreserveOrder,
		Importer:      s.resolver,
		Logger:        &s.logger,
	})
	for _, b := range s.ext {
		i.BindExtVar(b.name, b.thunk(i))
	}
	for _, nf := range s.cfg.Natives {
		i.RegisterNative(nf.Name, nf.Params, s.nativeImpl(nf))
	}

	result, err := eval(i)
	if err != nil {
		return "", translate(err, s.cfg.MaxTrace)
	}

	result, err = s.applyTopLevelArgs(i, result)
	if err != nil {
		return "", err
	}

	manifested, err := i.Manifest(result)
	if err != nil {
		return "", translate(err, s.cfg.MaxTrace)
	}
	return manifested, nil
}

// applyTopLevelArgs calls the entry function with the bound top-level
// arguments. A non-function result passes through untouched, bound
// arguments included; a function result is always called, so unbound
// optional parameters fall back to their defaults. Required parameters
// with no binding are rejected before the call.
func (s *session) applyTopLevelArgs(i *engine.Interp, v engine.Value) (engine.Value, error) {
	fn, ok := v.(*engine.Function)
	if !ok {
		return v, nil
	}

	bound := make(map[string]struct{}, len(s.tla))
	named := make([]engine.NamedArg, 0, len(s.tla))
	for _, b := range s.tla {
		bound[b.name] = struct{}{}
		named = append(named, engine.NamedArg{Name: b.name, Value: b.thunk(i)})
	}
	for _, p := range fn.Parameters() {
		if !p.Required {
			continue
		}
		if _, ok := bound[p.Name]; !ok {
			return nil, newError(KindTLAMissingParam, "missing required top-level argument %q", p.Name)
		}
	}

	result, err := i.Call(fn, nil, named)
	if err != nil {
		return nil, translate(err, s.cfg.MaxTrace)
	}
	return result, nil
}

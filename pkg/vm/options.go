package vm

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/gonnet/gonnet/pkg/telemetry"
)

var validate = validator.New()

// config collects everything an evaluation session needs. Fields are
// exported for struct validation only; callers go through Options.
type config struct {
	// MaxStack bounds evaluation recursion depth.
	MaxStack int `validate:"gte=1"`

	// MaxTrace bounds rendered trace frames. Zero renders the whole trace.
	MaxTrace int `validate:"gte=0"`

	LibraryPaths   []string
	ExtVars        map[string]string
	ExtCodes       map[string]string
	TLAVars        map[string]string
	TLACodes       map[string]string
	ImportCallback ImportCallback
	Natives        []NativeFunction
	PreserveOrder  bool
	Logger         *zerolog.Logger
	Ctx            context.Context
	Metrics        *telemetry.Metrics
}

func (c *config) validate() error {
	if err := validate.Struct(c); err != nil {
		return wrapError(KindConfig, err, "invalid evaluation options: %v", err)
	}
	return nil
}

// Option configures a single evaluation.
type Option func(*config)

// WithLibraryPaths appends directories searched for imports that do not
// resolve relative to the importing document. Ignored when an import
// callback is set.
func WithLibraryPaths(paths ...string) Option {
	return func(c *config) {
		c.LibraryPaths = append(c.LibraryPaths, paths...)
	}
}

// WithMaxStack bounds evaluation recursion depth. The default is
// DefaultMaxStack.
func WithMaxStack(n int) Option {
	return func(c *config) {
		c.MaxStack = n
	}
}

// WithMaxTrace bounds the number of trace frames rendered into errors.
// Zero renders the whole trace. The default is DefaultMaxTrace.
func WithMaxTrace(n int) Option {
	return func(c *config) {
		c.MaxTrace = n
	}
}

// WithExtVar binds an external variable to a plain string value,
// reachable in documents through std.extVar.
func WithExtVar(name, value string) Option {
	return func(c *config) {
		if c.ExtVars == nil {
			c.ExtVars = make(map[string]string)
		}
		c.ExtVars[name] = value
	}
}

// WithExtCode binds an external variable to a code fragment evaluated
// lazily on first access. The fragment is parsed before evaluation starts.
func WithExtCode(name, code string) Option {
	return func(c *config) {
		if c.ExtCodes == nil {
			c.ExtCodes = make(map[string]string)
		}
		c.ExtCodes[name] = code
	}
}

// WithTLAVar binds a top-level argument to a plain string value, passed to
// the entry document when it manifests as a function.
func WithTLAVar(name, value string) Option {
	return func(c *config) {
		if c.TLAVars == nil {
			c.TLAVars = make(map[string]string)
		}
		c.TLAVars[name] = value
	}
}

// WithTLACode binds a top-level argument to a code fragment. The fragment
// is parsed before evaluation starts and evaluated lazily when the entry
// function forces it.
func WithTLACode(name, code string) Option {
	return func(c *config) {
		if c.TLACodes == nil {
			c.TLACodes = make(map[string]string)
		}
		c.TLACodes[name] = code
	}
}

// WithImportCallback delegates import resolution to the host. Setting a
// callback takes precedence over library paths.
func WithImportCallback(cb ImportCallback) Option {
	return func(c *config) {
		c.ImportCallback = cb
	}
}

// WithNativeFunction registers a host function reachable through
// std.native. Registrations are validated before evaluation starts.
func WithNativeFunction(nf NativeFunction) Option {
	return func(c *config) {
		c.Natives = append(c.Natives, nf)
	}
}

// WithPreserveOrder makes objects manifest fields in declaration order
// instead of sorted order.
func WithPreserveOrder(preserve bool) Option {
	return func(c *config) {
		c.PreserveOrder = preserve
	}
}

// WithLogger attaches a logger to the evaluation. Without one the session
// logs nothing.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.Logger = &logger
	}
}

// WithContext attaches a context used as the parent for the evaluation's
// trace span.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.Ctx = ctx
	}
}

// WithMetrics records evaluation, import and native call metrics on the
// given collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *config) {
		c.Metrics = m
	}
}

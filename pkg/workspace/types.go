package workspace

import (
	"github.com/gonnet/gonnet/pkg/vm"
)

// Workspace is the decoded gonnet.yaml project file.
type Workspace struct {
	// Version is the workspace file format version. Only version 1 exists.
	Version int `yaml:"version,omitempty" validate:"omitempty,eq=1"`

	// JPaths lists library search directories for imports. Relative entries
	// resolve against the workspace directory.
	JPaths []string `yaml:"jpath,omitempty"`

	// ExtVars binds external variables to plain string values.
	ExtVars map[string]string `yaml:"ext_vars,omitempty"`

	// ExtCode binds external variables to code fragments.
	ExtCode map[string]string `yaml:"ext_code,omitempty"`

	// TLAVars binds top-level arguments to plain string values.
	TLAVars map[string]string `yaml:"tla_vars,omitempty"`

	// TLACode binds top-level arguments to code fragments.
	TLACode map[string]string `yaml:"tla_code,omitempty"`

	// PreserveOrder manifests object fields in declaration order instead of
	// sorted order.
	PreserveOrder bool `yaml:"preserve_order,omitempty"`

	// Limits bounds evaluation depth and trace rendering.
	Limits *Limits `yaml:"limits,omitempty"`

	// Policy configures policy checking for the check and watch commands.
	Policy *PolicyConfig `yaml:"policy,omitempty"`

	// Cache configures the evaluation store backing cached evaluation and
	// history.
	Cache *CacheConfig `yaml:"cache,omitempty"`

	// Path is the absolute path of the workspace file and Dir its
	// directory. Load sets both; they are not decoded from YAML.
	Path string `yaml:"-"`
	Dir  string `yaml:"-"`
}

// Limits bounds evaluation resources.
type Limits struct {
	// MaxStack bounds evaluation recursion depth. Zero keeps the engine
	// default.
	MaxStack int `yaml:"max_stack,omitempty" validate:"gte=0"`

	// MaxTrace bounds rendered trace frames. Zero renders the whole trace;
	// omit the field to keep the default.
	MaxTrace *int `yaml:"max_trace,omitempty" validate:"omitempty,gte=0"`
}

// PolicyConfig configures policy checking.
type PolicyConfig struct {
	// Enabled turns policy checks on.
	Enabled bool `yaml:"enabled"`

	// Paths lists policy files or directories (.rego files or .json
	// bundles). Relative entries resolve against the workspace directory.
	Paths []string `yaml:"paths,omitempty"`

	// Mode selects whether violations fail the command (enforcing) or are
	// only reported (advisory). Empty means enforcing.
	Mode string `yaml:"mode,omitempty" validate:"omitempty,oneof=advisory enforcing"`
}

// Enforcing reports whether policy violations should fail the command.
func (p *PolicyConfig) Enforcing() bool {
	return p == nil || p.Mode != "advisory"
}

// CacheConfig configures the evaluation store.
type CacheConfig struct {
	// Path is the SQLite database file. Relative paths resolve against the
	// workspace directory.
	Path string `yaml:"path" validate:"required"`
}

// Options converts the workspace settings into evaluation options. Callers
// layer command-line flags on top by appending further options: scalar
// settings are last-wins and bindings shadow per name.
func (w *Workspace) Options() []vm.Option {
	var opts []vm.Option

	if len(w.JPaths) > 0 {
		opts = append(opts, vm.WithLibraryPaths(w.JPaths...))
	}
	for name, value := range w.ExtVars {
		opts = append(opts, vm.WithExtVar(name, value))
	}
	for name, code := range w.ExtCode {
		opts = append(opts, vm.WithExtCode(name, code))
	}
	for name, value := range w.TLAVars {
		opts = append(opts, vm.WithTLAVar(name, value))
	}
	for name, code := range w.TLACode {
		opts = append(opts, vm.WithTLACode(name, code))
	}
	if w.PreserveOrder {
		opts = append(opts, vm.WithPreserveOrder(true))
	}
	if w.Limits != nil {
		if w.Limits.MaxStack > 0 {
			opts = append(opts, vm.WithMaxStack(w.Limits.MaxStack))
		}
		if w.Limits.MaxTrace != nil {
			opts = append(opts, vm.WithMaxTrace(*w.Limits.MaxTrace))
		}
	}

	return opts
}

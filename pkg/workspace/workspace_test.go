package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gonnet/gonnet/pkg/vm"
)

func writeWorkspace(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write workspace file: %v", err)
	}
	return path
}

func TestLoad_FullFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := `version: 1
jpath:
  - lib
  - /opt/gonnet/vendor
ext_vars:
  env: production
ext_code:
  replicas: "3"
tla_vars:
  region: us-east-1
tla_code:
  overrides: "{cpu: 2}"
preserve_order: true
limits:
  max_stack: 1000
  max_trace: 10
policy:
  enabled: true
  paths:
    - policies
  mode: advisory
cache:
  path: .gonnet/evals.db
`
	path := writeWorkspace(t, tmpDir, content)

	ws, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load workspace: %v", err)
	}

	if ws.Version != 1 {
		t.Errorf("Expected version 1, got %d", ws.Version)
	}

	if ws.Path != filepath.Join(tmpDir, DefaultName) {
		t.Errorf("Expected path recorded, got %s", ws.Path)
	}
	if ws.Dir != tmpDir {
		t.Errorf("Expected dir %s, got %s", tmpDir, ws.Dir)
	}

	// Relative entries resolve against the workspace directory, absolute
	// entries pass through.
	if len(ws.JPaths) != 2 {
		t.Fatalf("Expected 2 jpaths, got %d", len(ws.JPaths))
	}
	if ws.JPaths[0] != filepath.Join(tmpDir, "lib") {
		t.Errorf("Expected resolved jpath, got %s", ws.JPaths[0])
	}
	if ws.JPaths[1] != "/opt/gonnet/vendor" {
		t.Errorf("Expected absolute jpath untouched, got %s", ws.JPaths[1])
	}

	if ws.ExtVars["env"] != "production" {
		t.Errorf("Expected ext var env=production, got %q", ws.ExtVars["env"])
	}
	if ws.ExtCode["replicas"] != "3" {
		t.Errorf("Expected ext code replicas=3, got %q", ws.ExtCode["replicas"])
	}
	if ws.TLAVars["region"] != "us-east-1" {
		t.Errorf("Expected tla var region, got %q", ws.TLAVars["region"])
	}
	if ws.TLACode["overrides"] != "{cpu: 2}" {
		t.Errorf("Expected tla code overrides, got %q", ws.TLACode["overrides"])
	}

	if !ws.PreserveOrder {
		t.Error("Expected preserve_order true")
	}

	if ws.Limits == nil || ws.Limits.MaxStack != 1000 {
		t.Error("Expected max_stack 1000")
	}
	if ws.Limits.MaxTrace == nil || *ws.Limits.MaxTrace != 10 {
		t.Error("Expected max_trace 10")
	}

	if ws.Policy == nil || !ws.Policy.Enabled {
		t.Fatal("Expected policy enabled")
	}
	if len(ws.Policy.Paths) != 1 || ws.Policy.Paths[0] != filepath.Join(tmpDir, "policies") {
		t.Errorf("Expected resolved policy path, got %v", ws.Policy.Paths)
	}
	if ws.Policy.Enforcing() {
		t.Error("Expected advisory mode to not enforce")
	}

	if ws.Cache == nil || ws.Cache.Path != filepath.Join(tmpDir, ".gonnet/evals.db") {
		t.Errorf("Expected resolved cache path, got %+v", ws.Cache)
	}
}

func TestLoad_Minimal(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeWorkspace(t, tmpDir, "jpath:\n  - lib\n")

	ws, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load workspace: %v", err)
	}

	if ws.Version != 0 {
		t.Errorf("Expected no version, got %d", ws.Version)
	}
	if ws.Limits != nil || ws.Policy != nil || ws.Cache != nil {
		t.Error("Expected absent sections to stay nil")
	}
	if len(ws.Options()) != 1 {
		t.Errorf("Expected a single option (jpath), got %d", len(ws.Options()))
	}
}

func TestLoad_NonExistent(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultName))
	if err == nil {
		t.Error("Expected error for missing workspace file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeWorkspace(t, tmpDir, "jpath: [unclosed\n")

	_, err := Load(path)
	if err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "unsupported version",
			content: "version: 2\n",
		},
		{
			name:    "bad policy mode",
			content: "policy:\n  enabled: true\n  mode: strict\n",
		},
		{
			name:    "cache without path",
			content: "cache: {}\n",
		},
		{
			name:    "negative max_stack",
			content: "limits:\n  max_stack: -1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeWorkspace(t, t.TempDir(), tt.content)
			_, err := Load(path)
			if err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestFind(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("Failed to create directories: %v", err)
	}

	root := writeWorkspace(t, tmpDir, "jpath:\n  - lib\n")

	found, err := Find(nested)
	if err != nil {
		t.Fatalf("Failed to find workspace: %v", err)
	}
	if found != root {
		t.Errorf("Expected %s, got %s", root, found)
	}
}

func TestFind_NearestWins(t *testing.T) {
	tmpDir := t.TempDir()
	inner := filepath.Join(tmpDir, "svc")
	if err := os.MkdirAll(inner, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	writeWorkspace(t, tmpDir, "jpath:\n  - outer\n")
	innerPath := writeWorkspace(t, inner, "jpath:\n  - inner\n")

	found, err := Find(inner)
	if err != nil {
		t.Fatalf("Failed to find workspace: %v", err)
	}
	if found != innerPath {
		t.Errorf("Expected nearest file %s, got %s", innerPath, found)
	}
}

func TestFind_NotFound(t *testing.T) {
	_, err := Find(t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOptions_Bindings(t *testing.T) {
	ws := &Workspace{
		ExtVars: map[string]string{"greeting": "hello"},
	}

	result, err := vm.EvaluateSnippet("test", `std.extVar("greeting")`, ws.Options()...)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != `"hello"` {
		t.Errorf("Expected \"hello\", got %s", result)
	}
}

func TestOptions_TLA(t *testing.T) {
	ws := &Workspace{
		TLAVars: map[string]string{"name": "svc"},
	}

	result, err := vm.EvaluateSnippet("test", "function(name) name", ws.Options()...)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != `"svc"` {
		t.Errorf("Expected \"svc\", got %s", result)
	}
}

func TestOptions_PreserveOrder(t *testing.T) {
	ws := &Workspace{PreserveOrder: true}

	result, err := vm.EvaluateSnippet("test", "{ b: 1, a: 2 }", ws.Options()...)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := "{\n   \"b\": 1,\n   \"a\": 2\n}"
	if result != expected {
		t.Errorf("Expected declaration order, got %s", result)
	}
}

func TestOptions_Limits(t *testing.T) {
	ws := &Workspace{
		Limits: &Limits{MaxStack: 5},
	}

	_, err := vm.EvaluateSnippet("test",
		"local f(n) = if n == 0 then 0 else f(n - 1); f(100)",
		ws.Options()...)
	if err == nil {
		t.Fatal("Expected stack overflow error")
	}
	if !vm.IsRuntimeError(err) {
		t.Errorf("Expected runtime error, got %v", err)
	}
}

func TestOptions_FlagsLayerOnTop(t *testing.T) {
	ws := &Workspace{
		ExtVars: map[string]string{"env": "dev"},
	}

	// A later binding for the same name wins, the way command-line flags
	// layer over workspace values.
	opts := append(ws.Options(), vm.WithExtVar("env", "prod"))

	result, err := vm.EvaluateSnippet("test", `std.extVar("env")`, opts...)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != `"prod"` {
		t.Errorf("Expected \"prod\", got %s", result)
	}
}

func TestEnforcing(t *testing.T) {
	tests := []struct {
		name     string
		policy   *PolicyConfig
		expected bool
	}{
		{name: "nil config", policy: nil, expected: true},
		{name: "empty mode", policy: &PolicyConfig{}, expected: true},
		{name: "enforcing", policy: &PolicyConfig{Mode: "enforcing"}, expected: true},
		{name: "advisory", policy: &PolicyConfig{Mode: "advisory"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Enforcing(); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

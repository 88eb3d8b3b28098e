package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gonnet/gonnet/pkg/stores"
	"github.com/gonnet/gonnet/pkg/workspace"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
}

func TestSplitBinding(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantKey string
		wantVal string
		wantErr bool
	}{
		{"simple", "env=prod", "env", "prod", false},
		{"empty value", "env=", "env", "", false},
		{"value with equals", "expr=a=b", "expr", "a=b", false},
		{"missing separator", "env", "", "", true},
		{"empty name", "=prod", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, val, err := splitBinding("ext-str", tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key != tt.wantKey || val != tt.wantVal {
				t.Errorf("expected %q=%q, got %q=%q", tt.wantKey, tt.wantVal, key, val)
			}
		})
	}
}

func TestEvaluationFingerprint(t *testing.T) {
	flags := &evalFlags{maxStack: 200, maxTrace: 20}

	a := evaluationFingerprint(stores.KindFile, "/configs/a.gsn", flags, nil)
	b := evaluationFingerprint(stores.KindFile, "/configs/a.gsn", flags, nil)
	if a != b {
		t.Errorf("expected identical fingerprints, got %s and %s", a, b)
	}

	if c := evaluationFingerprint(stores.KindSnippet, "/configs/a.gsn", flags, nil); c == a {
		t.Error("expected kind to change the fingerprint")
	}
	if c := evaluationFingerprint(stores.KindFile, "/configs/b.gsn", flags, nil); c == a {
		t.Error("expected entry to change the fingerprint")
	}

	bound := &evalFlags{maxStack: 200, maxTrace: 20, extStrs: []string{"env=prod"}}
	if c := evaluationFingerprint(stores.KindFile, "/configs/a.gsn", bound, nil); c == a {
		t.Error("expected bindings to change the fingerprint")
	}

	deeper := &evalFlags{maxStack: 500, maxTrace: 20}
	if c := evaluationFingerprint(stores.KindFile, "/configs/a.gsn", deeper, nil); c == a {
		t.Error("expected limits to change the fingerprint")
	}
}

func TestEvaluationFingerprint_WorkspaceContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, workspace.DefaultName)
	writeFile(t, path, "version: 1\n")

	flags := &evalFlags{maxStack: 200, maxTrace: 20}
	ws := &workspace.Workspace{Version: 1, Path: path}

	bare := evaluationFingerprint(stores.KindFile, "/configs/a.gsn", flags, nil)
	withWS := evaluationFingerprint(stores.KindFile, "/configs/a.gsn", flags, ws)
	if bare == withWS {
		t.Error("expected the workspace file to change the fingerprint")
	}

	writeFile(t, path, "version: 1\njpath:\n  - lib\n")
	edited := evaluationFingerprint(stores.KindFile, "/configs/a.gsn", flags, ws)
	if edited == withWS {
		t.Error("expected a workspace edit to change the fingerprint")
	}
}

func TestImportRecorder_ResolutionOrder(t *testing.T) {
	base := t.TempDir()
	lib1 := t.TempDir()
	lib2 := t.TempDir()

	writeFile(t, filepath.Join(base, "local.gsn"), "{ from: 'base' }")
	writeFile(t, filepath.Join(lib1, "shared.gsn"), "{ from: 'lib1' }")
	writeFile(t, filepath.Join(lib2, "shared.gsn"), "{ from: 'lib2' }")

	r := newImportRecorder([]string{lib1, lib2})

	resolved, contents, found, err := r.resolve(base, "local.gsn")
	if err != nil || !found {
		t.Fatalf("expected to resolve local.gsn, found=%v err=%v", found, err)
	}
	if resolved != filepath.Join(base, "local.gsn") {
		t.Errorf("expected base-relative resolution, got %s", resolved)
	}
	if contents != "{ from: 'base' }" {
		t.Errorf("unexpected contents %q", contents)
	}

	resolved, _, found, err = r.resolve(base, "shared.gsn")
	if err != nil || !found {
		t.Fatalf("expected to resolve shared.gsn, found=%v err=%v", found, err)
	}
	if resolved != filepath.Join(lib1, "shared.gsn") {
		t.Errorf("expected the first library path to win, got %s", resolved)
	}
}

func TestImportRecorder_AbsolutePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abs.gsn")
	writeFile(t, path, "{ }")

	r := newImportRecorder(nil)
	resolved, _, found, err := r.resolve("/somewhere/else", path)
	if err != nil || !found {
		t.Fatalf("expected to resolve absolute path, found=%v err=%v", found, err)
	}
	if resolved != path {
		t.Errorf("expected %s, got %s", path, resolved)
	}
}

func TestImportRecorder_NotFound(t *testing.T) {
	r := newImportRecorder(nil)
	_, _, found, err := r.resolve(t.TempDir(), "missing.gsn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected missing import to report not found")
	}
}

func TestImportRecorder_Dependencies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.gsn"), "2")
	writeFile(t, filepath.Join(dir, "a.gsn"), "1")

	r := newImportRecorder(nil)
	for _, name := range []string{"b.gsn", "a.gsn", "b.gsn"} {
		if _, _, found, err := r.resolve(dir, name); err != nil || !found {
			t.Fatalf("failed to resolve %s: found=%v err=%v", name, found, err)
		}
	}

	deps := r.dependencies()
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(deps))
	}
	if deps[0].Path != filepath.Join(dir, "a.gsn") || deps[1].Path != filepath.Join(dir, "b.gsn") {
		t.Errorf("expected dependencies sorted by path, got %s then %s", deps[0].Path, deps[1].Path)
	}
	if deps[0].ContentSHA256 != stores.Checksum([]byte("1")) {
		t.Errorf("unexpected digest for a.gsn: %s", deps[0].ContentSHA256)
	}
}

func TestImportRecorder_PinsFirstContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.gsn")
	writeFile(t, path, "1")

	r := newImportRecorder(nil)
	if _, _, found, err := r.resolve(dir, "lib.gsn"); err != nil || !found {
		t.Fatalf("failed to resolve: found=%v err=%v", found, err)
	}

	writeFile(t, path, "2")
	if _, _, found, err := r.resolve(dir, "lib.gsn"); err != nil || !found {
		t.Fatalf("failed to re-resolve: found=%v err=%v", found, err)
	}

	deps := r.dependencies()
	if len(deps) != 1 {
		t.Fatalf("expected 1 dependency, got %d", len(deps))
	}
	if deps[0].ContentSHA256 != stores.Checksum([]byte("1")) {
		t.Error("expected the first read's digest to stay recorded")
	}
}

func TestEffectiveJPaths(t *testing.T) {
	flags := &evalFlags{jpaths: []string{"/flag/one"}}
	ws := &workspace.Workspace{Version: 1, JPaths: []string{"/ws/lib"}}

	got := flags.effectiveJPaths(ws)
	want := []string{"/ws/lib", "/flag/one"}
	if len(got) != len(want) {
		t.Fatalf("expected %d paths, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, got[i])
		}
	}

	if got := flags.effectiveJPaths(nil); len(got) != 1 || got[0] != "/flag/one" {
		t.Errorf("expected flag paths only without a workspace, got %v", got)
	}
}

func TestWriteOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := writeOutput(path, "{ }"); err != nil {
		t.Fatalf("failed to write output: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if string(data) != "{ }\n" {
		t.Errorf("expected trailing newline, got %q", string(data))
	}
}

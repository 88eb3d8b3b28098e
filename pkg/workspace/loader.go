package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultName is the workspace file name looked up by Find.
const DefaultName = "gonnet.yaml"

// ErrNotFound is returned by Find when no directory between the start
// directory and the filesystem root contains a workspace file.
var ErrNotFound = errors.New("no workspace file found")

var validate = validator.New()

// Load reads and validates a workspace file. Relative jpath, policy and
// cache entries are resolved against the file's directory.
func Load(path string) (*Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace file: %w", err)
	}

	var ws Workspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("failed to parse workspace YAML: %w", err)
	}

	if err := validate.Struct(&ws); err != nil {
		return nil, fmt.Errorf("invalid workspace file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	ws.Path = abs
	ws.Dir = filepath.Dir(abs)
	ws.resolvePaths()

	return &ws, nil
}

// Find walks from startDir toward the filesystem root looking for a
// workspace file and returns its path.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve search root: %w", err)
	}

	for {
		candidate := filepath.Join(dir, DefaultName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// resolvePaths rewrites relative path entries against the workspace
// directory so commands can run from anywhere below it.
func (w *Workspace) resolvePaths() {
	for i, p := range w.JPaths {
		w.JPaths[i] = w.resolve(p)
	}
	if w.Policy != nil {
		for i, p := range w.Policy.Paths {
			w.Policy.Paths[i] = w.resolve(p)
		}
	}
	if w.Cache != nil && w.Cache.Path != "" {
		w.Cache.Path = w.resolve(w.Cache.Path)
	}
}

func (w *Workspace) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.Dir, path)
}

package vm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gonnet/gonnet/pkg/engine"
	"github.com/gonnet/gonnet/pkg/telemetry"
)

// ImportCallback locates import targets on behalf of the host application.
//
// base is the directory of the importing document and rel is the path as
// written in the import expression. The callback returns the resolved
// identity of the target together with its contents, or found=false when
// the target does not exist. The resolved identity is what dedupes imports:
// two imports resolving to the same identity share one cached body.
//
// The callback is invoked for every import expression reached during
// evaluation, even ones it has resolved before. Only the contents are
// cached, pinned at first resolution, so a callback that returns changing
// contents for the same identity does not make one evaluation observe two
// bodies.
type ImportCallback func(base, rel string) (resolved string, contents string, found bool, err error)

// contentCache pins resolved sources to the contents seen when they were
// first resolved. Sessions are confined to one goroutine, so access is
// unsynchronized.
type contentCache struct {
	entries map[engine.Source]string
}

func newContentCache() contentCache {
	return contentCache{entries: make(map[engine.Source]string)}
}

// put records contents for src unless an earlier resolution already did.
// First resolution wins so one source identity always maps to one body.
func (c *contentCache) put(src engine.Source, contents string) {
	if _, ok := c.entries[src]; !ok {
		c.entries[src] = contents
	}
}

func (c *contentCache) has(src engine.Source) bool {
	_, ok := c.entries[src]
	return ok
}

// Load returns the pinned contents for a previously resolved source. The
// evaluator only loads sources handed out by Resolve, so a miss here is an
// embedding bug, not a user error.
func (c *contentCache) Load(src engine.Source) (string, error) {
	contents, ok := c.entries[src]
	if !ok {
		panic(fmt.Sprintf("vm: import load without prior resolve: %s", src))
	}
	return contents, nil
}

// baseDir returns the directory that relative imports from a source resolve
// against. Virtual sources have no directory.
func baseDir(from engine.Source) (string, error) {
	switch from.Kind {
	case engine.SourceFile:
		return filepath.Dir(from.Path), nil
	case engine.SourceDirectory:
		return from.Path, nil
	case engine.SourceDefault:
		wd, err := os.Getwd()
		if err != nil {
			return "", wrapError(KindImportIO, err, "cannot determine working directory: %v", err)
		}
		return wd, nil
	default:
		return "", newError(KindImportCallback, "cannot resolve relative to a virtual source")
	}
}

// callbackResolver delegates import resolution to a host callback.
type callbackResolver struct {
	contentCache
	callback ImportCallback
	metrics  *telemetry.Metrics
}

func newCallbackResolver(callback ImportCallback, metrics *telemetry.Metrics) *callbackResolver {
	return &callbackResolver{
		contentCache: newContentCache(),
		callback:     callback,
		metrics:      metrics,
	}
}

// Resolve implements engine.Importer.
func (r *callbackResolver) Resolve(from engine.Source, path string) (engine.Source, error) {
	base, err := baseDir(from)
	if err != nil {
		r.metrics.RecordImportResolved("callback", "error")
		return engine.Source{}, err
	}

	resolved, contents, found, err := r.invoke(base, path)
	if err != nil {
		r.metrics.RecordImportResolved("callback", "error")
		return engine.Source{}, wrapError(KindImportCallback, err,
			"import callback failed for %q: %v", path, err)
	}
	if !found {
		target := resolved
		if target == "" {
			target = path
		}
		r.metrics.RecordImportResolved("callback", "not_found")
		return engine.Source{}, newError(KindImportNotFound,
			"import target not found: %s (imported from %s)", target, from)
	}

	src := engine.Source{Kind: engine.SourceFile, Path: resolved}
	if r.has(src) {
		r.metrics.RecordImportCacheHit()
	} else {
		r.put(src, contents)
		r.metrics.RecordImportResolved("callback", "ok")
	}
	return src, nil
}

// invoke shields the session from panicking callbacks.
func (r *callbackResolver) invoke(base, path string) (resolved, contents string, found bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	return r.callback(base, path)
}

// pathResolver locates import targets on the filesystem, trying the
// importing document's directory first and the configured library paths
// after it.
type pathResolver struct {
	contentCache
	libraryPaths []string
	metrics      *telemetry.Metrics
}

func newPathResolver(libraryPaths []string, metrics *telemetry.Metrics) *pathResolver {
	return &pathResolver{
		contentCache: newContentCache(),
		libraryPaths: append([]string(nil), libraryPaths...),
		metrics:      metrics,
	}
}

// Resolve implements engine.Importer.
func (r *pathResolver) Resolve(from engine.Source, path string) (engine.Source, error) {
	var candidates []string
	if filepath.IsAbs(path) {
		candidates = []string{filepath.Clean(path)}
	} else {
		if from.Kind != engine.SourceVirtual {
			base, err := baseDir(from)
			if err != nil {
				r.metrics.RecordImportResolved("path", "io_error")
				return engine.Source{}, err
			}
			candidates = append(candidates, filepath.Join(base, path))
		}
		for _, lib := range r.libraryPaths {
			candidates = append(candidates, filepath.Join(lib, path))
		}
	}

	for _, candidate := range candidates {
		src := engine.Source{Kind: engine.SourceFile, Path: candidate}
		if r.has(src) {
			r.metrics.RecordImportCacheHit()
			return src, nil
		}
		contents, err := os.ReadFile(candidate)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			r.metrics.RecordImportResolved("path", "io_error")
			return engine.Source{}, wrapError(KindImportIO, err, "cannot read %s: %v", candidate, err)
		}
		r.put(src, string(contents))
		r.metrics.RecordImportResolved("path", "ok")
		return src, nil
	}

	r.metrics.RecordImportResolved("path", "not_found")
	return engine.Source{}, newError(KindImportNotFound,
		"import target not found: %s (imported from %s)", path, from)
}

// Package engine implements the Gonnet evaluator: a lazy, object-oriented
// configuration language that manifests to JSON.
//
// # Overview
//
// The engine turns parsed source into a JSON document through a 4-phase
// pipeline:
//
//  1. Parse - Turn source text into an AST (pkg/parser)
//  2. Bind - Build lexical environments and thunks for every binding
//  3. Force - Evaluate thunks on demand, memoizing each result
//  4. Manifest - Walk the final value and render JSON
//
// # Values
//
// Evaluation produces one of seven value kinds:
//
//   - Null, Bool, Number, String: scalar values
//   - Array: a sequence of lazily evaluated elements
//   - Object: ordered fields with visibility and inheritance layers
//   - Function: a closure over its defining environment, or a Go builtin
//
// Numbers are IEEE 754 doubles. Strings index and slice by code point.
//
// # Laziness
//
// Every binding site (local variables, array elements, object fields,
// function arguments) is wrapped in a Thunk. A thunk evaluates at most once;
// forcing an already-forced thunk returns the memoized value. Forcing a thunk
// that is already on the evaluation stack reports infinite recursion, and the
// total forcing depth is bounded by Options.MaxStack.
//
// # Objects and Inheritance
//
// Objects are stacks of layers. The + operator concatenates layers without
// evaluating any field; field lookup scans layers top-down, and super re-runs
// the lookup below the layer that defined the current field. Field visibility
// (:, ::, :::) folds across layers, and object-level asserts run once per
// merged object, on first field access or manifestation.
//
// # Imports
//
// File access goes through the Importer interface:
//
//	type Importer interface {
//	    Resolve(from Source, path string) (Source, error)
//	    Load(source Source) (string, error)
//	}
//
// The engine caches the evaluated result of every import per resolved Source,
// so a file imported from ten places parses and evaluates once per run.
//
// # Error Reporting
//
// Runtime failures are *RuntimeError values carrying a message and a stack
// trace of TraceFrame entries (function calls, field accesses, imports).
// Errors from importers and native callbacks are wrapped, not replaced, so
// callers can classify the cause with errors.As.
//
// # Example Usage
//
//	interp := engine.New(engine.Options{Importer: importer})
//	val, err := interp.EvaluateSnippet("config.gsn", src)
//	if err != nil {
//	    return err
//	}
//	out, err := interp.Manifest(val)
//
// # Thread Safety
//
// An Interp is single-threaded: thunk memoization and the evaluation stack
// are not synchronized. Run concurrent evaluations on separate Interp
// instances.
package engine

// Package vm is the embedding surface of the gonnet evaluator.
//
// It evaluates configuration documents to manifested JSON through two entry
// points, EvaluateFile and EvaluateSnippet, configured per call with
// functional options. Each call builds an isolated session: its own
// interpreter, its own import resolver and content cache, its own parsed
// bindings. Nothing is shared between calls, so concurrent evaluations
// need no coordination.
//
// # Usage
//
// Evaluating a snippet with an external variable:
//
//	out, err := vm.EvaluateSnippet("greeting",
//	    `local who = std.extVar("who"); { greeting: "hi " + who }`,
//	    vm.WithExtVar("who", "world"),
//	)
//
// Evaluating a file with library paths and a bounded trace:
//
//	out, err := vm.EvaluateFile("deploy/app.jsonnet",
//	    vm.WithLibraryPaths("deploy/lib", "vendor/lib"),
//	    vm.WithMaxTrace(40),
//	)
//
// # External Variables and Top-Level Arguments
//
// External variables bind through WithExtVar (plain strings) and
// WithExtCode (code fragments) and are reachable anywhere in the document
// via std.extVar. Top-level arguments bind through WithTLAVar and
// WithTLACode and apply only when the entry document manifests as a
// function: the function is called with the bound arguments, unbound
// optional parameters fall back to their declared defaults, and a required
// parameter with no binding fails before the call with KindTLAMissingParam.
// Code bindings parse at session construction, so a malformed fragment
// fails fast with KindParse, and evaluate lazily on first access.
//
// # Imports
//
// Import resolution is pluggable. By default targets resolve on the
// filesystem: relative to the importing document first, then through the
// directories given to WithLibraryPaths. WithImportCallback replaces
// filesystem resolution entirely with a host callback, which is invoked
// for every import expression reached during evaluation.
//
// Either way, resolved contents are cached by resolved identity for the
// lifetime of the session, first resolution wins. Two imports reaching the
// same identity share one body even when the underlying file or callback
// would answer differently the second time, so a document never observes
// two versions of the same import.
//
// # Native Functions
//
// WithNativeFunction exposes host Go functions to documents through
// std.native. Arguments arrive as host values (nil, bool, float64, string,
// []any, map[string]any) and the return value converts back the same way.
// Registrations are validated up front; a host function that returns an
// error or panics surfaces as a runtime error naming the extension.
//
// # Error Handling
//
// Every failure returns a *Error with a Kind, a message and, when the
// failure happened mid-evaluation, a trace bounded by WithMaxTrace.
// Predicates such as IsImportNotFound and IsParseError classify errors
// without string matching:
//
//	out, err := vm.EvaluateFile(path, opts...)
//	if vm.IsImportNotFound(err) {
//	    // missing dependency, not a broken document
//	}
//
// # Observability
//
// Sessions emit structured logs through the logger given to WithLogger,
// record counters and durations on the collector given to WithMetrics,
// and open one trace span per evaluation under the context given to
// WithContext. All three are optional; without them the session stays
// silent.
package vm

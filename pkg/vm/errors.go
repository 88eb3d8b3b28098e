package vm

import (
	"errors"
	"fmt"

	"github.com/gonnet/gonnet/pkg/engine"
	"github.com/gonnet/gonnet/pkg/parser"
)

// Kind classifies an evaluation failure for programmatic handling.
type Kind string

const (
	// KindParse indicates the entry document, an ext code binding or a
	// top-level code argument failed to parse.
	KindParse Kind = "parse"

	// KindImportNotFound indicates an import target could not be located
	// by the active resolver.
	KindImportNotFound Kind = "import_not_found"

	// KindImportCallback indicates the host import callback failed or
	// panicked, or an import was attempted from a virtual source.
	KindImportCallback Kind = "import_callback"

	// KindImportIO indicates a filesystem read failed for a reason other
	// than the file being absent.
	KindImportIO Kind = "import_io"

	// KindMarshalHostType indicates a host value of an unsupported shape
	// was handed to the evaluator, typically from a native function.
	KindMarshalHostType Kind = "marshal_host_type"

	// KindNativeRegistration indicates a native function was registered
	// with an invalid name or parameter list.
	KindNativeRegistration Kind = "native_registration"

	// KindRuntime indicates the document itself failed: type errors,
	// failed assertions, stack overflow, or a native function that
	// returned an error mid-evaluation.
	KindRuntime Kind = "runtime"

	// KindTLAMissingParam indicates the entry document is a function with
	// a required parameter that no top-level argument binds.
	KindTLAMissingParam Kind = "tla_missing_param"

	// KindConfig indicates the evaluation options themselves are invalid.
	KindConfig Kind = "config"
)

// Error is the single error type returned by evaluation entry points.
// Every failure class surfaces as one of these; nothing is swallowed.
type Error struct {
	// Kind is the failure classification.
	Kind Kind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Trace is the rendered evaluation trace, when one was active.
	// It is bounded by the session's max trace setting.
	Trace string `json:"trace,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Trace != "" {
		return fmt.Sprintf("[%s] %s\n%s", e.Kind, e.Message, e.Trace)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// newError creates a classified error with no cause.
func newError(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// wrapError creates a classified error around an underlying cause.
func wrapError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

// translate converts an evaluator error into a classified *Error.
//
// Runtime errors are inspected first because the evaluator wraps resolver
// failures raised inside import expressions; the importer's classification
// and message are promoted so callers see one bracket prefix, while the
// evaluation trace captured at the import site is kept.
func translate(err error, maxTrace int) error {
	var rt *engine.RuntimeError
	if errors.As(err, &rt) {
		kind := KindRuntime
		msg := rt.Msg
		cause := errors.Unwrap(rt)

		var inner *Error
		var static *parser.StaticError
		switch {
		case errors.As(cause, &inner) && isImportKind(inner.Kind):
			kind = inner.Kind
			msg = inner.Message
			cause = inner.cause
		case errors.As(cause, &static):
			kind = KindParse
		}

		e := &Error{Kind: kind, Message: msg, cause: cause}
		if trace := rt.RenderTrace(maxTrace); trace != "" {
			e.Trace = trace
		}
		return e
	}

	var ve *Error
	if errors.As(err, &ve) {
		return ve
	}

	var static *parser.StaticError
	if errors.As(err, &static) {
		return wrapError(KindParse, static, "%s", static.Error())
	}

	return wrapError(KindRuntime, err, "%s", err.Error())
}

func isImportKind(k Kind) bool {
	return k == KindImportNotFound || k == KindImportCallback || k == KindImportIO
}

// IsParseError returns true if the error is classified as a parse failure.
func IsParseError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindParse
	}
	return false
}

// IsImportNotFound returns true if the error indicates an import target
// that could not be located.
func IsImportNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindImportNotFound
	}
	return false
}

// IsImportCallbackError returns true if the error originated in the host
// import callback.
func IsImportCallbackError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindImportCallback
	}
	return false
}

// IsImportIOError returns true if the error is a filesystem read failure.
func IsImportIOError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindImportIO
	}
	return false
}

// IsMarshalError returns true if the error indicates an unsupported host
// value shape.
func IsMarshalError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindMarshalHostType
	}
	return false
}

// IsNativeRegistrationError returns true if the error indicates an invalid
// native function registration.
func IsNativeRegistrationError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindNativeRegistration
	}
	return false
}

// IsRuntimeError returns true if the error is an evaluation failure.
func IsRuntimeError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindRuntime
	}
	return false
}

// IsMissingTopLevelArgument returns true if the error indicates an unbound
// required top-level argument.
func IsMissingTopLevelArgument(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTLAMissingParam
	}
	return false
}

// IsConfigError returns true if the error indicates invalid evaluation
// options.
func IsConfigError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindConfig
	}
	return false
}

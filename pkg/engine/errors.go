package engine

import (
	"fmt"
	"strings"

	"github.com/gonnet/gonnet/pkg/ast"
)

// TraceFrame is one entry of an evaluation trace: the location of a call,
// field force or import, and a short description of what was running.
type TraceFrame struct {
	Loc  ast.Position
	Desc string
}

func (f TraceFrame) String() string {
	if !f.Loc.IsSet() {
		return f.Desc
	}
	return fmt.Sprintf("%s:%d:%d\t%s", f.Loc.File, f.Loc.Line, f.Loc.Column, f.Desc)
}

// RuntimeError is an evaluation failure carrying the trace that was active
// when it was raised. The trace is ordered outermost first. A wrapped cause
// is preserved for failures that originate outside the evaluator, such as
// import resolution and native callbacks.
type RuntimeError struct {
	Msg   string
	Trace []TraceFrame
	cause error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string { return e.Msg }

// Unwrap returns the underlying cause for error chain inspection.
func (e *RuntimeError) Unwrap() error { return e.cause }

// RenderTrace formats at most maxFrames trace entries, innermost last,
// eliding deeper frames with a marker line. A maxFrames of zero or less
// renders the whole trace.
func (e *RuntimeError) RenderTrace(maxFrames int) string {
	frames := e.Trace
	elided := 0
	if maxFrames > 0 && len(frames) > maxFrames {
		elided = len(frames) - maxFrames
		frames = frames[elided:]
	}
	var b strings.Builder
	if elided > 0 {
		fmt.Fprintf(&b, "\t... %d frame(s) elided ...", elided)
		if len(frames) > 0 {
			b.WriteByte('\n')
		}
	}
	for n, f := range frames {
		b.WriteByte('\t')
		b.WriteString(f.String())
		if n < len(frames)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// errf raises a runtime error at the current trace position.
func (i *Interp) errf(format string, args ...any) error {
	return &RuntimeError{
		Msg:   fmt.Sprintf(format, args...),
		Trace: i.snapshotTrace(),
	}
}

// errWrap raises a runtime error whose cause is an external failure. The
// cause stays reachable through errors.Unwrap for classification by
// embedding layers.
func (i *Interp) errWrap(cause error, format string, args ...any) error {
	return &RuntimeError{
		Msg:   fmt.Sprintf(format, args...),
		Trace: i.snapshotTrace(),
		cause: cause,
	}
}

func (i *Interp) snapshotTrace() []TraceFrame {
	if len(i.stack) == 0 {
		return nil
	}
	out := make([]TraceFrame, len(i.stack))
	copy(out, i.stack)
	return out
}

package vm

import (
	"fmt"

	"github.com/gonnet/gonnet/pkg/engine"
)

// NativeFunction exposes a host function to evaluated documents through
// std.native. Arguments arrive fully converted to host values and the
// returned value is converted back before the evaluator sees it.
type NativeFunction struct {
	// Name is the key documents pass to std.native.
	Name string

	// Params names the function's parameters in order. Every parameter is
	// required; the evaluator enforces exact arity at the call site.
	Params []string

	// Func is the host implementation. It receives one argument per
	// declared parameter.
	Func func(args []any) (any, error)
}

// validate rejects registrations that could never be called coherently.
func (nf NativeFunction) validate() error {
	if nf.Name == "" {
		return newError(KindNativeRegistration, "native function has no name")
	}
	if nf.Func == nil {
		return newError(KindNativeRegistration, "native function %s has no implementation", nf.Name)
	}
	seen := make(map[string]struct{}, len(nf.Params))
	for _, p := range nf.Params {
		if p == "" {
			return newError(KindNativeRegistration, "native function %s has an empty parameter name", nf.Name)
		}
		if _, ok := seen[p]; ok {
			return newError(KindNativeRegistration, "native function %s has duplicate parameter %s", nf.Name, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// nativeImpl adapts a host function to the evaluator's builtin contract.
// Host failures and unconvertible return values both surface as runtime
// errors naming the extension; argument conversion failures propagate
// unchanged because they are evaluation errors in their own right.
func (s *session) nativeImpl(nf NativeFunction) engine.BuiltinImpl {
	return func(i *engine.Interp, args []engine.Value) (engine.Value, error) {
		hostArgs := make([]any, len(args))
		for idx, arg := range args {
			hv, err := toHostValue(i, arg)
			if err != nil {
				return nil, err
			}
			hostArgs[idx] = hv
		}

		result, err := invokeNative(nf, hostArgs)
		if err != nil {
			s.metrics.RecordNativeCall(nf.Name, "error")
			return nil, fmt.Errorf("error invoking native extension %s: %w", nf.Name, err)
		}

		ev, err := toEngineValue(result)
		if err != nil {
			s.metrics.RecordNativeCall(nf.Name, "error")
			return nil, fmt.Errorf("error invoking native extension %s: %v", nf.Name, err)
		}
		s.metrics.RecordNativeCall(nf.Name, "ok")
		return ev, nil
	}
}

// invokeNative shields the evaluator from panicking host code.
func invokeNative(nf NativeFunction, args []any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	return nf.Func(args)
}

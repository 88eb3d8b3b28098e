package engine

import "github.com/gonnet/gonnet/pkg/ast"

// Value is an evaluated program value. The concrete types are Null, Bool,
// Number, String, *Array, *Object and *Function; nothing else implements it.
type Value interface {
	// TypeName returns the value's type as user-visible text: "null",
	// "boolean", "number", "string", "array", "object" or "function".
	TypeName() string
}

// Null is the null value.
type Null struct{}

// Bool is a boolean value.
type Bool bool

// Number is a numeric value. All arithmetic is IEEE 754 double precision.
type Number float64

// String is a string value.
type String string

// Array is an ordered sequence of lazily evaluated elements.
type Array struct {
	Elements []*Thunk
}

func (Null) TypeName() string      { return "null" }
func (Bool) TypeName() string      { return "boolean" }
func (Number) TypeName() string    { return "number" }
func (String) TypeName() string    { return "string" }
func (*Array) TypeName() string    { return "array" }
func (*Object) TypeName() string   { return "object" }
func (*Function) TypeName() string { return "function" }

// MakeArray builds an array value from already constructed element thunks.
func MakeArray(elements []*Thunk) *Array {
	return &Array{Elements: elements}
}

// FuncParam describes one parameter of a function value. Required is false
// when the parameter carries a default.
type FuncParam struct {
	Name     string
	Required bool
}

// BuiltinImpl is the implementation of a builtin function. Arguments arrive
// fully forced, in declared parameter order.
type BuiltinImpl func(i *Interp, args []Value) (Value, error)

// BuiltinParam declares one parameter of a builtin function. A nil Default
// marks the parameter as required.
type BuiltinParam struct {
	Name    string
	Default Value
}

// Function is a callable value, either a user function closing over its
// defining environment or a builtin backed by Go code.
type Function struct {
	Name string

	// User function fields.
	params []ast.Param
	body   ast.Expr
	env    *Env

	// Builtin fields.
	builtinParams []BuiltinParam
	builtin       BuiltinImpl
}

// Parameters describes the function's parameters in declaration order.
func (f *Function) Parameters() []FuncParam {
	if f.builtin != nil {
		out := make([]FuncParam, len(f.builtinParams))
		for i, p := range f.builtinParams {
			out[i] = FuncParam{Name: p.Name, Required: p.Default == nil}
		}
		return out
	}
	out := make([]FuncParam, len(f.params))
	for i, p := range f.params {
		out[i] = FuncParam{Name: p.Name, Required: p.Default == nil}
	}
	return out
}

// NewBuiltin wraps a Go implementation as a callable function value.
func NewBuiltin(name string, params []BuiltinParam, impl BuiltinImpl) *Function {
	return &Function{Name: name, builtinParams: params, builtin: impl}
}

const (
	thunkUnforced = iota
	thunkForcing
	thunkDone
)

// Thunk is a lazily evaluated value. Forcing is memoized: the underlying
// expression or compute function runs at most once, and subsequent forces
// return the recorded value or error.
type Thunk struct {
	expr    ast.Expr
	env     *Env
	compute func(i *Interp) (Value, error)

	state int
	val   Value
	err   error
}

// ValueThunk wraps an already computed value.
func ValueThunk(v Value) *Thunk {
	return &Thunk{state: thunkDone, val: v}
}

func exprThunk(expr ast.Expr, env *Env) *Thunk {
	return &Thunk{expr: expr, env: env}
}

func computeThunk(fn func(i *Interp) (Value, error)) *Thunk {
	return &Thunk{compute: fn}
}

// Force evaluates the thunk if needed and returns its value.
func (t *Thunk) Force(i *Interp) (Value, error) {
	switch t.state {
	case thunkDone:
		return t.val, t.err
	case thunkForcing:
		return nil, i.errf("infinite recursion detected")
	}
	t.state = thunkForcing
	if err := i.push(); err != nil {
		t.state = thunkUnforced
		return nil, err
	}
	var v Value
	var err error
	if t.compute != nil {
		v, err = t.compute(i)
	} else {
		v, err = i.evalExpr(t.expr, t.env)
	}
	i.pop()
	t.state = thunkDone
	t.val, t.err = v, err
	t.expr, t.env, t.compute = nil, nil, nil
	return v, err
}

package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gonnet/gonnet/pkg/ast"
	"github.com/gonnet/gonnet/pkg/parser"
)

// DefaultMaxStack bounds evaluation recursion when no explicit limit is
// configured.
const DefaultMaxStack = 500

// Options configures an interpreter.
type Options struct {
	// MaxStack bounds recursion depth. Zero or negative selects
	// DefaultMaxStack.
	MaxStack int

	// PreserveOrder keeps object fields in definition order during
	// manifestation and field enumeration instead of sorting them.
	PreserveOrder bool

	// Importer resolves and loads imported sources. Programs that never
	// import may leave it nil.
	Importer Importer

	// Logger receives std.trace output. Nil discards it.
	Logger *zerolog.Logger
}

// Interp evaluates parsed programs. An interpreter is single threaded and
// carries per-run state: the import cache, external variables, native
// functions and the active trace. It is not safe for concurrent use.
type Interp struct {
	importer      Importer
	maxStack      int
	preserveOrder bool
	logger        zerolog.Logger

	stdThunk *Thunk
	ext      map[string]*Thunk
	natives  map[string]*Function
	imports  map[Source]*Thunk

	depth int
	stack []TraceFrame
}

// New builds an interpreter from options.
func New(opts Options) *Interp {
	i := &Interp{
		importer:      opts.Importer,
		maxStack:      opts.MaxStack,
		preserveOrder: opts.PreserveOrder,
		logger:        zerolog.Nop(),
		ext:           make(map[string]*Thunk),
		natives:       make(map[string]*Function),
		imports:       make(map[Source]*Thunk),
	}
	if i.maxStack <= 0 {
		i.maxStack = DefaultMaxStack
	}
	if opts.Logger != nil {
		i.logger = *opts.Logger
	}
	i.stdThunk = ValueThunk(i.buildStd())
	return i
}

// BindExtVar binds an external variable reachable through std.extVar.
func (i *Interp) BindExtVar(name string, value *Thunk) {
	i.ext[name] = value
}

// RegisterNative registers a host function reachable through std.native.
// Every parameter is required, so the call arity is exactly len(params).
func (i *Interp) RegisterNative(name string, params []string, impl BuiltinImpl) {
	bp := make([]BuiltinParam, len(params))
	for n, p := range params {
		bp[n] = BuiltinParam{Name: p}
	}
	i.natives[name] = NewBuiltin(name, bp, impl)
}

// CodeThunk wraps a parsed expression for later evaluation in the root
// scope. Externally supplied code bindings use it.
func (i *Interp) CodeThunk(expr ast.Expr) *Thunk {
	return exprThunk(expr, i.rootEnv(Source{Kind: SourceDefault}))
}

// EvaluateFile resolves path against the default origin, loads it and
// evaluates it.
func (i *Interp) EvaluateFile(path string) (Value, error) {
	if i.importer == nil {
		return nil, i.errf("no importer configured")
	}
	src, err := i.importer.Resolve(Source{Kind: SourceDefault}, path)
	if err != nil {
		return nil, err
	}
	content, err := i.importer.Load(src)
	if err != nil {
		return nil, err
	}
	expr, err := parser.Parse(src.String(), content)
	if err != nil {
		return nil, err
	}
	return i.evalExpr(expr, i.rootEnv(src))
}

// EvaluateSnippet evaluates source text under a virtual origin. Imports
// reachable from the snippet still go through the configured importer.
func (i *Interp) EvaluateSnippet(name, source string) (Value, error) {
	expr, err := parser.Parse(name, source)
	if err != nil {
		return nil, err
	}
	return i.evalExpr(expr, i.rootEnv(Source{Kind: SourceVirtual, Path: name}))
}

// NamedArg is a named argument for Call.
type NamedArg struct {
	Name  string
	Value *Thunk
}

// Call invokes a function value with prebuilt argument thunks.
func (i *Interp) Call(fn *Function, positional []*Thunk, named []NamedArg) (Value, error) {
	return i.callFunction(fn, positional, named, ast.Position{})
}

func (i *Interp) rootEnv(src Source) *Env {
	return newEnv(src, map[string]*Thunk{"std": i.stdThunk})
}

func (i *Interp) push() error {
	i.depth++
	if i.depth > i.maxStack {
		i.depth--
		return &RuntimeError{Msg: "max stack frames exceeded.", Trace: i.snapshotTrace()}
	}
	return nil
}

func (i *Interp) pop() {
	i.depth--
}

func (i *Interp) pushFrame(loc ast.Position, desc string) {
	i.stack = append(i.stack, TraceFrame{Loc: loc, Desc: desc})
}

func (i *Interp) popFrame() {
	i.stack = i.stack[:len(i.stack)-1]
}

// callLoc is the location of the innermost active frame. Builtins use it
// to attribute their output.
func (i *Interp) callLoc() ast.Position {
	if len(i.stack) == 0 {
		return ast.Position{}
	}
	return i.stack[len(i.stack)-1].Loc
}

func (i *Interp) bindThunk(bind ast.Bind, env *Env) *Thunk {
	if bind.Params != nil {
		fn := &Function{Name: bind.Name, params: bind.Params, body: bind.Value, env: env}
		return ValueThunk(fn)
	}
	return exprThunk(bind.Value, env)
}

func (i *Interp) evalExpr(expr ast.Expr, env *Env) (Value, error) {
	switch n := expr.(type) {
	case *ast.Null:
		return Null{}, nil
	case *ast.True:
		return Bool(true), nil
	case *ast.False:
		return Bool(false), nil
	case *ast.Number:
		return Number(n.Value), nil
	case *ast.String:
		return String(n.Value), nil

	case *ast.Var:
		t, ok := env.lookup(n.Name)
		if !ok {
			return nil, i.errf("unknown variable: %s", n.Name)
		}
		return t.Force(i)

	case *ast.Self:
		if env.sb == nil {
			return nil, i.errf("self is only valid inside an object")
		}
		return env.sb.self, nil

	case *ast.Dollar:
		t, ok := env.lookup("$")
		if !ok {
			return nil, i.errf("$ is only valid inside an object")
		}
		return t.Force(i)

	case *ast.Local:
		vars := make(map[string]*Thunk, len(n.Binds))
		inner := env.child(vars)
		for _, bind := range n.Binds {
			vars[bind.Name] = i.bindThunk(bind, inner)
		}
		return i.evalExpr(n.Body, inner)

	case *ast.Function:
		return &Function{params: n.Params, body: n.Body, env: env}, nil

	case *ast.Apply:
		return i.evalApply(n, env)

	case *ast.Index:
		return i.evalIndex(n, env)

	case *ast.SuperIndex:
		return i.evalSuperIndex(n, env)

	case *ast.InSuper:
		return i.evalInSuper(n, env)

	case *ast.Binary:
		return i.evalBinary(n, env)

	case *ast.Unary:
		return i.evalUnary(n, env)

	case *ast.Conditional:
		cond, err := i.evalExpr(n.Cond, env)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(Bool)
		if !ok {
			return nil, i.errf("if condition must be a boolean, got %s", cond.TypeName())
		}
		if bool(b) {
			return i.evalExpr(n.Then, env)
		}
		if n.Else == nil {
			return Null{}, nil
		}
		return i.evalExpr(n.Else, env)

	case *ast.Error:
		v, err := i.evalExpr(n.Expr, env)
		if err != nil {
			return nil, err
		}
		text, err := i.toStringValue(v)
		if err != nil {
			return nil, err
		}
		return nil, i.errf("%s", text)

	case *ast.Assert:
		cond, err := i.evalExpr(n.Cond, env)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(Bool)
		if !ok {
			return nil, i.errf("assert condition must be a boolean, got %s", cond.TypeName())
		}
		if !bool(b) {
			if n.Message == nil {
				return nil, i.errf("assertion failed")
			}
			msg, err := i.evalExpr(n.Message, env)
			if err != nil {
				return nil, err
			}
			text, err := i.toStringValue(msg)
			if err != nil {
				return nil, err
			}
			return nil, i.errf("assertion failed: %s", text)
		}
		return i.evalExpr(n.Rest, env)

	case *ast.Import:
		return i.evalImport(n, env)

	case *ast.ImportStr:
		return i.evalImportStr(n, env)

	case *ast.Array:
		elems := make([]*Thunk, len(n.Elements))
		for idx, e := range n.Elements {
			elems[idx] = exprThunk(e, env)
		}
		return MakeArray(elems), nil

	case *ast.ArrayComp:
		var elems []*Thunk
		err := i.forEachBinding(n.Specs, env, func(loopEnv *Env) error {
			elems = append(elems, exprThunk(n.Body, loopEnv))
			return nil
		})
		if err != nil {
			return nil, err
		}
		return MakeArray(elems), nil

	case *ast.Object:
		return i.evalObjectLiteral(n, env)

	case *ast.ObjectComp:
		return i.evalObjectComp(n, env)
	}
	return nil, i.errf("internal: unhandled expression %T", expr)
}

func (i *Interp) evalApply(n *ast.Apply, env *Env) (Value, error) {
	target, err := i.evalExpr(n.Target, env)
	if err != nil {
		return nil, err
	}
	fn, ok := target.(*Function)
	if !ok {
		return nil, i.errf("cannot call value of type %s", target.TypeName())
	}
	pos := make([]*Thunk, len(n.Args.Positional))
	for idx, e := range n.Args.Positional {
		pos[idx] = exprThunk(e, env)
	}
	named := make([]NamedArg, len(n.Args.Named))
	for idx, arg := range n.Args.Named {
		named[idx] = NamedArg{Name: arg.Name, Value: exprThunk(arg.Value, env)}
	}
	return i.callFunction(fn, pos, named, n.Pos())
}

func (i *Interp) callFunction(fn *Function, pos []*Thunk, named []NamedArg, loc ast.Position) (Value, error) {
	if err := i.push(); err != nil {
		return nil, err
	}
	defer i.pop()
	desc := "function <anonymous>"
	if fn.Name != "" {
		desc = "function <" + fn.Name + ">"
	}
	i.pushFrame(loc, desc)
	defer i.popFrame()

	if fn.builtin != nil {
		return i.callBuiltin(fn, pos, named)
	}

	params := fn.params
	if len(pos) > len(params) {
		return nil, i.errf("function expects at most %d positional arguments, got %d", len(params), len(pos))
	}
	bound := make([]*Thunk, len(params))
	copy(bound, pos)
	for _, na := range named {
		idx := -1
		for j, p := range params {
			if p.Name == na.Name {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, i.errf("function has no parameter %s", na.Name)
		}
		if bound[idx] != nil {
			return nil, i.errf("duplicate argument %s", na.Name)
		}
		bound[idx] = na.Value
	}

	vars := make(map[string]*Thunk, len(params))
	callEnv := fn.env.child(vars)
	for j, p := range params {
		t := bound[j]
		if t == nil {
			if p.Default == nil {
				return nil, i.errf("function parameter %s is not bound", p.Name)
			}
			// Defaults evaluate in the call scope so they can reference
			// other parameters.
			t = exprThunk(p.Default, callEnv)
		}
		vars[p.Name] = t
	}
	return i.evalExpr(fn.body, callEnv)
}

func (i *Interp) callBuiltin(fn *Function, pos []*Thunk, named []NamedArg) (Value, error) {
	params := fn.builtinParams
	if len(pos) > len(params) {
		return nil, i.errf("function expects at most %d positional arguments, got %d", len(params), len(pos))
	}
	bound := make([]*Thunk, len(params))
	copy(bound, pos)
	for _, na := range named {
		idx := -1
		for j, p := range params {
			if p.Name == na.Name {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, i.errf("function has no parameter %s", na.Name)
		}
		if bound[idx] != nil {
			return nil, i.errf("duplicate argument %s", na.Name)
		}
		bound[idx] = na.Value
	}

	args := make([]Value, len(params))
	for j, p := range params {
		if bound[j] == nil {
			if p.Default == nil {
				return nil, i.errf("function parameter %s is not bound", p.Name)
			}
			args[j] = p.Default
			continue
		}
		v, err := bound[j].Force(i)
		if err != nil {
			return nil, err
		}
		args[j] = v
	}
	v, err := fn.builtin(i, args)
	if err != nil {
		if _, ok := err.(*RuntimeError); ok {
			return nil, err
		}
		return nil, i.errWrap(err, "%s", err.Error())
	}
	return v, nil
}

func (i *Interp) evalIndex(n *ast.Index, env *Env) (Value, error) {
	target, err := i.evalExpr(n.Target, env)
	if err != nil {
		return nil, err
	}
	key, err := i.evalExpr(n.Key, env)
	if err != nil {
		return nil, err
	}
	switch tv := target.(type) {
	case *Object:
		name, ok := key.(String)
		if !ok {
			return nil, i.errf("object index must be a string, got %s", key.TypeName())
		}
		t, err := i.objectField(tv, string(name))
		if err != nil {
			return nil, err
		}
		return t.Force(i)
	case *Array:
		num, ok := key.(Number)
		if !ok {
			return nil, i.errf("array index must be a number, got %s", key.TypeName())
		}
		idx, err := i.indexNumber(num)
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(tv.Elements) {
			return nil, i.errf("array index %d out of bounds for array of length %d", idx, len(tv.Elements))
		}
		return tv.Elements[idx].Force(i)
	case String:
		num, ok := key.(Number)
		if !ok {
			return nil, i.errf("string index must be a number, got %s", key.TypeName())
		}
		idx, err := i.indexNumber(num)
		if err != nil {
			return nil, err
		}
		runes := []rune(string(tv))
		if idx < 0 || idx >= len(runes) {
			return nil, i.errf("string index %d out of bounds for string of length %d", idx, len(runes))
		}
		return String(runes[idx]), nil
	}
	return nil, i.errf("cannot index %s with %s", target.TypeName(), key.TypeName())
}

func (i *Interp) indexNumber(num Number) (int, error) {
	f := float64(num)
	if f != math.Trunc(f) {
		return 0, i.errf("index must be an integer, got %v", f)
	}
	return int(f), nil
}

func (i *Interp) evalSuperIndex(n *ast.SuperIndex, env *Env) (Value, error) {
	sb := env.sb
	if sb == nil || sb.superIdx == 0 {
		return nil, i.errf("attempt to use super when there is no base object")
	}
	key, err := i.evalExpr(n.Key, env)
	if err != nil {
		return nil, err
	}
	name, ok := key.(String)
	if !ok {
		return nil, i.errf("object index must be a string, got %s", key.TypeName())
	}
	if err := i.runAsserts(sb.self); err != nil {
		return nil, err
	}
	t, found := i.lookupField(sb.self, string(name), sb.superIdx)
	if !found {
		return nil, i.errf("field does not exist: %s", string(name))
	}
	return t.Force(i)
}

func (i *Interp) evalInSuper(n *ast.InSuper, env *Env) (Value, error) {
	sb := env.sb
	if sb == nil {
		return nil, i.errf("attempt to use super when there is no base object")
	}
	key, err := i.evalExpr(n.Key, env)
	if err != nil {
		return nil, err
	}
	name, ok := key.(String)
	if !ok {
		return nil, i.errf("operator in requires a string on the left, got %s", key.TypeName())
	}
	for idx := 0; idx < sb.superIdx; idx++ {
		if _, found := sb.self.layers[idx].fields[string(name)]; found {
			return Bool(true), nil
		}
	}
	return Bool(false), nil
}

func (i *Interp) evalBinary(n *ast.Binary, env *Env) (Value, error) {
	switch n.Op {
	case ast.BopAnd, ast.BopOr:
		left, err := i.evalExpr(n.Left, env)
		if err != nil {
			return nil, err
		}
		lb, ok := left.(Bool)
		if !ok {
			return nil, i.errf("operator %s requires boolean operands, got %s", n.Op, left.TypeName())
		}
		if n.Op == ast.BopAnd && !bool(lb) {
			return Bool(false), nil
		}
		if n.Op == ast.BopOr && bool(lb) {
			return Bool(true), nil
		}
		right, err := i.evalExpr(n.Right, env)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(Bool)
		if !ok {
			return nil, i.errf("operator %s requires boolean operands, got %s", n.Op, right.TypeName())
		}
		return rb, nil

	case ast.BopIn:
		left, err := i.evalExpr(n.Left, env)
		if err != nil {
			return nil, err
		}
		name, ok := left.(String)
		if !ok {
			return nil, i.errf("operator in requires a string on the left, got %s", left.TypeName())
		}
		right, err := i.evalExpr(n.Right, env)
		if err != nil {
			return nil, err
		}
		obj, ok := right.(*Object)
		if !ok {
			return nil, i.errf("operator in requires an object on the right, got %s", right.TypeName())
		}
		return Bool(obj.HasField(string(name), true)), nil
	}

	left, err := i.evalExpr(n.Left, env)
	if err != nil {
		return nil, err
	}
	right, err := i.evalExpr(n.Right, env)
	if err != nil {
		return nil, err
	}
	return i.binaryOp(n.Op, left, right)
}

func (i *Interp) binaryOp(op ast.BinaryOp, l, r Value) (Value, error) {
	switch op {
	case ast.BopAdd:
		return i.valueAdd(l, r)

	case ast.BopSub, ast.BopMult, ast.BopDiv:
		ln, lok := l.(Number)
		rn, rok := r.(Number)
		if !lok || !rok {
			return nil, i.errf("operator %s cannot be applied to %s and %s", op, l.TypeName(), r.TypeName())
		}
		switch op {
		case ast.BopSub:
			return Number(float64(ln) - float64(rn)), nil
		case ast.BopMult:
			return Number(float64(ln) * float64(rn)), nil
		default:
			if float64(rn) == 0 {
				return nil, i.errf("division by zero")
			}
			return Number(float64(ln) / float64(rn)), nil
		}

	case ast.BopMod:
		if ls, ok := l.(String); ok {
			out, err := i.formatValues(string(ls), r)
			if err != nil {
				return nil, err
			}
			return String(out), nil
		}
		ln, lok := l.(Number)
		rn, rok := r.(Number)
		if !lok || !rok {
			return nil, i.errf("operator %% cannot be applied to %s and %s", l.TypeName(), r.TypeName())
		}
		if float64(rn) == 0 {
			return nil, i.errf("division by zero")
		}
		return Number(math.Mod(float64(ln), float64(rn))), nil

	case ast.BopShiftL, ast.BopShiftR, ast.BopBitAnd, ast.BopBitOr, ast.BopBitXor:
		ln, err := i.toInteger(l, op.String())
		if err != nil {
			return nil, err
		}
		rn, err := i.toInteger(r, op.String())
		if err != nil {
			return nil, err
		}
		switch op {
		case ast.BopShiftL:
			return Number(ln << (uint64(rn) & 63)), nil
		case ast.BopShiftR:
			return Number(ln >> (uint64(rn) & 63)), nil
		case ast.BopBitAnd:
			return Number(ln & rn), nil
		case ast.BopBitOr:
			return Number(ln | rn), nil
		default:
			return Number(ln ^ rn), nil
		}

	case ast.BopLt, ast.BopLte, ast.BopGt, ast.BopGte:
		c, err := i.compare(l, r)
		if err != nil {
			return nil, err
		}
		switch op {
		case ast.BopLt:
			return Bool(c < 0), nil
		case ast.BopLte:
			return Bool(c <= 0), nil
		case ast.BopGt:
			return Bool(c > 0), nil
		default:
			return Bool(c >= 0), nil
		}

	case ast.BopEq, ast.BopNeq:
		eq, err := i.equals(l, r)
		if err != nil {
			return nil, err
		}
		if op == ast.BopNeq {
			return Bool(!eq), nil
		}
		return Bool(eq), nil
	}
	return nil, i.errf("internal: unhandled binary operator %s", op)
}

// valueAdd implements the overloaded + operator: numeric addition, string
// concatenation with coercion, array concatenation and object inheritance.
func (i *Interp) valueAdd(l, r Value) (Value, error) {
	if ls, ok := l.(String); ok {
		rs, err := i.toStringValue(r)
		if err != nil {
			return nil, err
		}
		return String(string(ls) + rs), nil
	}
	if rs, ok := r.(String); ok {
		ls, err := i.toStringValue(l)
		if err != nil {
			return nil, err
		}
		return String(ls + string(rs)), nil
	}
	switch lv := l.(type) {
	case Number:
		if rv, ok := r.(Number); ok {
			return Number(float64(lv) + float64(rv)), nil
		}
	case *Array:
		if rv, ok := r.(*Array); ok {
			elems := make([]*Thunk, 0, len(lv.Elements)+len(rv.Elements))
			elems = append(elems, lv.Elements...)
			elems = append(elems, rv.Elements...)
			return MakeArray(elems), nil
		}
	case *Object:
		if rv, ok := r.(*Object); ok {
			return mergeObjects(lv, rv), nil
		}
	}
	return nil, i.errf("operator + cannot be applied to %s and %s", l.TypeName(), r.TypeName())
}

func (i *Interp) evalUnary(n *ast.Unary, env *Env) (Value, error) {
	v, err := i.evalExpr(n.Expr, env)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.UopNot:
		b, ok := v.(Bool)
		if !ok {
			return nil, i.errf("operator ! cannot be applied to %s", v.TypeName())
		}
		return Bool(!bool(b)), nil
	case ast.UopBitNeg:
		iv, err := i.toInteger(v, "~")
		if err != nil {
			return nil, err
		}
		return Number(^iv), nil
	case ast.UopPlus:
		if num, ok := v.(Number); ok {
			return num, nil
		}
	case ast.UopMinus:
		if num, ok := v.(Number); ok {
			return Number(-float64(num)), nil
		}
	}
	return nil, i.errf("operator %s cannot be applied to %s", n.Op, v.TypeName())
}

func (i *Interp) toInteger(v Value, op string) (int64, error) {
	num, ok := v.(Number)
	if !ok {
		return 0, i.errf("operator %s cannot be applied to %s", op, v.TypeName())
	}
	return int64(float64(num)), nil
}

// compare orders two values. Numbers, strings and arrays are comparable;
// arrays compare lexicographically with forced elements.
func (i *Interp) compare(a, b Value) (int, error) {
	switch av := a.(type) {
	case Number:
		if bv, ok := b.(Number); ok {
			switch {
			case float64(av) < float64(bv):
				return -1, nil
			case float64(av) > float64(bv):
				return 1, nil
			}
			return 0, nil
		}
	case String:
		if bv, ok := b.(String); ok {
			return strings.Compare(string(av), string(bv)), nil
		}
	case *Array:
		if bv, ok := b.(*Array); ok {
			for idx := 0; idx < len(av.Elements) && idx < len(bv.Elements); idx++ {
				ae, err := av.Elements[idx].Force(i)
				if err != nil {
					return 0, err
				}
				be, err := bv.Elements[idx].Force(i)
				if err != nil {
					return 0, err
				}
				c, err := i.compare(ae, be)
				if err != nil {
					return 0, err
				}
				if c != 0 {
					return c, nil
				}
			}
			switch {
			case len(av.Elements) < len(bv.Elements):
				return -1, nil
			case len(av.Elements) > len(bv.Elements):
				return 1, nil
			}
			return 0, nil
		}
	}
	return 0, i.errf("cannot compare %s with %s", a.TypeName(), b.TypeName())
}

// equals is deep structural equality. Values of different types are
// unequal; comparing functions is an error.
func (i *Interp) equals(a, b Value) (bool, error) {
	if _, ok := a.(*Function); ok {
		return false, i.errf("cannot test equality of function values")
	}
	if _, ok := b.(*Function); ok {
		return false, i.errf("cannot test equality of function values")
	}
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok, nil
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv, nil
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv, nil
	case String:
		bv, ok := b.(String)
		return ok && av == bv, nil
	case *Array:
		bv, ok := b.(*Array)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false, nil
		}
		for idx := range av.Elements {
			ae, err := av.Elements[idx].Force(i)
			if err != nil {
				return false, err
			}
			be, err := bv.Elements[idx].Force(i)
			if err != nil {
				return false, err
			}
			eq, err := i.equals(ae, be)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case *Object:
		bv, ok := b.(*Object)
		if !ok {
			return false, nil
		}
		an := av.FieldNames(i, false)
		bn := bv.FieldNames(i, false)
		if len(an) != len(bn) {
			return false, nil
		}
		sort.Strings(an)
		sort.Strings(bn)
		for idx := range an {
			if an[idx] != bn[idx] {
				return false, nil
			}
		}
		for _, name := range an {
			afv, err := av.Field(i, name)
			if err != nil {
				return false, err
			}
			bfv, err := bv.Field(i, name)
			if err != nil {
				return false, err
			}
			eq, err := i.equals(afv, bfv)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	}
	return false, i.errf("internal: unhandled value type %s", a.TypeName())
}

// toStringValue renders a value the way string coercion does: strings pass
// through, everything else manifests on one line.
func (i *Interp) toStringValue(v Value) (string, error) {
	if s, ok := v.(String); ok {
		return string(s), nil
	}
	return i.manifestCompact(v)
}

func (i *Interp) evalImport(n *ast.Import, env *Env) (Value, error) {
	if i.importer == nil {
		return nil, i.errf("no importer configured")
	}
	src, err := i.importer.Resolve(env.source, n.Path)
	if err != nil {
		return nil, i.errWrap(err, "%s", err.Error())
	}
	t, ok := i.imports[src]
	if !ok {
		t = computeThunk(func(i *Interp) (Value, error) {
			content, err := i.importer.Load(src)
			if err != nil {
				return nil, i.errWrap(err, "%s", err.Error())
			}
			expr, err := parser.Parse(src.String(), content)
			if err != nil {
				return nil, i.errWrap(err, "%s", err.Error())
			}
			return i.evalExpr(expr, i.rootEnv(src))
		})
		i.imports[src] = t
	}
	i.pushFrame(n.Pos(), fmt.Sprintf("import %q", n.Path))
	defer i.popFrame()
	return t.Force(i)
}

func (i *Interp) evalImportStr(n *ast.ImportStr, env *Env) (Value, error) {
	if i.importer == nil {
		return nil, i.errf("no importer configured")
	}
	src, err := i.importer.Resolve(env.source, n.Path)
	if err != nil {
		return nil, i.errWrap(err, "%s", err.Error())
	}
	content, err := i.importer.Load(src)
	if err != nil {
		return nil, i.errWrap(err, "%s", err.Error())
	}
	return String(content), nil
}

func (i *Interp) forEachBinding(specs []ast.ForSpec, env *Env, fn func(*Env) error) error {
	if len(specs) == 0 {
		return fn(env)
	}
	spec := specs[0]
	src, err := i.evalExpr(spec.Expr, env)
	if err != nil {
		return err
	}
	arr, ok := src.(*Array)
	if !ok {
		return i.errf("comprehension can only iterate over an array, got %s", src.TypeName())
	}
	for _, elem := range arr.Elements {
		loopEnv := env.child(map[string]*Thunk{spec.VarName: elem})
		include := true
		for _, cond := range spec.Conds {
			cv, err := i.evalExpr(cond, loopEnv)
			if err != nil {
				return err
			}
			b, ok := cv.(Bool)
			if !ok {
				return i.errf("comprehension condition must be a boolean, got %s", cv.TypeName())
			}
			if !bool(b) {
				include = false
				break
			}
		}
		if !include {
			continue
		}
		if err := i.forEachBinding(specs[1:], loopEnv, fn); err != nil {
			return err
		}
	}
	return nil
}

func (i *Interp) evalObjectLiteral(n *ast.Object, env *Env) (Value, error) {
	layer := &objectLayer{
		fields:     make(map[string]field, len(n.Fields)),
		env:        env,
		bindDollar: env.sb == nil,
		locals:     n.Locals,
		asserts:    n.Asserts,
	}
	for _, f := range n.Fields {
		name, skip, err := i.fieldName(f, env)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		if _, dup := layer.fields[name]; dup {
			return nil, i.errf("duplicate field name: %q", name)
		}
		layer.fields[name] = field{
			name:       name,
			loc:        f.Loc,
			body:       f.Body,
			visibility: f.Visibility,
			plusSuper:  f.PlusSuper,
		}
		layer.order = append(layer.order, name)
	}
	return &Object{layers: []*objectLayer{layer}}, nil
}

// fieldName resolves a field's name, evaluating computed names eagerly. A
// null computed name drops the field.
func (i *Interp) fieldName(f ast.Field, env *Env) (string, bool, error) {
	if f.NameExpr == nil {
		return f.Name, false, nil
	}
	v, err := i.evalExpr(f.NameExpr, env)
	if err != nil {
		return "", false, err
	}
	switch name := v.(type) {
	case String:
		return string(name), false, nil
	case Null:
		return "", true, nil
	}
	return "", false, i.errf("field name must be a string, got %s", v.TypeName())
}

func (i *Interp) evalObjectComp(n *ast.ObjectComp, env *Env) (Value, error) {
	layer := &objectLayer{
		fields:     make(map[string]field),
		env:        env,
		bindDollar: env.sb == nil,
		locals:     n.Locals,
	}
	err := i.forEachBinding(n.Specs, env, func(loopEnv *Env) error {
		kv, err := i.evalExpr(n.Key, loopEnv)
		if err != nil {
			return err
		}
		switch key := kv.(type) {
		case String:
			name := string(key)
			if _, dup := layer.fields[name]; dup {
				return i.errf("duplicate field name: %q", name)
			}
			layer.fields[name] = field{
				name:       name,
				loc:        n.Pos(),
				body:       n.Value,
				env:        loopEnv,
				visibility: ast.VisibleNormal,
			}
			layer.order = append(layer.order, name)
			return nil
		case Null:
			return nil
		}
		return i.errf("field name must be a string, got %s", kv.TypeName())
	})
	if err != nil {
		return nil, err
	}
	return &Object{layers: []*objectLayer{layer}}, nil
}

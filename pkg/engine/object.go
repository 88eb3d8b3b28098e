package engine

import (
	"sort"

	"github.com/gonnet/gonnet/pkg/ast"
)

// field is one member of an object layer. Exactly one of body and value is
// set: body is program text evaluated lazily in the layer's scope, value is
// a prebuilt member (host data, builtins). env overrides the layer scope for
// comprehension-generated fields, which each close over their own loop
// bindings.
type field struct {
	name       string
	loc        ast.Position
	body       ast.Expr
	value      *Thunk
	env        *Env
	visibility ast.Visibility
	plusSuper  bool
}

// objectLayer is one object literal participating in a merged object.
// Layers are shared between merge results, so any per-merge state is keyed
// by the merged object.
type objectLayer struct {
	fields  map[string]field
	order   []string
	locals  []ast.Bind
	asserts []ast.ObjectAssert

	// env is the environment at the literal site. bindDollar marks layers
	// whose literal was outermost, which root the $ binding.
	env        *Env
	bindDollar bool

	scopeCache map[scopeKey]*Env
}

type scopeKey struct {
	obj *Object
	idx int
}

const (
	assertsPending = iota
	assertsRunning
	assertsDone
)

// Object is a merged object value. layers are ordered base first, so field
// lookup walks them from the end. Field thunks, the visibility index and
// the assert outcome are computed at most once per merged object.
type Object struct {
	layers []*objectLayer

	fieldCache map[string]*Thunk

	infoDone bool
	allNames []string
	vis      map[string]ast.Visibility

	assertState int
	assertErr   error
}

// ObjectField describes one prebuilt member for MakeObject.
type ObjectField struct {
	Name   string
	Value  *Thunk
	Hidden bool
}

// MakeObject builds a single-layer object from concrete members. Members
// are non-merging and keep the given order.
func MakeObject(fields []ObjectField) *Object {
	layer := &objectLayer{fields: make(map[string]field, len(fields))}
	for _, f := range fields {
		vis := ast.VisibleNormal
		if f.Hidden {
			vis = ast.VisibleHidden
		}
		layer.fields[f.Name] = field{name: f.Name, value: f.Value, visibility: vis}
		layer.order = append(layer.order, f.Name)
	}
	return &Object{layers: []*objectLayer{layer}}
}

// mergeObjects implements object inheritance: the right operand's layers
// stack on top of the left's. Both operands are left untouched.
func mergeObjects(left, right *Object) *Object {
	layers := make([]*objectLayer, 0, len(left.layers)+len(right.layers))
	layers = append(layers, left.layers...)
	layers = append(layers, right.layers...)
	return &Object{layers: layers}
}

// buildInfo computes first-appearance field order and effective visibility.
// Visibility folds bottom-up: a plain colon inherits the visibility below,
// a double colon hides, a triple colon forces the field visible.
func (o *Object) buildInfo() {
	if o.infoDone {
		return
	}
	o.vis = make(map[string]ast.Visibility)
	for _, layer := range o.layers {
		for _, name := range layer.order {
			f := layer.fields[name]
			cur, seen := o.vis[name]
			if !seen {
				o.allNames = append(o.allNames, name)
				o.vis[name] = f.visibility
				continue
			}
			switch f.visibility {
			case ast.VisibleHidden, ast.VisibleForce:
				o.vis[name] = f.visibility
			default:
				o.vis[name] = cur
			}
		}
	}
	o.infoDone = true
}

// FieldNames returns the object's field names, optionally including hidden
// fields. Order is lexicographic unless the interpreter preserves source
// order, in which case fields appear in first-definition order.
func (o *Object) FieldNames(i *Interp, includeHidden bool) []string {
	o.buildInfo()
	names := make([]string, 0, len(o.allNames))
	for _, name := range o.allNames {
		if !includeHidden && o.vis[name] == ast.VisibleHidden {
			continue
		}
		names = append(names, name)
	}
	if !i.preserveOrder {
		sort.Strings(names)
	}
	return names
}

// HasField reports whether the object defines a field, optionally counting
// hidden fields. It does not trigger object asserts.
func (o *Object) HasField(name string, includeHidden bool) bool {
	o.buildInfo()
	vis, ok := o.vis[name]
	if !ok {
		return false
	}
	return includeHidden || vis != ast.VisibleHidden
}

// Field forces the named field's value. Object asserts run first.
func (o *Object) Field(i *Interp, name string) (Value, error) {
	t, err := i.objectField(o, name)
	if err != nil {
		return nil, err
	}
	return t.Force(i)
}

// objectField returns the memoized thunk for a field, running the object's
// asserts on first access.
func (i *Interp) objectField(o *Object, name string) (*Thunk, error) {
	if err := i.runAsserts(o); err != nil {
		return nil, err
	}
	if t, ok := o.fieldCache[name]; ok {
		return t, nil
	}
	t, ok := i.lookupField(o, name, len(o.layers))
	if !ok {
		return nil, i.errf("field does not exist: %s", name)
	}
	if o.fieldCache == nil {
		o.fieldCache = make(map[string]*Thunk)
	}
	o.fieldCache[name] = t
	return t, nil
}

// lookupField finds the topmost definition of a field among layers below
// uptoIdx and returns its value thunk. Passing len(o.layers) searches the
// whole object; smaller indices implement super lookup.
func (i *Interp) lookupField(o *Object, name string, uptoIdx int) (*Thunk, bool) {
	for idx := uptoIdx - 1; idx >= 0; idx-- {
		f, ok := o.layers[idx].fields[name]
		if !ok {
			continue
		}
		return i.fieldThunk(o, idx, f), true
	}
	return nil, false
}

// fieldThunk builds the lazy value of one field definition, applying the
// accumulating merge against the super definition when the field was
// declared with +.
func (i *Interp) fieldThunk(o *Object, idx int, f field) *Thunk {
	return computeThunk(func(i *Interp) (Value, error) {
		i.pushFrame(f.loc, "field <"+f.name+">")
		defer i.popFrame()

		var v Value
		var err error
		switch {
		case f.value != nil:
			v, err = f.value.Force(i)
		default:
			env, envErr := i.fieldEnv(o, idx, f)
			if envErr != nil {
				return nil, envErr
			}
			v, err = i.evalExpr(f.body, env)
		}
		if err != nil {
			return nil, err
		}
		if f.plusSuper {
			base, ok := i.lookupField(o, f.name, idx)
			if ok {
				baseVal, err := base.Force(i)
				if err != nil {
					return nil, err
				}
				return i.valueAdd(baseVal, v)
			}
		}
		return v, nil
	})
}

// fieldEnv returns the environment a field body evaluates in: the layer
// scope extended with the object context, the $ binding when this layer
// roots it, and the layer's locals.
func (i *Interp) fieldEnv(o *Object, idx int, f field) (*Env, error) {
	layer := o.layers[idx]
	if f.env != nil {
		// Comprehension fields close over per-iteration bindings, so the
		// scope cannot be shared across the layer.
		return i.buildLayerScope(layer, f.env, o, idx), nil
	}
	key := scopeKey{obj: o, idx: idx}
	if env, ok := layer.scopeCache[key]; ok {
		return env, nil
	}
	env := i.buildLayerScope(layer, layer.env, o, idx)
	if layer.scopeCache == nil {
		layer.scopeCache = make(map[scopeKey]*Env)
	}
	layer.scopeCache[key] = env
	return env, nil
}

func (i *Interp) buildLayerScope(layer *objectLayer, parent *Env, o *Object, idx int) *Env {
	vars := make(map[string]*Thunk, len(layer.locals)+1)
	env := parent.childSelf(&selfBinding{self: o, superIdx: idx}, vars)
	if layer.bindDollar {
		vars["$"] = ValueThunk(o)
	}
	for _, bind := range layer.locals {
		vars[bind.Name] = i.bindThunk(bind, env)
	}
	return env
}

// runAsserts evaluates every layer's asserts once per merged object. The
// running state lets assert bodies read fields of the object they guard
// without retriggering themselves.
func (i *Interp) runAsserts(o *Object) error {
	switch o.assertState {
	case assertsDone:
		return o.assertErr
	case assertsRunning:
		return nil
	}
	o.assertState = assertsRunning
	o.assertErr = i.evalAsserts(o)
	o.assertState = assertsDone
	return o.assertErr
}

func (i *Interp) evalAsserts(o *Object) error {
	for idx, layer := range o.layers {
		for _, a := range layer.asserts {
			env, err := i.fieldEnv(o, idx, field{})
			if err != nil {
				return err
			}
			cond, err := i.evalExpr(a.Cond, env)
			if err != nil {
				return err
			}
			b, ok := cond.(Bool)
			if !ok {
				return i.errf("assert condition must be a boolean, got %s", cond.TypeName())
			}
			if bool(b) {
				continue
			}
			if a.Message == nil {
				return i.errf("assertion failed")
			}
			msg, err := i.evalExpr(a.Message, env)
			if err != nil {
				return err
			}
			text, err := i.toStringValue(msg)
			if err != nil {
				return err
			}
			return i.errf("assertion failed: %s", text)
		}
	}
	return nil
}

package engine

// selfBinding ties evaluation to an object context. self is the fully
// merged object; superIdx is the index of the layer the running code was
// defined in, so layers below it form the super object.
type selfBinding struct {
	self     *Object
	superIdx int
}

// Env is a lexical environment: variable bindings, the enclosing object
// context and the source the surrounding code was loaded from.
type Env struct {
	parent *Env
	vars   map[string]*Thunk
	sb     *selfBinding
	source Source
}

func newEnv(source Source, vars map[string]*Thunk) *Env {
	return &Env{vars: vars, source: source}
}

// child derives an environment with additional variable bindings. Object
// context and source carry over.
func (e *Env) child(vars map[string]*Thunk) *Env {
	return &Env{parent: e, vars: vars, sb: e.sb, source: e.source}
}

// childSelf derives an environment bound to an object context.
func (e *Env) childSelf(sb *selfBinding, vars map[string]*Thunk) *Env {
	return &Env{parent: e, vars: vars, sb: sb, source: e.source}
}

func (e *Env) lookup(name string) (*Thunk, bool) {
	for env := e; env != nil; env = env.parent {
		if t, ok := env.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

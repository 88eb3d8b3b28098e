package vm

import (
	"fmt"
	"sort"

	"github.com/gonnet/gonnet/pkg/ast"
	"github.com/gonnet/gonnet/pkg/engine"
	"github.com/gonnet/gonnet/pkg/parser"
)

// binding is one external variable or top-level argument, either a plain
// string value or a code fragment parsed at session construction.
type binding struct {
	name  string
	value string
	expr  ast.Expr
	code  bool
}

// parseBindings merges plain and code bindings for one role into a single
// ordered list. Code bindings are parsed eagerly so malformed fragments
// fail session construction instead of surfacing mid-evaluation. A code
// binding shadows a plain one of the same name.
func parseBindings(role string, values, codes map[string]string) ([]binding, error) {
	merged := make(map[string]binding, len(values)+len(codes))
	for name, v := range values {
		merged[name] = binding{name: name, value: v}
	}
	for name, src := range codes {
		expr, err := parser.Parse(fmt.Sprintf("<%s:%s>", role, name), src)
		if err != nil {
			return nil, wrapError(KindParse, err, "%s", err.Error())
		}
		merged[name] = binding{name: name, expr: expr, code: true}
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]binding, 0, len(names))
	for _, name := range names {
		out = append(out, merged[name])
	}
	return out, nil
}

// thunk materializes the binding for one interpreter. Code bindings
// evaluate lazily in the interpreter's root scope; plain bindings are
// string values as given.
func (b binding) thunk(i *engine.Interp) *engine.Thunk {
	if b.code {
		return i.CodeThunk(b.expr)
	}
	return engine.ValueThunk(engine.String(b.value))
}

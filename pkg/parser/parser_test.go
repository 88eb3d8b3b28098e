package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/gonnet/gonnet/pkg/ast"
)

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, expr ast.Expr)
	}{
		{
			name:  "null",
			input: "null",
			check: func(t *testing.T, expr ast.Expr) {
				if _, ok := expr.(*ast.Null); !ok {
					t.Errorf("expected *ast.Null, got %T", expr)
				}
			},
		},
		{
			name:  "number",
			input: "42.5",
			check: func(t *testing.T, expr ast.Expr) {
				n, ok := expr.(*ast.Number)
				if !ok {
					t.Fatalf("expected *ast.Number, got %T", expr)
				}
				if n.Value != 42.5 {
					t.Errorf("expected 42.5, got %v", n.Value)
				}
			},
		},
		{
			name:  "exponent number",
			input: "1e3",
			check: func(t *testing.T, expr ast.Expr) {
				n, ok := expr.(*ast.Number)
				if !ok {
					t.Fatalf("expected *ast.Number, got %T", expr)
				}
				if n.Value != 1000 {
					t.Errorf("expected 1000, got %v", n.Value)
				}
			},
		},
		{
			name:  "double quoted string with escapes",
			input: `"a\nb\u0041"`,
			check: func(t *testing.T, expr ast.Expr) {
				s, ok := expr.(*ast.String)
				if !ok {
					t.Fatalf("expected *ast.String, got %T", expr)
				}
				if s.Value != "a\nbA" {
					t.Errorf("unexpected string value %q", s.Value)
				}
			},
		},
		{
			name:  "surrogate pair escape",
			input: `"\uD83D\uDE00"`,
			check: func(t *testing.T, expr ast.Expr) {
				s := expr.(*ast.String)
				if s.Value != "\U0001F600" {
					t.Errorf("unexpected string value %q", s.Value)
				}
			},
		},
		{
			name:  "single quoted string",
			input: `'it\'s'`,
			check: func(t *testing.T, expr ast.Expr) {
				s := expr.(*ast.String)
				if s.Value != "it's" {
					t.Errorf("unexpected string value %q", s.Value)
				}
			},
		},
		{
			name:  "verbatim string",
			input: `@"c:\path\n"`,
			check: func(t *testing.T, expr ast.Expr) {
				s := expr.(*ast.String)
				if s.Value != `c:\path\n` {
					t.Errorf("unexpected string value %q", s.Value)
				}
			},
		},
		{
			name:  "verbatim string doubled quote",
			input: `@"say ""hi"""`,
			check: func(t *testing.T, expr ast.Expr) {
				s := expr.(*ast.String)
				if s.Value != `say "hi"` {
					t.Errorf("unexpected string value %q", s.Value)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse("test.gsn", tt.input)
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}
			tt.check(t, expr)
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 must parse as 1 + (2 * 3).
	expr, err := Parse("test.gsn", "1 + 2 * 3")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	add, ok := expr.(*ast.Binary)
	if !ok || add.Op != ast.BopAdd {
		t.Fatalf("expected top-level +, got %T", expr)
	}
	mult, ok := add.Right.(*ast.Binary)
	if !ok || mult.Op != ast.BopMult {
		t.Fatalf("expected * on the right, got %T", add.Right)
	}

	// a || b && c must parse as a || (b && c).
	expr, err = Parse("test.gsn", "a || b && c")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	or, ok := expr.(*ast.Binary)
	if !ok || or.Op != ast.BopOr {
		t.Fatalf("expected top-level ||, got %T", expr)
	}

	// Comparison binds looser than shift.
	expr, err = Parse("test.gsn", "1 << 2 < 3")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	lt, ok := expr.(*ast.Binary)
	if !ok || lt.Op != ast.BopLt {
		t.Fatalf("expected top-level <, got %T", expr)
	}
}

func TestParseSuffixChain(t *testing.T) {
	expr, err := Parse("test.gsn", `a.b[1].c(2, x=3)`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	apply, ok := expr.(*ast.Apply)
	if !ok {
		t.Fatalf("expected *ast.Apply, got %T", expr)
	}
	if len(apply.Args.Positional) != 1 || len(apply.Args.Named) != 1 {
		t.Fatalf("expected 1 positional and 1 named argument, got %d and %d",
			len(apply.Args.Positional), len(apply.Args.Named))
	}
	if apply.Args.Named[0].Name != "x" {
		t.Errorf("expected named argument x, got %q", apply.Args.Named[0].Name)
	}
}

func TestParseApplyBrace(t *testing.T) {
	expr, err := Parse("test.gsn", `base { a: 1 }`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	bin, ok := expr.(*ast.Binary)
	if !ok || bin.Op != ast.BopAdd {
		t.Fatalf("expected + desugaring, got %T", expr)
	}
	if _, ok := bin.Left.(*ast.Var); !ok {
		t.Errorf("expected variable on the left, got %T", bin.Left)
	}
	if _, ok := bin.Right.(*ast.Object); !ok {
		t.Errorf("expected object on the right, got %T", bin.Right)
	}
}

func TestParseObject(t *testing.T) {
	src := `{
		local scale = 2,
		assert self.a > 0 : "a must be positive",
		a: 1,
		b:: self.a * scale,
		c+: [1],
		"quoted field": true,
		[std.toString(1)]: "computed",
		method(x, y=1):: x + y,
	}`
	expr, err := Parse("test.gsn", src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	obj, ok := expr.(*ast.Object)
	if !ok {
		t.Fatalf("expected *ast.Object, got %T", expr)
	}
	if len(obj.Fields) != 6 {
		t.Fatalf("expected 6 fields, got %d", len(obj.Fields))
	}
	if len(obj.Locals) != 1 || obj.Locals[0].Name != "scale" {
		t.Errorf("expected one local binding named scale")
	}
	if len(obj.Asserts) != 1 || obj.Asserts[0].Message == nil {
		t.Errorf("expected one assert with a message")
	}
	if obj.Fields[1].Visibility != ast.VisibleHidden {
		t.Errorf("expected b to be hidden")
	}
	if !obj.Fields[2].PlusSuper {
		t.Errorf("expected c to carry +:")
	}
	if obj.Fields[4].NameExpr == nil {
		t.Errorf("expected computed field name")
	}
	method := obj.Fields[5]
	if _, ok := method.Body.(*ast.Function); !ok {
		t.Errorf("expected method sugar to produce a function body, got %T", method.Body)
	}
}

func TestParseComprehensions(t *testing.T) {
	expr, err := Parse("test.gsn", `[x * x for x in [1, 2, 3] if x > 1]`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	arrComp, ok := expr.(*ast.ArrayComp)
	if !ok {
		t.Fatalf("expected *ast.ArrayComp, got %T", expr)
	}
	if len(arrComp.Specs) != 1 || len(arrComp.Specs[0].Conds) != 1 {
		t.Fatalf("expected one for spec with one condition")
	}

	expr, err = Parse("test.gsn", `{[k]: k for k in ["a", "b"]}`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	objComp, ok := expr.(*ast.ObjectComp)
	if !ok {
		t.Fatalf("expected *ast.ObjectComp, got %T", expr)
	}
	if objComp.Key == nil || objComp.Value == nil {
		t.Fatalf("expected key and value expressions")
	}

	// Nested for clauses.
	expr, err = Parse("test.gsn", `[[x, y] for x in [1] for y in [2]]`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	arrComp = expr.(*ast.ArrayComp)
	if len(arrComp.Specs) != 2 {
		t.Fatalf("expected two for specs, got %d", len(arrComp.Specs))
	}
}

func TestParseLocalFunctionSugar(t *testing.T) {
	expr, err := Parse("test.gsn", `local add(a, b=1) = a + b; add(2)`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	loc, ok := expr.(*ast.Local)
	if !ok {
		t.Fatalf("expected *ast.Local, got %T", expr)
	}
	if len(loc.Binds) != 1 {
		t.Fatalf("expected one binding, got %d", len(loc.Binds))
	}
	bind := loc.Binds[0]
	if len(bind.Params) != 2 {
		t.Fatalf("expected two parameters, got %d", len(bind.Params))
	}
	if bind.Params[1].Default == nil {
		t.Errorf("expected default for parameter b")
	}
}

func TestParseControlForms(t *testing.T) {
	expr, err := Parse("test.gsn", `if x then 1 else 2`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	cond := expr.(*ast.Conditional)
	if cond.Else == nil {
		t.Errorf("expected explicit else branch")
	}

	expr, err = Parse("test.gsn", `if x then 1`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	cond = expr.(*ast.Conditional)
	if cond.Else != nil {
		t.Errorf("expected missing else branch to stay nil")
	}

	expr, err = Parse("test.gsn", `assert x > 0; x`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, ok := expr.(*ast.Assert); !ok {
		t.Fatalf("expected *ast.Assert, got %T", expr)
	}

	expr, err = Parse("test.gsn", `error "boom"`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, ok := expr.(*ast.Error); !ok {
		t.Fatalf("expected *ast.Error, got %T", expr)
	}
}

func TestParseImports(t *testing.T) {
	expr, err := Parse("test.gsn", `import "lib.gsn"`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	imp, ok := expr.(*ast.Import)
	if !ok {
		t.Fatalf("expected *ast.Import, got %T", expr)
	}
	if imp.Path != "lib.gsn" {
		t.Errorf("unexpected import path %q", imp.Path)
	}

	expr, err = Parse("test.gsn", `importstr "data.txt"`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, ok := expr.(*ast.ImportStr); !ok {
		t.Fatalf("expected *ast.ImportStr, got %T", expr)
	}
}

func TestParseSuper(t *testing.T) {
	expr, err := Parse("test.gsn", `super.name`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, ok := expr.(*ast.SuperIndex); !ok {
		t.Fatalf("expected *ast.SuperIndex, got %T", expr)
	}

	expr, err = Parse("test.gsn", `"f" in super`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, ok := expr.(*ast.InSuper); !ok {
		t.Fatalf("expected *ast.InSuper, got %T", expr)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{
			name:    "unterminated string",
			input:   `"abc`,
			wantMsg: "unterminated string",
		},
		{
			name:    "unterminated block comment",
			input:   "/* abc",
			wantMsg: "unterminated block comment",
		},
		{
			name:    "leading zero",
			input:   "01",
			wantMsg: "leading zero",
		},
		{
			name:    "trailing garbage",
			input:   "1 2",
			wantMsg: "did not expect",
		},
		{
			name:    "positional after named",
			input:   "f(a=1, 2)",
			wantMsg: "positional argument after named argument",
		},
		{
			name:    "bare super",
			input:   "super",
			wantMsg: `expected "." or "[" after super`,
		},
		{
			name:    "computed import path",
			input:   `import foo`,
			wantMsg: "import path must be a string literal",
		},
		{
			name:    "missing field separator",
			input:   `{a 1}`,
			wantMsg: `expected ":", "::" or ":::"`,
		},
		{
			name:    "comprehension with two fields",
			input:   `{[k]: 1, [j]: 2, a: 3 for k in []}`,
			wantMsg: "object comprehension can only have one field",
		},
		{
			name:    "comprehension with fixed field",
			input:   `{a: 1 for k in []}`,
			wantMsg: "object comprehension field name must be computed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("test.gsn", tt.input)
			if err == nil {
				t.Fatalf("expected parse error, got none")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
			var staticErr *StaticError
			if !errors.As(err, &staticErr) {
				t.Errorf("expected a StaticError, got %T", err)
			}
			if staticErr.Loc.File != "test.gsn" {
				t.Errorf("expected error location in test.gsn, got %q", staticErr.Loc.File)
			}
		})
	}
}

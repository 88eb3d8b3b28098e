// Package ast defines the syntax tree for the gonnet configuration language.
// Nodes are produced by pkg/parser and consumed by the pkg/engine interpreter.
package ast

// Position identifies a location in a source file.
type Position struct {
	// File is the display name of the source (a path or a snippet name).
	File string

	// Line is the 1-based line number.
	Line int

	// Column is the 1-based column number.
	Column int
}

// IsSet reports whether the position has been filled in.
func (p Position) IsSet() bool {
	return p.Line > 0
}

// Expr is implemented by every expression node.
type Expr interface {
	Pos() Position
}

// NodeBase carries the source position shared by all nodes.
type NodeBase struct {
	Loc Position
}

// Pos returns the node's source position.
func (n NodeBase) Pos() Position { return n.Loc }

// Null is the literal null.
type Null struct {
	NodeBase
}

// True is the literal true.
type True struct {
	NodeBase
}

// False is the literal false.
type False struct {
	NodeBase
}

// Self is the self keyword.
type Self struct {
	NodeBase
}

// Dollar is the $ root-object reference.
type Dollar struct {
	NodeBase
}

// Number is a numeric literal.
type Number struct {
	NodeBase
	Value float64
}

// String is a string literal. Escape processing happens in the lexer, so
// Value holds the final text for quoted and verbatim forms alike.
type String struct {
	NodeBase
	Value string
}

// Var is a variable reference.
type Var struct {
	NodeBase
	Name string
}

// Local binds one or more names in Body.
type Local struct {
	NodeBase
	Binds []Bind
	Body  Expr
}

// Bind is a single local binding. Function-sugar bindings carry parameters.
type Bind struct {
	Name   string
	Value  Expr
	Params []Param // non-nil for local f(x) = ... sugar
	Loc    Position
}

// Param is a single function parameter with an optional default.
type Param struct {
	Name    string
	Default Expr // nil when the parameter is required
	Loc     Position
}

// Function is a function literal.
type Function struct {
	NodeBase
	Params []Param
	Body   Expr
}

// Apply is a function call with positional and named arguments.
type Apply struct {
	NodeBase
	Target Expr
	Args   Arguments
}

// Arguments holds the arguments of a call.
type Arguments struct {
	Positional []Expr
	Named      []NamedArg
}

// NamedArg is a name=value call argument.
type NamedArg struct {
	Name  string
	Value Expr
}

// Index is a[b] or the a.b sugar (with B a String node).
type Index struct {
	NodeBase
	Target Expr
	Key    Expr
}

// SuperIndex is super[e] or super.f.
type SuperIndex struct {
	NodeBase
	Key Expr
}

// InSuper is the e in super expression.
type InSuper struct {
	NodeBase
	Key Expr
}

// BinaryOp enumerates the binary operators.
type BinaryOp int

// Binary operators in precedence groups, loosest first.
const (
	BopOr BinaryOp = iota // ||
	BopAnd                // &&
	BopBitOr              // |
	BopBitXor             // ^
	BopBitAnd             // &
	BopEq                 // ==
	BopNeq                // !=
	BopLt                 // <
	BopGt                 // >
	BopLte                // <=
	BopGte                // >=
	BopIn                 // in
	BopShiftL             // <<
	BopShiftR             // >>
	BopAdd                // +
	BopSub                // -
	BopMult               // *
	BopDiv                // /
	BopMod                // %
)

var bopNames = map[BinaryOp]string{
	BopOr: "||", BopAnd: "&&", BopBitOr: "|", BopBitXor: "^", BopBitAnd: "&",
	BopEq: "==", BopNeq: "!=", BopLt: "<", BopGt: ">", BopLte: "<=", BopGte: ">=",
	BopIn: "in", BopShiftL: "<<", BopShiftR: ">>",
	BopAdd: "+", BopSub: "-", BopMult: "*", BopDiv: "/", BopMod: "%",
}

// String returns the operator's source form.
func (op BinaryOp) String() string { return bopNames[op] }

// Binary is a binary operator expression.
type Binary struct {
	NodeBase
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// UnaryOp enumerates the unary operators.
type UnaryOp int

// Unary operators.
const (
	UopNot    UnaryOp = iota // !
	UopBitNeg                // ~
	UopPlus                  // +
	UopMinus                 // -
)

var uopNames = map[UnaryOp]string{
	UopNot: "!", UopBitNeg: "~", UopPlus: "+", UopMinus: "-",
}

// String returns the operator's source form.
func (op UnaryOp) String() string { return uopNames[op] }

// Unary is a unary operator expression.
type Unary struct {
	NodeBase
	Op   UnaryOp
	Expr Expr
}

// Conditional is if/then/else. Else is nil when omitted, in which case the
// false branch evaluates to null.
type Conditional struct {
	NodeBase
	Cond Expr
	Then Expr
	Else Expr
}

// Error is the error e expression.
type Error struct {
	NodeBase
	Expr Expr
}

// Assert is assert cond [: message]; rest.
type Assert struct {
	NodeBase
	Cond    Expr
	Message Expr // nil when omitted
	Rest    Expr
}

// Import is import "path".
type Import struct {
	NodeBase
	Path string
}

// ImportStr is importstr "path".
type ImportStr struct {
	NodeBase
	Path string
}

// Array is an array literal.
type Array struct {
	NodeBase
	Elements []Expr
}

// ForSpec is one for clause of a comprehension, with any trailing if filters.
type ForSpec struct {
	VarName string
	Expr    Expr
	Conds   []Expr
	Loc     Position
}

// ArrayComp is [body for x in e if c ...].
type ArrayComp struct {
	NodeBase
	Body  Expr
	Specs []ForSpec
}

// Visibility is the field marker on an object member.
type Visibility int

// Field visibility markers.
const (
	VisibleNormal Visibility = iota // :
	VisibleHidden                   // ::
	VisibleForce                    // :::
)

// Field is a single object field. Name is nil for computed names, in which
// case NameExpr holds the key expression.
type Field struct {
	Name       string
	NameExpr   Expr // non-nil for [expr]: fields
	Body       Expr
	Visibility Visibility
	PlusSuper  bool    // +: merge with the field below
	Params     []Param // non-nil for method sugar f(x): ...
	Loc        Position
}

// ObjectAssert is an assert member of an object.
type ObjectAssert struct {
	Cond    Expr
	Message Expr // nil when omitted
	Loc     Position
}

// Object is an object literal: fields, object-level locals, and asserts.
type Object struct {
	NodeBase
	Fields  []Field
	Locals  []Bind
	Asserts []ObjectAssert
}

// ObjectComp is {[key]: value for x in e}, with optional object-level locals.
type ObjectComp struct {
	NodeBase
	Key    Expr
	Value  Expr
	Locals []Bind
	Specs  []ForSpec
}

package parser

import (
	"github.com/gonnet/gonnet/pkg/ast"
)

// Parse parses a single expression from source text. The file name is used
// only for positions in errors; it does not have to exist on disk.
func Parse(file, input string) (ast.Expr, error) {
	toks, err := newLexer(file, input).tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tkEOF {
		return nil, staticErrf(p.peek().loc, "did not expect %s after expression", p.peek())
	}
	return expr, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tkEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return t, staticErrf(t.loc, "expected %s, got %s", tokenNames[kind], t)
	}
	return p.next(), nil
}

func (p *parser) accept(kind tokenKind) bool {
	if p.peek().kind == kind {
		p.next()
		return true
	}
	return false
}

func (p *parser) peekOp(text string) bool {
	t := p.peek()
	return t.kind == tkOp && t.data == text
}

// Binary operator precedence, loosest first. The in keyword sits with the
// comparison operators.
var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7, "in": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

var binaryOps = map[string]ast.BinaryOp{
	"||": ast.BopOr, "&&": ast.BopAnd,
	"|": ast.BopBitOr, "^": ast.BopBitXor, "&": ast.BopBitAnd,
	"==": ast.BopEq, "!=": ast.BopNeq,
	"<": ast.BopLt, ">": ast.BopGt, "<=": ast.BopLte, ">=": ast.BopGte, "in": ast.BopIn,
	"<<": ast.BopShiftL, ">>": ast.BopShiftR,
	"+": ast.BopAdd, "-": ast.BopSub,
	"*": ast.BopMult, "/": ast.BopDiv, "%": ast.BopMod,
}

func (p *parser) parseExpr() (ast.Expr, error) {
	return p.parseBinary(1)
}

func (p *parser) binaryOpText() (string, bool) {
	t := p.peek()
	if t.kind == tkIn {
		return "in", true
	}
	if t.kind == tkOp {
		if _, ok := binaryPrec[t.data]; ok {
			return t.data, true
		}
	}
	return "", false
}

func (p *parser) parseBinary(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		opText, ok := p.binaryOpText()
		if !ok {
			break
		}
		prec := binaryPrec[opText]
		if prec < minPrec {
			break
		}
		opTok := p.next()
		// e in super produces a membership test against the super object.
		if opText == "in" && p.peek().kind == tkSuper {
			p.next()
			left = &ast.InSuper{NodeBase: ast.NodeBase{Loc: opTok.loc}, Key: left}
			continue
		}
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{
			NodeBase: ast.NodeBase{Loc: opTok.loc},
			Op:       binaryOps[opText],
			Left:     left,
			Right:    right,
		}
	}
	return left, nil
}

var unaryOps = map[string]ast.UnaryOp{
	"!": ast.UopNot, "~": ast.UopBitNeg, "+": ast.UopPlus, "-": ast.UopMinus,
}

func (p *parser) parseUnary() (ast.Expr, error) {
	t := p.peek()
	if t.kind == tkOp {
		if op, ok := unaryOps[t.data]; ok {
			p.next()
			operand, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &ast.Unary{NodeBase: ast.NodeBase{Loc: t.loc}, Op: op, Expr: operand}, nil
		}
	}
	return p.parseSuffixed()
}

// parseSuffixed parses a primary expression followed by any chain of field
// accesses, index operations, calls, and brace-application sugar.
func (p *parser) parseSuffixed() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch t.kind {
		case tkDot:
			p.next()
			id, err := p.expect(tkIdent)
			if err != nil {
				return nil, err
			}
			expr = &ast.Index{
				NodeBase: ast.NodeBase{Loc: t.loc},
				Target:   expr,
				Key:      &ast.String{NodeBase: ast.NodeBase{Loc: id.loc}, Value: id.data},
			}
		case tkBracketL:
			p.next()
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tkBracketR); err != nil {
				return nil, err
			}
			expr = &ast.Index{NodeBase: ast.NodeBase{Loc: t.loc}, Target: expr, Key: key}
		case tkParenL:
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			expr = &ast.Apply{NodeBase: ast.NodeBase{Loc: t.loc}, Target: expr, Args: args}
		case tkBraceL:
			// e { ... } extends e with the object literal.
			obj, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			expr = &ast.Binary{
				NodeBase: ast.NodeBase{Loc: t.loc},
				Op:       ast.BopAdd,
				Left:     expr,
				Right:    obj,
			}
		default:
			return expr, nil
		}
	}
}

func (p *parser) parseArguments() (ast.Arguments, error) {
	var args ast.Arguments
	if _, err := p.expect(tkParenL); err != nil {
		return args, err
	}
	for p.peek().kind != tkParenR {
		if p.peek().kind == tkIdent && p.peekAt(1).kind == tkOp && p.peekAt(1).data == "=" {
			name := p.next()
			p.next() // =
			val, err := p.parseExpr()
			if err != nil {
				return args, err
			}
			args.Named = append(args.Named, ast.NamedArg{Name: name.data, Value: val})
		} else {
			if len(args.Named) > 0 {
				return args, staticErrf(p.peek().loc, "positional argument after named argument")
			}
			val, err := p.parseExpr()
			if err != nil {
				return args, err
			}
			args.Positional = append(args.Positional, val)
		}
		if !p.accept(tkComma) {
			break
		}
	}
	if _, err := p.expect(tkParenR); err != nil {
		return args, err
	}
	return args, nil
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	t := p.peek()
	base := ast.NodeBase{Loc: t.loc}
	switch t.kind {
	case tkNull:
		p.next()
		return &ast.Null{NodeBase: base}, nil
	case tkTrue:
		p.next()
		return &ast.True{NodeBase: base}, nil
	case tkFalse:
		p.next()
		return &ast.False{NodeBase: base}, nil
	case tkSelf:
		p.next()
		return &ast.Self{NodeBase: base}, nil
	case tkDollar:
		p.next()
		return &ast.Dollar{NodeBase: base}, nil
	case tkNumber:
		p.next()
		return &ast.Number{NodeBase: base, Value: t.num}, nil
	case tkString:
		p.next()
		return &ast.String{NodeBase: base, Value: t.data}, nil
	case tkIdent:
		p.next()
		return &ast.Var{NodeBase: base, Name: t.data}, nil
	case tkSuper:
		p.next()
		switch p.peek().kind {
		case tkDot:
			p.next()
			id, err := p.expect(tkIdent)
			if err != nil {
				return nil, err
			}
			return &ast.SuperIndex{
				NodeBase: base,
				Key:      &ast.String{NodeBase: ast.NodeBase{Loc: id.loc}, Value: id.data},
			}, nil
		case tkBracketL:
			p.next()
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tkBracketR); err != nil {
				return nil, err
			}
			return &ast.SuperIndex{NodeBase: base, Key: key}, nil
		}
		return nil, staticErrf(t.loc, `expected "." or "[" after super`)
	case tkParenL:
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkParenR); err != nil {
			return nil, err
		}
		return inner, nil
	case tkBracketL:
		return p.parseArray()
	case tkBraceL:
		return p.parseObject()
	case tkIf:
		p.next()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkThen); err != nil {
			return nil, err
		}
		thenExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		var elseExpr ast.Expr
		if p.accept(tkElse) {
			elseExpr, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		return &ast.Conditional{NodeBase: base, Cond: cond, Then: thenExpr, Else: elseExpr}, nil
	case tkFunction:
		p.next()
		params, err := p.parseParams()
		if err != nil {
			return nil, err
		}
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Function{NodeBase: base, Params: params, Body: body}, nil
	case tkLocal:
		p.next()
		var binds []ast.Bind
		for {
			bind, err := p.parseBind()
			if err != nil {
				return nil, err
			}
			binds = append(binds, bind)
			if !p.accept(tkComma) {
				break
			}
		}
		if _, err := p.expect(tkSemicolon); err != nil {
			return nil, err
		}
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Local{NodeBase: base, Binds: binds, Body: body}, nil
	case tkImport, tkImportStr:
		p.next()
		path, err := p.expect(tkString)
		if err != nil {
			return nil, staticErrf(t.loc, "import path must be a string literal")
		}
		if t.kind == tkImport {
			return &ast.Import{NodeBase: base, Path: path.data}, nil
		}
		return &ast.ImportStr{NodeBase: base, Path: path.data}, nil
	case tkError:
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Error{NodeBase: base, Expr: inner}, nil
	case tkAssert:
		p.next()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		var msg ast.Expr
		if p.accept(tkColon) {
			msg, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(tkSemicolon); err != nil {
			return nil, err
		}
		rest, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Assert{NodeBase: base, Cond: cond, Message: msg, Rest: rest}, nil
	}
	return nil, staticErrf(t.loc, "unexpected %s", t)
}

func (p *parser) parseParams() ([]ast.Param, error) {
	if _, err := p.expect(tkParenL); err != nil {
		return nil, err
	}
	var params []ast.Param
	for p.peek().kind != tkParenR {
		id, err := p.expect(tkIdent)
		if err != nil {
			return nil, err
		}
		param := ast.Param{Name: id.data, Loc: id.loc}
		if p.peekOp("=") {
			p.next()
			def, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			param.Default = def
		}
		params = append(params, param)
		if !p.accept(tkComma) {
			break
		}
	}
	if _, err := p.expect(tkParenR); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *parser) parseBind() (ast.Bind, error) {
	id, err := p.expect(tkIdent)
	if err != nil {
		return ast.Bind{}, err
	}
	bind := ast.Bind{Name: id.data, Loc: id.loc}
	if p.peek().kind == tkParenL {
		params, err := p.parseParams()
		if err != nil {
			return ast.Bind{}, err
		}
		bind.Params = params
	}
	if !p.peekOp("=") {
		return ast.Bind{}, staticErrf(p.peek().loc, `expected "=" in local binding, got %s`, p.peek())
	}
	p.next()
	val, err := p.parseExpr()
	if err != nil {
		return ast.Bind{}, err
	}
	bind.Value = val
	return bind, nil
}

func (p *parser) parseArray() (ast.Expr, error) {
	open, err := p.expect(tkBracketL)
	if err != nil {
		return nil, err
	}
	base := ast.NodeBase{Loc: open.loc}
	if p.accept(tkBracketR) {
		return &ast.Array{NodeBase: base}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	// A for clause after the first element makes this a comprehension.
	if p.peek().kind == tkFor {
		specs, err := p.parseForSpecs()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkBracketR); err != nil {
			return nil, err
		}
		return &ast.ArrayComp{NodeBase: base, Body: first, Specs: specs}, nil
	}
	elements := []ast.Expr{first}
	for p.accept(tkComma) {
		if p.peek().kind == tkBracketR {
			break
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elements = append(elements, e)
	}
	if _, err := p.expect(tkBracketR); err != nil {
		return nil, err
	}
	return &ast.Array{NodeBase: base, Elements: elements}, nil
}

func (p *parser) parseForSpecs() ([]ast.ForSpec, error) {
	var specs []ast.ForSpec
	for p.peek().kind == tkFor {
		forTok := p.next()
		id, err := p.expect(tkIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkIn); err != nil {
			return nil, err
		}
		src, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		spec := ast.ForSpec{VarName: id.data, Expr: src, Loc: forTok.loc}
		for p.peek().kind == tkIf {
			p.next()
			cond, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			spec.Conds = append(spec.Conds, cond)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// objectMember is the union of the three member forms inside braces.
type objectMember struct {
	field  *ast.Field
	local  *ast.Bind
	assert *ast.ObjectAssert
}

func (p *parser) parseObject() (ast.Expr, error) {
	open, err := p.expect(tkBraceL)
	if err != nil {
		return nil, err
	}
	base := ast.NodeBase{Loc: open.loc}

	var members []objectMember
	for p.peek().kind != tkBraceR && p.peek().kind != tkFor {
		m, err := p.parseObjectMember()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
		if !p.accept(tkComma) {
			break
		}
	}

	if p.peek().kind == tkFor {
		return p.finishObjectComp(base, members)
	}

	if _, err := p.expect(tkBraceR); err != nil {
		return nil, err
	}
	obj := &ast.Object{NodeBase: base}
	for _, m := range members {
		switch {
		case m.field != nil:
			obj.Fields = append(obj.Fields, *m.field)
		case m.local != nil:
			obj.Locals = append(obj.Locals, *m.local)
		case m.assert != nil:
			obj.Asserts = append(obj.Asserts, *m.assert)
		}
	}
	return obj, nil
}

func (p *parser) parseObjectMember() (objectMember, error) {
	t := p.peek()
	switch t.kind {
	case tkLocal:
		p.next()
		bind, err := p.parseBind()
		if err != nil {
			return objectMember{}, err
		}
		return objectMember{local: &bind}, nil
	case tkAssert:
		p.next()
		cond, err := p.parseExpr()
		if err != nil {
			return objectMember{}, err
		}
		oa := ast.ObjectAssert{Cond: cond, Loc: t.loc}
		if p.accept(tkColon) {
			msg, err := p.parseExpr()
			if err != nil {
				return objectMember{}, err
			}
			oa.Message = msg
		}
		return objectMember{assert: &oa}, nil
	}
	field, err := p.parseField()
	if err != nil {
		return objectMember{}, err
	}
	return objectMember{field: &field}, nil
}

func (p *parser) parseField() (ast.Field, error) {
	t := p.peek()
	field := ast.Field{Loc: t.loc}
	switch t.kind {
	case tkIdent:
		p.next()
		field.Name = t.data
	case tkString:
		p.next()
		field.Name = t.data
	case tkBracketL:
		p.next()
		key, err := p.parseExpr()
		if err != nil {
			return field, err
		}
		if _, err := p.expect(tkBracketR); err != nil {
			return field, err
		}
		field.NameExpr = key
	default:
		return field, staticErrf(t.loc, "expected field name, got %s", t)
	}

	if p.peek().kind == tkParenL {
		params, err := p.parseParams()
		if err != nil {
			return field, err
		}
		field.Params = params
	}

	if p.peekOp("+") {
		p.next()
		field.PlusSuper = true
	}
	switch p.peek().kind {
	case tkColon:
		field.Visibility = ast.VisibleNormal
	case tkDoubleColon:
		field.Visibility = ast.VisibleHidden
	case tkTripleColon:
		field.Visibility = ast.VisibleForce
	default:
		return field, staticErrf(p.peek().loc, `expected ":", "::" or ":::" in field, got %s`, p.peek())
	}
	p.next()

	body, err := p.parseExpr()
	if err != nil {
		return field, err
	}
	if field.Params != nil {
		// Method sugar: the body becomes a function literal.
		body = &ast.Function{NodeBase: ast.NodeBase{Loc: field.Loc}, Params: field.Params, Body: body}
	}
	field.Body = body
	return field, nil
}

func (p *parser) finishObjectComp(base ast.NodeBase, members []objectMember) (ast.Expr, error) {
	comp := &ast.ObjectComp{NodeBase: base}
	for _, m := range members {
		switch {
		case m.local != nil:
			comp.Locals = append(comp.Locals, *m.local)
		case m.assert != nil:
			return nil, staticErrf(m.assert.Loc, "object comprehension cannot contain asserts")
		case m.field != nil:
			if comp.Key != nil {
				return nil, staticErrf(m.field.Loc, "object comprehension can only have one field")
			}
			if m.field.NameExpr == nil {
				return nil, staticErrf(m.field.Loc, "object comprehension field name must be computed")
			}
			if m.field.Visibility != ast.VisibleNormal || m.field.PlusSuper {
				return nil, staticErrf(m.field.Loc, "object comprehension field must use a plain colon")
			}
			if m.field.Params != nil {
				return nil, staticErrf(m.field.Loc, "object comprehension field cannot have parameters")
			}
			comp.Key = m.field.NameExpr
			comp.Value = m.field.Body
		}
	}
	if comp.Key == nil {
		return nil, staticErrf(base.Loc, "object comprehension requires a [field]: value member")
	}
	specs, err := p.parseForSpecs()
	if err != nil {
		return nil, err
	}
	comp.Specs = specs
	if _, err := p.expect(tkBraceR); err != nil {
		return nil, err
	}
	return comp, nil
}

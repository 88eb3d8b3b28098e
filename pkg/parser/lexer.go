// Package parser turns gonnet source text into pkg/ast syntax trees.
// It is a hand-written lexer and recursive-descent parser; all errors carry
// file:line:column positions.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/gonnet/gonnet/pkg/ast"
)

// tokenKind discriminates lexical tokens.
type tokenKind int

const (
	tkEOF tokenKind = iota
	tkIdent
	tkNumber
	tkString

	// Keywords.
	tkAssert
	tkElse
	tkError
	tkFalse
	tkFor
	tkFunction
	tkIf
	tkImport
	tkImportStr
	tkIn
	tkLocal
	tkNull
	tkSelf
	tkSuper
	tkThen
	tkTrue

	// Punctuation.
	tkBraceL
	tkBraceR
	tkBracketL
	tkBracketR
	tkParenL
	tkParenR
	tkComma
	tkDot
	tkSemicolon
	tkDollar
	tkColon
	tkDoubleColon
	tkTripleColon

	// Operators carry their text in token.data.
	tkOp
)

var keywords = map[string]tokenKind{
	"assert":    tkAssert,
	"else":      tkElse,
	"error":     tkError,
	"false":     tkFalse,
	"for":       tkFor,
	"function":  tkFunction,
	"if":        tkIf,
	"import":    tkImport,
	"importstr": tkImportStr,
	"in":        tkIn,
	"local":     tkLocal,
	"null":      tkNull,
	"self":      tkSelf,
	"super":     tkSuper,
	"then":      tkThen,
	"true":      tkTrue,
}

var tokenNames = map[tokenKind]string{
	tkEOF: "end of file", tkIdent: "identifier", tkNumber: "number", tkString: "string",
	tkAssert: `"assert"`, tkElse: `"else"`, tkError: `"error"`, tkFalse: `"false"`,
	tkFor: `"for"`, tkFunction: `"function"`, tkIf: `"if"`, tkImport: `"import"`,
	tkImportStr: `"importstr"`, tkIn: `"in"`, tkLocal: `"local"`, tkNull: `"null"`,
	tkSelf: `"self"`, tkSuper: `"super"`, tkThen: `"then"`, tkTrue: `"true"`,
	tkBraceL: `"{"`, tkBraceR: `"}"`, tkBracketL: `"["`, tkBracketR: `"]"`,
	tkParenL: `"("`, tkParenR: `")"`, tkComma: `","`, tkDot: `"."`,
	tkSemicolon: `";"`, tkDollar: `"$"`, tkColon: `":"`, tkDoubleColon: `"::"`,
	tkTripleColon: `":::"`, tkOp: "operator",
}

// token is a single lexical token.
type token struct {
	kind tokenKind
	data string // identifier name, operator text, or decoded string value
	num  float64
	loc  ast.Position
}

func (t token) String() string {
	switch t.kind {
	case tkIdent:
		return fmt.Sprintf("identifier %q", t.data)
	case tkOp:
		return fmt.Sprintf("operator %q", t.data)
	case tkString:
		return "string literal"
	case tkNumber:
		return "number literal"
	}
	return tokenNames[t.kind]
}

// StaticError is a lexer or parser error at a known position.
type StaticError struct {
	Msg string
	Loc ast.Position
}

// Error implements the error interface.
func (e *StaticError) Error() string {
	if e.Loc.IsSet() {
		return fmt.Sprintf("%s:%d:%d %s", e.Loc.File, e.Loc.Line, e.Loc.Column, e.Msg)
	}
	return e.Msg
}

func staticErrf(loc ast.Position, format string, args ...interface{}) *StaticError {
	return &StaticError{Msg: fmt.Sprintf(format, args...), Loc: loc}
}

// lexer walks source text and produces tokens.
type lexer struct {
	file  string
	input string
	pos   int
	line  int
	col   int
}

func newLexer(file, input string) *lexer {
	return &lexer{file: file, input: input, line: 1, col: 1}
}

func (l *lexer) here() ast.Position {
	return ast.Position{File: l.file, Line: l.line, Column: l.col}
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

func (l *lexer) advance() byte {
	c := l.input[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

// tokenize lexes the entire input.
func (l *lexer) tokenize() ([]token, error) {
	var toks []token
	for {
		if err := l.skipTrivia(); err != nil {
			return nil, err
		}
		loc := l.here()
		if l.pos >= len(l.input) {
			toks = append(toks, token{kind: tkEOF, loc: loc})
			return toks, nil
		}
		c := l.peek()
		switch {
		case isIdentStart(c):
			name := l.lexIdent()
			if kind, ok := keywords[name]; ok {
				toks = append(toks, token{kind: kind, loc: loc})
			} else {
				toks = append(toks, token{kind: tkIdent, data: name, loc: loc})
			}
		case c >= '0' && c <= '9':
			n, err := l.lexNumber(loc)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tkNumber, num: n, loc: loc})
		case c == '"' || c == '\'':
			s, err := l.lexQuotedString(loc)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tkString, data: s, loc: loc})
		case c == '@':
			s, err := l.lexVerbatimString(loc)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tkString, data: s, loc: loc})
		case c == ':':
			l.advance()
			kind := tkColon
			if l.peek() == ':' {
				l.advance()
				kind = tkDoubleColon
				if l.peek() == ':' {
					l.advance()
					kind = tkTripleColon
				}
			}
			toks = append(toks, token{kind: kind, loc: loc})
		default:
			tok, err := l.lexSymbol(loc)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
		}
	}
}

// skipTrivia consumes whitespace and comments.
func (l *lexer) skipTrivia() error {
	for l.pos < len(l.input) {
		c := l.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '#':
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		case c == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		case c == '/' && l.peekAt(1) == '*':
			loc := l.here()
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.input) {
				if l.peek() == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return staticErrf(loc, "unterminated block comment")
			}
		default:
			return nil
		}
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (l *lexer) lexIdent() string {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.peek()) {
		l.advance()
	}
	return l.input[start:l.pos]
}

func (l *lexer) lexNumber(loc ast.Position) (float64, error) {
	start := l.pos
	if l.peek() == '0' && l.peekAt(1) >= '0' && l.peekAt(1) <= '9' {
		return 0, staticErrf(loc, "numbers cannot have leading zeros")
	}
	for l.pos < len(l.input) && l.peek() >= '0' && l.peek() <= '9' {
		l.advance()
	}
	if l.peek() == '.' {
		l.advance()
		if !(l.peek() >= '0' && l.peek() <= '9') {
			return 0, staticErrf(l.here(), "expected digit after decimal point")
		}
		for l.pos < len(l.input) && l.peek() >= '0' && l.peek() <= '9' {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if !(l.peek() >= '0' && l.peek() <= '9') {
			return 0, staticErrf(l.here(), "expected digit in exponent")
		}
		for l.pos < len(l.input) && l.peek() >= '0' && l.peek() <= '9' {
			l.advance()
		}
	}
	n, err := strconv.ParseFloat(l.input[start:l.pos], 64)
	if err != nil {
		return 0, staticErrf(loc, "invalid number literal: %v", err)
	}
	return n, nil
}

// lexQuotedString handles "..." and '...' with JSON-style escapes.
func (l *lexer) lexQuotedString(loc ast.Position) (string, error) {
	quote := l.advance()
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			return "", staticErrf(loc, "unterminated string")
		}
		c := l.advance()
		if c == quote {
			return sb.String(), nil
		}
		if c == '\n' {
			return "", staticErrf(loc, "unterminated string")
		}
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		if l.pos >= len(l.input) {
			return "", staticErrf(loc, "unterminated string")
		}
		esc := l.advance()
		switch esc {
		case '"', '\'', '\\', '/':
			sb.WriteByte(esc)
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'u':
			r, err := l.lexUnicodeEscape()
			if err != nil {
				return "", err
			}
			// Combine surrogate pairs when a low surrogate follows.
			if utf16.IsSurrogate(r) && l.peek() == '\\' && l.peekAt(1) == 'u' {
				l.advance()
				l.advance()
				r2, err := l.lexUnicodeEscape()
				if err != nil {
					return "", err
				}
				if combined := utf16.DecodeRune(r, r2); combined != utf8.RuneError {
					r = combined
				} else {
					sb.WriteRune(r)
					r = r2
				}
			}
			sb.WriteRune(r)
		default:
			return "", staticErrf(l.here(), "invalid escape sequence \\%c", esc)
		}
	}
}

func (l *lexer) lexUnicodeEscape() (rune, error) {
	loc := l.here()
	if l.pos+4 > len(l.input) {
		return 0, staticErrf(loc, "truncated unicode escape")
	}
	hex := l.input[l.pos : l.pos+4]
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, staticErrf(loc, "invalid unicode escape \\u%s", hex)
	}
	for i := 0; i < 4; i++ {
		l.advance()
	}
	return rune(n), nil
}

// lexVerbatimString handles @"..." and @'...' where the quote is doubled to
// escape itself and backslashes are literal.
func (l *lexer) lexVerbatimString(loc ast.Position) (string, error) {
	l.advance() // @
	if l.peek() != '"' && l.peek() != '\'' {
		return "", staticErrf(loc, "expected string after @")
	}
	quote := l.advance()
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			return "", staticErrf(loc, "unterminated string")
		}
		c := l.advance()
		if c == quote {
			if l.peek() == quote {
				l.advance()
				sb.WriteByte(quote)
				continue
			}
			return sb.String(), nil
		}
		sb.WriteByte(c)
	}
}

func (l *lexer) lexSymbol(loc ast.Position) (token, error) {
	c := l.advance()
	switch c {
	case '{':
		return token{kind: tkBraceL, loc: loc}, nil
	case '}':
		return token{kind: tkBraceR, loc: loc}, nil
	case '[':
		return token{kind: tkBracketL, loc: loc}, nil
	case ']':
		return token{kind: tkBracketR, loc: loc}, nil
	case '(':
		return token{kind: tkParenL, loc: loc}, nil
	case ')':
		return token{kind: tkParenR, loc: loc}, nil
	case ',':
		return token{kind: tkComma, loc: loc}, nil
	case '.':
		return token{kind: tkDot, loc: loc}, nil
	case ';':
		return token{kind: tkSemicolon, loc: loc}, nil
	case '$':
		return token{kind: tkDollar, loc: loc}, nil
	case '=':
		if l.peek() == '=' {
			l.advance()
			return token{kind: tkOp, data: "==", loc: loc}, nil
		}
		return token{kind: tkOp, data: "=", loc: loc}, nil
	case '!':
		if l.peek() == '=' {
			l.advance()
			return token{kind: tkOp, data: "!=", loc: loc}, nil
		}
		return token{kind: tkOp, data: "!", loc: loc}, nil
	case '<':
		if l.peek() == '=' {
			l.advance()
			return token{kind: tkOp, data: "<=", loc: loc}, nil
		}
		if l.peek() == '<' {
			l.advance()
			return token{kind: tkOp, data: "<<", loc: loc}, nil
		}
		return token{kind: tkOp, data: "<", loc: loc}, nil
	case '>':
		if l.peek() == '=' {
			l.advance()
			return token{kind: tkOp, data: ">=", loc: loc}, nil
		}
		if l.peek() == '>' {
			l.advance()
			return token{kind: tkOp, data: ">>", loc: loc}, nil
		}
		return token{kind: tkOp, data: ">", loc: loc}, nil
	case '&':
		if l.peek() == '&' {
			l.advance()
			return token{kind: tkOp, data: "&&", loc: loc}, nil
		}
		return token{kind: tkOp, data: "&", loc: loc}, nil
	case '|':
		if l.peek() == '|' {
			l.advance()
			return token{kind: tkOp, data: "||", loc: loc}, nil
		}
		return token{kind: tkOp, data: "|", loc: loc}, nil
	case '+', '-', '*', '/', '%', '~', '^':
		return token{kind: tkOp, data: string(c), loc: loc}, nil
	}
	return token{}, staticErrf(loc, "unexpected character %q", c)
}

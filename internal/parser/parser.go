// Package parser implements a recursive-descent, precedence-climbing
// parser over the Arkade Script token stream, producing the typed AST in
// internal/ast. The cur/peek token pattern and the expect helper are
// grounded on the hand-rolled parsers found across the example pack
// (btouchard/gmx's internal/compiler/parser, y1yang0/falcon's ast parser).
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arkade-os/arkade-script/internal/ast"
	"github.com/arkade-os/arkade-script/internal/errs"
	"github.com/arkade-os/arkade-script/internal/lexer"
	"github.com/arkade-os/arkade-script/internal/token"
)

// Parser turns a token stream into a *ast.Contract.
type Parser struct {
	lex *lexer.Lexer

	cur, peek token.Token
	err       error // first lex error encountered, if any
}

// Parse scans and parses src, returning the contract AST or the first
// error encountered: a lex or syntax error tagged TagParse, or a
// TagShape error for an unrecognized options key.
func Parse(src string) (*ast.Contract, error) {
	p := &Parser{lex: lexer.New(src)}
	p.next()
	p.next()
	if p.err != nil {
		return nil, p.lexError()
	}
	c, err := p.parseSourceFile()
	if err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.lexError()
	}
	return c, nil
}

// lexError converts the recorded *lexer.LexError into a TagParse
// CompileError with the same line and message.
func (p *Parser) lexError() error {
	if le, ok := p.err.(*lexer.LexError); ok {
		return errs.Parse(le.Line, "%s", le.Message)
	}
	return p.err
}

func (p *Parser) next() {
	p.cur = p.peek
	tok, err := p.lex.NextToken()
	if err != nil && p.err == nil {
		p.err = err
	}
	p.peek = tok
}

func (p *Parser) line() int { return p.cur.Pos.Line }

func (p *Parser) errorf(format string, args ...any) error {
	return errs.Parse(p.line(), format, args...)
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if p.cur.Kind != k {
		return token.Token{}, p.errorf("expected %s, got %q", k, p.cur.Literal)
	}
	t := p.cur
	p.next()
	return t, nil
}

// parseSourceFile parses an optional `options { ... }` block followed by
// exactly one `contract` declaration.
func (p *Parser) parseSourceFile() (*ast.Contract, error) {
	var opts *ast.Options
	if p.cur.Kind == token.OPTIONS {
		var err error
		opts, err = p.parseOptions()
		if err != nil {
			return nil, err
		}
	}
	if p.cur.Kind != token.CONTRACT {
		return nil, p.errorf("expected 'contract', got %q", p.cur.Literal)
	}
	c, err := p.parseContract()
	if err != nil {
		return nil, err
	}
	c.Options = opts
	if p.cur.Kind != token.EOF {
		return nil, p.errorf("unexpected trailing input %q", p.cur.Literal)
	}
	return c, nil
}

func (p *Parser) parseOptions() (*ast.Options, error) {
	span := ast.Span{Line: p.line()}
	p.next() // consume 'options'
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	opts := &ast.Options{Span: span}
	for p.cur.Kind != token.RBRACE {
		if p.cur.Kind != token.IDENT {
			return nil, p.errorf("expected options key, got %q", p.cur.Literal)
		}
		key := p.cur.Literal
		keyLine := p.line()
		p.next()
		if _, err := p.expect(token.ASSIGN); err != nil {
			return nil, err
		}
		switch key {
		case "server":
			if p.cur.Kind != token.IDENT {
				return nil, p.errorf("options.server must name an identifier")
			}
			opts.ServerParam = p.cur.Literal
			p.next()
		case "exit":
			n, err := p.parseIntLiteralValue()
			if err != nil {
				return nil, err
			}
			opts.Exit = &n
		case "renew":
			n, err := p.parseIntLiteralValue()
			if err != nil {
				return nil, err
			}
			opts.Renew = &n
		default:
			return nil, errs.Shape(keyLine, "unrecognized options key %q", key)
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
	}
	p.next() // consume '}'
	return opts, nil
}

func (p *Parser) parseIntLiteralValue() (int64, error) {
	neg := false
	if p.cur.Kind == token.MINUS {
		neg = true
		p.next()
	}
	if p.cur.Kind != token.INT {
		return 0, p.errorf("expected integer literal, got %q", p.cur.Literal)
	}
	n, err := strconv.ParseInt(p.cur.Literal, 10, 64)
	if err != nil {
		return 0, p.errorf("malformed integer literal %q", p.cur.Literal)
	}
	p.next()
	if neg {
		n = -n
	}
	return n, nil
}

func (p *Parser) parseContract() (*ast.Contract, error) {
	span := ast.Span{Line: p.line()}
	p.next() // consume 'contract'
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var funcs []*ast.Function
	for p.cur.Kind != token.RBRACE {
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, fn)
	}
	p.next() // consume '}'
	return &ast.Contract{Name: name.Literal, Params: params, Functions: funcs, Span: span}, nil
}

func (p *Parser) parseParamList() ([]*ast.Parameter, error) {
	var params []*ast.Parameter
	for p.cur.Kind != token.RPAREN {
		if len(params) > 0 {
			if _, err := p.expect(token.COMMA); err != nil {
				return nil, err
			}
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		line := p.line()
		nameTok, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		params = append(params, &ast.Parameter{Name: nameTok.Literal, Type: typ, Span: ast.Span{Line: line}})
	}
	return params, nil
}

func (p *Parser) parseType() (ast.Type, error) {
	if !token.IsBaseType(p.cur.Kind) {
		return ast.Type{}, p.errorf("expected a type name, got %q", p.cur.Literal)
	}
	base := p.cur.Literal
	p.next()
	t := ast.Type{Base: base}
	if p.cur.Kind == token.LBRACKET {
		p.next()
		n, err := p.expect(token.INT)
		if err != nil {
			return ast.Type{}, err
		}
		length, err := strconv.Atoi(n.Literal)
		if err != nil || length < 1 {
			return ast.Type{}, p.errorf("array length must be a positive integer literal")
		}
		if _, err := p.expect(token.RBRACKET); err != nil {
			return ast.Type{}, err
		}
		t.IsArray = true
		t.ArrayLen = length
	}
	return t, nil
}

func (p *Parser) parseFunction() (*ast.Function, error) {
	span := ast.Span{Line: p.line()}
	internal := false
	if p.cur.Kind == token.INTERNAL {
		internal = true
		p.next()
	}
	if _, err := p.expect(token.FUNCTION); err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.Function{Name: name.Literal, Params: params, Internal: internal, Body: body, Span: span}, nil
}

func (p *Parser) parseBlock() ([]ast.Statement, error) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var stmts []ast.Statement
	for p.cur.Kind != token.RBRACE {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	p.next() // consume '}'
	return stmts, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur.Kind {
	case token.REQUIRE:
		return p.parseRequire()
	case token.LET:
		return p.parseLet()
	case token.IF:
		return p.parseIf()
	case token.FOR:
		return p.parseFor()
	case token.IDENT:
		if p.peek.Kind == token.ASSIGN {
			return p.parseAssign()
		}
		return p.parseExprStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseRequire() (ast.Statement, error) {
	span := ast.Span{Line: p.line()}
	p.next() // 'require'
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var msg *string
	if p.cur.Kind == token.COMMA {
		p.next()
		s, err := p.expect(token.STRING)
		if err != nil {
			return nil, err
		}
		msg = &s.Literal
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.RequireStmt{Cond: cond, Message: msg, Span: span}, nil
}

func (p *Parser) parseLet() (ast.Statement, error) {
	span := ast.Span{Line: p.line()}
	p.next() // 'let'
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.LetStmt{Name: name.Literal, Value: val, Span: span}, nil
}

func (p *Parser) parseAssign() (ast.Statement, error) {
	span := ast.Span{Line: p.line()}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.AssignStmt{Name: name.Literal, Value: val, Span: span}, nil
}

func (p *Parser) parseIf() (ast.Statement, error) {
	span := ast.Span{Line: p.line()}
	p.next() // 'if'
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	thenBlock, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var elseBlock []ast.Statement
	if p.cur.Kind == token.ELSE {
		p.next()
		if p.cur.Kind == token.IF {
			nested, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			elseBlock = []ast.Statement{nested}
		} else {
			elseBlock, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
	}
	return &ast.IfStmt{Cond: cond, Then: thenBlock, Else: elseBlock, Span: span}, nil
}

func (p *Parser) parseFor() (ast.Statement, error) {
	span := ast.Span{Line: p.line()}
	p.next() // 'for'
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	idxName, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	valName, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IN); err != nil {
		return nil, err
	}
	iterable, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{IndexName: idxName.Literal, ValueName: valName.Literal, Iterable: iterable, Body: body, Span: span}, nil
}

func (p *Parser) parseExprStmt() (ast.Statement, error) {
	span := ast.Span{Line: p.line()}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{X: x, Span: span}, nil
}

// --- expression grammar, ascending precedence ---
// logical-or > logical-and > equality > comparison > additive >
// multiplicative > unary > postfix > atom

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.OROR {
		span := ast.Span{Line: p.line()}
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "||", Left: left, Right: right, Span: span}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.ANDAND {
		span := ast.Span{Line: p.line()}
		p.next()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "&&", Left: left, Right: right, Span: span}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.EQ || p.cur.Kind == token.NEQ {
		op := p.cur.Literal
		span := ast.Span{Line: p.line()}
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Span: span}
	}
	return left, nil
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.LT || p.cur.Kind == token.LE || p.cur.Kind == token.GT || p.cur.Kind == token.GE {
		op := p.cur.Literal
		span := ast.Span{Line: p.line()}
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Span: span}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.PLUS || p.cur.Kind == token.MINUS {
		op := p.cur.Literal
		span := ast.Span{Line: p.line()}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Span: span}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.STAR || p.cur.Kind == token.SLASH {
		op := p.cur.Literal
		span := ast.Span{Line: p.line()}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Span: span}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.cur.Kind == token.BANG {
		span := ast.Span{Line: p.line()}
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: "!", X: x, Span: span}, nil
	}
	if p.cur.Kind == token.MINUS {
		span := ast.Span{Line: p.line()}
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: "-", X: x, Span: span}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	x, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.Kind {
		case token.DOT:
			span := ast.Span{Line: p.line()}
			p.next()
			field, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			x = &ast.FieldExpr{X: x, Field: field.Literal, Span: span}
		case token.LBRACKET:
			span := ast.Span{Line: p.line()}
			p.next()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACKET); err != nil {
				return nil, err
			}
			x = &ast.IndexExpr{X: x, Index: idx, Span: span}
		case token.LPAREN:
			span := ast.Span{Line: p.line()}
			p.next()
			args, err := p.parseExprListUntil(token.RPAREN)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			x = &ast.CallExpr{Callee: x, Args: args, Span: span}
		default:
			return x, nil
		}
	}
}

func (p *Parser) parseExprListUntil(end token.Kind) ([]ast.Expr, error) {
	var exprs []ast.Expr
	for p.cur.Kind != end {
		if len(exprs) > 0 {
			if _, err := p.expect(token.COMMA); err != nil {
				return nil, err
			}
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func (p *Parser) parseAtom() (ast.Expr, error) {
	span := ast.Span{Line: p.line()}
	switch p.cur.Kind {
	case token.INT:
		n, err := strconv.ParseInt(p.cur.Literal, 10, 64)
		if err != nil {
			return nil, p.errorf("malformed integer literal %q", p.cur.Literal)
		}
		p.next()
		return &ast.IntLit{Value: n, Span: span}, nil
	case token.HEX:
		raw := strings.TrimPrefix(strings.TrimPrefix(p.cur.Literal, "0x"), "0X")
		bs, err := hexDecode(raw)
		if err != nil {
			return nil, p.errorf("malformed hex literal: %v", err)
		}
		p.next()
		return &ast.HexLit{Raw: raw, Bytes: bs, Span: span}, nil
	case token.TRUE:
		p.next()
		return &ast.BoolLit{Value: true, Span: span}, nil
	case token.FALSE:
		p.next()
		return &ast.BoolLit{Value: false, Span: span}, nil
	case token.STRING:
		s := p.cur.Literal
		p.next()
		return &ast.StringLit{Value: s, Span: span}, nil
	case token.IDENT:
		name := p.cur.Literal
		p.next()
		return &ast.Ident{Name: name, Span: span}, nil
	case token.LPAREN:
		p.next()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return x, nil
	case token.LBRACKET:
		p.next()
		elems, err := p.parseExprListUntil(token.RBRACKET)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBRACKET); err != nil {
			return nil, err
		}
		return &ast.ArrayLit{Elems: elems, Span: span}, nil
	case token.NEW:
		p.next()
		if !token.IsBaseType(p.cur.Kind) && p.cur.Kind != token.IDENT {
			return nil, p.errorf("expected constructor name after 'new'")
		}
		typeName := p.cur.Literal
		p.next()
		if _, err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		args, err := p.parseExprListUntil(token.RPAREN)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return &ast.NewExpr{TypeName: typeName, Args: args, Span: span}, nil
	}
	return nil, p.errorf("unexpected token %q", p.cur.Literal)
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 == 1 {
		s = "0" + s
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexDigit(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexDigit(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexDigit(b byte) (byte, error) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', nil
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, nil
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, nil
	}
	return 0, fmt.Errorf("invalid hex digit %q", b)
}

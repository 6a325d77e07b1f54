package parser

import (
	"github.com/mna/mica/lang/ast"
	"github.com/mna/mica/lang/token"
)

// Precedence ladder, matching spec.md §4.2. ASSIGNMENT/OR/AND sit above
// EQUALITY but are not implemented: assignment is parsed at the statement
// level (see stmt.go), and or/and are reserved, never emitted.
const (
	precNone = iota
	precEquality
	precComparison
	precTerm
	precFactor
)

func binaryPrec(k token.Token) int {
	switch k {
	case token.EQL, token.NEQ:
		return precEquality
	case token.LT, token.LE, token.GT, token.GE:
		return precComparison
	case token.PLUS, token.MINUS:
		return precTerm
	case token.STAR, token.SLASH, token.PERCENT:
		return precFactor
	default:
		return precNone
	}
}

func (p *Parser) expression() ast.Expr {
	return p.binary(precEquality)
}

// binary implements precedence climbing: it parses a unary operand, then
// consumes any run of binary operators whose precedence is at least minPrec,
// recursing with the next tighter precedence for the right-hand side so
// same-precedence operators associate left-to-right.
func (p *Parser) binary(minPrec int) ast.Expr {
	left := p.unary()
	for {
		prec := binaryPrec(p.cur.Kind)
		if prec == precNone || prec < minPrec {
			return left
		}
		opTok := p.cur
		p.advance()
		right := p.binary(prec + 1)
		left = &ast.BinaryExpr{Op: opTok.Kind.String(), Left: left, Right: right, Ln: opTok.Line}
	}
}

func (p *Parser) unary() ast.Expr {
	if p.match(token.MINUS) {
		ln := p.prev.Line
		operand := p.unary()
		return &ast.UnaryExpr{Op: "-", Operand: operand, Ln: ln}
	}
	return p.call()
}

func (p *Parser) call() ast.Expr {
	expr := p.primary()
	for {
		switch {
		case p.match(token.LPAREN):
			expr = p.finishCall(expr)
		case p.match(token.LBRACK):
			ln := p.prev.Line
			idx := p.expression()
			p.consume(token.RBRACK, "expected ']' after index")
			expr = &ast.IndexExpr{Array: expr, Index: idx, Ln: ln}
		case p.match(token.DOT):
			expr = p.iterChain(expr)
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee ast.Expr) ast.Expr {
	ln := p.prev.Line
	var args []ast.Expr
	if !p.check(token.RPAREN) {
		for {
			args = append(args, p.expression())
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expected ')' after arguments")
	return &ast.CallExpr{Callee: callee, Args: args, Ln: ln}
}

// iterChain parses the `.iter().m1(...).m2(...)` postfix grammar. Only
// "iter" is accepted as the method right after the dot; anything else is a
// parse-time "unknown method" error, matching the original grammar.
func (p *Parser) iterChain(source ast.Expr) ast.Expr {
	ln := p.prev.Line
	if !p.check(token.IDENT) || p.cur.Lexeme != "iter" {
		p.error("unknown method")
		return source
	}
	p.advance()
	p.consume(token.LPAREN, "expected '(' after 'iter'")
	p.consume(token.RPAREN, "expected ')' after 'iter('")

	chain := &ast.IterChain{Source: source, Ln: ln}
	for p.match(token.DOT) {
		if !p.check(token.IDENT) {
			p.error("unknown method")
			break
		}
		method := p.cur.Lexeme
		p.advance()
		p.consume(token.LPAREN, "expected '(' after method name")

		call := ast.IterCall{Method: method}
		if method == "fold" {
			call.Seed = p.expression()
			p.consume(token.COMMA, "expected ',' after fold seed")
		}
		if closure, ok := p.primary().(*ast.ClosureLit); ok {
			call.Arg = closure
		} else {
			p.error("expected closure argument")
		}
		p.consume(token.RPAREN, "expected ')' after method arguments")
		chain.Calls = append(chain.Calls, call)
	}
	return chain
}

func (p *Parser) primary() ast.Expr {
	switch {
	case p.match(token.INT):
		ln := p.prev.Line
		v, err := p.prev.IntValue()
		if err != nil {
			p.error("invalid integer literal")
		}
		return &ast.IntLit{Value: v, Ln: ln}
	case p.match(token.FLOAT):
		ln := p.prev.Line
		v, err := p.prev.FloatValue()
		if err != nil {
			p.error("invalid float literal")
		}
		return &ast.FloatLit{Value: v, Ln: ln}
	case p.match(token.STRING):
		return &ast.StringLit{Value: p.prev.StringValue(), Ln: p.prev.Line}
	case p.match(token.TRUE):
		return &ast.BoolLit{Value: true, Ln: p.prev.Line}
	case p.match(token.FALSE):
		return &ast.BoolLit{Value: false, Ln: p.prev.Line}
	case p.match(token.NONE):
		return &ast.NoneLit{Ln: p.prev.Line}
	case p.match(token.IDENT):
		return &ast.Ident{Name: p.prev.Lexeme, Ln: p.prev.Line}
	case p.match(token.LPAREN):
		expr := p.expression()
		p.consume(token.RPAREN, "expected ')' after expression")
		return expr
	case p.match(token.LBRACK):
		return p.arrayLiteral()
	case p.match(token.PIPE):
		return p.closureLiteral()
	default:
		p.errorAtCurrent("expected expression")
		p.advance()
		return &ast.NoneLit{Ln: p.cur.Line}
	}
}

func (p *Parser) arrayLiteral() ast.Expr {
	ln := p.prev.Line
	lit := &ast.ArrayLit{Ln: ln}
	if !p.check(token.RBRACK) {
		for {
			lit.Elems = append(lit.Elems, p.expression())
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RBRACK, "expected ']' after array elements")
	return lit
}

func (p *Parser) closureLiteral() ast.Expr {
	ln := p.prev.Line
	var params []string
	if !p.check(token.PIPE) {
		for {
			p.consume(token.IDENT, "expected parameter name")
			params = append(params, p.prev.Lexeme)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.PIPE, "expected '|' after closure parameters")

	var body *ast.Block
	if p.check(token.LBRACE) {
		body = p.block()
	} else {
		// expr-bodied closure: wrap in an implicit return so the compiler only
		// ever deals with blocks.
		exprLn := p.cur.Line
		expr := p.expression()
		body = &ast.Block{Ln: exprLn, Stmts: []ast.Stmt{&ast.ReturnStmt{Value: expr, Ln: exprLn}}}
	}
	return &ast.ClosureLit{Params: params, Body: body, Ln: ln}
}

package parser

import (
	"github.com/mna/mica/lang/ast"
	"github.com/mna/mica/lang/token"
)

// declaration parses one top-level-or-block statement, recovering via
// synchronize on error.
func (p *Parser) declaration() ast.Stmt {
	var s ast.Stmt
	switch {
	case p.match(token.LET):
		s = p.letStatement()
	case p.match(token.FN):
		s = p.fnStatement()
	default:
		s = p.statement()
	}
	if p.panicking {
		p.synchronize()
	}
	return s
}

func (p *Parser) letStatement() ast.Stmt {
	ln := p.prev.Line
	mutable := p.match(token.MUT)
	p.consume(token.IDENT, "expected variable name")
	name := p.prev.Lexeme
	p.consume(token.EQ, "expected '=' after variable name")
	value := p.expression()
	p.matchSemi()
	return &ast.LetStmt{Name: name, Mutable: mutable, Value: value, Ln: ln}
}

func (p *Parser) fnStatement() ast.Stmt {
	ln := p.prev.Line
	p.consume(token.IDENT, "expected function name")
	name := p.prev.Lexeme
	params := p.paramList()
	body := p.block()
	return &ast.FnStmt{Name: name, Params: params, Body: body, Ln: ln}
}

func (p *Parser) paramList() []string {
	p.consume(token.LPAREN, "expected '(' after function name")
	var params []string
	if !p.check(token.RPAREN) {
		for {
			p.consume(token.IDENT, "expected parameter name")
			params = append(params, p.prev.Lexeme)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expected ')' after parameters")
	return params
}

func (p *Parser) block() *ast.Block {
	ln := p.prev.Line
	p.consume(token.LBRACE, "expected '{'")
	b := &ast.Block{Ln: ln}
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		if s := p.declaration(); s != nil {
			b.Stmts = append(b.Stmts, s)
		}
	}
	p.consume(token.RBRACE, "expected '}'")
	return b
}

// matchSemi consumes an optional trailing semicolon. The grammar is
// newline-insensitive: semicolons are purely decorative separators.
func (p *Parser) matchSemi() { p.match(token.SEMI) }

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.match(token.IF):
		return p.ifStatement()
	case p.match(token.WHILE):
		return p.whileStatement()
	case p.match(token.FOR):
		return p.forStatement()
	case p.match(token.LOOP):
		return p.loopStatement()
	case p.match(token.BREAK):
		ln := p.prev.Line
		p.matchSemi()
		return &ast.BreakStmt{Ln: ln}
	case p.match(token.RETURN):
		return p.returnStatement()
	case p.check(token.LBRACE):
		ln := p.cur.Line
		return &ast.BlockStmt{Body: p.block(), Ln: ln}
	default:
		return p.exprOrAssignStatement()
	}
}

func (p *Parser) ifStatement() ast.Stmt {
	ln := p.prev.Line
	cond := p.expression()
	then := p.block()
	var elseBlk *ast.Block
	if p.match(token.ELSE) {
		elseBlk = p.block()
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: elseBlk, Ln: ln}
}

func (p *Parser) whileStatement() ast.Stmt {
	ln := p.prev.Line
	cond := p.expression()
	body := p.block()
	return &ast.WhileStmt{Cond: cond, Body: body, Ln: ln}
}

func (p *Parser) forStatement() ast.Stmt {
	ln := p.prev.Line
	p.consume(token.IDENT, "expected loop variable name")
	v := p.prev.Lexeme
	p.consume(token.IN, "expected 'in' after loop variable")
	iterable := p.expression()
	body := p.block()
	return &ast.ForStmt{Var: v, Iterable: iterable, Body: body, Ln: ln}
}

func (p *Parser) loopStatement() ast.Stmt {
	ln := p.prev.Line
	body := p.block()
	return &ast.LoopStmt{Body: body, Ln: ln}
}

func (p *Parser) returnStatement() ast.Stmt {
	ln := p.prev.Line
	var val ast.Expr
	if !p.check(token.SEMI) && !p.check(token.RBRACE) && !p.check(token.EOF) {
		val = p.expression()
	}
	p.matchSemi()
	return &ast.ReturnStmt{Value: val, Ln: ln}
}

// exprOrAssignStatement parses an expression, and if it is immediately
// followed by '=', reinterprets it as the target of an assignment.
func (p *Parser) exprOrAssignStatement() ast.Stmt {
	ln := p.cur.Line
	expr := p.expression()
	if p.match(token.EQ) {
		switch expr.(type) {
		case *ast.Ident, *ast.IndexExpr:
			value := p.expression()
			p.matchSemi()
			return &ast.AssignStmt{Target: expr, Value: value, Ln: ln}
		default:
			p.error("invalid assignment target")
			value := p.expression()
			p.matchSemi()
			return &ast.AssignStmt{Target: expr, Value: value, Ln: ln}
		}
	}
	p.matchSemi()
	return &ast.ExprStmt{X: expr, Ln: ln}
}

// Package parser implements the recursive-descent, Pratt-precedence parser
// that turns a token stream into an AST for the compiler to consume.
package parser

import (
	"fmt"
	"io"
	"os"

	"github.com/mna/mica/lang/ast"
	"github.com/mna/mica/lang/scanner"
	"github.com/mna/mica/lang/token"
)

// Parser turns mica source text into an *ast.Program.
type Parser struct {
	scan *scanner.Scanner
	errw io.Writer

	cur, prev scanner.Token
	hadError  bool
	panicking bool
}

// New creates a Parser over src. Errors are reported to os.Stderr unless
// overridden with SetErrorWriter.
func New(src string) *Parser {
	p := &Parser{scan: scanner.New(src), errw: os.Stderr}
	return p
}

// SetErrorWriter redirects compile-time error reporting.
func (p *Parser) SetErrorWriter(w io.Writer) { p.errw = w }

// Parse parses a whole program. It returns the parsed AST (which may be
// partial on error) and whether parsing succeeded without any error.
func (p *Parser) Parse() (*ast.Program, bool) {
	p.advance()
	prog := &ast.Program{}
	for p.cur.Kind != token.EOF {
		if stmt := p.declaration(); stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
	}
	return prog, !p.hadError
}

func (p *Parser) advance() {
	p.prev = p.cur
	for {
		p.cur = p.scan.Scan()
		if p.cur.Kind != token.ERROR {
			break
		}
		p.errorAtCurrent(p.cur.Lexeme)
	}
}

func (p *Parser) check(k token.Token) bool { return p.cur.Kind == k }

func (p *Parser) match(k token.Token) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

// consume advances past the expected token kind, or reports a parse error.
func (p *Parser) consume(k token.Token, msg string) {
	if p.check(k) {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *Parser) errorAtCurrent(msg string) { p.errorAt(p.cur, msg) }
func (p *Parser) error(msg string)          { p.errorAt(p.prev, msg) }

func (p *Parser) errorAt(tok scanner.Token, msg string) {
	if p.panicking {
		return
	}
	p.panicking = true
	p.hadError = true

	fmt.Fprintf(p.errw, "[line %d] error", tok.Line)
	switch tok.Kind {
	case token.EOF:
		fmt.Fprint(p.errw, " at end")
	case token.ERROR:
		// message is the lexeme itself; no location suffix
	default:
		fmt.Fprintf(p.errw, " at '%s'", tok.Lexeme)
	}
	fmt.Fprintf(p.errw, ": %s\n", msg)
}

// synchronize recovers from a parse error by skipping tokens until a
// plausible statement boundary: after a semicolon, or before a token that
// starts a new statement.
func (p *Parser) synchronize() {
	p.panicking = false

	for p.cur.Kind != token.EOF {
		if p.prev.Kind == token.SEMI {
			return
		}
		switch p.cur.Kind {
		case token.FN, token.LET, token.IF, token.WHILE, token.FOR, token.RETURN:
			return
		}
		p.advance()
	}
}

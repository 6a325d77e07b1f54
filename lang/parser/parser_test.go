package parser_test

import (
	"bytes"
	"testing"

	"github.com/mna/mica/lang/ast"
	"github.com/mna/mica/lang/parser"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := parser.New(src)
	var errBuf bytes.Buffer
	p.SetErrorWriter(&errBuf)
	prog, ok := p.Parse()
	require.True(t, ok, "unexpected parse error: %s", errBuf.String())
	return prog
}

func TestLetStatement(t *testing.T) {
	prog := mustParse(t, `let mut x = 1 + 2 * 3`)
	require.Len(t, prog.Stmts, 1)
	let, ok := prog.Stmts[0].(*ast.LetStmt)
	require.True(t, ok)
	require.True(t, let.Mutable)
	require.Equal(t, "x", let.Name)

	bin, ok := let.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)
	mul, ok := bin.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "*", mul.Op)
}

func TestFunctionDeclAndCall(t *testing.T) {
	prog := mustParse(t, `fn add(a, b) { return a + b } print(add(2, 3))`)
	require.Len(t, prog.Stmts, 2)
	fn, ok := prog.Stmts[0].(*ast.FnStmt)
	require.True(t, ok)
	require.Equal(t, "add", fn.Name)
	require.Equal(t, []string{"a", "b"}, fn.Params)

	exprStmt, ok := prog.Stmts[1].(*ast.ExprStmt)
	require.True(t, ok)
	call, ok := exprStmt.X.(*ast.CallExpr)
	require.True(t, ok)
	require.Len(t, call.Args, 1)
}

func TestClosureExpr(t *testing.T) {
	prog := mustParse(t, `let mut n = 0 let f = || { n = n + 1 return n }`)
	require.Len(t, prog.Stmts, 2)
	let, ok := prog.Stmts[1].(*ast.LetStmt)
	require.True(t, ok)
	closure, ok := let.Value.(*ast.ClosureLit)
	require.True(t, ok)
	require.Empty(t, closure.Params)
	require.Len(t, closure.Body.Stmts, 2)
}

func TestIfElse(t *testing.T) {
	prog := mustParse(t, `if x == 1 { print(1) } else { print(2) }`)
	ifs, ok := prog.Stmts[0].(*ast.IfStmt)
	require.True(t, ok)
	require.NotNil(t, ifs.Then)
	require.NotNil(t, ifs.Else)
}

func TestForLoop(t *testing.T) {
	prog := mustParse(t, `for v in a { print(v) }`)
	f, ok := prog.Stmts[0].(*ast.ForStmt)
	require.True(t, ok)
	require.Equal(t, "v", f.Var)
}

func TestAssignToIndex(t *testing.T) {
	prog := mustParse(t, `a[0] = 1`)
	assign, ok := prog.Stmts[0].(*ast.AssignStmt)
	require.True(t, ok)
	_, ok = assign.Target.(*ast.IndexExpr)
	require.True(t, ok)
}

func TestInvalidAssignmentTarget(t *testing.T) {
	p := parser.New(`1 + 2 = 3`)
	var errBuf bytes.Buffer
	p.SetErrorWriter(&errBuf)
	_, ok := p.Parse()
	require.False(t, ok)
	require.Contains(t, errBuf.String(), "invalid assignment target")
}

func TestIterChainParsesButIsRecorded(t *testing.T) {
	prog := mustParse(t, `for v in a.iter().map(|x| x) { print(v) }`)
	f, ok := prog.Stmts[0].(*ast.ForStmt)
	require.True(t, ok)
	chain, ok := f.Iterable.(*ast.IterChain)
	require.True(t, ok)
	require.Len(t, chain.Calls, 1)
	require.Equal(t, "map", chain.Calls[0].Method)
}

func TestPrecedenceClimbing(t *testing.T) {
	prog := mustParse(t, `let x = 1 + 2 == 3 * 1`)
	let := prog.Stmts[0].(*ast.LetStmt)
	eq, ok := let.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "==", eq.Op)
	_, ok = eq.Left.(*ast.BinaryExpr)
	require.True(t, ok)
	_, ok = eq.Right.(*ast.BinaryExpr)
	require.True(t, ok)
}

func TestSynchronizeAfterError(t *testing.T) {
	p := parser.New("let = 1 let y = 2")
	var errBuf bytes.Buffer
	p.SetErrorWriter(&errBuf)
	prog, ok := p.Parse()
	require.False(t, ok)
	// parser should still recover enough to parse the second statement
	found := false
	for _, s := range prog.Stmts {
		if let, ok := s.(*ast.LetStmt); ok && let.Name == "y" {
			found = true
		}
	}
	require.True(t, found, "parser did not resynchronize after error")
}

package ast

import (
	"fmt"
	"io"
	"strings"
)

// Print writes an indented s-expression-like dump of prog to w, for the
// "parse" debug CLI command. It is not meant to be re-parseable.
func Print(w io.Writer, prog *Program) {
	for _, s := range prog.Stmts {
		printStmt(w, s, 0)
	}
}

func indent(w io.Writer, depth int) { fmt.Fprint(w, strings.Repeat("  ", depth)) }

func printBlock(w io.Writer, b *Block, depth int) {
	for _, s := range b.Stmts {
		printStmt(w, s, depth)
	}
}

func printStmt(w io.Writer, s Stmt, depth int) {
	indent(w, depth)
	switch s := s.(type) {
	case *LetStmt:
		fmt.Fprintf(w, "let mut=%v %s =\n", s.Mutable, s.Name)
		printExpr(w, s.Value, depth+1)
	case *FnStmt:
		fmt.Fprintf(w, "fn %s(%s)\n", s.Name, strings.Join(s.Params, ", "))
		printBlock(w, s.Body, depth+1)
	case *AssignStmt:
		fmt.Fprintln(w, "assign")
		printExpr(w, s.Target, depth+1)
		printExpr(w, s.Value, depth+1)
	case *IfStmt:
		fmt.Fprintln(w, "if")
		printExpr(w, s.Cond, depth+1)
		printBlock(w, s.Then, depth+1)
		if s.Else != nil {
			indent(w, depth)
			fmt.Fprintln(w, "else")
			printBlock(w, s.Else, depth+1)
		}
	case *WhileStmt:
		fmt.Fprintln(w, "while")
		printExpr(w, s.Cond, depth+1)
		printBlock(w, s.Body, depth+1)
	case *ForStmt:
		fmt.Fprintf(w, "for %s in\n", s.Var)
		printExpr(w, s.Iterable, depth+1)
		printBlock(w, s.Body, depth+1)
	case *LoopStmt:
		fmt.Fprintln(w, "loop")
		printBlock(w, s.Body, depth+1)
	case *BreakStmt:
		fmt.Fprintln(w, "break")
	case *ReturnStmt:
		fmt.Fprintln(w, "return")
		if s.Value != nil {
			printExpr(w, s.Value, depth+1)
		}
	case *BlockStmt:
		fmt.Fprintln(w, "block")
		printBlock(w, s.Body, depth+1)
	case *ExprStmt:
		fmt.Fprintln(w, "expr")
		printExpr(w, s.X, depth+1)
	default:
		fmt.Fprintf(w, "?stmt %T\n", s)
	}
}

func printExpr(w io.Writer, e Expr, depth int) {
	indent(w, depth)
	switch e := e.(type) {
	case *IntLit:
		fmt.Fprintf(w, "int %d\n", e.Value)
	case *FloatLit:
		fmt.Fprintf(w, "float %g\n", e.Value)
	case *StringLit:
		fmt.Fprintf(w, "string %q\n", e.Value)
	case *BoolLit:
		fmt.Fprintf(w, "bool %v\n", e.Value)
	case *NoneLit:
		fmt.Fprintln(w, "none")
	case *Ident:
		fmt.Fprintf(w, "ident %s\n", e.Name)
	case *ArrayLit:
		fmt.Fprintln(w, "array")
		for _, el := range e.Elems {
			printExpr(w, el, depth+1)
		}
	case *ClosureLit:
		fmt.Fprintf(w, "closure(%s)\n", strings.Join(e.Params, ", "))
		printBlock(w, e.Body, depth+1)
	case *CallExpr:
		fmt.Fprintln(w, "call")
		printExpr(w, e.Callee, depth+1)
		for _, a := range e.Args {
			printExpr(w, a, depth+1)
		}
	case *IndexExpr:
		fmt.Fprintln(w, "index")
		printExpr(w, e.Array, depth+1)
		printExpr(w, e.Index, depth+1)
	case *BinaryExpr:
		fmt.Fprintf(w, "binary %s\n", e.Op)
		printExpr(w, e.Left, depth+1)
		printExpr(w, e.Right, depth+1)
	case *UnaryExpr:
		fmt.Fprintf(w, "unary %s\n", e.Op)
		printExpr(w, e.Operand, depth+1)
	case *IterChain:
		fmt.Fprintf(w, "iter-chain (%d methods)\n", len(e.Calls))
		printExpr(w, e.Source, depth+1)
	default:
		fmt.Fprintf(w, "?expr %T\n", e)
	}
}

package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/mica/lang/ast"
	"github.com/mna/mica/lang/parser"
)

// Parse runs the scanner+parser phases only, over each file in args, and
// prints the resulting AST as an indented, non-reparseable dump.
func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var failed bool
	for _, path := range args {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", path, err)
			failed = true
			continue
		}
		p := parser.New(string(src))
		p.SetErrorWriter(stdio.Stderr)
		prog, ok := p.Parse()
		ast.Print(stdio.Stdout, prog)
		if !ok {
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("parse: one or more files failed")
	}
	return nil
}

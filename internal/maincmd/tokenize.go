package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/mica/lang/scanner"
	"github.com/mna/mica/lang/token"
)

// Tokenize runs the scanner phase only, over each file in args, and prints
// the resulting token stream: one "line: KIND" per line, followed by the
// lexeme for identifiers, literals and error tokens.
func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
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
		scan := scanner.New(string(src))
		for {
			tok := scan.Scan()
			fmt.Fprintf(stdio.Stdout, "%d: %s", tok.Line, tok.Kind)
			if tok.Kind == token.IDENT || tok.Kind == token.INT || tok.Kind == token.FLOAT ||
				tok.Kind == token.STRING || tok.Kind == token.ERROR {
				fmt.Fprintf(stdio.Stdout, " %s", tok.Lexeme)
			}
			fmt.Fprintln(stdio.Stdout)
			if tok.Kind == token.EOF {
				break
			}
			if tok.Kind == token.ERROR {
				failed = true
			}
		}
	}
	if failed {
		return fmt.Errorf("tokenize: one or more files failed")
	}
	return nil
}

package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
)

// Run compiles and executes each file in args, in order, against a single
// shared VM so a later file sees the globals a previous one defined.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	vm, err := c.newVM()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	vm.Stdout = stdio.Stdout
	vm.Stderr = stdio.Stderr

	for _, path := range args {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", path, err)
			return err
		}
		if !vm.CompileAndRun(string(src)) {
			return fmt.Errorf("%s: execution failed", path)
		}
	}
	return nil
}

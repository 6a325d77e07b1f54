package maincmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/mna/mainer"
)

// Repl starts a line-based read-eval-print loop against a single VM, so
// each line sees the globals every previous line defined. It terminates on
// the literal input "exit" or on EOF (Ctrl-D).
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, args []string) error {
	vm, err := c.newVM()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	vm.Stdout = stdio.Stdout
	vm.Stderr = stdio.Stderr

	prompt := color.New(color.FgCyan, color.Bold).Sprint("mica> ")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      prompt,
		HistoryFile: "",
		Stdin:       stdio.Stdin,
		Stdout:      stdio.Stdout,
		Stderr:      stdio.Stderr,
	})
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	defer rl.Close()

	errColor := color.New(color.FgRed)
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !vm.CompileAndRun(line) {
			errColor.Fprintln(stdio.Stderr, "(execution aborted)")
		}
	}
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	loxvm "github.com/loxvm/loxvm"
	"github.com/spf13/cobra"
)

func replCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive Lox session",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runRepl()
		},
	}
}

// runRepl drives a persistent VM against one line editor session, reusing
// globals and interned strings across input lines (SPEC_FULL.md §3 "REPL":
// "a thin driver over VM.RunSource, compiling and running one line at a
// time against a persistent VM").
func runRepl() {
	rl, err := readline.New("loxvm> ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "readline:", err)
		os.Exit(exitInitFailure)
	}
	defer rl.Close()

	vm := loxvm.New(os.Stdout)
	defer vm.Close()
	loxvm.RegisterStdlib(vm)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		if line == "" {
			continue
		}
		vm.RunSource(line)
	}
}

// Command loxvm runs and explores the loxvm bytecode interpreter.
package main

import (
	"fmt"
	"os"

	loxvm "github.com/loxvm/loxvm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit codes per spec.md §6: "runs the file; exit code 0 on success,
// negative on init failure, 1 on compile error, 2 on runtime error."
const (
	exitOK           = 0
	exitInitFailure  = -1
	exitCompileError = 1
	exitRuntimeError = 2
)

var debugFlag bool

func main() {
	root := &cobra.Command{
		Use:   "loxvm",
		Short: "A bytecode virtual machine for the Lox scripting language",
	}
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "trace bytecode disassembly, opcode dispatch, and GC hooks")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		loxvm.SetDebug(debugFlag)
		loxvm.ConfigureLogging(&logrus.TextFormatter{}, os.Stderr)
	}

	root.AddCommand(runCommand())
	root.AddCommand(replCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInitFailure)
	}
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE",
		Short: "Compile and run a Lox source file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			vm := loxvm.New(os.Stdout)
			defer vm.Close()
			loxvm.RegisterStdlib(vm)

			switch vm.RunFile(args[0]) {
			case loxvm.InterpretOK:
				os.Exit(exitOK)
			case loxvm.InterpretCompileError:
				os.Exit(exitCompileError)
			case loxvm.InterpretRuntimeError:
				os.Exit(exitRuntimeError)
			}
		},
	}
}

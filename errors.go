package loxvm

import "fmt"

// RuntimeError is the structured form of a failed `run` (spec.md §4.8
// "Runtime-error behavior"): the formatted message plus a frame-by-frame
// backtrace, newest call first. Compile-time errors stay as the
// `*multierror.Error` hashicorp/go-multierror accumulates in compiler.go
// (SPEC_FULL.md §3 "Error handling") since callers there want every
// recovered syntax error, not just the first; runtime failures are terminal
// for the current run (spec.md §7), so one message plus its trace is enough.
type RuntimeError struct {
	Message   string
	Backtrace []BacktraceFrame
}

// BacktraceFrame is one `[line:col] in NAME` line of a RuntimeError's trace.
type BacktraceFrame struct {
	Name   string
	Line   int
	Column int
}

func (e *RuntimeError) Error() string {
	s := e.Message
	for _, f := range e.Backtrace {
		s += fmt.Sprintf("\n[%d:%d] in %s", f.Line, f.Column, f.Name)
	}
	return s
}

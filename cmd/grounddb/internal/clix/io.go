// Package clix is cmd/grounddb's command dispatch shape: a Command/IO pair
// adapted from the ticket tracker's internal/cli package, generalized from
// one fixed command set to GroundDB's get/list/insert/... surface.
package clix

import (
	"fmt"
	"io"
)

// IO wraps a command's stdout/stderr so Exec bodies never touch os.Stdout
// directly, which keeps them testable against a bytes.Buffer.
type IO struct {
	out    io.Writer
	errOut io.Writer
}

// NewIO creates an IO writing to out/errOut.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

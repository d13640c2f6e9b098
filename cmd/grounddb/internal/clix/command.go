package clix

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines one grounddb subcommand with unified help generation and
// exit-code handling.
type Command struct {
	// Flags defines command-specific flags. The FlagSet's own name is
	// unused; command identity comes from Usage.
	Flags *flag.FlagSet

	// Usage is the freeform usage string shown after "grounddb" in help,
	// e.g. "get <collection> <id|prefix> [flags]".
	Usage string

	// Short is a one-line description for the top-level help listing.
	Short string

	// Long is the full description shown in "grounddb <cmd> --help". Short
	// is used if Long is empty.
	Long string

	// Exec runs the command body after flags are parsed. args is whatever
	// positional arguments remain.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the command name (Usage's first word).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the one-line entry shown in the top-level command list.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-32s %s", c.Usage, c.Short)
}

// PrintHelp prints "grounddb <cmd> --help" output.
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: grounddb", c.Usage)
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Println(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses flags, executes the command, and returns the process exit
// code per spec §6: 0 on success, 1/2 per ExitCode on failure. Error
// printing happens here so every command reports failures the same way.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{}) // discard pflag's own usage output

	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)
			return 0
		}

		o.ErrPrintln(FormatError(err))

		return 2
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln(FormatError(err))

		return ExitCode(err)
	}

	return 0
}

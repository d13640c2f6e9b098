package main

import (
	"context"
	"encoding/json"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
)

func newViewCommand() *clix.Command {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")

	return &clix.Command{
		Flags: fs,
		Usage: "view <name> [flags]",
		Short: "Print a static view's cached rows",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: grounddb view <name>")
			}

			s, err := openOneShot(ctx, *dir)
			if err != nil {
				return err
			}
			defer s.Close()

			rows, err := s.View(ctx, args[0])
			if err != nil {
				return err
			}

			printRows(o, rows)

			return nil
		},
	}
}

func printRows(o *clix.IO, rows []map[string]any) {
	if len(rows) == 0 {
		o.Println("(empty)")
		return
	}

	out, _ := json.MarshalIndent(rows, "", "  ")
	o.Printf("%s\n", out)
	o.Printf("\n%d row(s)\n", len(rows))
}

package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
)

func newQueryCommand() *clix.Command {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	params := fs.StringArray("param", nil, "key=value, repeatable; value is parsed as JSON when possible")

	return &clix.Command{
		Flags: fs,
		Usage: "query <name> [--param key=value]... [flags]",
		Short: "Run a parameterized query view",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: grounddb query <name> [--param key=value]...")
			}

			p, err := parseSetFlags(*params)
			if err != nil {
				return err
			}

			s, err := openOneShot(ctx, *dir)
			if err != nil {
				return err
			}
			defer s.Close()

			rows, err := s.QueryDynamic(ctx, args[0], p)
			if err != nil {
				return err
			}

			printRows(o, rows)

			return nil
		},
	}
}

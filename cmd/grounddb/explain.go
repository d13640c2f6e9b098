package main

import (
	"context"
	"fmt"
	"sort"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
)

func newExplainCommand() *clix.Command {
	fs := flag.NewFlagSet("explain", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	params := fs.StringArray("param", nil, "key=value, repeatable; value is parsed as JSON when possible")

	return &clix.Command{
		Flags: fs,
		Usage: "explain <name> [--param key=value]... [flags]",
		Short: "Print a view's rewritten SQL plan and execution stats",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: grounddb explain <name> [--param key=value]...")
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

			plan, stats, err := s.Explain(ctx, args[0], p)
			if err != nil {
				return err
			}

			o.Printf("plan:\n%s\n", plan)

			if len(stats) > 0 {
				o.Println("\nstats:")

				keys := make([]string, 0, len(stats))
				for k := range stats {
					keys = append(keys, k)
				}

				sort.Strings(keys)

				for _, k := range keys {
					o.Printf("  %-20s %d\n", k, stats[k])
				}
			}

			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
)

func newListCommand() *clix.Command {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")

	return &clix.Command{
		Flags: fs,
		Usage: "list <collection> [flags]",
		Short: "List every document in a collection",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: grounddb list <collection>")
			}

			s, err := openOneShot(ctx, *dir)
			if err != nil {
				return err
			}
			defer s.Close()

			docs, err := s.List(ctx, args[0])
			if err != nil {
				return err
			}

			if len(docs) == 0 {
				o.Println("(empty)")
				return nil
			}

			for _, d := range docs {
				o.Printf("%-24s  %s\n", d.ID, d.Path)
			}

			o.Printf("\n%d document(s)\n", len(docs))

			return nil
		},
	}
}

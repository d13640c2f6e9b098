package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
)

func newDeleteCommand() *clix.Command {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")

	return &clix.Command{
		Flags: fs,
		Usage: "delete <collection> <id> [flags]",
		Short: "Delete a document, applying its on_delete policy to referrers",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: grounddb delete <collection> <id>")
			}

			s, err := openOneShot(ctx, *dir)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Delete(ctx, args[0], args[1]); err != nil {
				return err
			}

			o.Printf("deleted %s/%s\n", args[0], args[1])

			return nil
		},
	}
}

package main

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
)

func newRebuildCommand() *clix.Command {
	fs := flag.NewFlagSet("rebuild", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")

	return &clix.Command{
		Flags: fs,
		Usage: "rebuild [<view>] [flags]",
		Short: "Recompute one static view's cache, or every view with no argument",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			s, err := openOneShot(ctx, *dir)
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) > 0 {
				if err := s.RebuildView(ctx, args[0]); err != nil {
					return err
				}

				o.Printf("rebuilt %s\n", args[0])

				return nil
			}

			if err := s.Rebuild(ctx); err != nil {
				return err
			}

			o.Println("rebuilt every view")

			return nil
		},
	}
}

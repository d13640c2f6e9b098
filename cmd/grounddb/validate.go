package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
	"github.com/groundlabs/grounddb/internal/ground"
)

func newValidateCommand() *clix.Command {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")

	return &clix.Command{
		Flags: fs,
		Usage: "validate [flags]",
		Short: "Re-validate every document in every collection against the current schema",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			s, err := openOneShot(ctx, *dir)
			if err != nil {
				return err
			}
			defer s.Close()

			errs := s.ValidateAll(ctx)
			if len(errs) == 0 {
				o.Println("ok: every document is valid")
				return nil
			}

			for _, e := range errs {
				o.ErrPrintln(clix.FormatError(e))
			}

			return &ground.Error{Kind: ground.KindValidation, Err: fmt.Errorf("%d document(s) failed validation", len(errs))}
		},
	}
}

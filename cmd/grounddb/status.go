package main

import (
	"context"
	"sort"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
)

func newStatusCommand() *clix.Command {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")

	return &clix.Command{
		Flags: fs,
		Usage: "status [flags]",
		Short: "Print collection/view/document counts for the data directory",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			s, err := openOneShot(ctx, *dir)
			if err != nil {
				return err
			}
			defer s.Close()

			sch := s.Schema()

			names := make([]string, 0, len(sch.Collections))
			for name := range sch.Collections {
				names = append(names, name)
			}

			sort.Strings(names)

			o.Println("collections:")

			for _, name := range names {
				docs, err := s.List(ctx, name)
				if err != nil {
					return err
				}

				o.Printf("  %-24s %d document(s)\n", name, len(docs))
			}

			viewNames := make([]string, 0, len(sch.Views))
			for name := range sch.Views {
				viewNames = append(viewNames, name)
			}

			sort.Strings(viewNames)

			o.Println("\nviews:")

			for _, name := range viewNames {
				v := sch.Views[name]

				kind := "static"
				if v.Type == "query" {
					kind = "query"
				}

				o.Printf("  %-24s %s\n", name, kind)
			}

			errs := s.ValidateAll(ctx)
			o.Printf("\nvalidation: %d error(s)\n", len(errs))

			return nil
		},
	}
}

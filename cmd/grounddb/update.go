package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
)

func newUpdateCommand() *clix.Command {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	sets := fs.StringArray("set", nil, "field=value, repeatable; value is parsed as JSON when possible")
	body := fs.String("body", "", "replacement body text")
	full := fs.Bool("replace", false, "full replace instead of the default partial merge")

	return &clix.Command{
		Flags: fs,
		Usage: "update <collection> <id> [--set field=value]... [--body text] [flags]",
		Short: "Update a document's fields (partial merge by default)",
		Long: "Merges --set field values into the document's current fields and leaves\n" +
			"everything else untouched. Pass --replace for full-replace semantics\n" +
			"(every field the collection declares and the caller omits is dropped\n" +
			"unless it has a default).",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: grounddb update <collection> <id> [--set field=value]...")
			}

			fields, err := parseSetFlags(*sets)
			if err != nil {
				return err
			}

			s, err := openOneShot(ctx, *dir)
			if err != nil {
				return err
			}
			defer s.Close()

			collection, id := args[0], args[1]

			if *full {
				result, err := s.Update(ctx, collection, id, fields, *body)
				if err != nil {
					return err
				}

				o.Printf("updated %s/%s at %s\n", result.Collection, result.ID, result.Path)

				return nil
			}

			var bodyPtr *string
			if fs.Changed("body") {
				bodyPtr = body
			}

			result, err := s.UpdatePartial(ctx, collection, id, fields, bodyPtr)
			if err != nil {
				return err
			}

			o.Printf("updated %s/%s at %s\n", result.Collection, result.ID, result.Path)

			return nil
		},
	}
}

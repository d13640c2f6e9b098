package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
)

func newInsertCommand() *clix.Command {
	fs := flag.NewFlagSet("insert", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	sets := fs.StringArray("set", nil, "field=value, repeatable; value is parsed as JSON when possible")
	body := fs.String("body", "", "free-text body (markdown collections only)")

	return &clix.Command{
		Flags: fs,
		Usage: "insert <collection> [--set field=value]... [--body text] [flags]",
		Short: "Create a new document",
		Long: "Creates a new document in <collection>. Use --set repeatedly to supply\n" +
			"field values; a collection with id.auto generates its own id, otherwise\n" +
			"supply one with --set id=<value>.",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: grounddb insert <collection> [--set field=value]...")
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

			doc, err := s.Insert(ctx, args[0], fields, *body)
			if err != nil {
				return err
			}

			o.Printf("inserted %s/%s at %s\n", doc.Collection, doc.ID, doc.Path)

			return nil
		},
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
	"github.com/groundlabs/grounddb/internal/store"
)

func newExportCommand() *clix.Command {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	out := fs.String("out", "", "write to this file instead of stdout")

	return &clix.Command{
		Flags: fs,
		Usage: "export [<collection>] [--out file] [flags]",
		Short: "Dump a collection (or every collection) as a JSON array of documents",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			s, err := openOneShot(ctx, *dir)
			if err != nil {
				return err
			}
			defer s.Close()

			var docs []store.Document

			if len(args) > 0 {
				docs, err = s.List(ctx, args[0])
				if err != nil {
					return err
				}
			} else {
				sch := s.Schema()

				names := make([]string, 0, len(sch.Collections))
				for name := range sch.Collections {
					names = append(names, name)
				}

				sort.Strings(names)

				for _, name := range names {
					collDocs, err := s.List(ctx, name)
					if err != nil {
						return err
					}

					docs = append(docs, collDocs...)
				}
			}

			payload := make([]exportedDoc, len(docs))
			for i, d := range docs {
				payload[i] = exportedDoc{
					Collection: d.Collection,
					ID:         d.ID,
					Path:       d.Path,
					Fields:     d.Fields,
					Body:       d.Body,
				}
			}

			encoded, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding export: %w", err)
			}

			if *out == "" {
				o.Printf("%s\n", encoded)
				return nil
			}

			if err := os.WriteFile(*out, encoded, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", *out, err)
			}

			o.Printf("wrote %d document(s) to %s\n", len(docs), *out)

			return nil
		},
	}
}

type exportedDoc struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Path       string         `json:"path"`
	Fields     map[string]any `json:"fields"`
	Body       string         `json:"body,omitempty"`
}

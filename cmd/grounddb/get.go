package main

import (
	"context"
	"encoding/json"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/store"
)

func newGetCommand() *clix.Command {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")

	return &clix.Command{
		Flags: fs,
		Usage: "get <collection> <id|prefix> [flags]",
		Short: "Print one document by id or unambiguous id prefix",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: grounddb get <collection> <id|prefix>")
			}

			s, err := openOneShot(ctx, *dir)
			if err != nil {
				return err
			}
			defer s.Close()

			doc, err := resolveOne(ctx, s, args[0], args[1])
			if err != nil {
				return err
			}

			printDocument(o, doc)

			return nil
		},
	}
}

// resolveOne looks id up as an exact id first, falling back to prefix
// search so a caller can address a document with just enough of its id to
// be unambiguous.
func resolveOne(ctx context.Context, s *store.Store, collection, id string) (store.Document, error) {
	if doc, err := s.Get(ctx, collection, id); err == nil {
		return doc, nil
	}

	matches, err := s.GetByPrefix(ctx, collection, id, 0)
	if err != nil {
		return store.Document{}, err
	}

	switch len(matches) {
	case 0:
		return store.Document{}, &ground.Error{Kind: ground.KindNotFound, Collection: collection, ID: id, Err: fmt.Errorf("no document matching %q", id)}
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}

		return store.Document{}, &ground.Error{Kind: ground.KindValidation, Collection: collection, ID: id, Err: fmt.Errorf("ambiguous prefix, matches %v", ids)}
	}
}

func printDocument(o *clix.IO, doc store.Document) {
	o.Printf("collection: %s\n", doc.Collection)
	o.Printf("id:         %s\n", doc.ID)
	o.Printf("path:       %s\n", doc.Path)
	o.Printf("created_at: %s\n", doc.CreatedAt.Format(timeLayout))
	o.Printf("modified_at: %s\n", doc.ModifiedAt.Format(timeLayout))

	fieldsJSON, _ := json.MarshalIndent(doc.Fields, "", "  ")
	o.Printf("fields:\n%s\n", fieldsJSON)

	if doc.Body != "" {
		o.Printf("\n---\n%s\n", doc.Body)
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

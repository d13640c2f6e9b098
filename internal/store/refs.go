package store

import (
	"context"
	"fmt"

	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/schema"
	"github.com/groundlabs/grounddb/internal/sysindex"
	"github.com/groundlabs/grounddb/internal/validate"
)

// checkRefExists returns a validate.RefCheck bound to ctx: given a ref
// field's candidate target collections and id, it confirms the id exists
// in at least one of them (spec I5). Polymorphic refs pass a single
// narrowed collection (the declared "type"), so this always checks exactly
// the candidate set it's given.
func (s *Store) checkRefExists(ctx context.Context) validate.RefCheck {
	return func(targets []string, id string) error {
		for _, target := range targets {
			if _, err := s.idx.Get(ctx, target, id); err == nil {
				return nil
			}
		}

		return &ground.Error{Kind: ground.KindReference, Err: fmt.Errorf("no document %q found in %v", id, targets)}
	}
}

// referrer is one document that references (collection, id) through field.
type referrer struct {
	Collection string
	ID         string
	Field      *schema.Field
}

// findReferrers scans every collection's index rows for ref fields
// pointing at (collection, id). This is the "scan the reference graph"
// step of delete (spec §4.7): there is no reverse index, so it is a full
// table scan per referencing collection, acceptable for the document
// counts this system targets.
func (s *Store) findReferrers(ctx context.Context, collection, id string) ([]referrer, error) {
	var out []referrer

	for colName, col := range s.sch.Collections {
		var refFields []*schema.Field

		for _, f := range col.Fields {
			if f.Type == schema.TypeRef && containsTarget(f.Target, collection) {
				refFields = append(refFields, f)
			}
		}

		if len(refFields) == 0 {
			continue
		}

		rows, err := s.idx.ListCollection(ctx, colName)
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			for _, f := range refFields {
				if refPointsAt(row.Data[f.Name], collection, id) {
					out = append(out, referrer{Collection: colName, ID: row.ID, Field: f})
				}
			}
		}
	}

	return out, nil
}

// refPointsAt reports whether a stored ref value (a plain id string, or a
// polymorphic {type, id} map) names (collection, id).
func refPointsAt(val any, collection, id string) bool {
	switch v := val.(type) {
	case string:
		return v == id
	case map[string]any:
		typ, _ := v["type"].(string)
		refID, _ := v["id"].(string)

		return typ == collection && refID == id
	default:
		return false
	}
}

func containsTarget(targets []string, name string) bool {
	for _, t := range targets {
		if t == name {
			return true
		}
	}

	return false
}

// rowToFields copies a sysindex row's data into a fresh map, the shape
// every mutation path works with before re-validating and re-writing.
func rowToFields(row sysindex.DocumentRow) map[string]any {
	out := make(map[string]any, len(row.Data))
	for k, v := range row.Data {
		out[k] = v
	}

	return out
}

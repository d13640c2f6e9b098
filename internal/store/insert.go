package store

import (
	"context"
	"fmt"
	"time"

	"github.com/groundlabs/grounddb/internal/docfile"
	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/idgen"
	"github.com/groundlabs/grounddb/internal/schema"
	"github.com/groundlabs/grounddb/internal/sysindex"
	"github.com/groundlabs/grounddb/internal/validate"
)

// Insert creates a new document in collection, running the full write
// pipeline of spec §4.7: resolve id, validate fields, check referential
// integrity, render the path (applying on_conflict if it's already taken),
// write the file atomically, upsert the index, and fan out the resulting
// view and collection-change notifications.
func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any, body string) (Document, error) {
	if err := s.checkNotDispatching(); err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(ctx, collection, fields, body)
}

// insertLocked is Insert's body, factored out so Batch can run it under a
// single lock acquisition alongside other staged operations.
func (s *Store) insertLocked(ctx context.Context, collection string, fields map[string]any, body string) (Document, error) {
	col, err := s.collection(collection)
	if err != nil {
		return Document{}, err
	}

	if col.Readonly {
		return Document{}, &ground.Error{Kind: ground.KindSchema, Collection: collection, Err: fmt.Errorf("collection %q is readonly", collection)}
	}

	in := copyFields(fields)

	id, err := s.resolveInsertID(col, in)
	if err != nil {
		return Document{}, ground.WithContext(err, collection, "", "")
	}

	in["id"] = id

	result, err := validate.Document(col, in, validate.Options{CheckRef: s.checkRefExists(ctx)})
	if err != nil {
		return Document{}, ground.WithContext(err, collection, id, "")
	}

	if _, err := s.idx.Get(ctx, collection, id); err == nil {
		return Document{}, &ground.Error{Kind: ground.KindPathConflict, Collection: collection, ID: id, Err: fmt.Errorf("document %q already exists", id)}
	}

	now := time.Now().UTC()

	if shapeOf(col) == docfile.ShapeJSONL {
		return s.insertRecord(ctx, col, result.Fields, now)
	}

	relPath, err := s.resolvePath(col, result.Fields, "")
	if err != nil {
		return Document{}, err
	}

	if err := s.writeDocumentAtomic(col, relPath, result.Fields, body); err != nil {
		return Document{}, err
	}

	row := sysindex.DocumentRow{
		Collection:  collection,
		ID:          id,
		Path:        relPath,
		MtimeNS:     now.UnixNano(),
		CreatedAt:   now.Format(time.RFC3339Nano),
		ModifiedAt:  now.Format(time.RFC3339Nano),
		ContentText: body,
		Data:        result.Fields,
	}

	if err := s.idx.Upsert(ctx, row); err != nil {
		return Document{}, err
	}

	doc := documentFromRow(row)

	s.rebuildAffected(ctx, collection, CollectionChange{Kind: Inserted, Collection: collection, ID: id, New: &doc})

	return doc, nil
}

// insertRecord appends one record to a jsonl (Records) collection's shared
// file: read-modify-writeRecords, since there is no standalone per-record
// file to write.
func (s *Store) insertRecord(ctx context.Context, col *schema.Collection, fields map[string]any, now time.Time) (Document, error) {
	relPath := col.Path

	records, err := s.readRecords(relPath)
	if err != nil {
		return Document{}, err
	}

	id, _ := fields["id"].(string)

	for _, r := range records {
		if rid, _ := r["id"].(string); rid == id {
			return Document{}, &ground.Error{Kind: ground.KindPathConflict, Collection: col.Name, ID: id, Err: fmt.Errorf("record %q already exists", id)}
		}
	}

	records = append(records, fields)

	if err := s.writeRecords(col, relPath, records); err != nil {
		return Document{}, err
	}

	row := sysindex.DocumentRow{
		Collection: col.Name,
		ID:         id,
		Path:       relPath,
		MtimeNS:    now.UnixNano(),
		CreatedAt:  now.Format(time.RFC3339Nano),
		ModifiedAt: now.Format(time.RFC3339Nano),
		Data:       fields,
		SharedPath: true,
	}

	if err := s.idx.Upsert(ctx, row); err != nil {
		return Document{}, err
	}

	doc := documentFromRow(row)

	s.rebuildAffected(ctx, col.Name, CollectionChange{Kind: Inserted, Collection: col.Name, ID: id, New: &doc})

	return doc, nil
}

// resolveInsertID determines the id for a new document: the caller's
// explicit "id" field value if present, otherwise a generated one per
// col.IDAuto. With no explicit id and no id.auto generator it fails with
// ground.KindValidation.
func (s *Store) resolveInsertID(col *schema.Collection, fields map[string]any) (string, error) {
	if existing, ok := fields["id"].(string); ok && existing != "" {
		return existing, nil
	}

	if col.IDAuto == schema.IDAutoNone {
		return "", &ground.Error{Kind: ground.KindValidation, Err: fmt.Errorf("collection %q requires an explicit id", col.Name)}
	}

	return idgen.Generate(col.IDAuto)
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}

	return out
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/groundlabs/grounddb/internal/docfile"
	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/schema"
	"github.com/groundlabs/grounddb/internal/sysindex"
	"github.com/groundlabs/grounddb/internal/validate"
)

// Update replaces a document's fields and body entirely (full-replace
// semantics; any field the collection declares and the caller omits is
// dropped unless it has a default).
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any, body string) (Document, error) {
	if err := s.checkNotDispatching(); err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeUpdateLocked(ctx, collection, id, fields, &body, false)
}

// UpdatePartial merges fields into the document's current field set,
// leaving everything the caller omits untouched, then re-validates and
// re-renders (spec §4.7). A nil body leaves the current body unchanged.
func (s *Store) UpdatePartial(ctx context.Context, collection, id string, fields map[string]any, body *string) (Document, error) {
	if err := s.checkNotDispatching(); err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeUpdateLocked(ctx, collection, id, fields, body, true)
}

// writeUpdateLocked is the shared write pipeline for Update and
// UpdatePartial, factored out so Batch can run it under a single lock
// acquisition: load current (merging fields over it when partial is true,
// so the merge happens under the same write lock as the rest of the
// operation and can't race a concurrent mutation), validate+re-check refs,
// render the new path, move the file if the path changed, upsert the
// index, and fan out notifications. Assumes mu is already held for write.
func (s *Store) writeUpdateLocked(ctx context.Context, collection, id string, fields map[string]any, body *string, partial bool) (Document, error) {
	col, err := s.collection(collection)
	if err != nil {
		return Document{}, err
	}

	if col.Readonly {
		return Document{}, &ground.Error{Kind: ground.KindSchema, Collection: collection, Err: fmt.Errorf("collection %q is readonly", collection)}
	}

	current, err := s.idx.Get(ctx, collection, id)
	if err != nil {
		return Document{}, ground.WithContext(err, collection, id, "")
	}

	oldDoc := documentFromRow(current)

	var next map[string]any
	if partial {
		next = copyFields(current.Data)
		for k, v := range fields {
			next[k] = v
		}
	} else {
		next = copyFields(fields)
	}

	next["id"] = id

	newBody := current.ContentText
	if body != nil {
		newBody = *body
	}

	result, err := validate.Document(col, next, validate.Options{CheckRef: s.checkRefExists(ctx)})
	if err != nil {
		return Document{}, ground.WithContext(err, collection, id, current.Path)
	}

	now := time.Now().UTC()

	if shapeOf(col) == docfile.ShapeJSONL {
		return s.updateRecord(ctx, col, id, result.Fields, &oldDoc, now)
	}

	newPath, err := s.resolvePath(col, result.Fields, current.Path)
	if err != nil {
		return Document{}, err
	}

	if err := s.writeDocumentAtomic(col, newPath, result.Fields, newBody); err != nil {
		return Document{}, err
	}

	if newPath != current.Path {
		if err := s.removeDocument(current.Path); err != nil {
			return Document{}, err
		}
	}

	row := sysindex.DocumentRow{
		Collection:  collection,
		ID:          id,
		Path:        newPath,
		MtimeNS:     now.UnixNano(),
		CreatedAt:   current.CreatedAt,
		ModifiedAt:  now.Format(time.RFC3339Nano),
		ContentText: newBody,
		Data:        result.Fields,
	}

	if err := s.idx.Upsert(ctx, row); err != nil {
		return Document{}, err
	}

	newDoc := documentFromRow(row)

	s.rebuildAffected(ctx, collection, CollectionChange{Kind: Updated, Collection: collection, ID: id, Old: &oldDoc, New: &newDoc})

	return newDoc, nil
}

// updateRecord rewrites one record within a jsonl collection's shared
// file: locate it by id, replace it, and re-render the whole file, since
// there is no standalone per-record file to move.
func (s *Store) updateRecord(ctx context.Context, col *schema.Collection, id string, fields map[string]any, oldDoc *Document, now time.Time) (Document, error) {
	relPath := col.Path

	records, err := s.readRecords(relPath)
	if err != nil {
		return Document{}, err
	}

	found := false

	for i, r := range records {
		if rid, _ := r["id"].(string); rid == id {
			records[i] = fields
			found = true

			break
		}
	}

	if !found {
		return Document{}, &ground.Error{Kind: ground.KindNotFound, Collection: col.Name, ID: id, Err: fmt.Errorf("record %q not found", id)}
	}

	if err := s.writeRecords(col, relPath, records); err != nil {
		return Document{}, err
	}

	row := sysindex.DocumentRow{
		Collection: col.Name,
		ID:         id,
		Path:       relPath,
		MtimeNS:    now.UnixNano(),
		CreatedAt:  oldDoc.CreatedAt.Format(time.RFC3339Nano),
		ModifiedAt: now.Format(time.RFC3339Nano),
		Data:       fields,
		SharedPath: true,
	}

	if err := s.idx.Upsert(ctx, row); err != nil {
		return Document{}, err
	}

	newDoc := documentFromRow(row)

	s.rebuildAffected(ctx, col.Name, CollectionChange{Kind: Updated, Collection: col.Name, ID: id, Old: oldDoc, New: &newDoc})

	return newDoc, nil
}

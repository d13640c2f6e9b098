package store

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/groundlabs/grounddb/internal/docfile"
	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/schema"
	"github.com/groundlabs/grounddb/internal/sysindex"
)

// Delete removes a document, first resolving every other document that
// references it and applying each referrer field's on_delete policy in
// the strict order spec §4.7 requires: error (abort the whole delete if
// any referrer uses it), cascade (recursively delete referrers, cycle-safe
// via a visited set), nullify (blank the referring field via a partial
// update), archive (move the referrer under _archive/ instead of deleting
// it). Only after every referrer is resolved is the target itself removed.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.checkNotDispatching(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	visited := map[string]bool{}

	return s.deleteLocked(ctx, collection, id, visited)
}

func (s *Store) deleteLocked(ctx context.Context, collection, id string, visited map[string]bool) error {
	key := collection + "/" + id
	if visited[key] {
		return nil
	}

	visited[key] = true

	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	current, err := s.idx.Get(ctx, collection, id)
	if err != nil {
		return ground.WithContext(err, collection, id, "")
	}

	referrers, err := s.findReferrers(ctx, collection, id)
	if err != nil {
		return err
	}

	byPolicy := map[schema.OnDelete][]referrer{}

	for _, r := range referrers {
		policy := r.Field.RefOnDelete
		if policy == "" {
			if refCol, ok := s.sch.Collections[r.Collection]; ok {
				policy = refCol.OnDelete
			}
		}

		if policy == "" {
			policy = schema.OnDeleteError
		}

		byPolicy[policy] = append(byPolicy[policy], r)
	}

	if errs := byPolicy[schema.OnDeleteError]; len(errs) > 0 {
		r := errs[0]
		return &ground.Error{
			Kind:       ground.KindReference,
			Collection: collection,
			ID:         id,
			Err:        fmt.Errorf("document is referenced by %s/%s via field %q (on_delete: error)", r.Collection, r.ID, r.Field.Name),
		}
	}

	for _, r := range byPolicy[schema.OnDeleteCascade] {
		if err := s.deleteLocked(ctx, r.Collection, r.ID, visited); err != nil {
			return err
		}
	}

	for _, r := range byPolicy[schema.OnDeleteNullify] {
		if err := s.nullifyReference(ctx, r); err != nil {
			return err
		}
	}

	for _, r := range byPolicy[schema.OnDeleteArchive] {
		if err := s.archiveDocument(ctx, r.Collection, r.ID); err != nil {
			return err
		}
	}

	if shapeOf(col) == docfile.ShapeJSONL {
		return s.deleteRecord(ctx, col, id)
	}

	if err := s.removeDocument(current.Path); err != nil {
		return err
	}

	if err := s.idx.Delete(ctx, collection, id); err != nil {
		return err
	}

	oldDoc := documentFromRow(current)

	s.rebuildAffected(ctx, collection, CollectionChange{Kind: Deleted, Collection: collection, ID: id, Old: &oldDoc})

	return nil
}

// nullifyReference blanks r.Field on the referring document via a partial
// update that clears the field to nil, without re-triggering on_delete
// resolution for the referrer itself.
func (s *Store) nullifyReference(ctx context.Context, r referrer) error {
	col, err := s.collection(r.Collection)
	if err != nil {
		return err
	}

	current, err := s.idx.Get(ctx, r.Collection, r.ID)
	if err != nil {
		return ground.WithContext(err, r.Collection, r.ID, "")
	}

	fields := rowToFields(current)
	fields[r.Field.Name] = nil

	if shapeOf(col) == docfile.ShapeJSONL {
		_, err := s.updateRecord(ctx, col, r.ID, fields, ptrDoc(documentFromRow(current)), time.Now().UTC())
		return err
	}

	relPath, err := s.resolvePath(col, fields, current.Path)
	if err != nil {
		return err
	}

	if err := s.writeDocumentAtomic(col, relPath, fields, current.ContentText); err != nil {
		return err
	}

	now := time.Now().UTC()

	row := sysindex.DocumentRow{
		Collection:  r.Collection,
		ID:          r.ID,
		Path:        relPath,
		MtimeNS:     now.UnixNano(),
		CreatedAt:   current.CreatedAt,
		ModifiedAt:  now.Format(time.RFC3339Nano),
		ContentText: current.ContentText,
		Data:        fields,
	}

	return s.idx.Upsert(ctx, row)
}

// archiveDocument moves a referrer's file under _archive/<collection>/
// instead of deleting it, and drops it from the index (an archived
// document is no longer live data, but its bytes are preserved on disk).
func (s *Store) archiveDocument(ctx context.Context, collection, id string) error {
	current, err := s.idx.Get(ctx, collection, id)
	if err != nil {
		return ground.WithContext(err, collection, id, "")
	}

	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	if shapeOf(col) == docfile.ShapeJSONL {
		// Records have no standalone file to relocate; archiving a
		// referrer just means removing it from the shared jsonl file.
		return s.deleteRecord(ctx, col, id)
	}

	archivePath := path.Join("_archive", collection, path.Base(current.Path))

	data, err := s.fs.ReadFile(filepath.Join(s.dir, current.Path))
	if err != nil {
		return &ground.Error{Kind: ground.KindIO, Path: current.Path, Err: fmt.Errorf("reading document to archive: %w", err)}
	}

	if err := s.fs.MkdirAll(filepath.Join(s.dir, path.Dir(archivePath)), 0o750); err != nil {
		return &ground.Error{Kind: ground.KindIO, Path: archivePath, Err: fmt.Errorf("creating archive directory: %w", err)}
	}

	if err := s.aw.WriteWithDefaults(filepath.Join(s.dir, archivePath), bytesReader(data)); err != nil {
		return &ground.Error{Kind: ground.KindIO, Path: archivePath, Err: fmt.Errorf("writing archived document: %w", err)}
	}

	if err := s.removeDocument(current.Path); err != nil {
		return err
	}

	return s.idx.Delete(ctx, collection, id)
}

func (s *Store) deleteRecord(ctx context.Context, col *schema.Collection, id string) error {
	relPath := col.Path

	records, err := s.readRecords(relPath)
	if err != nil {
		return err
	}

	out := records[:0]
	found := false

	for _, r := range records {
		if rid, _ := r["id"].(string); rid == id {
			found = true
			continue
		}

		out = append(out, r)
	}

	if !found {
		return &ground.Error{Kind: ground.KindNotFound, Collection: col.Name, ID: id, Err: fmt.Errorf("record %q not found", id)}
	}

	if err := s.writeRecords(col, relPath, out); err != nil {
		return err
	}

	return s.idx.Delete(ctx, col.Name, id)
}

func ptrDoc(d Document) *Document { return &d }

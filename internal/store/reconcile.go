package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/groundlabs/grounddb/internal/docfile"
	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/pathtmpl"
	"github.com/groundlabs/grounddb/internal/schema"
	"github.com/groundlabs/grounddb/internal/sysindex"
	"github.com/groundlabs/grounddb/internal/validate"
	"github.com/groundlabs/grounddb/internal/watcher"
)

// Watch starts w and drains its events into the Store until Close/Shutdown
// stops it. Errors from individual reconciliations are passed to onError if
// non-nil (an externally edited file may be transiently malformed; one bad
// file must not stop the watch loop). The Store takes ownership of w:
// Close calls w.Close() so a caller never needs to track the watcher
// separately (spec §4.11 step 8, "start the watcher; return the Store").
func (s *Store) Watch(w *watcher.Watcher, onError func(error)) {
	loopCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.watcher = w
	s.watcherCancel = cancel
	s.mu.Unlock()

	w.Start()

	go func() {
		for {
			select {
			case <-loopCtx.Done():
				return
			case ev, ok := <-w.Events():
				if !ok {
					return
				}

				if err := s.ProcessWatcherEvent(loopCtx, ev); err != nil && onError != nil {
					onError(err)
				}
			case err, ok := <-w.Errors():
				if !ok {
					return
				}

				if onError != nil {
					onError(err)
				}
			}
		}
	}()
}

// ProcessWatcherEvent applies one coalesced watcher.Event to the index
// (spec §4.8). Move is decomposed into a remove at the old path followed
// by a reconcile at the new one; deletes originating from the watcher
// never cascade — the user moved or removed the file intentionally, and
// any resulting dangling references surface through ValidateAll.
func (s *Store) ProcessWatcherEvent(ctx context.Context, ev watcher.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Collection == "" {
		return s.reconcileViewFile(ctx, ev)
	}

	switch ev.Kind {
	case watcher.Create, watcher.Modify:
		return s.reconcileUpsert(ctx, ev.Collection, ev.Path)
	case watcher.Move:
		if err := s.reconcileRemove(ctx, ev.Collection, ev.OldPath); err != nil {
			return err
		}

		return s.reconcileUpsert(ctx, ev.Collection, ev.Path)
	case watcher.Delete:
		return s.reconcileRemove(ctx, ev.Collection, ev.Path)
	default:
		return nil
	}
}

// reconcileViewFile handles an externally deleted materialized view file by
// regenerating it. Only deletion is a meaningful external edit here; views/
// is otherwise GroundDB-owned output, so other event kinds are ignored.
func (s *Store) reconcileViewFile(ctx context.Context, ev watcher.Event) error {
	if ev.Kind != watcher.Delete {
		return nil
	}

	name := strings.TrimSuffix(filepath.Base(ev.Path), filepath.Ext(ev.Path))
	if _, ok := s.sch.Views[name]; !ok {
		return nil
	}

	return s.eng.RebuildView(ctx, name)
}

// reconcileUpsert reads the file at relPath, performs §4.9 path
// reconciliation for path-template fields, validates it, and upserts the
// index. A file that no longer exists (a delete event arrived out of
// order, or raced this one) is silently skipped: the matching Delete event
// reconciles the index instead.
func (s *Store) reconcileUpsert(ctx context.Context, collection, relPath string) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	if shapeOf(col) == docfile.ShapeJSONL {
		return s.reconcileRecords(ctx, col, relPath)
	}

	fields, body, err := s.readDocument(col, relPath)
	if err != nil {
		if isMissingFileErr(err) {
			return nil
		}

		return err
	}

	fields, rewritten := reconcilePathFields(col, relPath, fields)
	if rewritten {
		if err := s.writeDocumentAtomic(col, relPath, fields, body); err != nil {
			return err
		}
	}

	id, _ := fields["id"].(string)
	if id == "" {
		return &ground.Error{Kind: ground.KindValidation, Collection: collection, Path: relPath, Err: fmt.Errorf("document has no id")}
	}

	fields["id"] = id

	result, err := validate.Document(col, fields, validate.Options{CheckRef: s.checkRefExists(ctx)})
	if err != nil {
		// An externally edited file can be transiently invalid (half a
		// hand edit, a bad merge). Leave the last-known-good index row in
		// place rather than erasing it; `validate` surfaces the problem.
		return ground.WithContext(err, collection, id, relPath)
	}

	now := time.Now().UTC()
	createdAt := now

	existing, existErr := s.idx.Get(ctx, collection, id)

	var old *Document
	kind := Inserted

	if existErr == nil {
		if parsed, perr := time.Parse(time.RFC3339Nano, existing.CreatedAt); perr == nil {
			createdAt = parsed
		}

		oldDoc := documentFromRow(existing)
		old = &oldDoc
		kind = Updated
	}

	row := sysindex.DocumentRow{
		Collection:  collection,
		ID:          id,
		Path:        relPath,
		MtimeNS:     now.UnixNano(),
		CreatedAt:   createdAt.Format(time.RFC3339Nano),
		ModifiedAt:  now.Format(time.RFC3339Nano),
		ContentText: body,
		Data:        result.Fields,
	}

	if err := s.idx.Upsert(ctx, row); err != nil {
		return err
	}

	doc := documentFromRow(row)

	s.rebuildAffected(ctx, collection, CollectionChange{Kind: kind, Collection: collection, ID: id, Old: old, New: &doc})

	return nil
}

// reconcilePathFields implements §4.9: fields captured by the path
// template are authoritative from the path on an external move. A date or
// datetime token is stored in the string form internal/validate accepts.
// It returns the (possibly mutated) field map and whether anything changed.
func reconcilePathFields(col *schema.Collection, relPath string, fields map[string]any) (map[string]any, bool) {
	tmpl := pathtmpl.Compile(col.Path)

	extracted, err := tmpl.Extract(relPath)
	if err != nil {
		return fields, false
	}

	changed := false

	for field, want := range extracted {
		if t, ok := want.(time.Time); ok {
			layout := "2006-01-02"
			if f := col.FieldByName(field); f != nil && f.Type == schema.TypeDatetime {
				layout = time.RFC3339
			}

			want = t.Format(layout)
		}

		if have, ok := fields[field]; !ok || fmt.Sprint(have) != fmt.Sprint(want) {
			fields[field] = want
			changed = true
		}
	}

	return fields, changed
}

// reconcileRecords resyncs a jsonl collection's shared file with the
// index: every record in the file is upserted, and any index row for the
// collection whose id is no longer present in the file is removed. A
// missing file (the whole collection's data was deleted) clears every
// indexed row for it.
func (s *Store) reconcileRecords(ctx context.Context, col *schema.Collection, relPath string) error {
	records, err := s.readRecords(relPath)
	if err != nil {
		return err
	}

	existingRows, err := s.idx.ListCollection(ctx, col.Name)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(records))

	for _, fields := range records {
		id, _ := fields["id"].(string)
		if id == "" {
			continue
		}

		seen[id] = true

		createdAt := now

		for _, row := range existingRows {
			if row.ID == id {
				if parsed, perr := time.Parse(time.RFC3339Nano, row.CreatedAt); perr == nil {
					createdAt = parsed
				}

				break
			}
		}

		row := sysindex.DocumentRow{
			Collection: col.Name,
			ID:         id,
			Path:       relPath,
			MtimeNS:    now.UnixNano(),
			CreatedAt:  createdAt.Format(time.RFC3339Nano),
			ModifiedAt: now.Format(time.RFC3339Nano),
			Data:       fields,
			SharedPath: true,
		}

		if err := s.idx.Upsert(ctx, row); err != nil {
			return err
		}
	}

	for _, row := range existingRows {
		if seen[row.ID] {
			continue
		}

		old := documentFromRow(row)

		if err := s.idx.Delete(ctx, col.Name, row.ID); err != nil {
			return err
		}

		s.rebuildAffected(ctx, col.Name, CollectionChange{Kind: Deleted, Collection: col.Name, ID: row.ID, Old: &old})
	}

	return nil
}

// reconcileRemove removes the index row backing relPath. The id isn't
// known from the event alone, so the collection's rows are scanned for a
// path match (the same full-scan-is-acceptable tradeoff as findReferrers).
func (s *Store) reconcileRemove(ctx context.Context, collection, relPath string) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	if shapeOf(col) == docfile.ShapeJSONL {
		return s.reconcileRecords(ctx, col, relPath)
	}

	rows, err := s.idx.ListCollection(ctx, collection)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if row.Path != relPath {
			continue
		}

		old := documentFromRow(row)

		if err := s.idx.Delete(ctx, collection, row.ID); err != nil {
			return err
		}

		s.rebuildAffected(ctx, collection, CollectionChange{Kind: Deleted, Collection: collection, ID: row.ID, Old: &old})

		return nil
	}

	return nil
}

func isMissingFileErr(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

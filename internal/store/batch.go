package store

import (
	"context"
	"fmt"
	"time"

	"github.com/groundlabs/grounddb/internal/docfile"
	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/sysindex"
)

// BatchOpKind names one operation in a Batch call.
type BatchOpKind string

const (
	BatchInsert BatchOpKind = "insert"
	BatchUpdate BatchOpKind = "update"
	BatchDelete BatchOpKind = "delete"
)

// BatchOp is one staged operation in a Batch call.
type BatchOp struct {
	Kind       BatchOpKind
	Collection string
	ID         string // required for update/delete; ignored for insert
	Fields     map[string]any
	Body       string
}

// BatchResult reports one operation's outcome, in the order supplied. All
// of Batch's ops succeed or none do, so every result here is a success;
// the first failure aborts and unwinds the whole call instead of
// producing a partial result set.
type BatchResult struct {
	Document Document
}

// undoRecord captures what's needed to reverse one already-applied
// operation, per spec §4.7: insert undoes by deleting the row it created;
// update undoes by restoring the previous field/body snapshot; delete
// undoes by re-inserting the document with its previous identity intact.
type undoRecord struct {
	kind       BatchOpKind
	collection string
	id         string
	prevDoc    *Document // update/delete: snapshot before the operation
}

// Batch applies ops in order under a single write-lock acquisition. If any
// operation fails, every already-applied operation in this call is undone
// in reverse order and the failure is returned; no partial batch is ever
// left committed (spec §4.7).
func (s *Store) Batch(ctx context.Context, ops []BatchOp) ([]BatchResult, error) {
	if err := s.checkNotDispatching(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]BatchResult, len(ops))
	undo := make([]undoRecord, 0, len(ops))

	for i, op := range ops {
		doc, rec, err := s.applyBatchOp(ctx, op)
		if err != nil {
			s.rollbackBatch(ctx, undo)

			return nil, &ground.Error{
				Kind: ground.KindValidation,
				Err:  fmt.Errorf("batch operation %d (%s %s/%s) failed, batch rolled back: %w", i, op.Kind, op.Collection, op.ID, err),
			}
		}

		results[i] = BatchResult{Document: doc}
		undo = append(undo, rec)
	}

	return results, nil
}

func (s *Store) applyBatchOp(ctx context.Context, op BatchOp) (Document, undoRecord, error) {
	switch op.Kind {
	case BatchInsert:
		doc, err := s.insertLocked(ctx, op.Collection, op.Fields, op.Body)
		if err != nil {
			return Document{}, undoRecord{}, err
		}

		return doc, undoRecord{kind: BatchInsert, collection: op.Collection, id: doc.ID}, nil

	case BatchUpdate:
		before, err := s.getLocked(ctx, op.Collection, op.ID)
		if err != nil {
			return Document{}, undoRecord{}, err
		}

		doc, err := s.writeUpdateLocked(ctx, op.Collection, op.ID, op.Fields, &op.Body, false)
		if err != nil {
			return Document{}, undoRecord{}, err
		}

		return doc, undoRecord{kind: BatchUpdate, collection: op.Collection, id: op.ID, prevDoc: &before}, nil

	case BatchDelete:
		before, err := s.getLocked(ctx, op.Collection, op.ID)
		if err != nil {
			return Document{}, undoRecord{}, err
		}

		if err := s.deleteLocked(ctx, op.Collection, op.ID, map[string]bool{}); err != nil {
			return Document{}, undoRecord{}, err
		}

		return Document{}, undoRecord{kind: BatchDelete, collection: op.Collection, id: op.ID, prevDoc: &before}, nil

	default:
		return Document{}, undoRecord{}, &ground.Error{Kind: ground.KindValidation, Err: fmt.Errorf("unknown batch operation kind %q", op.Kind)}
	}
}

// rollbackBatch applies undo records in reverse order. Best-effort: an
// undo failure is not fatal to unwinding the rest of the batch, since the
// caller has already committed to reporting the original failure.
func (s *Store) rollbackBatch(ctx context.Context, undo []undoRecord) {
	for i := len(undo) - 1; i >= 0; i-- {
		rec := undo[i]

		switch rec.kind {
		case BatchInsert:
			_ = s.deleteLocked(ctx, rec.collection, rec.id, map[string]bool{})

		case BatchUpdate:
			if rec.prevDoc != nil {
				_, _ = s.writeUpdateLocked(ctx, rec.collection, rec.id, rec.prevDoc.Fields, &rec.prevDoc.Body, false)
			}

		case BatchDelete:
			if rec.prevDoc != nil {
				_ = s.restoreLocked(ctx, rec.collection, rec.prevDoc)
			}
		}
	}
}

// restoreLocked reinstates prev exactly as it was before a delete: same
// path and created_at, rather than insertLocked's fresh-id/fresh-path/
// fresh-timestamp pipeline. Used only to undo a delete during batch
// rollback, so the restored index row keeps the pre-batch id, path,
// created_at and modified_at (only mtime_ns is fresh), not merely a
// document with the same fields under a new identity.
func (s *Store) restoreLocked(ctx context.Context, collection string, prev *Document) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	if shapeOf(col) == docfile.ShapeJSONL {
		records, err := s.readRecords(col.Path)
		if err != nil {
			return err
		}

		records = append(records, prev.Fields)

		if err := s.writeRecords(col, col.Path, records); err != nil {
			return err
		}

		row := sysindex.DocumentRow{
			Collection: col.Name,
			ID:         prev.ID,
			Path:       col.Path,
			MtimeNS:    now.UnixNano(),
			CreatedAt:  prev.CreatedAt.Format(time.RFC3339Nano),
			ModifiedAt: prev.ModifiedAt.Format(time.RFC3339Nano),
			Data:       prev.Fields,
			SharedPath: true,
		}

		return s.idx.Upsert(ctx, row)
	}

	if err := s.writeDocumentAtomic(col, prev.Path, prev.Fields, prev.Body); err != nil {
		return err
	}

	row := sysindex.DocumentRow{
		Collection:  col.Name,
		ID:          prev.ID,
		Path:        prev.Path,
		MtimeNS:     now.UnixNano(),
		CreatedAt:   prev.CreatedAt.Format(time.RFC3339Nano),
		ModifiedAt:  prev.ModifiedAt.Format(time.RFC3339Nano),
		ContentText: prev.Body,
		Data:        prev.Fields,
	}

	return s.idx.Upsert(ctx, row)
}

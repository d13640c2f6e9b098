package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundlabs/grounddb/internal/store"
)

func TestBatch_AppliesAllOpsInOrder(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	ops := []store.BatchOp{
		{Kind: store.BatchInsert, Collection: "authors", Fields: map[string]any{"id": "a1", "name": "Ada"}},
		{Kind: store.BatchInsert, Collection: "posts", Fields: map[string]any{"id": "p1", "title": "Hi", "author": "a1"}},
	}

	results, err := s.Batch(ctx, ops)
	require.NoError(t, err)
	require.Len(t, results, 2)

	_, err = s.Get(ctx, "posts", "p1")
	require.NoError(t, err)
}

func TestBatch_RollsBackEverythingOnFailure(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	ops := []store.BatchOp{
		{Kind: store.BatchInsert, Collection: "authors", Fields: map[string]any{"id": "a1", "name": "Ada"}},
		// dangling ref: fails validation, must unwind the author insert above.
		{Kind: store.BatchInsert, Collection: "posts", Fields: map[string]any{"id": "p1", "title": "Hi", "author": "nope"}},
	}

	_, err := s.Batch(ctx, ops)
	require.Error(t, err)

	_, err = s.Get(ctx, "authors", "a1")
	require.Error(t, err, "the author insert should have been undone")
}

func TestBatch_UpdateUndoRestoresPreviousSnapshot(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	ops := []store.BatchOp{
		{Kind: store.BatchUpdate, Collection: "authors", ID: "a1", Fields: map[string]any{"name": "Changed"}},
		// second op references a nonexistent id, forcing a rollback of the
		// update above.
		{Kind: store.BatchDelete, Collection: "authors", ID: "nope"},
	}

	_, err = s.Batch(ctx, ops)
	require.Error(t, err)

	doc, err := s.Get(ctx, "authors", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Fields["name"])
}

func TestBatch_DeleteUndoReinsertsDocument(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	before, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	ops := []store.BatchOp{
		{Kind: store.BatchDelete, Collection: "authors", ID: "a1"},
		{Kind: store.BatchDelete, Collection: "authors", ID: "nope"},
	}

	_, err = s.Batch(ctx, ops)
	require.Error(t, err)

	doc, err := s.Get(ctx, "authors", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Fields["name"])
	assert.Equal(t, before.Path, doc.Path, "delete-undo must restore the exact pre-batch path")
	assert.True(t, before.CreatedAt.Equal(doc.CreatedAt), "delete-undo must restore the exact pre-batch created_at, not stamp a new one")
}

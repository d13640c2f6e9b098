package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReindexAll_IndexesFilesPlacedBeforeOpen(t *testing.T) {
	s, dir := mustOpenStoreWithDir(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "authors"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "authors", "a1.md"), []byte("---\nid: a1\nname: Ada\n---\n"), 0o640))

	require.NoError(t, s.ReindexAll(ctx))

	doc, err := s.Get(ctx, "authors", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Fields["name"])
}

func TestReindexAll_IsIdempotentWhenNothingChangedOnDisk(t *testing.T) {
	s, _ := mustOpenStoreWithDir(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	require.NoError(t, s.ReindexAll(ctx))
	require.NoError(t, s.ReindexAll(ctx))

	doc, err := s.Get(ctx, "authors", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Fields["name"])
}

func TestReindexAll_RemovesRowsForDeletedFiles(t *testing.T) {
	s, dir := mustOpenStoreWithDir(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "authors", "a1.md")))

	require.NoError(t, s.ReindexAll(ctx))

	_, err = s.Get(ctx, "authors", "a1")
	require.Error(t, err)
}

func TestReindexAll_ResyncsJSONLCollection(t *testing.T) {
	s, dir := mustOpenStoreWithDir(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.jsonl"), []byte(`{"id":"e1","kind":"click"}`+"\n"), 0o640))

	require.NoError(t, s.ReindexAll(ctx))

	doc, err := s.Get(ctx, "events", "e1")
	require.NoError(t, err)
	assert.Equal(t, "click", doc.Fields["kind"])
}

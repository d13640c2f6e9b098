package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundlabs/grounddb/internal/config"
	"github.com/groundlabs/grounddb/internal/store"
	"github.com/groundlabs/grounddb/internal/watcher"
)

func TestProcessWatcherEvent_CreateIndexesExternallyAddedFile(t *testing.T) {
	s, dir := mustOpenStoreWithDir(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "authors"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "authors", "a1.md"), []byte("---\nid: a1\nname: Ada\n---\n"), 0o640))

	require.NoError(t, s.ProcessWatcherEvent(ctx, watcher.Event{Collection: "authors", Path: "authors/a1.md", Kind: watcher.Create}))

	doc, err := s.Get(ctx, "authors", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Fields["name"])
}

func TestProcessWatcherEvent_DeleteRemovesIndexRowWithoutCascade(t *testing.T) {
	s, dir := mustOpenStoreWithDir(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	doc, err := s.Insert(ctx, "posts", map[string]any{"id": "p1", "title": "Hi", "author": "a1"}, "")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "authors", "a1.md")))

	require.NoError(t, s.ProcessWatcherEvent(ctx, watcher.Event{Collection: "authors", Path: "authors/a1.md", Kind: watcher.Delete}))

	_, err = s.Get(ctx, "authors", "a1")
	require.Error(t, err)

	// unlike Delete, a watcher-originated removal never cascades/nullifies:
	// the referring post keeps its (now dangling) reference.
	post, err := s.Get(ctx, "posts", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", post.Fields["author"])
}

func TestProcessWatcherEvent_MoveReconcilesPathCapturedID(t *testing.T) {
	s, dir := mustOpenStoreWithDir(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	require.NoError(t, os.Rename(
		filepath.Join(dir, "authors", "a1.md"),
		filepath.Join(dir, "authors", "a2.md"),
	))

	require.NoError(t, s.ProcessWatcherEvent(ctx, watcher.Event{
		Collection: "authors",
		Kind:       watcher.Move,
		OldPath:    "authors/a1.md",
		Path:       "authors/a2.md",
	}))

	_, err = s.Get(ctx, "authors", "a1")
	require.Error(t, err)

	doc, err := s.Get(ctx, "authors", "a2")
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Fields["name"])
}

// mustOpenStoreWithDir is mustOpenStore plus the backing directory, needed
// by reconcile tests that edit files directly on disk to simulate external
// changes a real watcher would report.
func mustOpenStoreWithDir(t *testing.T) (*store.Store, string) {
	t.Helper()

	sch := mustParseSchema(t)
	dir := t.TempDir()

	s, err := store.Open(context.Background(), dir, sch, config.Default())
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s, dir
}

package sysindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	dir := t.TempDir()
	db, err := Open(context.Background(), filepath.Join(dir, "index.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestUpsertGetDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	row := DocumentRow{
		Collection: "posts",
		ID:         "hello-world",
		Path:       "posts/hello-world.md",
		MtimeNS:    123,
		CreatedAt:  "2026-01-01T00:00:00Z",
		Data:       map[string]any{"title": "Hello"},
	}

	require.NoError(t, db.Upsert(ctx, row))

	got, err := db.Get(ctx, "posts", "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Data["title"])

	require.NoError(t, db.Delete(ctx, "posts", "hello-world"))

	_, err = db.Get(ctx, "posts", "hello-world")
	require.Error(t, err)
}

func TestGetByPrefix(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"alpha", "alphabet", "beta"} {
		require.NoError(t, db.Upsert(ctx, DocumentRow{Collection: "posts", ID: id, Path: id + ".md", Data: map[string]any{}}))
	}

	got, err := db.GetByPrefix(ctx, "posts", "alpha", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].ID)
	assert.Equal(t, "alphabet", got[1].ID)
}

func TestCollectionCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Upsert(ctx, DocumentRow{Collection: "posts", ID: "a", Path: "posts/a.md", Data: map[string]any{}}))
	require.NoError(t, db.Upsert(ctx, DocumentRow{Collection: "posts", ID: "b", Path: "posts/b.md", Data: map[string]any{}}))
	require.NoError(t, db.Upsert(ctx, DocumentRow{Collection: "authors", ID: "x", Path: "authors/x.md", Data: map[string]any{}}))

	counts, err := db.CollectionCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["posts"])
	assert.Equal(t, 1, counts["authors"])
}

func TestDirectoryHashRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	hash, err := db.GetDirectoryHash(ctx, "posts")
	require.NoError(t, err)
	assert.Empty(t, hash)

	h := HashDirectory([]FileStat{{Name: "a.md", MtimeNS: 1, Size: 10}})
	require.NoError(t, db.SetDirectoryHash(ctx, "posts", h))

	got, err := db.GetDirectoryHash(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHashDirectory_OrderIndependent(t *testing.T) {
	a := []FileStat{{Name: "a.md", MtimeNS: 1, Size: 1}, {Name: "b.md", MtimeNS: 2, Size: 2}}
	b := []FileStat{{Name: "b.md", MtimeNS: 2, Size: 2}, {Name: "a.md", MtimeNS: 1, Size: 1}}

	assert.Equal(t, HashDirectory(a), HashDirectory(b))
}

func TestExecuteSQL_NamedParams(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Upsert(ctx, DocumentRow{Collection: "posts", ID: "a", Data: map[string]any{"title": "A"}}))

	rows, err := db.ExecuteSQL(ctx, `SELECT id FROM documents WHERE collection = :collection`, map[string]any{"collection": "posts"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0]["id"])
}

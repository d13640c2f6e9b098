package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundlabs/grounddb/internal/ground"
)

func TestInsert_AssignsPathAndPersistsToIndex(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	doc, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)
	assert.Equal(t, "authors/a1.md", doc.Path)
	assert.Equal(t, "Ada", doc.Fields["name"])

	got, err := s.Get(ctx, "authors", "a1")
	require.NoError(t, err)
	assert.Equal(t, doc.Path, got.Path)
}

func TestInsert_RejectsDuplicateID(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	_, err = s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada 2"}, "")
	require.Error(t, err)
	assert.Equal(t, ground.KindPathConflict, ground.KindOf(err))
}

func TestInsert_RejectsDanglingRef(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "posts", map[string]any{"id": "p1", "title": "Hi", "author": "nope"}, "")
	require.Error(t, err)
}

func TestInsert_AcceptsValidRef(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	doc, err := s.Insert(ctx, "posts", map[string]any{"id": "p1", "title": "Hi", "author": "a1"}, "body text")
	require.NoError(t, err)
	assert.Equal(t, "body text", doc.Body)
}

func TestInsert_RejectsMissingRequiredField(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1"}, "")
	require.Error(t, err)
}

func TestInsert_Record_AppendsToSharedJSONLFile(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "events", map[string]any{"id": "e1", "kind": "signup"}, "")
	require.NoError(t, err)

	_, err = s.Insert(ctx, "events", map[string]any{"id": "e2", "kind": "login"}, "")
	require.NoError(t, err)

	docs, err := s.List(ctx, "events")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestInsert_DateFormatSpecPath_RendersFromValidatedField(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	doc, err := s.Insert(ctx, "articles", map[string]any{"id": "a1", "date": "2026-02-13"}, "")
	require.NoError(t, err)
	assert.Equal(t, "articles/2026-02-13-a1.md", doc.Path)
	assert.Equal(t, "2026-02-13", doc.Fields["date"])

	got, err := s.Get(ctx, "articles", "a1")
	require.NoError(t, err)
	assert.Equal(t, doc.Path, got.Path)
}

func TestInsert_Record_RejectsDuplicateID(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "events", map[string]any{"id": "e1", "kind": "signup"}, "")
	require.NoError(t, err)

	_, err = s.Insert(ctx, "events", map[string]any{"id": "e1", "kind": "signup"}, "")
	require.Error(t, err)
}

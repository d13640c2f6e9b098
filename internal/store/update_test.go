package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_FullReplaceSetsNewFieldValues(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	doc, err := s.Update(ctx, "authors", "a1", map[string]any{"name": "Ada Lovelace"}, "")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", doc.Fields["name"])
}

func TestUpdatePartial_PreservesUntouchedFields(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	_, err = s.Insert(ctx, "posts", map[string]any{"id": "p1", "title": "Hi", "author": "a1"}, "v1")
	require.NoError(t, err)

	newBody := "v2"

	doc, err := s.UpdatePartial(ctx, "posts", "p1", map[string]any{"title": "Hi there"}, &newBody)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", doc.Fields["title"])
	assert.Equal(t, "a1", doc.Fields["author"])
	assert.Equal(t, "v2", doc.Body)
}

func TestUpdatePartial_NilBodyLeavesBodyUnchanged(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	_, err = s.Insert(ctx, "posts", map[string]any{"id": "p1", "title": "Hi", "author": "a1"}, "original body")
	require.NoError(t, err)

	doc, err := s.UpdatePartial(ctx, "posts", "p1", map[string]any{"title": "Hi there"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "original body", doc.Body)
}

func TestUpdate_RejectsNewDanglingRef(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	_, err = s.Insert(ctx, "posts", map[string]any{"id": "p1", "title": "Hi", "author": "a1"}, "")
	require.NoError(t, err)

	_, err = s.Update(ctx, "posts", "p1", map[string]any{"title": "Hi", "author": "nope"}, "")
	require.Error(t, err)
}

func TestUpdateRecord_ReplacesMatchingRecordByID(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "events", map[string]any{"id": "e1", "kind": "signup"}, "")
	require.NoError(t, err)

	doc, err := s.Update(ctx, "events", "e1", map[string]any{"kind": "signup-confirmed"}, "")
	require.NoError(t, err)
	assert.Equal(t, "signup-confirmed", doc.Fields["kind"])

	docs, err := s.List(ctx, "events")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "signup-confirmed", docs[0].Fields["kind"])
}

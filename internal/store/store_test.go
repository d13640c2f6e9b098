package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/groundlabs/grounddb/internal/config"
	"github.com/groundlabs/grounddb/internal/schema"
	"github.com/groundlabs/grounddb/internal/store"
)

const testSchemaYAML = `
collections:
  authors:
    path: "authors/{id}.md"
    fields:
      name:
        type: string
        required: true

  posts:
    path: "posts/{id}.md"
    content: true
    fields:
      title:
        type: string
        required: true
      author:
        type: ref
        target: authors
        on_delete: nullify

  comments:
    path: "comments/{id}.md"
    fields:
      post:
        type: ref
        target: posts
        on_delete: cascade

  tags:
    path: "tags/{id}.md"
    fields:
      name:
        type: string

  taggings:
    path: "taggings/{id}.md"
    fields:
      tag:
        type: ref
        target: tags
        on_delete: error

  pins:
    path: "pins/{id}.md"
    fields:
      tag:
        type: ref
        target: tags
        on_delete: archive

  events:
    shape: jsonl
    path: "events.jsonl"
    fields:
      kind:
        type: string
        required: true

  articles:
    path: "articles/{date:YYYY-MM-DD}-{id}.md"
    fields:
      date:
        type: date
        required: true

views:
  post_titles:
    query: "SELECT id, title FROM posts"
    materialize: false
`

func mustParseSchema(t *testing.T) *schema.Schema {
	t.Helper()

	s, err := schema.Parse([]byte(testSchemaYAML))
	require.NoError(t, err)

	return s
}

func mustOpenStore(t *testing.T) *store.Store {
	t.Helper()

	sch := mustParseSchema(t)

	s, err := store.Open(context.Background(), t.TempDir(), sch, config.Default())
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

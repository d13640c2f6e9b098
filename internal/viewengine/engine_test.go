package viewengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundlabs/grounddb/internal/schema"
)

const testSchemaYAML = `
collections:
  posts:
    path: "posts/{id}.md"
    content: true
    fields:
      title:
        type: string
        required: true
      status:
        type: string
  authors:
    path: "authors/{id}.md"
    fields:
      name:
        type: string

views:
  post_feed:
    query: "SELECT id, title FROM posts WHERE status = 'published' ORDER BY id LIMIT 5"
    materialize: true
  post_comments:
    query: "SELECT id FROM posts WHERE id = :post_id"
    type: query
    params:
      post_id:
        type: string
  broken_view:
    query: "SELECT id FROM nope"
`

func mustParseSchema(t *testing.T) *schema.Schema {
	t.Helper()

	s, err := schema.Parse([]byte(testSchemaYAML))
	require.NoError(t, err)

	return s
}

// fakeIndex is an in-memory stand-in for *sysindex.DB.
type fakeIndex struct {
	rows   []map[string]any
	counts map[string]int
	err    error
}

func (f *fakeIndex) ExecuteSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.rows, nil
}

func (f *fakeIndex) CollectionCounts(ctx context.Context) (map[string]int, error) {
	return f.counts, nil
}

type fakeMaterializer struct {
	written map[string][]map[string]any
}

func (f *fakeMaterializer) Write(name, format string, rows []map[string]any) error {
	if f.written == nil {
		f.written = map[string][]map[string]any{}
	}

	f.written[name] = rows

	return nil
}

func TestRebuildView_Static_CachesAndMaterializes(t *testing.T) {
	sch := mustParseSchema(t)

	idx := &fakeIndex{rows: []map[string]any{
		{"id": "a", "title": "Hello"},
		{"id": "b", "title": "World"},
	}}
	mat := &fakeMaterializer{}

	e := New(sch, idx, mat)

	err := e.RebuildView(context.Background(), "post_feed")
	require.NoError(t, err)

	rows, err := e.Get("post_feed")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, rows, mat.written["post_feed"])
}

func TestRebuildView_Unknown(t *testing.T) {
	sch := mustParseSchema(t)
	e := New(sch, &fakeIndex{}, &fakeMaterializer{})

	err := e.RebuildView(context.Background(), "nope")
	require.Error(t, err)
}

func TestRebuildAll_OneBrokenViewDoesNotBlockOthers(t *testing.T) {
	sch := mustParseSchema(t)

	idx := &fakeIndex{rows: []map[string]any{{"id": "a"}}}
	mat := &fakeMaterializer{}

	e := New(sch, idx, mat)

	err := e.RebuildAll(context.Background())
	require.Error(t, err) // broken_view references unknown collection "nope"

	rows, getErr := e.Get("post_feed")
	require.NoError(t, getErr)
	assert.NotEmpty(t, rows)
}

func TestGet_NeverBuilt(t *testing.T) {
	sch := mustParseSchema(t)
	e := New(sch, &fakeIndex{}, &fakeMaterializer{})

	_, err := e.Get("post_feed")
	require.Error(t, err)
}

func TestAffectedViews(t *testing.T) {
	sch := mustParseSchema(t)
	e := New(sch, &fakeIndex{}, &fakeMaterializer{})

	names := e.AffectedViews("posts")
	assert.Contains(t, names, "post_feed")
	assert.NotContains(t, names, "post_comments") // query view excluded
}

func TestQueryDynamic_MissingParam(t *testing.T) {
	sch := mustParseSchema(t)
	e := New(sch, &fakeIndex{rows: []map[string]any{}}, &fakeMaterializer{})

	_, err := e.QueryDynamic(context.Background(), "post_comments", map[string]any{})
	require.Error(t, err)
}

func TestQueryDynamic_WrongParamType(t *testing.T) {
	sch := mustParseSchema(t)
	e := New(sch, &fakeIndex{rows: []map[string]any{}}, &fakeMaterializer{})

	_, err := e.QueryDynamic(context.Background(), "post_comments", map[string]any{"post_id": 123})
	require.Error(t, err)
}

func TestQueryDynamic_Success(t *testing.T) {
	sch := mustParseSchema(t)
	idx := &fakeIndex{rows: []map[string]any{{"id": "p1"}}}

	e := New(sch, idx, &fakeMaterializer{})

	rows, err := e.QueryDynamic(context.Background(), "post_comments", map[string]any{"post_id": "p1"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestQueryDynamic_RejectsStaticView(t *testing.T) {
	sch := mustParseSchema(t)
	e := New(sch, &fakeIndex{}, &fakeMaterializer{})

	_, err := e.QueryDynamic(context.Background(), "post_feed", nil)
	require.Error(t, err)
}

func TestExplain(t *testing.T) {
	sch := mustParseSchema(t)
	idx := &fakeIndex{counts: map[string]int{"posts": 42, "authors": 7}}

	e := New(sch, idx, &fakeMaterializer{})

	sql, counts, err := e.Explain(context.Background(), "post_feed", nil)
	require.NoError(t, err)
	assert.Contains(t, sql, "posts AS (")
	assert.Equal(t, map[string]int{"posts": 42}, counts)
}

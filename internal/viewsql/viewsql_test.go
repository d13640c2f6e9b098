package viewsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SimpleSelect(t *testing.T) {
	p, err := Parse(`SELECT id, title FROM posts WHERE status = 'published' ORDER BY id LIMIT 10`)
	require.NoError(t, err)
	require.Len(t, p.Tables, 1)
	assert.Equal(t, "posts", p.Tables[0].Collection)
	assert.Empty(t, p.Tables[0].Alias)
}

func TestParse_JoinWithAlias(t *testing.T) {
	p, err := Parse(`SELECT p.title, a.name FROM posts p JOIN authors a ON p.author = a.id WHERE p.status = :status`)
	require.NoError(t, err)
	require.Len(t, p.Tables, 2)
	assert.Equal(t, "posts", p.Tables[0].Collection)
	assert.Equal(t, "p", p.Tables[0].Alias)
	assert.Equal(t, "authors", p.Tables[1].Collection)
	assert.Equal(t, "a", p.Tables[1].Alias)
	assert.Equal(t, []string{"status"}, p.Params)
}

func TestParse_IgnoresParamInsideStringLiteral(t *testing.T) {
	p, err := Parse(`SELECT id FROM posts WHERE title = 'not :a param' AND status = :status`)
	require.NoError(t, err)
	assert.Equal(t, []string{"status"}, p.Params)
}

func TestParse_RejectsDisallowedKeyword(t *testing.T) {
	_, err := Parse(`SELECT id FROM posts; DROP TABLE documents`)
	require.Error(t, err)
}

func TestParse_RejectsNonSelect(t *testing.T) {
	_, err := Parse(`DELETE FROM posts`)
	require.Error(t, err)
}

func TestParse_RejectsMissingFrom(t *testing.T) {
	_, err := Parse(`SELECT 1`)
	require.Error(t, err)
}

func lookupFixture(collection string) (CollectionFields, bool) {
	switch collection {
	case "posts":
		return CollectionFields{Fields: []string{"title", "status", "author"}, Content: true}, true
	case "authors":
		return CollectionFields{Fields: []string{"name"}}, true
	default:
		return CollectionFields{}, false
	}
}

func TestRewrite_SingleCollection(t *testing.T) {
	p, err := Parse(`SELECT id, title FROM posts WHERE status = 'published' LIMIT 5`)
	require.NoError(t, err)

	rw, err := Rewrite(p, lookupFixture, 2)
	require.NoError(t, err)

	assert.Contains(t, rw.SQL, "posts AS (")
	assert.Contains(t, rw.SQL, "content_text AS content")
	assert.Contains(t, rw.SQL, "json_extract(data_json,'$.title') AS title")
	assert.Equal(t, 5, rw.OriginalLimit)
	assert.Equal(t, 10, rw.BufferLimit)
	assert.Contains(t, rw.SQL, "LIMIT 10")
}

func TestRewrite_NoLimit_NoBuffering(t *testing.T) {
	p, err := Parse(`SELECT id FROM posts`)
	require.NoError(t, err)

	rw, err := Rewrite(p, lookupFixture, 2)
	require.NoError(t, err)
	assert.False(t, rw.HasLimit)
	assert.NotContains(t, rw.SQL, "LIMIT")
}

func TestRewrite_UnknownCollection(t *testing.T) {
	p, err := Parse(`SELECT id FROM nope`)
	require.NoError(t, err)

	_, err = Rewrite(p, lookupFixture, 2)
	require.Error(t, err)
}

func TestRewrite_MultipleCollectionsDeduped(t *testing.T) {
	p, err := Parse(`SELECT p.title FROM posts p JOIN posts p2 ON p.id = p2.id`)
	require.NoError(t, err)

	rw, err := Rewrite(p, lookupFixture, 2)
	require.NoError(t, err)
	assert.Len(t, rw.Tables, 1)
}

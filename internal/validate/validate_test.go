package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundlabs/grounddb/internal/schema"
)

func postsCollection(strict, additional bool) *schema.Collection {
	return &schema.Collection{
		Name:                 "posts",
		AdditionalProperties: additional,
		Strict:               strict,
		Fields: []*schema.Field{
			{Name: "title", Type: schema.TypeString, Required: true},
			{Name: "status", Type: schema.TypeString, Enum: []string{"draft", "published"}, Default: "draft"},
			{Name: "views", Type: schema.TypeNumber},
		},
	}
}

func TestDocument_AppliesDefaults(t *testing.T) {
	col := postsCollection(true, true)

	res, err := Document(col, map[string]any{"title": "Hello"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "draft", res.Fields["status"])
}

func TestDocument_RequiredMissing_Strict(t *testing.T) {
	col := postsCollection(true, true)

	_, err := Document(col, map[string]any{}, Options{})
	require.Error(t, err)
}

func TestDocument_RequiredMissing_NonStrict_Warns(t *testing.T) {
	col := postsCollection(false, true)

	res, err := Document(col, map[string]any{}, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)
}

func TestDocument_EnumRejected(t *testing.T) {
	col := postsCollection(true, true)

	_, err := Document(col, map[string]any{"title": "Hello", "status": "archived"}, Options{})
	require.Error(t, err)
}

func TestDocument_UnknownField_Rejected(t *testing.T) {
	col := postsCollection(true, false)

	_, err := Document(col, map[string]any{"title": "Hello", "extra": "x"}, Options{})
	require.Error(t, err)
}

func TestDocument_UnknownField_NonStrict_Dropped(t *testing.T) {
	col := postsCollection(false, false)

	res, err := Document(col, map[string]any{"title": "Hello", "extra": "x"}, Options{})
	require.NoError(t, err)
	_, present := res.Fields["extra"]
	assert.False(t, present)
	assert.NotEmpty(t, res.Warnings)
}

func TestDocument_RefCheckCalled(t *testing.T) {
	col := &schema.Collection{
		Name:                 "posts",
		AdditionalProperties: true,
		Strict:               true,
		Fields: []*schema.Field{
			{Name: "author", Type: schema.TypeRef, Target: []string{"authors"}},
		},
	}

	called := false

	_, err := Document(col, map[string]any{"author": "jane"}, Options{
		CheckRef: func(targets []string, id string) error {
			called = true
			assert.Equal(t, []string{"authors"}, targets)
			assert.Equal(t, "jane", id)

			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestDocument_PolymorphicRef(t *testing.T) {
	col := &schema.Collection{
		Name:                 "comments",
		AdditionalProperties: true,
		Strict:               true,
		Fields: []*schema.Field{
			{Name: "commentable", Type: schema.TypeRef, Target: []string{"posts", "pages"}},
		},
	}

	res, err := Document(col, map[string]any{
		"commentable": map[string]any{"type": "pages", "id": "about"},
	}, Options{
		CheckRef: func(targets []string, id string) error {
			assert.Equal(t, []string{"pages"}, targets)

			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "pages", "id": "about"}, res.Fields["commentable"])
}

func TestDocument_PolymorphicRef_UnknownType(t *testing.T) {
	col := &schema.Collection{
		Name:                 "comments",
		AdditionalProperties: true,
		Strict:               true,
		Fields: []*schema.Field{
			{Name: "commentable", Type: schema.TypeRef, Target: []string{"posts", "pages"}},
		},
	}

	_, err := Document(col, map[string]any{
		"commentable": map[string]any{"type": "authors", "id": "x"},
	}, Options{})
	require.Error(t, err)
}

func TestDocument_RefCheckFails(t *testing.T) {
	col := &schema.Collection{
		Name:                 "posts",
		AdditionalProperties: true,
		Strict:               true,
		Fields: []*schema.Field{
			{Name: "author", Type: schema.TypeRef, Target: []string{"authors"}},
		},
	}

	wantErr := errors.New("no such author")

	_, err := Document(col, map[string]any{"author": "ghost"}, Options{
		CheckRef: func(targets []string, id string) error { return wantErr },
	})
	require.Error(t, err)
}

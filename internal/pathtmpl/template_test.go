package pathtmpl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTemplate_RenderSlugifiesPlainFields(t *testing.T) {
	tmpl := Compile("posts/{status}/{title}.md")

	got, err := tmpl.Render(map[string]any{
		"status": "Draft",
		"title":  "Hello, World!",
	})

	require.NoError(t, err)
	require.Equal(t, "posts/draft/hello-world.md", got)
}

func TestTemplate_RenderAppliesDateSpec(t *testing.T) {
	tmpl := Compile("posts/{status}/{date:YYYY-MM-DD}-{title}.md")

	date := time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)

	got, err := tmpl.Render(map[string]any{
		"status": "published",
		"date":   date,
		"title":  "hello",
	})

	require.NoError(t, err)
	require.Equal(t, "posts/published/2026-02-13-hello.md", got)
}

func TestTemplate_RenderMissingFieldFails(t *testing.T) {
	tmpl := Compile("posts/{status}/{title}.md")

	_, err := tmpl.Render(map[string]any{"status": "draft"})
	require.Error(t, err)
}

func TestTemplate_ExtractRoundTripsPathOnlyFields(t *testing.T) {
	tmpl := Compile("posts/{status}/{date:YYYY-MM-DD}-{title}.md")

	values, err := tmpl.Extract("posts/published/2026-02-13-hello.md")
	require.NoError(t, err)
	require.Equal(t, "published", values["status"])
	require.Equal(t, time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC), values["date"])
	require.Equal(t, "hello", values["title"])
}

func TestTemplate_ExtractRejectsNonMatchingPath(t *testing.T) {
	tmpl := Compile("posts/{status}/{title}.md")

	_, err := tmpl.Extract("users/alice.md")
	require.Error(t, err)
}

func TestResolveConflict_ErrorPolicyFailsOnCollision(t *testing.T) {
	_, err := ResolveConflict("posts/hello.md", false, func(string) (bool, error) { return true, nil })
	require.Error(t, err)
}

func TestResolveConflict_SuffixPolicyFindsFreeName(t *testing.T) {
	taken := map[string]bool{
		"posts/hello.md":   true,
		"posts/hello-2.md": true,
	}

	got, err := ResolveConflict("posts/hello.md", true, func(p string) (bool, error) { return taken[p], nil })
	require.NoError(t, err)
	require.Equal(t, "posts/hello-3.md", got)
}

func TestResolveConflict_SuffixPolicyReturnsCandidateWhenFree(t *testing.T) {
	got, err := ResolveConflict("posts/hello.md", true, func(string) (bool, error) { return false, nil })
	require.NoError(t, err)
	require.Equal(t, "posts/hello.md", got)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus_ReportsCollectionsViewsAndValidation(t *testing.T) {
	dir := testDataDir(t)
	_, _, code := runCLI("insert", "authors", "--dir", dir, "--set", "id=a1", "--set", "name=Ada")
	require.Equal(t, 0, code)

	stdout, stderr, code := runCLI("status", "--dir", dir)

	require.Equal(t, 0, code)
	require.Empty(t, stderr)
	require.Contains(t, stdout, "collections:")
	require.Contains(t, stdout, "authors")
	require.Contains(t, stdout, "1 document(s)")
	require.Contains(t, stdout, "views:")
	require.Contains(t, stdout, "post_titles")
	require.Contains(t, stdout, "static")
	require.Contains(t, stdout, "posts_by_author")
	require.Contains(t, stdout, "query")
	require.Contains(t, stdout, "validation: 0 error(s)")
}

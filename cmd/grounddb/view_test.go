package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestView_ReflectsInsertedRows(t *testing.T) {
	dir := testDataDir(t)
	_, _, code := runCLI("insert", "authors", "--dir", dir, "--set", "id=a1", "--set", "name=Ada")
	require.Equal(t, 0, code)
	_, _, code = runCLI("insert", "posts", "--dir", dir, "--set", "id=p1", "--set", "title=Hi", "--set", "author=a1")
	require.Equal(t, 0, code)

	stdout, stderr, code := runCLI("view", "post_titles", "--dir", dir)

	require.Equal(t, 0, code)
	require.Empty(t, stderr)
	require.Contains(t, stdout, `"title": "Hi"`)
	require.Contains(t, stdout, "1 row(s)")
}

func TestView_UnknownName_ExitsOneWithNotFound(t *testing.T) {
	dir := testDataDir(t)

	_, stderr, code := runCLI("view", "nope", "--dir", dir)

	require.Equal(t, 1, code)
	require.Contains(t, stderr, "ERROR:NotFound:")
}

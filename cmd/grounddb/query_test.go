package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuery_ParameterizedView_FiltersByParam(t *testing.T) {
	dir := testDataDir(t)
	_, _, code := runCLI("insert", "authors", "--dir", dir, "--set", "id=a1", "--set", "name=Ada")
	require.Equal(t, 0, code)
	_, _, code = runCLI("insert", "posts", "--dir", dir, "--set", "id=p1", "--set", "title=Hi", "--set", "author=a1")
	require.Equal(t, 0, code)

	stdout, stderr, code := runCLI("query", "posts_by_author", "--dir", dir, "--param", "author=a1")

	require.Equal(t, 0, code)
	require.Empty(t, stderr)
	require.Contains(t, stdout, `"title": "Hi"`)
	require.Contains(t, stdout, "1 row(s)")
}

func TestQuery_MissingParam_ExitsOneWithQueryError(t *testing.T) {
	dir := testDataDir(t)

	_, stderr, code := runCLI("query", "posts_by_author", "--dir", dir)

	require.Equal(t, 1, code)
	require.Contains(t, stderr, "ERROR:QueryError:")
}

func TestQuery_AgainstStaticView_ExitsOneWithQueryError(t *testing.T) {
	dir := testDataDir(t)

	_, stderr, code := runCLI("query", "post_titles", "--dir", dir, "--param", "author=a1")

	require.Equal(t, 1, code)
	require.Contains(t, stderr, "ERROR:QueryError:")
}

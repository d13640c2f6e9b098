package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestList_EmptyCollection_PrintsEmpty(t *testing.T) {
	dir := testDataDir(t)

	stdout, _, code := runCLI("list", "authors", "--dir", dir)

	require.Equal(t, 0, code)
	require.Contains(t, stdout, "(empty)")
}

func TestList_PrintsEveryDocument(t *testing.T) {
	dir := testDataDir(t)
	_, _, code := runCLI("insert", "authors", "--dir", dir, "--set", "id=a1", "--set", "name=Ada")
	require.Equal(t, 0, code)
	_, _, code = runCLI("insert", "authors", "--dir", dir, "--set", "id=a2", "--set", "name=Bea")
	require.Equal(t, 0, code)

	stdout, _, code := runCLI("list", "authors", "--dir", dir)

	require.Equal(t, 0, code)
	require.Contains(t, stdout, "a1")
	require.Contains(t, stdout, "a2")
	require.Contains(t, stdout, "2 document(s)")
}

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdate_PartialMerge_LeavesOtherFieldsUntouched(t *testing.T) {
	dir := testDataDir(t)
	_, _, code := runCLI("insert", "authors", "--dir", dir, "--set", "id=a1", "--set", "name=Ada")
	require.Equal(t, 0, code)

	stdout, stderr, code := runCLI("update", "authors", "a1", "--dir", dir, "--set", "name=Ada Lovelace")

	require.Equal(t, 0, code)
	require.Empty(t, stderr)
	require.Contains(t, stdout, "updated authors/a1")

	getOut, _, code := runCLI("get", "authors", "a1", "--dir", dir)
	require.Equal(t, 0, code)
	require.Contains(t, getOut, "Ada Lovelace")
}

func TestUpdate_Replace_DropsOmittedFields(t *testing.T) {
	dir := testDataDir(t)
	_, _, code := runCLI("insert", "authors", "--dir", dir, "--set", "id=a1", "--set", "name=Ada")
	require.Equal(t, 0, code)

	_, stderr, code := runCLI("update", "authors", "a1", "--dir", dir, "--replace", "--set", "name=Ada Lovelace")

	require.Equal(t, 0, code)
	require.Empty(t, stderr)
}

func TestUpdate_UnknownDocument_ExitsOneWithNotFound(t *testing.T) {
	dir := testDataDir(t)

	_, stderr, code := runCLI("update", "authors", "nope", "--dir", dir, "--set", "name=X")

	require.Equal(t, 1, code)
	require.Contains(t, stderr, "ERROR:NotFound:")
}

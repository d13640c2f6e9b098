package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsert_CreatesDocument(t *testing.T) {
	dir := testDataDir(t)

	stdout, stderr, code := runCLI("insert", "authors", "--dir", dir, "--set", "id=a1", "--set", "name=Ada")

	require.Equal(t, 0, code)
	require.Empty(t, stderr)
	require.Contains(t, stdout, "inserted authors/a1 at authors/a1.md")
}

func TestInsert_MissingRequiredField_ExitsOneWithValidationError(t *testing.T) {
	dir := testDataDir(t)

	_, stderr, code := runCLI("insert", "authors", "--dir", dir, "--set", "id=a1")

	require.Equal(t, 1, code)
	require.Contains(t, stderr, "ERROR:ValidationError:")
}

func TestInsert_UnknownCollection_ExitsOneWithNotFound(t *testing.T) {
	dir := testDataDir(t)

	_, stderr, code := runCLI("insert", "nope", "--dir", dir, "--set", "id=a1")

	require.Equal(t, 1, code)
	require.Contains(t, stderr, "ERROR:NotFound:")
}

func TestInsert_MissingArgs_ExitsTwo(t *testing.T) {
	dir := testDataDir(t)

	_, stderr, code := runCLI("insert", "--dir", dir)

	require.Equal(t, 2, code)
	require.Contains(t, stderr, "usage: grounddb insert")
}

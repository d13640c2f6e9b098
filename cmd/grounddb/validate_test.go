package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate_AllDocumentsValid_PrintsOK(t *testing.T) {
	dir := testDataDir(t)
	_, _, code := runCLI("insert", "authors", "--dir", dir, "--set", "id=a1", "--set", "name=Ada")
	require.Equal(t, 0, code)

	stdout, stderr, code := runCLI("validate", "--dir", dir)

	require.Equal(t, 0, code)
	require.Empty(t, stderr)
	require.Contains(t, stdout, "ok: every document is valid")
}

func TestValidate_EmptyDataDir_PrintsOK(t *testing.T) {
	dir := testDataDir(t)

	stdout, _, code := runCLI("validate", "--dir", dir)

	require.Equal(t, 0, code)
	require.Contains(t, stdout, "ok: every document is valid")
}

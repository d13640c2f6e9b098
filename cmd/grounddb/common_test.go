package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSetFlags_TypesValuesByJSONWhenPossible(t *testing.T) {
	fields, err := parseSetFlags([]string{
		"name=Ada",
		"age=36",
		"active=true",
		"tags=[\"a\",\"b\"]",
	})

	require.NoError(t, err)
	require.Equal(t, "Ada", fields["name"])
	require.Equal(t, float64(36), fields["age"])
	require.Equal(t, true, fields["active"])
	require.Equal(t, []any{"a", "b"}, fields["tags"])
}

func TestParseSetFlags_RejectsMissingEquals(t *testing.T) {
	_, err := parseSetFlags([]string{"noequals"})

	require.Error(t, err)
}

func TestParseSetFlags_EmptySlice_ReturnsEmptyMap(t *testing.T) {
	fields, err := parseSetFlags(nil)

	require.NoError(t, err)
	require.Empty(t, fields)
}

func TestParseScalar_FallsBackToPlainString(t *testing.T) {
	require.Equal(t, "hello world", parseScalar("hello world"))
}

func TestDefaultDataDir_FallsBackToDot(t *testing.T) {
	t.Setenv("GROUNDDB_DATA_DIR", "")

	require.Equal(t, ".", defaultDataDir())
}

func TestDefaultDataDir_UsesEnvWhenSet(t *testing.T) {
	t.Setenv("GROUNDDB_DATA_DIR", "/tmp/somewhere")

	require.Equal(t, "/tmp/somewhere", defaultDataDir())
}

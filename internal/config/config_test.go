package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesApplyOnTopOfDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".grounddb"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{
		// lock acquisition waits longer in CI
		"lock_timeout_ms": 10000,
		"buffer_multiplier": 3,
	}`), 0o640))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.LockTimeout)
	assert.Equal(t, 3, cfg.BufferMultiplier)
	assert.Equal(t, MaterializeYAML, cfg.MaterializeFormat) // untouched default
	assert.Equal(t, 100*time.Millisecond, cfg.DebounceWindow)
}

func TestLoad_MaterializeFormatJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".grounddb"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"materialize_format": "json"}`), 0o640))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, MaterializeJSON, cfg.MaterializeFormat)
}

func TestLoad_InvalidMaterializeFormatRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".grounddb"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"materialize_format": "xml"}`), 0o640))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoad_InvalidJSONCRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".grounddb"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`not json at all`), 0o640))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoad_ZeroDebounceRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".grounddb"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"debounce_ms": 0}`), 0o640))

	_, err := Load(dir)
	require.Error(t, err)
}

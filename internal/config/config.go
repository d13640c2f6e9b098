// Package config loads GroundDB's local runtime override file,
// .grounddb/config.jsonc: knobs that tune behavior without touching
// schema.yaml (lock timeout, view buffer multiplier, materialized file
// format, watcher debounce window).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"

	"github.com/groundlabs/grounddb/internal/ground"
)

// FileName is the config file's path, relative to the data directory.
const FileName = ".grounddb/config.jsonc"

// MaterializeFormat is the on-disk encoding for a materialized view file.
type MaterializeFormat string

const (
	MaterializeYAML MaterializeFormat = "yaml"
	MaterializeJSON MaterializeFormat = "json"
)

// Config holds GroundDB's local runtime overrides. Every field has a
// default applied by Default, so a missing or partial config.jsonc is
// always valid.
type Config struct {
	// LockTimeout is loaded from lock_timeout_ms and validated, but no code
	// in this module reads it: Store never blocks on it (ground.KindBusy is
	// returned immediately, not after a queued wait), and cmd/grounddb does
	// not retry mutating calls.
	LockTimeout time.Duration `json:"-"`

	// BufferMultiplier is the default B in a buffered view's rewritten
	// `LIMIT N*B` (spec §4.7), used when a view doesn't declare its own.
	BufferMultiplier int `json:"-"`

	// MaterializeFormat is the encoding used for views/<name>.<ext> files.
	MaterializeFormat MaterializeFormat `json:"-"`

	// DebounceWindow is the watcher's sliding-window coalescing period.
	DebounceWindow time.Duration `json:"-"`
}

// rawConfig mirrors config.jsonc's on-disk shape. Durations are plain
// milliseconds in JSON, not Go duration strings, to avoid relying on
// encoding.TextMarshaler round-trips for a handful of fields.
type rawConfig struct {
	LockTimeoutMS      *int    `json:"lock_timeout_ms"`
	BufferMultiplier   *int    `json:"buffer_multiplier"`
	MaterializeFormat  *string `json:"materialize_format"`
	DebounceMS         *int    `json:"debounce_ms"`
}

// Default returns GroundDB's built-in defaults, matching the constants
// already hardcoded by internal/viewengine and internal/watcher before
// this package existed.
func Default() Config {
	return Config{
		LockTimeout:       5 * time.Second,
		BufferMultiplier:  2,
		MaterializeFormat: MaterializeYAML,
		DebounceWindow:    100 * time.Millisecond,
	}
}

// Load reads dataDir/.grounddb/config.jsonc, if present, and merges it
// over Default(). A missing file is not an error — GroundDB runs on pure
// defaults until a user opts into overriding one.
func Load(dataDir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dataDir, FileName)

	data, err := os.ReadFile(path) //nolint:gosec // dataDir is caller-controlled, same trust boundary as schema.yaml
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return Config{}, &ground.Error{Kind: ground.KindIO, Path: path, Err: fmt.Errorf("reading config: %w", err)}
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, &ground.Error{Kind: ground.KindSchema, Path: path, Err: fmt.Errorf("invalid JSONC: %w", err)}
	}

	var raw rawConfig

	if err := json.Unmarshal(standardized, &raw); err != nil {
		return Config{}, &ground.Error{Kind: ground.KindSchema, Path: path, Err: fmt.Errorf("invalid config: %w", err)}
	}

	if raw.LockTimeoutMS != nil {
		cfg.LockTimeout = time.Duration(*raw.LockTimeoutMS) * time.Millisecond
	}

	if raw.BufferMultiplier != nil {
		cfg.BufferMultiplier = *raw.BufferMultiplier
	}

	if raw.DebounceMS != nil {
		cfg.DebounceWindow = time.Duration(*raw.DebounceMS) * time.Millisecond
	}

	if raw.MaterializeFormat != nil {
		cfg.MaterializeFormat = MaterializeFormat(*raw.MaterializeFormat)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, &ground.Error{Kind: ground.KindSchema, Path: path, Err: err}
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.LockTimeout <= 0 {
		return fmt.Errorf("lock_timeout_ms must be > 0")
	}

	if c.BufferMultiplier <= 0 {
		return fmt.Errorf("buffer_multiplier must be > 0")
	}

	if c.DebounceWindow <= 0 {
		return fmt.Errorf("debounce_ms must be > 0")
	}

	switch c.MaterializeFormat {
	case MaterializeYAML, MaterializeJSON:
	default:
		return fmt.Errorf("materialize_format must be %q or %q, got %q", MaterializeYAML, MaterializeJSON, c.MaterializeFormat)
	}

	return nil
}

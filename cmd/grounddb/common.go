package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/groundlabs/grounddb"
	"github.com/groundlabs/grounddb/internal/store"
)

// defaultDataDir is GROUNDDB_DATA_DIR if set, otherwise the current
// directory (spec §6's environment list: "consumed by example servers, not
// the core" — the CLI is exactly such an example consumer).
func defaultDataDir() string {
	if dir := os.Getenv("GROUNDDB_DATA_DIR"); dir != "" {
		return dir
	}

	return "."
}

// openOneShot opens the Store for a single CLI invocation: no watcher,
// since a one-shot command opens, does one thing, and exits before a
// watcher goroutine could ever fire.
func openOneShot(ctx context.Context, dir string) (*store.Store, error) {
	return grounddb.Open(ctx, dir, grounddb.Options{NoWatch: true})
}

// openForMigrate opens the Store without running any of Open's later boot
// steps (incremental reindex, view rebuild): those steps re-validate every
// file against the schema the Store was opened with, which is exactly
// what an unapplied migration would break. The `migrate` subcommand needs
// the index open so Store.Migrate can read schema_history and scan
// existing documents for a safe-class backfill, nothing more.
func openForMigrate(ctx context.Context, dir string) (*store.Store, error) {
	return grounddb.OpenBare(ctx, dir)
}

// parseSetFlags turns a repeated --set field=value flag's accumulated
// values into a fields map. A value that parses as JSON (a number, bool,
// array, or quoted string) keeps its JSON type; anything else is kept as a
// plain string. This mirrors how a schema.TypeNumber/TypeBoolean/TypeList
// field is expected to arrive in the fields map validate.Document consumes.
func parseSetFlags(sets []string) (map[string]any, error) {
	fields := make(map[string]any, len(sets))

	for _, kv := range sets {
		key, val, ok := cut(kv, '=')
		if !ok {
			return nil, fmt.Errorf("invalid --set value %q (want field=value)", kv)
		}

		fields[key] = parseScalar(val)
	}

	return fields, nil
}

// parseScalar decodes val as JSON when possible (so "3", "true",
// "[\"a\",\"b\"]" arrive typed) and falls back to the literal string
// otherwise (so plain words don't need quoting on the command line).
func parseScalar(val string) any {
	var decoded any
	if err := json.Unmarshal([]byte(val), &decoded); err == nil {
		return decoded
	}

	return val
}

func cut(s string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}

	return s, "", false
}

// Package grounddb is the public entry point: Open runs the boot pipeline
// (spec §4.11) over a data directory and returns a ready-to-use *Store. It
// is deliberately thin — every operation it exposes just forwards to
// internal/store — the boot sequence itself (index open, schema load and
// migration, incremental reindex, view rebuild, watcher startup) is the
// only thing that lives here, generalized from pkg/mddb.Open[T]'s
// fingerprint-compare-and-reindex sequence.
package grounddb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/groundlabs/grounddb/internal/config"
	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/schema"
	"github.com/groundlabs/grounddb/internal/store"
	"github.com/groundlabs/grounddb/internal/watcher"
)

// SchemaFileName is schema.yaml's path, relative to the data directory.
const SchemaFileName = "schema.yaml"

// Options tunes Open's behavior beyond what .grounddb/config.jsonc covers.
type Options struct {
	// OnWatchError receives errors from watcher reconciliation that
	// happen after Open returns (a malformed external edit, for
	// instance). Nil means such errors are silently dropped, matching
	// the watcher's own "one bad file must not stop the watch loop"
	// contract.
	OnWatchError func(error)

	// NoWatch skips starting the filesystem watcher (spec §4.11 step 8).
	// Used by one-shot CLI invocations (`get`, `list`, `validate`, ...)
	// that open, do one thing, and exit — a watcher goroutine would just
	// be started and immediately abandoned.
	NoWatch bool
}

// Open runs the full boot pipeline against dataDir and returns a *Store.
// dataDir/schema.yaml must exist. If an earlier run recorded a different
// schema in schema_history, the migration engine runs first (§4.10); an
// unsafe change aborts Open with ground.KindMigrationRequired rather than
// guessing at a destructive rewrite.
func Open(ctx context.Context, dataDir string, opts Options) (*store.Store, error) {
	root := filepath.Clean(dataDir)

	sch, cfg, err := loadSchemaAndConfig(root)
	if err != nil {
		return nil, err
	}

	// Step 1: open the index (internal/store.Open creates/opens _system.db).
	s, err := store.Open(ctx, root, sch, cfg)
	if err != nil {
		return nil, err
	}

	closeOnErr := func(err error) (*store.Store, error) {
		_ = s.Close()
		return nil, err
	}

	// Step 2: compare the loaded schema against schema_history and run
	// the migration engine if it changed. An unsafe plan aborts boot.
	if _, err := s.Migrate(ctx, false); err != nil {
		return closeOnErr(err)
	}

	// Steps 3-5: per-collection directory-hash incremental scan.
	if err := s.ReindexAll(ctx); err != nil {
		return closeOnErr(err)
	}

	// Step 6: recompute every static view now that the index is settled.
	// Step 7 (persisting directory hashes) already happened inside
	// ReindexAll, one collection at a time.
	if err := s.Rebuild(ctx); err != nil {
		return closeOnErr(err)
	}

	// Step 8: start the watcher and return the Store.
	if !opts.NoWatch {
		w, err := watcher.New(root, watchRoots(sch), cfg.DebounceWindow)
		if err != nil {
			return closeOnErr(err)
		}

		s.Watch(w, opts.OnWatchError)
	}

	return s, nil
}

// OpenBare opens the Store and nothing past it: no migration run, no
// reindex, no view rebuild, no watcher. The `migrate` CLI subcommand uses
// this instead of Open because every one of those later steps
// re-validates on-disk documents against the schema the Store was opened
// with, which is exactly what an unapplied migration is expected to
// violate — Store.Migrate needs a chance to run (or just report its plan
// under --dry-run) before any of that happens.
func OpenBare(ctx context.Context, dataDir string) (*store.Store, error) {
	root := filepath.Clean(dataDir)

	sch, cfg, err := loadSchemaAndConfig(root)
	if err != nil {
		return nil, err
	}

	return store.Open(ctx, root, sch, cfg)
}

func loadSchemaAndConfig(root string) (*schema.Schema, config.Config, error) {
	schemaPath := filepath.Join(root, SchemaFileName)

	raw, err := os.ReadFile(schemaPath) //nolint:gosec // dataDir is caller-controlled
	if err != nil {
		return nil, config.Config{}, &ground.Error{Kind: ground.KindSchema, Path: schemaPath, Err: fmt.Errorf("reading schema: %w", err)}
	}

	sch, err := schema.Parse(raw)
	if err != nil {
		return nil, config.Config{}, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, config.Config{}, err
	}

	return sch, cfg, nil
}

// watchRoots builds the watcher's collection-name -> directory map from
// every declared collection's static path prefix, plus the reserved ""
// entry for the materialized views directory.
func watchRoots(sch *schema.Schema) watcher.Roots {
	roots := make(watcher.Roots, len(sch.Collections)+1)

	for name, col := range sch.Collections {
		roots[name] = collectionRoot(col.Path)
	}

	roots[""] = "views"

	return roots
}

// collectionRoot returns the static directory prefix of a path template
// (e.g. "posts/{status}/{date}-{title}.md" -> "posts"). Duplicated from
// internal/store and internal/watcher's identical unexported helpers; the
// three packages share no other dependency that would justify exporting
// a one-line path utility between them.
func collectionRoot(tmpl string) string {
	if i := strings.IndexByte(tmpl, '{'); i >= 0 {
		tmpl = tmpl[:i]
	}

	dir := filepath.Dir(filepath.FromSlash(tmpl))
	if dir == "" {
		return "."
	}

	return dir
}

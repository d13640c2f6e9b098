// Package store is GroundDB's Store (C8): schema-validated CRUD over the
// document tree with atomic writes, path-template-driven file placement,
// referential integrity, batch rollback, and subscription fan-out. It
// drives internal/sysindex (the derived index) and internal/viewengine
// (cached/materialized views) so both stay consistent with every
// successful write, and reconciles external edits reported by
// internal/watcher.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/groundlabs/grounddb/internal/config"
	"github.com/groundlabs/grounddb/internal/fsx"
	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/schema"
	"github.com/groundlabs/grounddb/internal/sysindex"
	"github.com/groundlabs/grounddb/internal/validate"
	"github.com/groundlabs/grounddb/internal/viewengine"
	"github.com/groundlabs/grounddb/internal/watcher"
)

// Document is the Store's public view of one record: identity, field
// values, free-text body (markdown collections only), and the implicit
// timestamps every collection carries regardless of whether they're
// declared.
type Document struct {
	Collection string
	ID         string
	Path       string
	Fields     map[string]any
	Body       string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Store is the single entry point for CRUD, queries, and subscriptions
// over one GroundDB data directory. All mutating operations serialize
// through mu (the "single writer lane" of spec §5); reads take the shared
// side of the same lock so they only ever block behind an in-flight write.
type Store struct {
	dir string
	fs  fsx.FS
	aw  *fsx.AtomicWriter
	sch *schema.Schema
	idx *sysindex.DB
	eng *viewengine.Engine

	mu sync.RWMutex

	// watcher and watcherCancel are set by Watch; Close/Shutdown stop the
	// watch loop and release its fsnotify handle so a caller never has to
	// track the watcher it started separately from the Store.
	watcher       *watcher.Watcher
	watcherCancel context.CancelFunc

	subsMu sync.Mutex
	subs   *subscriptions
	// dispatching is set while subscriber callbacks are running so a
	// reentrant call from inside a callback observes Busy instead of
	// deadlocking on mu (spec: "callbacks must not call back into the
	// Store; reentrancy returns Busy").
	dispatching bool
}

// Open loads sch, opens (or creates) the SQLite index at dir/_system.db,
// and returns a Store ready for the boot pipeline (grounddb.go) to
// populate. Open itself performs no directory scan; that is ReindexAll's
// job, called after Open reconciles the index against disk. cfg supplies
// the view engine's default buffer multiplier and materialize format
// (views/`New` without an Open still gets viewengine's built-in fallback).
func Open(ctx context.Context, dir string, sch *schema.Schema, cfg config.Config) (*Store, error) {
	if ctx == nil {
		return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("open store: context is nil")}
	}

	if dir == "" {
		return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("open store: directory is empty")}
	}

	root := filepath.Clean(dir)

	real := fsx.NewReal()

	if err := real.MkdirAll(root, 0o750); err != nil {
		return nil, &ground.Error{Kind: ground.KindIO, Err: fmt.Errorf("creating data directory: %w", err)}
	}

	idx, err := sysindex.Open(ctx, filepath.Join(root, "_system.db"))
	if err != nil {
		return nil, err
	}

	mat := viewengine.NewFileMaterializer(root)
	eng := viewengine.New(sch, idx, mat)
	eng.SetDefaults(cfg.BufferMultiplier, string(cfg.MaterializeFormat))

	s := &Store{
		dir:  root,
		fs:   real,
		aw:   fsx.NewAtomicWriter(real),
		sch:  sch,
		idx:  idx,
		eng:  eng,
		subs: newSubscriptions(),
	}

	return s, nil
}

// Close stops the watch loop (if Watch was called), releases the fsnotify
// handle, and closes the index handle.
func (s *Store) Close() error {
	if s == nil || s.idx == nil {
		return nil
	}

	s.mu.Lock()
	w, cancel := s.watcher, s.watcherCancel
	s.watcher, s.watcherCancel = nil, nil
	s.mu.Unlock()

	var watcherErr error

	if cancel != nil {
		cancel()
	}

	if w != nil {
		watcherErr = w.Close()
	}

	if idxErr := s.idx.Close(); idxErr != nil {
		return errors.Join(watcherErr, idxErr)
	}

	return watcherErr
}

// Shutdown is Close's public-API name (spec §4.7's operation list), kept
// distinct so a future version can drain in-flight watcher events or
// background rebuilds before closing the index.
func (s *Store) Shutdown(ctx context.Context) error {
	return s.Close()
}

// Schema returns the schema this Store was opened with, for callers that
// need to enumerate collections/views without duplicating schema.yaml's
// own parse (the `status` and `export` CLI subcommands).
func (s *Store) Schema() *schema.Schema {
	return s.sch
}

func (s *Store) collection(name string) (*schema.Collection, error) {
	col, ok := s.sch.Collections[name]
	if !ok {
		return nil, &ground.Error{Kind: ground.KindNotFound, Collection: name, Err: fmt.Errorf("collection %q is not declared", name)}
	}

	return col, nil
}

// Get loads one document by collection and id, straight from the index
// (the index is kept byte-for-byte consistent with disk by I3, so reads
// never touch the filesystem).
func (s *Store) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getLocked(ctx, collection, id)
}

// getLocked is Get's body without its own lock acquisition, for callers
// (Batch's staged operations) that already hold mu.
func (s *Store) getLocked(ctx context.Context, collection, id string) (Document, error) {
	if _, err := s.collection(collection); err != nil {
		return Document{}, err
	}

	row, err := s.idx.Get(ctx, collection, id)
	if err != nil {
		return Document{}, ground.WithContext(err, collection, id, "")
	}

	return documentFromRow(row), nil
}

// List returns every document in collection. It takes no filter; filtered
// reads go through a declared view or QueryDynamic.
func (s *Store) List(ctx context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.collection(collection); err != nil {
		return nil, err
	}

	rows, err := s.idx.ListCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, len(rows))
	for i, r := range rows {
		docs[i] = documentFromRow(r)
	}

	return docs, nil
}

// ValidateAll re-validates every document in every collection against the
// current schema without writing anything, returning one error per
// violation found (nil slice if everything passes). Used by the `validate`
// CLI subcommand and as a post-migration sanity check.
func (s *Store) ValidateAll(ctx context.Context) []error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error

	for name, col := range s.sch.Collections {
		rows, err := s.idx.ListCollection(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, row := range rows {
			_, err := validate.Document(col, row.Data, validate.Options{CheckRef: s.checkRefExists(ctx)})
			if err != nil {
				errs = append(errs, ground.WithContext(err, name, row.ID, row.Path))
			}
		}
	}

	return errs
}

// Rebuild recomputes every static view's cache and materialized output
// from the current index state (spec §4.6/§4.11 step 6).
func (s *Store) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.eng.RebuildAll(ctx)
}

// RebuildView recomputes a single named static view.
func (s *Store) RebuildView(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.eng.RebuildView(ctx, name)
}

// QueryDynamic executes a parameterized query view. Query views take the
// shared (reader) lock, same as Get/List: they only read the index, they
// never stage a view rebuild.
func (s *Store) QueryDynamic(ctx context.Context, name string, params map[string]any) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.eng.QueryDynamic(ctx, name, params)
}

// Explain delegates to the view engine (spec §4.6).
func (s *Store) Explain(ctx context.Context, name string, params map[string]any) (string, map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.eng.Explain(ctx, name, params)
}

// View returns a static view's cached rows by name. Unlike QueryDynamic it
// takes no params and never touches the index directly: it serves whatever
// RebuildAll/RebuildView last computed.
func (s *Store) View(ctx context.Context, name string) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.eng.Get(name)
}

// GetByPrefix lists every document in collection whose id starts with
// prefix, up to limit (0 means unbounded). This is a SUPPLEMENTED
// convenience read: the CLI's `get` subcommand accepts an id prefix so a
// caller doesn't need to know a full slug or UUID to look a document up.
func (s *Store) GetByPrefix(ctx context.Context, collection, prefix string, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.collection(collection); err != nil {
		return nil, err
	}

	rows, err := s.idx.GetByPrefix(ctx, collection, prefix, limit)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, len(rows))
	for i, r := range rows {
		docs[i] = documentFromRow(r)
	}

	return docs, nil
}

func documentFromRow(row sysindex.DocumentRow) Document {
	fields := make(map[string]any, len(row.Data))
	for k, v := range row.Data {
		fields[k] = v
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	modifiedAt, _ := time.Parse(time.RFC3339Nano, row.ModifiedAt)

	return Document{
		Collection: row.Collection,
		ID:         row.ID,
		Path:       row.Path,
		Fields:     fields,
		Body:       row.ContentText,
		CreatedAt:  createdAt,
		ModifiedAt: modifiedAt,
	}
}

// rebuildAffected recomputes and fans out every static view whose rewriter
// references collection (I4), then fires the collection-level change
// notification. Called with mu already held for write.
func (s *Store) rebuildAffected(ctx context.Context, collection string, change CollectionChange) {
	for _, name := range s.eng.AffectedViews(collection) {
		if err := s.eng.RebuildView(ctx, name); err != nil {
			continue // recorded on the view's cache entry; doesn't block others
		}

		rows, getErr := s.eng.Get(name)
		if getErr != nil {
			continue
		}

		s.notifyViewChange(ViewChange{Name: name, Rows: rows})
	}

	s.notifyCollectionChange(change)
}

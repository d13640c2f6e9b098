// Package sysindex manages the SQLite-backed derived index that accelerates
// lookups, views, and migrations over the document tree. The index is
// disposable: it is entirely rebuilt from the documents on disk (plus a
// small amount of bookkeeping it owns, like migration history) and is never
// the source of truth.
package sysindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/groundlabs/grounddb/internal/ground"
)

// DB wraps the derived SQLite index.
type DB struct {
	sql *sql.DB
}

// sqliteBusyTimeoutMS is how long SQLite waits on a locked database before
// returning SQLITE_BUSY.
const sqliteBusyTimeoutMS = 10000

// Open opens (creating if necessary) the SQLite index at path and applies
// the runtime PRAGMA tuning used throughout the store's lifetime.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, &ground.Error{Kind: ground.KindIndex, Err: errors.New("open index: path is empty")}
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("open index: %w", err)}
	}

	// A single connection keeps PRAGMA state (journal_mode, synchronous, ...)
	// consistent across every query instead of per-connection drift.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()

		return nil, &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("ping index: %w", err)}
	}

	if err := applyPragmas(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()

		return nil, err
	}

	db := &DB{sql: sqlDB}

	if err := db.ensureSchema(ctx); err != nil {
		_ = sqlDB.Close()

		return nil, err
	}

	return db, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		PRAGMA busy_timeout = %d;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = FULL;
		PRAGMA mmap_size = 268435456;
		PRAGMA cache_size = -20000;
		PRAGMA temp_store = MEMORY;
	`, sqliteBusyTimeoutMS))
	if err != nil {
		return &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("apply pragmas: %w", err)}
	}

	return nil
}

// Close closes the underlying SQLite connection.
func (db *DB) Close() error {
	if err := db.sql.Close(); err != nil {
		return &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("close index: %w", err)}
	}

	return nil
}

// Raw returns the underlying *sql.DB for components (viewengine, migrate)
// that need to run arbitrary statements this package doesn't wrap.
func (db *DB) Raw() *sql.DB { return db.sql }

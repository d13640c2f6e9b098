package sysindex

import (
	"context"
	"fmt"

	"github.com/groundlabs/grounddb/internal/ground"
)

// The index owns six tables. documents and view_data are fully disposable
// (rebuilt from disk); schema_history, migrations, view_metadata, and
// directory_hashes are bookkeeping the index itself is the source of truth
// for, so they survive a documents-only rebuild.
const createTablesSQL = `
CREATE TABLE IF NOT EXISTS documents (
	collection    TEXT NOT NULL,
	id            TEXT NOT NULL,
	path          TEXT NOT NULL,
	mtime_ns      INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	modified_at   TEXT NOT NULL,
	content_text  TEXT NOT NULL DEFAULT '',
	data_json     TEXT NOT NULL,
	shared_path   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (collection, id)
) WITHOUT ROWID;

-- shared_path marks rows belonging to a jsonl "records" collection, where
-- every record in the discriminated union lives in one shared file and
-- therefore, by design, shares one path with every sibling record. Path
-- uniqueness (one document per file) is only meaningful for shared_path=0
-- rows; a partial index keeps it enforced at the index layer for those
-- without rejecting legitimate shared-file records.
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_path ON documents (path) WHERE shared_path = 0;
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection);

CREATE TABLE IF NOT EXISTS schema_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint  TEXT NOT NULL,
	applied_at   TEXT NOT NULL,
	schema_yaml  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS migrations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	from_fp        TEXT NOT NULL,
	to_fp          TEXT NOT NULL,
	classification TEXT NOT NULL,
	applied_at     TEXT NOT NULL,
	dry_run        INTEGER NOT NULL,
	detail_json    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS view_metadata (
	name         TEXT PRIMARY KEY,
	fingerprint  TEXT NOT NULL,
	last_built   TEXT NOT NULL,
	row_count    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS view_data (
	view_name    TEXT NOT NULL,
	row_id       INTEGER NOT NULL,
	data_json    TEXT NOT NULL,
	PRIMARY KEY (view_name, row_id)
);

CREATE TABLE IF NOT EXISTS directory_hashes (
	collection   TEXT PRIMARY KEY,
	hash         TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
`

// ensureSchema creates the index tables on first open. Unlike a
// per-collection CREATE TABLE with user-defined columns, GroundDB's
// documents table is schema-agnostic (one row shape for every collection,
// typed fields live in data_json); there is no per-collection column
// migration to run here. Schema changes instead flow through
// internal/migrate, which records classification decisions in the
// migrations table this package owns.
func (db *DB) ensureSchema(ctx context.Context) error {
	if _, err := db.sql.ExecContext(ctx, createTablesSQL); err != nil {
		return &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("create index tables: %w", err)}
	}

	return nil
}

// ColumnInfo is one row of PRAGMA table_info(<table>), used by
// internal/migrate to introspect the documents table when reasoning about
// whether a schema change is safe without a rebuild.
type ColumnInfo struct {
	Name    string
	Type    string
	NotNull bool
	PK      bool
}

// TableInfo runs PRAGMA table_info(table) and returns its columns.
func (db *DB) TableInfo(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := db.sql.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("table_info(%s): %w", table, err)}
	}
	defer func() { _ = rows.Close() }()

	var out []ColumnInfo

	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notNull    int
			dfltValue  any
			pk         int
		)

		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("scan table_info row: %w", err)}
		}

		out = append(out, ColumnInfo{Name: name, Type: ctype, NotNull: notNull != 0, PK: pk != 0})
	}

	if err := rows.Err(); err != nil {
		return nil, &ground.Error{Kind: ground.KindIndex, Err: err}
	}

	return out, nil
}

// quoteIdent wraps a table/column identifier in double quotes. Internal
// callers only ever pass fixed table names declared in this package, never
// user input, so this guards against reserved-word collisions rather than
// injection.
func quoteIdent(s string) string {
	return `"` + s + `"`
}

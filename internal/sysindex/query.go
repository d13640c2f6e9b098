package sysindex

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/groundlabs/grounddb/internal/ground"
)

// ExecuteSQL runs a read-only query with named parameters (":name" in the
// query text, keyed by name without the colon in params) and returns rows
// as column-name/value maps. go-sqlite3 binds sql.Named values to
// ":name"/"@name"/"$name" placeholders directly, so no positional rewrite
// is needed here; internal/viewsql only extracts table refs and parameter
// names ahead of time for validation, it does not rewrite placeholders.
func (db *DB) ExecuteSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	args := make([]any, 0, len(params))
	for name, val := range params {
		args = append(args, sql.Named(name, val))
	}

	rows, err := db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("execute query: %w", err)}
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &ground.Error{Kind: ground.KindQuery, Err: err}
	}

	var out []map[string]any

	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))

		for i := range vals {
			ptrs[i] = &vals[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("scan row: %w", err)}
		}

		rowMap := make(map[string]any, len(cols))
		for i, col := range cols {
			rowMap[col] = normalizeSQLValue(vals[i])
		}

		out = append(out, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, &ground.Error{Kind: ground.KindQuery, Err: err}
	}

	return out, nil
}

// normalizeSQLValue converts driver-returned []byte (SQLite's native TEXT
// scan type through database/sql) to string so JSON/YAML re-encoding of
// query results doesn't emit base64 blobs for ordinary text columns.
func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}

package sysindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/groundlabs/grounddb/internal/ground"
)

// DocumentRow is one indexed document: its identity, the timestamps and
// body text the view rewriter projects verbatim (created_at, modified_at,
// content_text), plus the full field set serialized as JSON (data_json)
// that view queries reach via json_extract and the CLI's "get"/"list"
// operations decode directly.
type DocumentRow struct {
	Collection  string
	ID          string
	Path        string
	MtimeNS     int64
	CreatedAt   string
	ModifiedAt  string
	ContentText string
	Data        map[string]any

	// SharedPath marks a row belonging to a jsonl "records" collection,
	// where many rows legitimately share one file's path. It exempts the
	// row from the documents.path uniqueness the index otherwise enforces.
	SharedPath bool
}

const documentColumns = "collection, id, path, mtime_ns, created_at, modified_at, content_text, data_json, shared_path"

// Upsert inserts or replaces a document row.
func (db *DB) Upsert(ctx context.Context, row DocumentRow) error {
	data, err := json.Marshal(row.Data)
	if err != nil {
		return &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("marshal data_json: %w", err)}
	}

	_, err = db.sql.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			path = excluded.path,
			mtime_ns = excluded.mtime_ns,
			modified_at = excluded.modified_at,
			content_text = excluded.content_text,
			data_json = excluded.data_json,
			shared_path = excluded.shared_path
	`, row.Collection, row.ID, row.Path, row.MtimeNS, row.CreatedAt, row.ModifiedAt, row.ContentText, string(data), row.SharedPath)
	if err != nil {
		return &ground.Error{Kind: ground.KindIndex, Collection: row.Collection, ID: row.ID, Err: fmt.Errorf("upsert document: %w", err)}
	}

	return nil
}

// Delete removes a document row. Returns ground.KindNotFound if no row
// matched.
func (db *DB) Delete(ctx context.Context, collection, id string) error {
	res, err := db.sql.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return &ground.Error{Kind: ground.KindIndex, Collection: collection, ID: id, Err: fmt.Errorf("delete document: %w", err)}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return &ground.Error{Kind: ground.KindIndex, Err: err}
	}

	if n == 0 {
		return &ground.Error{Kind: ground.KindNotFound, Collection: collection, ID: id}
	}

	return nil
}

// Get fetches a single document row by collection and id.
func (db *DB) Get(ctx context.Context, collection, id string) (DocumentRow, error) {
	row := db.sql.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents WHERE collection = ? AND id = ?
	`, collection, id)

	doc, err := scanDocumentRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocumentRow{}, &ground.Error{Kind: ground.KindNotFound, Collection: collection, ID: id}
		}

		return DocumentRow{}, &ground.Error{Kind: ground.KindIndex, Collection: collection, ID: id, Err: err}
	}

	return doc, nil
}

// GetByPrefix lists documents in collection whose id starts with prefix,
// ordered by id. This is the SUPPLEMENTED convenience query (spec's read
// API only names exact-id Get); it reuses the same (collection, id) index
// the primary key already provides.
func (db *DB) GetByPrefix(ctx context.Context, collection, prefix string, limit int) ([]DocumentRow, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents WHERE collection = ? AND id >= ? AND id < ?
		ORDER BY id
	`

	args := []any{collection, prefix, prefixUpperBound(prefix)}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ground.Error{Kind: ground.KindIndex, Collection: collection, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out []DocumentRow

	for rows.Next() {
		doc, err := scanDocumentRow(rows.Scan)
		if err != nil {
			return nil, &ground.Error{Kind: ground.KindIndex, Collection: collection, Err: err}
		}

		out = append(out, doc)
	}

	return out, rows.Err()
}

// ListCollection returns every document row in a collection, ordered by id.
func (db *DB) ListCollection(ctx context.Context, collection string) ([]DocumentRow, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents WHERE collection = ? ORDER BY id
	`, collection)
	if err != nil {
		return nil, &ground.Error{Kind: ground.KindIndex, Collection: collection, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out []DocumentRow

	for rows.Next() {
		doc, err := scanDocumentRow(rows.Scan)
		if err != nil {
			return nil, &ground.Error{Kind: ground.KindIndex, Collection: collection, Err: err}
		}

		out = append(out, doc)
	}

	return out, rows.Err()
}

// CollectionCounts returns the row count of every collection currently
// indexed, used by the CLI's "explain" and "status" subcommands.
func (db *DB) CollectionCounts(ctx context.Context) (map[string]int, error) {
	rows, err := db.sql.QueryContext(ctx, `SELECT collection, COUNT(*) FROM documents GROUP BY collection`)
	if err != nil {
		return nil, &ground.Error{Kind: ground.KindIndex, Err: err}
	}
	defer func() { _ = rows.Close() }()

	out := map[string]int{}

	for rows.Next() {
		var (
			collection string
			count      int
		)

		if err := rows.Scan(&collection, &count); err != nil {
			return nil, &ground.Error{Kind: ground.KindIndex, Err: err}
		}

		out[collection] = count
	}

	return out, rows.Err()
}

func scanDocumentRow(scan func(dest ...any) error) (DocumentRow, error) {
	var (
		doc      DocumentRow
		dataJSON string
	)

	if err := scan(&doc.Collection, &doc.ID, &doc.Path, &doc.MtimeNS, &doc.CreatedAt, &doc.ModifiedAt, &doc.ContentText, &dataJSON, &doc.SharedPath); err != nil {
		return DocumentRow{}, err
	}

	if err := json.Unmarshal([]byte(dataJSON), &doc.Data); err != nil {
		return DocumentRow{}, fmt.Errorf("unmarshal data_json: %w", err)
	}

	return doc, nil
}

// prefixUpperBound returns the smallest string greater than every string
// with the given prefix, for use as an exclusive upper bound in a BETWEEN
// -style range scan over TEXT id columns.
func prefixUpperBound(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++

			return string(b[:i+1])
		}
	}

	return prefix + "\xff"
}

package sysindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/groundlabs/grounddb/internal/ground"
)

// FileStat is the (name, mtime, size) triple the incremental scanner reads
// from the filesystem for a single file, the same mtime+size
// change-detection pair pkg/mddb's incremental reindex used.
type FileStat struct {
	Name    string
	MtimeNS int64
	Size    int64
}

// HashDirectory computes an order-independent fingerprint over a
// collection's file listing, used to decide whether a full directory walk
// can be skipped during startup's incremental scan.
func HashDirectory(files []FileStat) string {
	sorted := make([]FileStat, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := fnv.New64a()

	for _, f := range sorted {
		_, _ = fmt.Fprintf(h, "%s\x00%d\x00%d\x00", f.Name, f.MtimeNS, f.Size)
	}

	return fmt.Sprintf("%016x", h.Sum64())
}

// GetDirectoryHash returns the stored hash for collection, or "" if none
// has been recorded yet (first run).
func (db *DB) GetDirectoryHash(ctx context.Context, collection string) (string, error) {
	var hash string

	err := db.sql.QueryRowContext(ctx, `SELECT hash FROM directory_hashes WHERE collection = ?`, collection).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		return "", &ground.Error{Kind: ground.KindIndex, Collection: collection, Err: err}
	}

	return hash, nil
}

// SetDirectoryHash records the current fingerprint for collection.
func (db *DB) SetDirectoryHash(ctx context.Context, collection, hash string) error {
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO directory_hashes (collection, hash, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (collection) DO UPDATE SET hash = excluded.hash, updated_at = excluded.updated_at
	`, collection, hash, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return &ground.Error{Kind: ground.KindIndex, Collection: collection, Err: fmt.Errorf("set directory hash: %w", err)}
	}

	return nil
}

package sysindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/groundlabs/grounddb/internal/ground"
)

// SchemaHistoryEntry is one row of schema_history: a past schema.yaml's
// fingerprint and the bytes that produced it, so internal/migrate can
// re-parse the previous schema for a structural diff against the current
// one.
type SchemaHistoryEntry struct {
	Fingerprint string
	SchemaYAML  string
	AppliedAt   string
}

// LatestSchemaHistory returns the most recently recorded schema, or ok=false
// on first run (no schema has ever been recorded).
func (db *DB) LatestSchemaHistory(ctx context.Context) (entry SchemaHistoryEntry, ok bool, err error) {
	row := db.sql.QueryRowContext(ctx, `
		SELECT fingerprint, schema_yaml, applied_at FROM schema_history
		ORDER BY id DESC LIMIT 1
	`)

	if err := row.Scan(&entry.Fingerprint, &entry.SchemaYAML, &entry.AppliedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SchemaHistoryEntry{}, false, nil
		}

		return SchemaHistoryEntry{}, false, &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("latest schema history: %w", err)}
	}

	return entry, true, nil
}

// RecordSchemaHistory appends a new schema_history row. GroundDB never
// rewrites or prunes history; every loaded schema is retained so a future
// migration decision can always see exactly what the prior schema was.
func (db *DB) RecordSchemaHistory(ctx context.Context, fingerprint, schemaYAML string) error {
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO schema_history (fingerprint, applied_at, schema_yaml) VALUES (?, ?, ?)
	`, fingerprint, time.Now().UTC().Format(time.RFC3339Nano), schemaYAML)
	if err != nil {
		return &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("record schema history: %w", err)}
	}

	return nil
}

// MigrationRecord is one applied or dry-run migration decision, persisted
// to the migrations table (spec §4.3/§4.10).
type MigrationRecord struct {
	FromFingerprint string
	ToFingerprint   string
	Classification  string
	DryRun          bool
	DetailJSON      string
}

// RecordMigration appends one migration decision.
func (db *DB) RecordMigration(ctx context.Context, rec MigrationRecord) error {
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO migrations (from_fp, to_fp, classification, applied_at, dry_run, detail_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.FromFingerprint, rec.ToFingerprint, rec.Classification, time.Now().UTC().Format(time.RFC3339Nano), boolToInt(rec.DryRun), rec.DetailJSON)
	if err != nil {
		return &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("record migration: %w", err)}
	}

	return nil
}

// ListMigrations returns every recorded migration, most recent first, for
// the CLI's `status` subcommand.
func (db *DB) ListMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT from_fp, to_fp, classification, dry_run, detail_json FROM migrations ORDER BY id DESC
	`)
	if err != nil {
		return nil, &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("list migrations: %w", err)}
	}
	defer func() { _ = rows.Close() }()

	var out []MigrationRecord

	for rows.Next() {
		var rec MigrationRecord
		var dryRun int

		if err := rows.Scan(&rec.FromFingerprint, &rec.ToFingerprint, &rec.Classification, &dryRun, &rec.DetailJSON); err != nil {
			return nil, &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("scan migration row: %w", err)}
		}

		rec.DryRun = dryRun != 0
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, &ground.Error{Kind: ground.KindIndex, Err: err}
	}

	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

package store

import (
	"context"

	"github.com/groundlabs/grounddb/internal/migrate"
)

// Migrate runs the schema migration engine against cur (the schema this
// Store was opened with), recording and — unless dryRun — applying the
// diff from whatever schema was last recorded in schema_history (spec
// §4.11 step 2). Called once by the boot pipeline before ReindexAll; also
// the `migrate`/`migrate --dry-run` CLI subcommand's entry point.
func (s *Store) Migrate(ctx context.Context, dryRun bool) (migrate.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eng := migrate.New(s.idx, s.fs, s.dir)

	return eng.Run(ctx, s.sch, dryRun)
}

package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/groundlabs/grounddb/internal/docfile"
	"github.com/groundlabs/grounddb/internal/fsx"
	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/schema"
	"github.com/groundlabs/grounddb/internal/sysindex"
)

// Plan is the outcome of running the migration engine: every detected
// change, whether it's safe to proceed (no ClassUnsafe entries), and the
// from/to fingerprints it will (or, if DryRun, would) record.
type Plan struct {
	FromFingerprint string
	ToFingerprint   string
	Changes         []Change
	Blocked         bool // true if Changes contains an unsafe entry
}

// Engine applies schema migrations: it diffs the schema currently recorded
// in the index against a newly loaded one, and for the safe classes that
// require a file rewrite (a new required field with a default), scans and
// backfills every affected document (spec §4.10's "Action" column).
// Classes that only change validation behavior (optional field added,
// field removed, enum/default changes) need no file rewrite at all.
type Engine struct {
	idx *sysindex.DB
	fs  fsx.FS
	aw  *fsx.AtomicWriter
	dir string
}

// New creates an Engine rooted at dir (the same data directory the store
// operates over), using idx for bookkeeping and fs for file access.
func New(idx *sysindex.DB, fs fsx.FS, dir string) *Engine {
	return &Engine{idx: idx, fs: fs, aw: fsx.NewAtomicWriter(fs), dir: filepath.Clean(dir)}
}

// Plan computes the migration plan for moving from the schema currently
// recorded in schema_history to cur, without recording or applying
// anything. Used by the CLI's `migrate --dry-run`.
func (e *Engine) Plan(ctx context.Context, cur *schema.Schema) (Plan, error) {
	old, _, err := e.previousSchema(ctx)
	if err != nil {
		return Plan{}, err
	}

	changes := Diff(old, cur)

	return Plan{
		FromFingerprint: fingerprintOf(old),
		ToFingerprint:   strconv.FormatUint(cur.Hash(), 16),
		Changes:         changes,
		Blocked:         Unsafe(changes),
	}, nil
}

// Run computes the plan and, unless dryRun or the plan is Blocked, applies
// every change that requires a file rewrite and records both the new
// schema_history entry and a migrations row. Returns KindMigrationRequired
// if the plan contains any ClassUnsafe change — startup must abort rather
// than guess (spec §4.10, §4.11 step 2).
func (e *Engine) Run(ctx context.Context, cur *schema.Schema, dryRun bool) (Plan, error) {
	plan, err := e.Plan(ctx, cur)
	if err != nil {
		return Plan{}, err
	}

	if dryRun {
		return plan, nil
	}

	if plan.Blocked {
		detail, _ := json.Marshal(plan.Changes)

		_ = e.idx.RecordMigration(ctx, sysindex.MigrationRecord{
			FromFingerprint: plan.FromFingerprint,
			ToFingerprint:   plan.ToFingerprint,
			Classification:  string(ClassUnsafe),
			DryRun:          false,
			DetailJSON:      string(detail),
		})

		return plan, &ground.Error{Kind: ground.KindMigrationRequired, Err: fmt.Errorf("schema change requires an explicit migration: %d blocking change(s)", countUnsafe(plan.Changes))}
	}

	for _, c := range plan.Changes {
		if c.Kind != FieldAddedRequiredDefault {
			continue
		}

		col, ok := cur.Collections[c.Collection]
		if !ok {
			continue
		}

		if err := e.backfillDefault(ctx, col, c); err != nil {
			return plan, err
		}
	}

	detail, _ := json.Marshal(plan.Changes)

	if err := e.idx.RecordMigration(ctx, sysindex.MigrationRecord{
		FromFingerprint: plan.FromFingerprint,
		ToFingerprint:   plan.ToFingerprint,
		Classification:  classificationSummary(plan.Changes),
		DryRun:          false,
		DetailJSON:      string(detail),
	}); err != nil {
		return plan, err
	}

	if err := e.idx.RecordSchemaHistory(ctx, plan.ToFingerprint, string(cur.Raw())); err != nil {
		return plan, err
	}

	return plan, nil
}

// backfillDefault writes c.Default into every existing document of col
// that doesn't already have the field set, preserving every other field,
// the body, and the document's timestamps (spec §4.10: "Scan + write
// default (preserve timestamps/body)").
func (e *Engine) backfillDefault(ctx context.Context, col *schema.Collection, c Change) error {
	rows, err := e.idx.ListCollection(ctx, col.Name)
	if err != nil {
		return err
	}

	shape := shapeOf(col)

	for _, row := range rows {
		if _, present := row.Data[c.Field]; present {
			continue
		}

		row.Data[c.Field] = c.Default

		if shape != docfile.ShapeJSONL {
			if err := e.rewriteDocument(col, row); err != nil {
				return err
			}
		}

		if err := e.idx.Upsert(ctx, row); err != nil {
			return err
		}
	}

	if shape == docfile.ShapeJSONL {
		return e.rewriteRecordsFile(col, rows)
	}

	return nil
}

func (e *Engine) rewriteDocument(col *schema.Collection, row sysindex.DocumentRow) error {
	data, err := docfile.RenderFile(shapeOf(col), row.Data, row.ContentText, docfile.MarshalOptions{KeyOrder: fieldOrder(col)})
	if err != nil {
		return err
	}

	abs := filepath.Join(e.dir, row.Path)

	return e.aw.WriteWithDefaults(abs, bytesReader(data))
}

// rewriteRecordsFile rewrites a jsonl collection's single shared file once
// with every row's (possibly backfilled) data, since records have no
// standalone per-document file.
func (e *Engine) rewriteRecordsFile(col *schema.Collection, rows []sysindex.DocumentRow) error {
	if len(rows) == 0 {
		return nil
	}

	records := make([]map[string]any, len(rows))
	for i, row := range rows {
		records[i] = row.Data
	}

	data, err := docfile.RenderJSONL(records, docfile.MarshalOptions{KeyOrder: fieldOrder(col)})
	if err != nil {
		return err
	}

	abs := filepath.Join(e.dir, rows[0].Path)

	return e.aw.WriteWithDefaults(abs, bytesReader(data))
}

func (e *Engine) previousSchema(ctx context.Context) (*schema.Schema, string, error) {
	entry, ok, err := e.idx.LatestSchemaHistory(ctx)
	if err != nil {
		return nil, "", err
	}

	if !ok {
		return nil, "", nil
	}

	old, err := schema.Parse([]byte(entry.SchemaYAML))
	if err != nil {
		return nil, "", &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("parsing recorded schema_history entry: %w", err)}
	}

	return old, entry.Fingerprint, nil
}

func fingerprintOf(s *schema.Schema) string {
	if s == nil {
		return ""
	}

	return strconv.FormatUint(s.Hash(), 16)
}

func countUnsafe(changes []Change) int {
	n := 0
	for _, c := range changes {
		if c.Class == ClassUnsafe {
			n++
		}
	}

	return n
}

func classificationSummary(changes []Change) string {
	worst := ClassSafe
	for _, c := range changes {
		if rank(c.Class) > rank(worst) {
			worst = c.Class
		}
	}

	return string(worst)
}

func rank(c Class) int {
	switch c {
	case ClassSafe:
		return 0
	case ClassSafeWarn:
		return 1
	case ClassUnsafeWarn:
		return 2
	case ClassUnsafe:
		return 3
	default:
		return 0
	}
}

func shapeOf(col *schema.Collection) docfile.Shape {
	switch col.Shape {
	case string(docfile.ShapeJSON):
		return docfile.ShapeJSON
	case string(docfile.ShapeJSONL):
		return docfile.ShapeJSONL
	default:
		return docfile.ShapeMD
	}
}

func fieldOrder(col *schema.Collection) []string {
	names := make([]string, len(col.Fields))
	for i, f := range col.Fields {
		names[i] = f.Name
	}

	return names
}

func bytesReader(b []byte) *strings.Reader { return strings.NewReader(string(b)) }

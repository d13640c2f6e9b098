// Package viewengine maintains the in-memory and materialized view cache:
// eager rebuild of static views on startup and on writes to a referenced
// collection, on-demand execution of parameterized query views, and
// explain() for cost estimation. It sits on top of internal/viewsql (which
// produces the CTE-wrapped SQL) and internal/sysindex (which executes it
// and stores rebuilt rows).
package viewengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/schema"
	"github.com/groundlabs/grounddb/internal/viewsql"
)

// defaultBufferMultiplier is used when a view doesn't override it.
const defaultBufferMultiplier = 2

// Index is the subset of *sysindex.DB the engine needs, so tests can stub
// it without a real SQLite file.
type Index interface {
	ExecuteSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	CollectionCounts(ctx context.Context) (map[string]int, error)
}

// Materializer writes a static view's first original_limit rows to
// views/<name>.<ext>. Implementations (see materialize.go) use
// natefinch/atomic so readers never see a torn file.
type Materializer interface {
	Write(name, format string, rows []map[string]any) error
}

// cachedView is one static view's last-built state.
type cachedView struct {
	rows      []map[string]any
	err       error
	rewritten *viewsql.Rewritten
}

// Engine owns the in-memory view cache and drives static view rebuilds.
type Engine struct {
	sch   *schema.Schema
	index Index
	mat   Materializer

	// defaultBuffer and defaultFormat are the process-wide fallbacks a
	// view uses when it doesn't declare its own buffer multiplier or
	// materialize format. Zero value means "use the built-in constant",
	// so an Engine built by New with no SetDefaults call behaves exactly
	// as before config.Config existed.
	defaultBuffer int
	defaultFormat string

	mu    sync.RWMutex
	cache map[string]*cachedView
}

// New creates an Engine for sch, backed by index for execution and mat for
// materialized-file output.
func New(sch *schema.Schema, index Index, mat Materializer) *Engine {
	return &Engine{sch: sch, index: index, mat: mat, cache: map[string]*cachedView{}}
}

// SetDefaults overrides the engine's fallback buffer multiplier and
// materialize format, used when a view leaves either unset. Called once at
// boot with the values loaded from .grounddb/config.jsonc.
func (e *Engine) SetDefaults(bufferMultiplier int, format string) {
	e.defaultBuffer = bufferMultiplier
	e.defaultFormat = format
}

// lookupFields adapts *schema.Schema's collection map to the
// viewsql.Rewrite lookup signature: field names in declared order, plus
// whether the collection has a content body.
func (e *Engine) lookupFields(collection string) (viewsql.CollectionFields, bool) {
	col, ok := e.sch.Collections[collection]
	if !ok {
		return viewsql.CollectionFields{}, false
	}

	names := make([]string, len(col.Fields))
	for i, f := range col.Fields {
		names[i] = f.Name
	}

	return viewsql.CollectionFields{Fields: names, Content: col.Content}, true
}

func (e *Engine) bufferMultiplier(v *schema.View) int {
	if v.Buffer > 0 {
		return v.Buffer
	}

	if e.defaultBuffer > 0 {
		return e.defaultBuffer
	}

	return defaultBufferMultiplier
}

// rewriteView runs a view's declared query through viewsql.Parse + Rewrite.
func (e *Engine) rewriteView(v *schema.View) (*viewsql.Rewritten, error) {
	parsed, err := viewsql.Parse(v.Query)
	if err != nil {
		return nil, err
	}

	return viewsql.Rewrite(parsed, e.lookupFields, e.bufferMultiplier(v))
}

// RebuildAll rebuilds every static view, in schema-declaration order isn't
// guaranteed (map iteration) but each view's rebuild is independent, so
// order doesn't matter for correctness. A QueryError on one view is
// recorded and does not stop the others (spec: "one broken view cannot
// break reads of others").
func (e *Engine) RebuildAll(ctx context.Context) error {
	var firstErr error

	for name, v := range e.sch.Views {
		if v.Type == "query" {
			continue
		}

		if err := e.RebuildView(ctx, name); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// RebuildView rebuilds one static view: executes its rewritten SQL with no
// params, stores the buffered rows in the in-memory cache, and (if
// materialize: true) writes the first original_limit rows to disk. A
// failure is recorded on the cached entry (so Get/explain can surface
// view_metadata.last_error-equivalent state) and returned, but the
// previous good rows (if any) are left in the cache untouched.
func (e *Engine) RebuildView(ctx context.Context, name string) error {
	v, ok := e.sch.Views[name]
	if !ok {
		return &ground.Error{Kind: ground.KindNotFound, Err: fmt.Errorf("view %q is not declared", name)}
	}

	if v.Type == "query" {
		return &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("view %q is a query view, not static", name)}
	}

	rewritten, err := e.rewriteView(v)
	if err != nil {
		e.recordFailure(name, err)
		return err
	}

	rows, err := e.index.ExecuteSQL(ctx, rewritten.SQL, nil)
	if err != nil {
		e.recordFailure(name, err)
		return err
	}

	trimmed := rows
	if rewritten.HasLimit && len(rows) > rewritten.OriginalLimit {
		trimmed = rows[:rewritten.OriginalLimit]
	}

	e.mu.Lock()
	e.cache[name] = &cachedView{rows: trimmed, rewritten: rewritten}
	e.mu.Unlock()

	if v.Materialize {
		format := v.Format
		if format == "" {
			format = e.defaultFormat
		}

		if format == "" {
			format = "yaml"
		}

		if err := e.mat.Write(name, format, trimmed); err != nil {
			return &ground.Error{Kind: ground.KindIO, Err: fmt.Errorf("materializing view %q: %w", name, err)}
		}
	}

	return nil
}

func (e *Engine) recordFailure(name string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, ok := e.cache[name]
	if !ok {
		e.cache[name] = &cachedView{err: err}
		return
	}

	existing.err = err
}

// Get returns the cached rows for a static view. Returns the last
// RebuildView error, if the view has never successfully built.
func (e *Engine) Get(name string) ([]map[string]any, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cv, ok := e.cache[name]
	if !ok {
		return nil, &ground.Error{Kind: ground.KindNotFound, Err: fmt.Errorf("view %q has not been built", name)}
	}

	if cv.rows == nil && cv.err != nil {
		return nil, cv.err
	}

	return cv.rows, nil
}

// AffectedViews returns the names of static views whose rewriter lists
// collection among its table references, per I4 (view freshness): the
// caller uses this after a write to decide which views need RebuildView.
func (e *Engine) AffectedViews(collection string) []string {
	var names []string

	for name, v := range e.sch.Views {
		if v.Type == "query" {
			continue
		}

		rewritten, err := e.rewriteView(v)
		if err != nil {
			// A view that fails to parse can't reference anything
			// meaningfully; RebuildAll/RebuildView will have already
			// recorded the failure.
			continue
		}

		for _, t := range rewritten.Tables {
			if t == collection {
				names = append(names, name)
				break
			}
		}
	}

	return names
}

// QueryDynamic executes a parameterized query view (type: query) with the
// given named params. Query views are never cached; the buffer mechanism
// does not apply to them (spec §4.6).
func (e *Engine) QueryDynamic(ctx context.Context, name string, params map[string]any) ([]map[string]any, error) {
	v, ok := e.sch.Views[name]
	if !ok {
		return nil, &ground.Error{Kind: ground.KindNotFound, Err: fmt.Errorf("view %q is not declared", name)}
	}

	if v.Type != "query" {
		return nil, &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("view %q is a static view, not a query view", name)}
	}

	parsed, err := viewsql.Parse(v.Query)
	if err != nil {
		return nil, err
	}

	if err := checkParamTypes(v, parsed.Params, params); err != nil {
		return nil, err
	}

	rewritten, err := viewsql.Rewrite(parsed, e.lookupFields, 1) // no buffering for query views
	if err != nil {
		return nil, err
	}

	return e.index.ExecuteSQL(ctx, rewritten.SQL, params)
}

// checkParamTypes verifies every parameter the rewritten SQL references is
// both declared in the view's params block and supplied by the caller,
// giving each named param the type used for binding (spec: "each is
// matched against the declared params block, which gives it a type used
// for binding"). Type coercion itself is left to go-sqlite3's driver.
func checkParamTypes(v *schema.View, required []string, supplied map[string]any) error {
	for _, name := range required {
		typ, declared := v.Params[name]
		if !declared {
			return &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("view %q: query references undeclared param %q", v.Name, name)}
		}

		val, ok := supplied[name]
		if !ok {
			return &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("view %q: missing required param %q (type %s)", v.Name, name, typ)}
		}

		if err := checkParamValueType(typ, val); err != nil {
			return &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("view %q: param %q: %w", v.Name, name, err)}
		}
	}

	return nil
}

func checkParamValueType(typ schema.FieldType, val any) error {
	switch typ {
	case schema.TypeString, schema.TypeDate, schema.TypeDatetime, schema.TypeRef:
		if _, ok := val.(string); !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
	case schema.TypeNumber:
		switch val.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("expected number, got %T", val)
		}
	case schema.TypeBoolean:
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", val)
		}
	}

	return nil
}

// Explain returns the rewritten SQL for name and the document count in
// each collection the rewritten query references, so a caller can judge
// cost before running it (spec §4.6). Works for both static and query
// views.
func (e *Engine) Explain(ctx context.Context, name string, params map[string]any) (string, map[string]int, error) {
	v, ok := e.sch.Views[name]
	if !ok {
		return "", nil, &ground.Error{Kind: ground.KindNotFound, Err: fmt.Errorf("view %q is not declared", name)}
	}

	rewritten, err := e.rewriteView(v)
	if err != nil {
		return "", nil, err
	}

	counts, err := e.index.CollectionCounts(ctx)
	if err != nil {
		return "", nil, &ground.Error{Kind: ground.KindIndex, Err: fmt.Errorf("explain %q: %w", name, err)}
	}

	referenced := make(map[string]int, len(rewritten.Tables))
	for _, t := range rewritten.Tables {
		referenced[t] = counts[t]
	}

	return rewritten.SQL, referenced, nil
}

package viewsql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/groundlabs/grounddb/internal/ground"
)

// CollectionFields is the subset of a collection's schema the rewriter
// needs: its declared field names (in order) and whether it has a content
// body to project.
type CollectionFields struct {
	Fields  []string
	Content bool
}

// Rewritten is the output of Rewrite: the CTE-wrapped SQL ready for
// execution, its ordered parameter names, and the buffering metadata the
// view engine needs to apply and then trim LIMIT N*B back to N.
type Rewritten struct {
	SQL           string
	Params        []string
	BufferLimit   int
	OriginalLimit int
	HasLimit      bool
	Tables        []string
}

var limitRe = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\s*$`)

// Rewrite builds the final SQL: one CTE per distinct referenced
// collection, each projecting id/created_at/modified_at/content (when
// declared)/all declared fields via json_extract, followed by the
// original query appended verbatim. lookup resolves a collection name to
// its field list; Rewrite fails if a referenced collection is unknown.
func Rewrite(parsed *Parsed, lookup func(collection string) (CollectionFields, bool), bufferMultiplier int) (*Rewritten, error) {
	if bufferMultiplier <= 0 {
		bufferMultiplier = 2
	}

	seen := map[string]bool{}

	var (
		ctes   []string
		tables []string
	)

	for _, ref := range parsed.Tables {
		if seen[ref.Collection] {
			continue
		}

		seen[ref.Collection] = true
		tables = append(tables, ref.Collection)

		fields, ok := lookup(ref.Collection)
		if !ok {
			return nil, &ground.Error{Kind: ground.KindQuery, Collection: ref.Collection, Err: fmt.Errorf("view references unknown collection %q", ref.Collection)}
		}

		ctes = append(ctes, buildCTE(ref.Collection, fields))
	}

	body := parsed.Raw

	originalLimit, hasLimit := extractLimit(body)

	bufferLimit := originalLimit

	if hasLimit {
		bufferLimit = originalLimit * bufferMultiplier
		body = limitRe.ReplaceAllString(body, fmt.Sprintf("LIMIT %d", bufferLimit))
	}

	sql := "WITH " + strings.Join(ctes, ",\n") + "\n" + body

	return &Rewritten{
		SQL:           sql,
		Params:        parsed.Params,
		BufferLimit:   bufferLimit,
		OriginalLimit: originalLimit,
		HasLimit:      hasLimit,
		Tables:        tables,
	}, nil
}

func buildCTE(collection string, fields CollectionFields) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s AS (\n  SELECT\n    id, created_at, modified_at", collection)

	if fields.Content {
		b.WriteString(", content_text AS content")
	}

	for _, f := range fields.Fields {
		fmt.Fprintf(&b, ",\n    json_extract(data_json,'$.%s') AS %s", f, f)
	}

	fmt.Fprintf(&b, "\n  FROM documents\n  WHERE collection = '%s'\n)", collection)

	return b.String()
}

func extractLimit(sql string) (int, bool) {
	m := limitRe.FindStringSubmatch(sql)
	if m == nil {
		return 0, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}

	return n, true
}

// Package viewsql parses the restricted SELECT dialect views.query and
// views.params declare, and rewrites it into the CTE-wrapped form the
// view engine executes against the documents table.
//
// The grammar is single-level SELECT with FROM + zero or more JOIN
// (inner/left), WHERE, GROUP BY, ORDER BY, LIMIT, and subqueries only
// inside WHERE. This is a single-pass hand-rolled scanner rather than a
// parser-generator: the grammar is narrow enough that a generated parser
// would be more machinery than the problem warrants, and no available
// dependency exposes an importable "parse a SQL subset" library
// (mattn/go-sqlite3 only wraps the engine's C API).
package viewsql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/groundlabs/grounddb/internal/ground"
)

// TableRef is one FROM/JOIN reference: the collection name and its alias,
// if any.
type TableRef struct {
	Collection string
	Alias      string
}

// Parsed is the result of scanning a view's query string.
type Parsed struct {
	Raw    string
	Tables []TableRef
	// Params is every :name token found outside string literals, in
	// first-occurrence order, deduplicated.
	Params []string
}

var disallowedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE",
	"ATTACH", "DETACH", "PRAGMA", "VACUUM", "UNION", "REPLACE",
}

var (
	fromJoinRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_]*)(?:\s+(?:AS\s+)?([A-Za-z_][A-Za-z0-9_]*))?`)
	paramRe    = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)
	// reservedAfterTable excludes JOIN/WHERE/etc. keywords from being
	// mistaken for an alias by fromJoinRe's optional alias group.
	reservedAfterTable = map[string]bool{
		"where": true, "join": true, "left": true, "inner": true,
		"group": true, "order": true, "limit": true, "on": true,
		"and": true, "or": true,
	}
)

// Parse scans raw SQL and extracts table references and named parameters.
// It rejects statements using keywords outside the restricted grammar and
// anything but a single top-level statement.
func Parse(raw string) (*Parsed, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, queryErr("query is empty")
	}

	if strings.Count(strings.TrimRight(trimmed, "; \t\n"), ";") > 0 {
		return nil, queryErr("multiple statements are not allowed")
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") {
		return nil, queryErr("query must start with SELECT")
	}

	codeOnly, err := stripStringLiterals(trimmed)
	if err != nil {
		return nil, err
	}

	codeUpper := strings.ToUpper(codeOnly)

	for _, kw := range disallowedKeywords {
		if containsWord(codeUpper, kw) {
			return nil, queryErr(fmt.Sprintf("keyword %q is not allowed in view queries", kw))
		}
	}

	tables := parseTableRefs(codeOnly)
	if len(tables) == 0 {
		return nil, queryErr("query has no FROM clause")
	}

	params := parseParams(codeOnly)

	return &Parsed{Raw: trimmed, Tables: tables, Params: params}, nil
}

func parseTableRefs(codeOnly string) []TableRef {
	matches := fromJoinRe.FindAllStringSubmatch(codeOnly, -1)

	seen := map[string]bool{}

	var out []TableRef

	for _, m := range matches {
		collection := m[1]
		alias := m[2]

		if reservedAfterTable[strings.ToLower(alias)] {
			alias = ""
		}

		key := collection + "\x00" + alias
		if seen[key] {
			continue
		}

		seen[key] = true

		out = append(out, TableRef{Collection: collection, Alias: alias})
	}

	return out
}

func parseParams(codeOnly string) []string {
	matches := paramRe.FindAllStringSubmatch(codeOnly, -1)

	seen := map[string]bool{}

	var out []string

	for _, m := range matches {
		name := m[1]
		if seen[name] {
			continue
		}

		seen[name] = true

		out = append(out, name)
	}

	return out
}

// stripStringLiterals replaces the contents of every single-quoted SQL
// string literal (with '' escaping) with spaces, preserving byte offsets
// so keyword/identifier scans never match inside a literal.
func stripStringLiterals(s string) (string, error) {
	b := []byte(s)
	out := make([]byte, len(b))
	copy(out, b)

	inString := false

	for i := 0; i < len(b); i++ {
		c := b[i]

		if !inString {
			if c == '\'' {
				inString = true
			}

			continue
		}

		if c == '\'' {
			if i+1 < len(b) && b[i+1] == '\'' {
				out[i] = ' '
				out[i+1] = ' '
				i++

				continue
			}

			inString = false

			continue
		}

		out[i] = ' '
	}

	if inString {
		return "", queryErr("unterminated string literal")
	}

	return string(out), nil
}

func containsWord(haystack, word string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)

	return re.MatchString(haystack)
}

func queryErr(msg string) error {
	return &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("%s", msg)}
}

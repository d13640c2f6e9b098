package schema

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(:[^}]+)?\}`)

// Raw returns the original schema.yaml bytes Parse produced s from, for
// persisting to schema_history so a later migration diff can re-parse
// exactly what was previously loaded.
func (s *Schema) Raw() []byte { return s.raw }

// extractPlaceholders returns the field names referenced by a path template,
// e.g. "posts/{status}/{date:YYYY-MM-DD}-{title}.md" -> ["status", "date", "title"].
func extractPlaceholders(tmpl string) []string {
	matches := placeholderRe.FindAllStringSubmatch(tmpl, -1)

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}

	return out
}

// Hash returns a stable fingerprint of the schema's structural shape,
// changing whenever a collection's fields, a view's query, or a type's
// shape changes in any way that requires a migration check. Mirrors the
// FNV-1a-over-sorted-components approach used for the document index's
// own table fingerprint.
func (s *Schema) Hash() uint64 {
	var names []string
	for name := range s.Collections {
		names = append(names, name)
	}

	sort.Strings(names)

	h := fnv.New64a()

	for _, name := range names {
		col := s.Collections[name]
		fmt.Fprintf(h, "collection:%s\npath:%s\nshape:%s\ncontent:%t\nadditional:%t\nstrict:%t\nid_auto:%s\non_delete:%s\n",
			name, col.Path, col.Shape, col.Content, col.AdditionalProperties, col.Strict, col.IDAuto, col.OnDelete)

		for _, f := range col.Fields {
			hashField(h, f)
		}
	}

	var typeKeys []string
	for name, fields := range s.Types {
		for fname := range fields {
			typeKeys = append(typeKeys, name+"\x00"+fname)
		}
	}

	sort.Strings(typeKeys)

	for _, key := range typeKeys {
		name, fname, _ := strings.Cut(key, "\x00")
		fmt.Fprintf(h, "typedef:%s\n", name)
		hashField(h, s.Types[name][fname])
	}

	var viewNames []string
	for name := range s.Views {
		viewNames = append(viewNames, name)
	}

	sort.Strings(viewNames)

	for _, name := range viewNames {
		v := s.Views[name]
		fmt.Fprintf(h, "view:%s\nquery:%s\ntype:%s\nmaterialize:%t\n", name, v.Query, v.Type, v.Materialize)
	}

	return h.Sum64()
}

func hashField(h interface{ Write([]byte) (int, error) }, f *Field) {
	fmt.Fprintf(h, "field:%s\ntype:%s\nrequired:%t\nenum:%s\nshape:%s\n",
		f.Name, f.Type, f.Required, strings.Join(f.Enum, ","), f.Shape)

	if f.Elem != nil {
		hashField(h, f.Elem)
	}

	if len(f.Target) > 0 {
		targets := append([]string(nil), f.Target...)
		sort.Strings(targets)
		fmt.Fprintf(h, "target:%s\non_delete:%s\n", strings.Join(targets, ","), f.RefOnDelete)
	}
}

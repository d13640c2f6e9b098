// Package docfile serializes and parses the three on-disk document shapes
// (Markdown + YAML front matter, JSON, JSONL) described in schema.yaml's
// collection definitions.
//
// Front matter values are represented as plain Go values (string, int,
// float64, bool, time.Time, []any, map[string]any) produced and consumed by
// gopkg.in/yaml.v3, which is rich enough for the full field type system
// (date, datetime, nested object, list<ref>) that a hand-rolled
// scalar-only parser is not.
package docfile

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/groundlabs/grounddb/internal/ground"
)

// MarshalOptions controls front-matter key ordering on write.
//
// Mirrors the ordered-builder shape used elsewhere in this codebase for
// deterministic output: KeyOrder lists the keys that must come first, in
// that order (typically the collection's declared field order); any
// remaining keys present in the data but not listed are appended after,
// sorted lexicographically, matching spec's "schema field order, then
// implicit extras in lexicographic order" rule.
type MarshalOptions struct {
	KeyOrder []string
}

// MarshalYAML renders fm as a YAML mapping in opts.KeyOrder order (then
// lexicographic for unlisted keys), without the --- fences.
func MarshalYAML(fm map[string]any, opts MarshalOptions) (string, error) {
	keys := orderedKeys(fm, opts.KeyOrder)

	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for _, k := range keys {
		v := fm[k]

		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}

		valNode := &yaml.Node{}
		if err := valNode.Encode(v); err != nil {
			return "", &ground.Error{Kind: ground.KindIO, Err: fmt.Errorf("encoding field %q: %w", k, err)}
		}

		root.Content = append(root.Content, keyNode, valNode)
	}

	out, err := yaml.Marshal(root)
	if err != nil {
		return "", &ground.Error{Kind: ground.KindIO, Err: fmt.Errorf("marshaling front matter: %w", err)}
	}

	return string(out), nil
}

// orderedKeys returns priority (declared in order, if present in fm)
// followed by any remaining fm keys sorted lexicographically.
func orderedKeys(fm map[string]any, priority []string) []string {
	seen := make(map[string]bool, len(priority))

	out := make([]string, 0, len(fm))

	for _, k := range priority {
		if _, ok := fm[k]; ok && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}

	var extra []string
	for k := range fm {
		if !seen[k] {
			extra = append(extra, k)
		}
	}

	sort.Strings(extra)

	return append(out, extra...)
}

// UnmarshalYAML parses a YAML mapping into a front-matter value map. Values
// decode to string, int/float64, bool, time.Time, []any, or map[string]any
// depending on their YAML shape.
func UnmarshalYAML(data []byte) (map[string]any, error) {
	var m map[string]any

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(false)

	if err := dec.Decode(&m); err != nil {
		return nil, &ground.Error{Kind: ground.KindValidation, Err: fmt.Errorf("parsing front matter: %w", err)}
	}

	if m == nil {
		m = map[string]any{}
	}

	return m, nil
}

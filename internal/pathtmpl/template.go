// Package pathtmpl renders and extracts collection path templates: strings
// of literal segments and {field} or {field:spec} placeholders that map a
// document's field values to its on-disk relative path and back.
package pathtmpl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/groundlabs/grounddb/internal/ground"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(:[^}]+)?\}`)

// Segment is one literal or placeholder piece of a compiled template.
type Segment struct {
	Literal string // non-empty for literal segments
	Field   string // non-empty for placeholder segments
	Spec    string // format spec, e.g. "YYYY-MM-DD"; empty for plain string fields
}

// Template is a compiled path template, ready for Render/Extract.
type Template struct {
	raw      string
	segments []Segment
}

// Compile parses a template string. Unknown format specs are caught at
// render/extract time so that one malformed placeholder doesn't require a
// second validation pass here.
func Compile(tmpl string) *Template {
	t := &Template{raw: tmpl}

	last := 0

	for _, m := range placeholderRe.FindAllStringSubmatchIndex(tmpl, -1) {
		start, end := m[0], m[1]

		if start > last {
			t.segments = append(t.segments, Segment{Literal: tmpl[last:start]})
		}

		field := tmpl[m[2]:m[3]]

		spec := ""
		if m[4] != -1 {
			spec = tmpl[m[4]+1 : m[5]] // skip leading ':'
		}

		t.segments = append(t.segments, Segment{Field: field, Spec: spec})

		last = end
	}

	if last < len(tmpl) {
		t.segments = append(t.segments, Segment{Literal: tmpl[last:]})
	}

	return t
}

// String returns the original template text.
func (t *Template) String() string { return t.raw }

// Render substitutes field values and slugifies each placeholder's
// stringification. Date/datetime fields apply their format spec.
func (t *Template) Render(values map[string]any) (string, error) {
	var b strings.Builder

	for _, seg := range t.segments {
		if seg.Field == "" {
			b.WriteString(seg.Literal)

			continue
		}

		v, ok := values[seg.Field]
		if !ok || v == nil {
			return "", &ground.Error{Kind: ground.KindValidation, Err: fmt.Errorf("path template: missing field %q", seg.Field)}
		}

		rendered, err := renderValue(seg.Field, seg.Spec, v)
		if err != nil {
			return "", err
		}

		b.WriteString(rendered)
	}

	return b.String(), nil
}

func renderValue(field, spec string, v any) (string, error) {
	if spec != "" {
		t, err := asTime(v)
		if err != nil {
			return "", &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("field %q: format spec %q requires a date/datetime value: %w", field, spec, err)}
		}

		layout, err := specToLayout(spec)
		if err != nil {
			return "", &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("field %q: %w", field, err)}
		}

		return t.Format(layout), nil
	}

	return slugify(stringify(v)), nil
}

// asTime accepts either a raw time.Time or the canonical "2006-01-02"/
// RFC3339 string internal/validate normalizes date/datetime fields to, so a
// format-spec placeholder can be rendered from a document's validated
// fields as well as from a caller-supplied time.Time.
func asTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			return t, nil
		}

		if t, err := time.Parse("2006-01-02", x); err == nil {
			return t, nil
		}

		return time.Time{}, fmt.Errorf("value %q is not a recognized date or datetime string", x)
	default:
		return time.Time{}, fmt.Errorf("expected time.Time or date/datetime string, got %T", v)
	}
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int, int32, int64:
		return fmt.Sprintf("%d", x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// specToLayout maps a format spec's tokens to a Go reference-time layout.
// "MM" is overloaded in the token vocabulary: before the hour token it
// names the month ("YYYY-MM-DD"), after it it names the minute
// ("...THHMM"), matching the two composite examples the token vocabulary
// is defined by. Every other token is unambiguous.
func specToLayout(spec string) (string, error) {
	remaining := spec
	var out strings.Builder

	sawHour := false
	matchedAny := false

	for len(remaining) > 0 {
		switch {
		case strings.HasPrefix(remaining, "YYYY"):
			out.WriteString("2006")
			remaining = remaining[4:]
			matchedAny = true

		case strings.HasPrefix(remaining, "HH"):
			out.WriteString("15")
			remaining = remaining[2:]
			sawHour = true
			matchedAny = true

		case strings.HasPrefix(remaining, "MM"):
			if sawHour {
				out.WriteString("04") // minute
			} else {
				out.WriteString("01") // month
			}

			remaining = remaining[2:]
			matchedAny = true

		case strings.HasPrefix(remaining, "DD"):
			out.WriteString("02")
			remaining = remaining[2:]
			matchedAny = true

		case strings.HasPrefix(remaining, "SS"):
			out.WriteString("05")
			remaining = remaining[2:]
			matchedAny = true

		default:
			out.WriteByte(remaining[0])
			remaining = remaining[1:]
		}
	}

	if !matchedAny {
		return "", fmt.Errorf("unknown format spec %q", spec)
	}

	return out.String(), nil
}

// slugify lowercases, normalizes to ASCII, and collapses any run of
// non-[a-z0-9] characters into a single '-', stripping leading/trailing
// dashes. A pure-ASCII fold stands in for full Unicode NFKD normalization,
// which no dependency in this module's stack provides directly.
func slugify(s string) string {
	s = strings.ToLower(foldASCII(s))

	var b strings.Builder

	lastDash := false

	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false

			continue
		}

		if !lastDash && b.Len() > 0 {
			b.WriteByte('-')
			lastDash = true
		}
	}

	out := strings.TrimRight(b.String(), "-")

	return out
}

// foldASCII approximates Unicode NFKD folding for the common Latin-1
// accented range, since no direct module dependency carries unicode/norm.
func foldASCII(s string) string {
	var b strings.Builder

	for _, r := range s {
		if repl, ok := asciiFold[r]; ok {
			b.WriteString(repl)

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

var asciiFold = map[rune]string{
	'à': "a", 'á': "a", 'â': "a", 'ã': "a", 'ä': "a", 'å': "a",
	'è': "e", 'é': "e", 'ê': "e", 'ë': "e",
	'ì': "i", 'í': "i", 'î': "i", 'ï': "i",
	'ò': "o", 'ó': "o", 'ô': "o", 'õ': "o", 'ö': "o",
	'ù': "u", 'ú': "u", 'û': "u", 'ü': "u",
	'ý': "y", 'ÿ': "y",
	'ñ': "n", 'ç': "c",
	'À': "A", 'Á': "A", 'Â': "A", 'Ã': "A", 'Ä': "A", 'Å': "A",
	'È': "E", 'É': "E", 'Ê': "E", 'Ë': "E",
	'Ì': "I", 'Í': "I", 'Î': "I", 'Ï': "I",
	'Ò': "O", 'Ó': "O", 'Ô': "O", 'Õ': "O", 'Ö': "O",
	'Ù': "U", 'Ú': "U", 'Û': "U", 'Ü': "U",
	'Ý': "Y",
	'Ñ': "N", 'Ç': "C",
}

package pathtmpl

import (
	"fmt"
	"strings"
	"time"

	"github.com/groundlabs/grounddb/internal/ground"
)

// Extract recovers field values from a relative path produced by (or
// matching the shape of) this template. Literal segments must match
// exactly; placeholder segments capture a slugified token. Date/datetime
// placeholders additionally parse their captured token back into a
// time.Time using the same format spec used to render it.
//
// Extraction is lossy for plain string placeholders (slugified titles do
// not round-trip to their original casing/punctuation); placeholders with
// a format spec (dates) round-trip exactly.
func (t *Template) Extract(path string) (map[string]any, error) {
	values := map[string]any{}
	remaining := path

	for i, seg := range t.segments {
		if seg.Field == "" {
			if !strings.HasPrefix(remaining, seg.Literal) {
				return nil, &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("path %q does not match template %q", path, t.raw)}
			}

			remaining = remaining[len(seg.Literal):]

			continue
		}

		// Determine the stop literal: the next literal segment, or end of string.
		stop := ""
		if i+1 < len(t.segments) && t.segments[i+1].Field == "" {
			stop = t.segments[i+1].Literal
		}

		var token string
		switch {
		case seg.Spec != "":
			// A format-spec token has its layout's fixed width and may itself
			// contain the stop literal ("2026-02-13" before "-").
			layout, err := specToLayout(seg.Spec)
			if err != nil {
				return nil, &ground.Error{Kind: ground.KindSchema, Err: err}
			}

			if len(remaining) < len(layout) || !strings.HasPrefix(remaining[len(layout):], stop) {
				return nil, &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("path %q does not match template %q at field %q", path, t.raw, seg.Field)}
			}

			token = remaining[:len(layout)]
			remaining = remaining[len(layout):]
		case stop == "":
			token = remaining
			remaining = ""
		default:
			idx := strings.Index(remaining, stop)
			if idx < 0 {
				return nil, &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("path %q does not match template %q at field %q", path, t.raw, seg.Field)}
			}

			token = remaining[:idx]
			remaining = remaining[idx:]
		}

		if seg.Spec != "" {
			layout, err := specToLayout(seg.Spec)
			if err != nil {
				return nil, &ground.Error{Kind: ground.KindSchema, Err: err}
			}

			parsed, err := time.Parse(layout, token)
			if err != nil {
				return nil, &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("field %q: parsing %q as %q: %w", seg.Field, token, seg.Spec, err)}
			}

			values[seg.Field] = parsed
		} else {
			values[seg.Field] = token
		}
	}

	if remaining != "" {
		return nil, &ground.Error{Kind: ground.KindQuery, Err: fmt.Errorf("path %q has trailing content not matched by template %q", path, t.raw)}
	}

	return values, nil
}

// maxSuffixAttempts bounds on_conflict=suffix's search for a free path.
// 1000 same-named collisions must still resolve to a unique path, so the
// cap sits two orders of magnitude above that to leave headroom; only a
// pathological conflict storm far past what any real collection produces
// hits it, and it still terminates rather than looping forever.
const maxSuffixAttempts = 100000

// ResolveConflict finds a free path given a candidate, a policy, and an
// existence check. For on_conflict=error it returns the candidate
// unchanged if free, else a PathConflict error. For on_conflict=suffix it
// appends "-2", "-3", ... (before the final extension) until exists
// returns false.
func ResolveConflict(candidate string, suffixOnConflict bool, exists func(path string) (bool, error)) (string, error) {
	taken, err := exists(candidate)
	if err != nil {
		return "", err
	}

	if !taken {
		return candidate, nil
	}

	if !suffixOnConflict {
		return "", &ground.Error{Kind: ground.KindPathConflict, Err: fmt.Errorf("path %q already exists", candidate)}
	}

	dir, base, ext := splitPathExt(candidate)

	for n := 2; n <= maxSuffixAttempts; n++ {
		attempt := fmt.Sprintf("%s%s-%d%s", dir, base, n, ext)

		taken, err = exists(attempt)
		if err != nil {
			return "", err
		}

		if !taken {
			return attempt, nil
		}
	}

	return "", &ground.Error{Kind: ground.KindPathConflict, Err: fmt.Errorf("no free suffix for %q after %d attempts", candidate, maxSuffixAttempts)}
}

func splitPathExt(p string) (dir, base, ext string) {
	slash := strings.LastIndexByte(p, '/')
	dir = ""
	rest := p

	if slash >= 0 {
		dir = p[:slash+1]
		rest = p[slash+1:]
	}

	dot := strings.LastIndexByte(rest, '.')
	if dot <= 0 {
		return dir, rest, ""
	}

	return dir, rest[:dot], rest[dot:]
}

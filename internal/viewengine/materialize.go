package viewengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/groundlabs/grounddb/internal/docfile"
	"github.com/groundlabs/grounddb/internal/ground"
)

// FileMaterializer writes materialized view output under dir/views/. It is
// a deliberately separate atomic-write path from internal/fsx.AtomicWriter:
// a materialized view is pure cache output recomputed from the index on
// every rebuild, so it has no crash-recovery obligation beyond "never
// serve a torn file," which
// github.com/natefinch/atomic's temp-file-then-rename already guarantees.
type FileMaterializer struct {
	dir string
}

// NewFileMaterializer creates a FileMaterializer rooted at dir (the store's
// base directory; files land in dir/views/).
func NewFileMaterializer(dir string) *FileMaterializer {
	return &FileMaterializer{dir: dir}
}

// Write renders rows as YAML (default) or JSON and atomically writes
// views/<name>.<ext>.
func (m *FileMaterializer) Write(name, format string, rows []map[string]any) error {
	viewsDir := filepath.Join(m.dir, "views")
	if err := os.MkdirAll(viewsDir, 0o750); err != nil {
		return &ground.Error{Kind: ground.KindIO, Err: fmt.Errorf("creating views directory: %w", err)}
	}

	ext := "yaml"
	if format == "json" {
		ext = "json"
	}

	path := filepath.Join(viewsDir, name+"."+ext)

	var buf []byte

	var err error

	if format == "json" {
		buf, err = json.MarshalIndent(rows, "", "  ")
	} else {
		buf, err = marshalRowsYAML(rows)
	}

	if err != nil {
		return &ground.Error{Kind: ground.KindIO, Err: fmt.Errorf("encoding view %q: %w", name, err)}
	}

	if err := atomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
		return &ground.Error{Kind: ground.KindIO, Err: fmt.Errorf("writing view %q: %w", name, err)}
	}

	return nil
}

// marshalRowsYAML renders each row with docfile's ordered-key YAML
// marshaler (no fixed KeyOrder, so keys fall back to lexicographic), wraps
// them as a "- " sequence. docfile.MarshalYAML only emits one mapping at a
// time, so rows are marshaled individually and concatenated as a block
// sequence to keep key ordering stable per row.
func marshalRowsYAML(rows []map[string]any) ([]byte, error) {
	var buf bytes.Buffer

	if len(rows) == 0 {
		buf.WriteString("[]\n")
		return buf.Bytes(), nil
	}

	for _, row := range rows {
		rendered, err := docfile.MarshalYAML(row, docfile.MarshalOptions{})
		if err != nil {
			return nil, err
		}

		lines := splitLines(rendered)

		for i, line := range lines {
			if line == "" {
				continue
			}

			if i == 0 {
				buf.WriteString("- ")
			} else {
				buf.WriteString("  ")
			}

			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}

func splitLines(s string) []string {
	var lines []string

	start := 0

	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}

	if start < len(s) {
		lines = append(lines, s[start:])
	}

	return lines
}

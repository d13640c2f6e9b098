package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/groundlabs/grounddb/internal/docfile"
	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/pathtmpl"
	"github.com/groundlabs/grounddb/internal/schema"
)

// fieldOrder returns a collection's declared field names, the KeyOrder
// docfile needs to emit front matter in schema order (spec §4.2).
func fieldOrder(col *schema.Collection) []string {
	names := make([]string, len(col.Fields))
	for i, f := range col.Fields {
		names[i] = f.Name
	}

	return names
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

// renderDocument encodes fields/body into the on-disk bytes for col's
// shape, in schema field order.
func renderDocument(col *schema.Collection, fields map[string]any, body string) ([]byte, error) {
	return docfile.RenderFile(shapeOf(col), fields, body, docfile.MarshalOptions{KeyOrder: fieldOrder(col)})
}

// resolvePath renders col's path template against fields and resolves
// on_conflict against the real filesystem (spec §4.1, §4.7 step 4).
func (s *Store) resolvePath(col *schema.Collection, fields map[string]any, ignorePath string) (string, error) {
	tmpl := pathtmpl.Compile(col.Path)

	candidate, err := tmpl.Render(fields)
	if err != nil {
		return "", ground.WithContext(err, col.Name, "", "")
	}

	suffixOnConflict := col.IDOnConflict == schema.OnConflictSuffix

	resolved, err := pathtmpl.ResolveConflict(candidate, suffixOnConflict, func(path string) (bool, error) {
		if path == ignorePath {
			return false, nil
		}

		return s.fs.Exists(filepath.Join(s.dir, path))
	})
	if err != nil {
		return "", ground.WithContext(err, col.Name, "", candidate)
	}

	return resolved, nil
}

// writeDocumentAtomic renders and atomically writes fields/body to
// col's shape at the given disk-relative path, creating parent
// directories as needed.
func (s *Store) writeDocumentAtomic(col *schema.Collection, relPath string, fields map[string]any, body string) error {
	data, err := renderDocument(col, fields, body)
	if err != nil {
		return err
	}

	absPath := filepath.Join(s.dir, relPath)

	if err := s.fs.MkdirAll(filepath.Dir(absPath), 0o750); err != nil {
		return &ground.Error{Kind: ground.KindIO, Path: relPath, Err: fmt.Errorf("creating parent directory: %w", err)}
	}

	if err := s.aw.WriteWithDefaults(absPath, bytesReader(data)); err != nil {
		return &ground.Error{Kind: ground.KindIO, Path: relPath, Err: fmt.Errorf("writing document: %w", err)}
	}

	return nil
}

// removeDocument deletes the file at relPath. Missing files are not an
// error: the caller may be reconciling a watcher-reported delete that has
// already happened.
func (s *Store) removeDocument(relPath string) error {
	absPath := filepath.Join(s.dir, relPath)

	if err := s.fs.Remove(absPath); err != nil && !os.IsNotExist(err) {
		return &ground.Error{Kind: ground.KindIO, Path: relPath, Err: fmt.Errorf("removing document: %w", err)}
	}

	return nil
}

// readDocument parses the file at relPath according to col's shape,
// returning its front matter and body (body is always "" for json/jsonl).
// Not valid for jsonl collections, whose one path holds many records: use
// readRecords/writeRecords instead.
func (s *Store) readDocument(col *schema.Collection, relPath string) (map[string]any, string, error) {
	data, err := s.fs.ReadFile(filepath.Join(s.dir, relPath))
	if err != nil {
		return nil, "", &ground.Error{Kind: ground.KindIO, Path: relPath, Err: fmt.Errorf("reading document: %w", err)}
	}

	docs, err := docfile.ParseFile(shapeOf(col), data)
	if err != nil {
		return nil, "", ground.WithContext(err, col.Name, "", relPath)
	}

	if len(docs) == 0 {
		return map[string]any{}, "", nil
	}

	return docs[0].Fields, docs[0].Body, nil
}

// readRecords loads every record of a jsonl (Records) collection from its
// single shared path. A missing file is not an error: the file is created
// lazily by the first insert.
func (s *Store) readRecords(relPath string) ([]map[string]any, error) {
	absPath := filepath.Join(s.dir, relPath)

	exists, err := s.fs.Exists(absPath)
	if err != nil {
		return nil, &ground.Error{Kind: ground.KindIO, Path: relPath, Err: fmt.Errorf("checking records file: %w", err)}
	}

	if !exists {
		return nil, nil
	}

	data, err := s.fs.ReadFile(absPath)
	if err != nil {
		return nil, &ground.Error{Kind: ground.KindIO, Path: relPath, Err: fmt.Errorf("reading records: %w", err)}
	}

	docs, err := docfile.ParseJSONL(data)
	if err != nil {
		return nil, ground.WithContext(err, "", "", relPath)
	}

	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = d.Fields
	}

	return out, nil
}

// writeRecords rewrites a jsonl collection's entire shared file from
// records, atomically. Every mutation of a Records collection (insert,
// update, delete of one record) goes through a read-modify-writeRecords
// cycle since jsonl has no standalone per-record file to move or remove.
func (s *Store) writeRecords(col *schema.Collection, relPath string, records []map[string]any) error {
	data, err := docfile.RenderJSONL(records, docfile.MarshalOptions{KeyOrder: fieldOrder(col)})
	if err != nil {
		return err
	}

	absPath := filepath.Join(s.dir, relPath)

	if err := s.fs.MkdirAll(filepath.Dir(absPath), 0o750); err != nil {
		return &ground.Error{Kind: ground.KindIO, Path: relPath, Err: fmt.Errorf("creating parent directory: %w", err)}
	}

	if err := s.aw.WriteWithDefaults(absPath, bytesReader(data)); err != nil {
		return &ground.Error{Kind: ground.KindIO, Path: relPath, Err: fmt.Errorf("writing records: %w", err)}
	}

	return nil
}

func bytesReader(b []byte) *strings.Reader {
	return strings.NewReader(string(b))
}

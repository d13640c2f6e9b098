package store

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/groundlabs/grounddb/internal/docfile"
	"github.com/groundlabs/grounddb/internal/pathtmpl"
	"github.com/groundlabs/grounddb/internal/schema"
	"github.com/groundlabs/grounddb/internal/sysindex"
)

// ReindexAll runs the boot pipeline's incremental scan (spec §4.11 steps
// 3-5): for every collection, compare the current on-disk directory hash
// against the one recorded at the end of the previous run. Unchanged
// collections are left alone; changed ones are walked and every file is
// reconciled against the index the same way a watcher event would be,
// with any index row whose file has disappeared removed.
func (s *Store) ReindexAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.sch.Collections))
	for name := range s.sch.Collections {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if err := s.reindexCollection(ctx, s.sch.Collections[name]); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) reindexCollection(ctx context.Context, col *schema.Collection) error {
	if shapeOf(col) == docfile.ShapeJSONL {
		return s.reindexRecordsCollection(ctx, col)
	}

	root := collectionRoot(col.Path)
	absRoot := filepath.Join(s.dir, root)

	files, err := s.walkFiles(absRoot, root)
	if err != nil {
		return err
	}

	stats := make([]sysindex.FileStat, 0, len(files))
	relPaths := make(map[string]bool, len(files))

	for _, f := range files {
		stats = append(stats, f.stat)
		relPaths[f.relPath] = true
	}

	hash := sysindex.HashDirectory(stats)

	stored, err := s.idx.GetDirectoryHash(ctx, col.Name)
	if err != nil {
		return err
	}

	if stored != "" && stored == hash {
		return nil
	}

	for _, f := range files {
		if !belongsToCollection(col, f.relPath) {
			continue
		}

		if err := s.reconcileUpsert(ctx, col.Name, f.relPath); err != nil {
			return err
		}
	}

	rows, err := s.idx.ListCollection(ctx, col.Name)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if relPaths[row.Path] {
			continue
		}

		if err := s.reconcileRemove(ctx, col.Name, row.Path); err != nil {
			return err
		}
	}

	return s.idx.SetDirectoryHash(ctx, col.Name, hash)
}

// reindexRecordsCollection reindexes a jsonl collection, whose single
// shared file has no meaningful "directory hash" beyond its own mtime and
// size: any change at all forces a full resync against the index (spec
// §4.9's model already treats every jsonl event this way).
func (s *Store) reindexRecordsCollection(ctx context.Context, col *schema.Collection) error {
	abs := filepath.Join(s.dir, col.Path)

	info, err := s.fs.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	hash := sysindex.HashDirectory([]sysindex.FileStat{{Name: col.Path, MtimeNS: info.ModTime().UnixNano(), Size: info.Size()}})

	stored, err := s.idx.GetDirectoryHash(ctx, col.Name)
	if err != nil {
		return err
	}

	if stored != "" && stored == hash {
		return nil
	}

	if err := s.reconcileRecords(ctx, col, col.Path); err != nil {
		return err
	}

	return s.idx.SetDirectoryHash(ctx, col.Name, hash)
}

// tempFilePattern matches fsx.AtomicWriter's temp file naming convention
// (".name.tmp-N"), so a crash-leftover temp file never gets indexed as a
// document of its own.
var tempFilePattern = regexp.MustCompile(`^\..+\.tmp-\d+$`)

type scannedFile struct {
	relPath string
	stat    sysindex.FileStat
}

// walkFiles recursively lists every regular file under absRoot, returning
// paths relative to the data directory (root is absRoot's own path
// relative to the data directory, prefixed onto each entry). A collection
// root that doesn't exist yet on disk (never had a document written to
// it) yields an empty, non-error result.
func (s *Store) walkFiles(absRoot, root string) ([]scannedFile, error) {
	exists, err := s.fs.Exists(absRoot)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, nil
	}

	var out []scannedFile

	var walk func(absDir, relDir string) error

	walk = func(absDir, relDir string) error {
		entries, err := s.fs.ReadDir(absDir)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			absPath := filepath.Join(absDir, entry.Name())
			relPath := filepath.ToSlash(filepath.Join(relDir, entry.Name()))

			if entry.IsDir() {
				if err := walk(absPath, relPath); err != nil {
					return err
				}

				continue
			}

			if tempFilePattern.MatchString(entry.Name()) {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				return err
			}

			out = append(out, scannedFile{
				relPath: relPath,
				stat:    sysindex.FileStat{Name: relPath, MtimeNS: info.ModTime().UnixNano(), Size: info.Size()},
			})
		}

		return nil
	}

	if err := walk(absRoot, root); err != nil {
		return nil, err
	}

	return out, nil
}

// belongsToCollection reports whether relPath matches col's path template,
// the same test the watcher relies on to reject a sibling collection's
// files when two collections' static roots happen to nest.
func belongsToCollection(col *schema.Collection, relPath string) bool {
	_, err := pathtmpl.Compile(col.Path).Extract(relPath)
	return err == nil
}

// collectionRoot returns the static directory prefix of a path template,
// the subtree ReindexAll walks for this collection (e.g.
// "posts/{status}/{date}-{title}.md" -> "posts"). Mirrors
// internal/watcher's identical helper; duplicated rather than exported
// since the two packages have no other shared dependency.
func collectionRoot(tmpl string) string {
	if i := strings.IndexByte(tmpl, '{'); i >= 0 {
		tmpl = tmpl[:i]
	}

	dir := filepath.Dir(filepath.FromSlash(tmpl))
	if dir == "" {
		return "."
	}

	return dir
}

// Package watcher reports debounced filesystem changes under a GroundDB
// data directory (spec §4.8). It watches one root per collection plus the
// materialized views directory, and turns raw fsnotify traffic — including
// the temp-file-then-rename sequence every atomic write produces — into a
// small, stable event vocabulary: create, modify, move, delete.
package watcher

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventKind is the coalesced, debounced event vocabulary consumers see.
// Raw fsnotify chatter (temp file creates, chmod, duplicate writes) never
// reaches this level.
type EventKind string

const (
	Create EventKind = "create"
	Modify EventKind = "modify"
	Move   EventKind = "move"
	Delete EventKind = "delete"
)

// Event is one coalesced filesystem change, relative to the watcher's root.
type Event struct {
	// Collection is the collection whose directory the event fell under,
	// or "" for the views directory.
	Collection string
	Path       string // relative to root, slash-separated
	OldPath    string // set only for Move
	Kind       EventKind
}

// DefaultDebounce is spec §4.8's sliding window: the last event observed
// for a path within this window is the one that's reported.
const DefaultDebounce = 100 * time.Millisecond

// tempFilePattern matches fsx.AtomicWriter's temp file naming
// (".<base>.tmp-<seq>"). Watched roots see these appear and disappear on
// every write; they're noise, never a document.
var tempFilePattern = regexp.MustCompile(`^\..+\.tmp-\d+$`)

// Watcher watches a set of directories under root and emits coalesced
// Events. Zero value is not usable; construct with New.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	debounce time.Duration

	// dirCollection maps an absolute watched directory to the collection
	// name it belongs to ("" for the views directory). Populated once at
	// construction and grown as new subdirectories appear.
	mu            sync.Mutex
	dirCollection map[string]string

	pending map[string]*pendingEvent // absolute path -> debounce state
	renames map[string]*pendingRename

	events chan Event
	errs   chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

type pendingEvent struct {
	kind    EventKind
	oldPath string // set when kind == Move
	timer   *time.Timer
}

type pendingRename struct {
	collection string
	path       string // absolute
	timer      *time.Timer
}

// Roots names the directories to watch, keyed by collection name. The
// empty key is reserved for the materialized-views directory. Events there
// are reported like any other; the store acts only on deletions.
type Roots map[string]string

// New creates a Watcher rooted at dataDir, recursively watching each
// directory in roots (relative to dataDir). debounce <= 0 uses
// DefaultDebounce.
func New(dataDir string, roots Roots, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}

	w := &Watcher{
		root:          filepath.Clean(dataDir),
		fsw:           fsw,
		debounce:      debounce,
		dirCollection: make(map[string]string),
		pending:       make(map[string]*pendingEvent),
		renames:       make(map[string]*pendingRename),
		events:        make(chan Event, 256),
		errs:          make(chan error, 16),
		done:          make(chan struct{}),
	}

	for collection, rel := range roots {
		abs := filepath.Join(w.root, rel)
		if err := w.addTree(abs, collection); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watcher: watching %q: %w", rel, err)
		}
	}

	return w, nil
}

// addTree adds dir and every existing subdirectory beneath it to the
// fsnotify watch set, recording each as belonging to collection.
// fsnotify.Add is not recursive, so new directories must be added as they
// appear (handled in the event loop).
func (w *Watcher) addTree(dir, collection string) error {
	if _, err := osStat(dir); err != nil {
		// Collection root doesn't exist yet (schema/boot pipeline creates
		// collection directories lazily on first insert); nothing to watch
		// until it does.
		return nil
	}

	entries, err := listDirs(dir)
	if err != nil {
		return err
	}

	if err := w.fsw.Add(dir); err != nil {
		return err
	}

	w.mu.Lock()
	w.dirCollection[dir] = collection
	w.mu.Unlock()

	for _, sub := range entries {
		if err := w.addTree(sub, collection); err != nil {
			return err
		}
	}

	return nil
}

// Start launches the event loop. Call once; Events and Errors deliver
// until Close.
func (w *Watcher) Start() {
	w.wg.Add(1)

	go w.loop()
}

// Events returns the channel of coalesced, debounced events.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns the channel of non-fatal watch errors (fsnotify's own
// backend errors; a failing watch on one file never stops the others).
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops the event loop and releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	w.wg.Wait()

	return w.fsw.Close()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			w.handleRaw(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handleRaw(ev fsnotify.Event) {
	base := filepath.Base(ev.Name)
	if tempFilePattern.MatchString(base) {
		return
	}

	dir := filepath.Dir(ev.Name)

	w.mu.Lock()
	collection, watched := w.dirCollection[dir]
	w.mu.Unlock()

	if !watched {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		w.onCreate(ev.Name, collection)
	case ev.Op&fsnotify.Write != 0:
		w.schedule(ev.Name, collection, Modify, "")
	case ev.Op&fsnotify.Remove != 0:
		w.schedule(ev.Name, collection, Delete, "")
	case ev.Op&fsnotify.Rename != 0:
		w.onRenameFrom(ev.Name, collection)
	}
}

func (w *Watcher) onCreate(path, collection string) {
	if isDir(path) {
		_ = w.addTree(path, collection)
		return
	}

	w.mu.Lock()
	var paired *pendingRename
	for old, r := range w.renames {
		if r.collection == collection {
			paired = r
			delete(w.renames, old)
			break
		}
	}
	w.mu.Unlock()

	if paired != nil {
		paired.timer.Stop()
		w.schedule(path, collection, Move, relPath(w.root, paired.path))
		return
	}

	w.schedule(path, collection, Create, "")
}

func (w *Watcher) onRenameFrom(path, collection string) {
	w.mu.Lock()
	r := &pendingRename{collection: collection, path: path}
	r.timer = time.AfterFunc(w.debounce, func() { w.fireRenameAsDelete(path) })
	w.renames[path] = r
	w.mu.Unlock()
}

func (w *Watcher) fireRenameAsDelete(path string) {
	w.mu.Lock()
	r, ok := w.renames[path]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.renames, path)
	collection := r.collection
	w.mu.Unlock()

	w.schedule(path, collection, Delete, "")
}

// schedule (re)starts the debounce timer for path, overwriting whatever
// kind was pending: the last event within the window wins.
func (w *Watcher) schedule(path, collection string, kind EventKind, oldPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		p.kind = kind
		p.oldPath = oldPath
		p.timer = time.AfterFunc(w.debounce, func() { w.fire(path, collection) })
		return
	}

	w.pending[path] = &pendingEvent{
		kind:    kind,
		oldPath: oldPath,
		timer:   time.AfterFunc(w.debounce, func() { w.fire(path, collection) }),
	}
}

func (w *Watcher) fire(path, collection string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if ok {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if !ok {
		return
	}

	out := Event{
		Collection: collection,
		Path:       relPath(w.root, path),
		Kind:       p.kind,
	}

	if p.kind == Move {
		out.OldPath = p.oldPath
	}

	select {
	case w.events <- out:
	case <-w.done:
	}
}

func relPath(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return abs
	}

	return filepath.ToSlash(rel)
}

func isDir(path string) bool {
	fi, err := osStat(path)
	return err == nil && fi.IsDir()
}

// collectionRoot returns the static directory prefix of a path template,
// the portion before its first placeholder — the directory watcher
// registers a watch on. "posts/{status}/{title}.md" -> "posts";
// "events.jsonl" -> ".".
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

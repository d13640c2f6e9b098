package store

import (
	"fmt"
	"sync"

	"github.com/groundlabs/grounddb/internal/ground"
)

// ChangeKind classifies a CollectionChange.
type ChangeKind string

const (
	Inserted ChangeKind = "inserted"
	Updated  ChangeKind = "updated"
	Deleted  ChangeKind = "deleted"
)

// CollectionChange is delivered to collection subscribers after a
// successful mutation. Old is nil for Inserted, New is nil for Deleted.
type CollectionChange struct {
	Kind       ChangeKind
	Collection string
	ID         string
	Old        *Document
	New        *Document
}

// ViewChange is delivered to view subscribers after a static view's cache
// is recomputed following a mutation to one of its source collections.
type ViewChange struct {
	Name string
	Rows []map[string]any
}

// subscriptions is a thread-safe registry of callbacks grouped by target
// (a collection name or a view name), the same fan-out shape pkg/mddb used
// but keyed by target instead of broadcast to everyone.
type subscriptions struct {
	mu       sync.Mutex
	nextID   uint64
	onView   map[string]map[string]func(ViewChange)
	onChange map[string]map[string]func(CollectionChange)
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		onView:   map[string]map[string]func(ViewChange){},
		onChange: map[string]map[string]func(CollectionChange){},
	}
}

func (s *subscriptions) newID() string {
	s.nextID++
	return fmt.Sprintf("sub-%d", s.nextID)
}

// OnViewChange registers fn to run whenever the named view's cache is
// recomputed. Returns a subscription id usable with Unsubscribe.
func (s *Store) OnViewChange(name string, fn func(ViewChange)) string {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.subs.newID()

	if s.subs.onView[name] == nil {
		s.subs.onView[name] = map[string]func(ViewChange){}
	}

	s.subs.onView[name][id] = fn

	return id
}

// OnCollectionChange registers fn to run after every successful Insert,
// Update, or Delete against collection. Returns a subscription id usable
// with Unsubscribe.
func (s *Store) OnCollectionChange(collection string, fn func(CollectionChange)) string {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.subs.newID()

	if s.subs.onChange[collection] == nil {
		s.subs.onChange[collection] = map[string]func(CollectionChange){}
	}

	s.subs.onChange[collection][id] = fn

	return id
}

// Unsubscribe removes a subscription registered by either OnViewChange or
// OnCollectionChange. Returns ground.KindNotFound if id is not registered.
func (s *Store) Unsubscribe(id string) error {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, byID := range s.subs.onView {
		if _, ok := byID[id]; ok {
			delete(byID, id)
			return nil
		}
	}

	for _, byID := range s.subs.onChange {
		if _, ok := byID[id]; ok {
			delete(byID, id)
			return nil
		}
	}

	return &ground.Error{Kind: ground.KindNotFound, Err: fmt.Errorf("subscription %q not found", id)}
}

// ErrBusy is returned by mutating operations invoked reentrantly from
// inside a subscriber callback (spec: "callbacks must not call back into
// the Store; reentrancy returns Busy").
var ErrBusy = &ground.Error{Kind: ground.KindBusy, Err: fmt.Errorf("store is dispatching subscriber callbacks")}

// beginDispatch marks the Store as running callbacks, returning false (and
// leaving state untouched) if a dispatch is already in progress.
func (s *Store) beginDispatch() bool {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	if s.dispatching {
		return false
	}

	s.dispatching = true

	return true
}

func (s *Store) endDispatch() {
	s.subsMu.Lock()
	s.dispatching = false
	s.subsMu.Unlock()
}

// checkNotDispatching returns ErrBusy if called while subscriber callbacks
// are running on this goroutine's call stack (a reentrant mutation
// attempted from inside a callback), nil otherwise.
func (s *Store) checkNotDispatching() error {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	if s.dispatching {
		return ErrBusy
	}

	return nil
}

func (s *Store) notifyViewChange(change ViewChange) {
	if !s.beginDispatch() {
		return
	}
	defer s.endDispatch()

	s.subsMu.Lock()
	callbacks := make([]func(ViewChange), 0, len(s.subs.onView[change.Name]))
	for _, fn := range s.subs.onView[change.Name] {
		callbacks = append(callbacks, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range callbacks {
		fn(change)
	}
}

func (s *Store) notifyCollectionChange(change CollectionChange) {
	if !s.beginDispatch() {
		return
	}
	defer s.endDispatch()

	s.subsMu.Lock()
	callbacks := make([]func(CollectionChange), 0, len(s.subs.onChange[change.Collection]))
	for _, fn := range s.subs.onChange[change.Collection] {
		callbacks = append(callbacks, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range callbacks {
		fn(change)
	}
}

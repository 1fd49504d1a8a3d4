// Package expansion holds per-parent bookkeeping for the lazily loaded
// network tree: the children loaded so far, the pagination cursor, and the
// loading/error state of the last fetch.
package expansion

import (
	"errors"
	"sync"

	"github.com/vanderheijden86/refnet/pkg/fetcher"
	"github.com/vanderheijden86/refnet/pkg/model"
)

// ErrAlreadyLoading is returned by BeginLoad while a fetch for the same
// parent is in flight.
var ErrAlreadyLoading = errors.New("already loading")

// Entry is the state of one expanded parent.
//
// Invariants: len(Children) == Offset, Exhausted and HasMore are never
// both true, and a child id appears at most once.
type Entry struct {
	Children  []model.TreeNode
	Offset    int
	HasMore   bool
	Exhausted bool
	Loading   bool
	Err       *fetcher.LoadError

	// Generation increments on every BeginLoad. A fetch result carries the
	// generation it was started under so stale results can be told apart.
	Generation uint64
}

func (e *Entry) clone() Entry {
	out := *e
	out.Children = append([]model.TreeNode(nil), e.Children...)
	return out
}

// Store maps parent ids to their entries. It is safe for concurrent use:
// fetch commands complete on their own goroutines.
type Store struct {
	mu      sync.RWMutex
	entries map[int64]*Entry
	gen     uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[int64]*Entry)}
}

// Get returns a copy of the entry for id.
func (s *Store) Get(id int64) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// IsExpanded reports whether id has an entry, even one with no children.
func (s *Store) IsExpanded(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Collapse removes the entry for id. Children are discarded; expanding
// again starts from offset 0.
func (s *Store) Collapse(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// BeginLoad marks id as loading and returns the generation of the new
// fetch. An unexpanded id gets an empty placeholder entry.
func (s *Store) BeginLoad(id int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = &Entry{}
		s.entries[id] = e
	}
	if e.Loading {
		return 0, ErrAlreadyLoading
	}
	s.gen++
	e.Loading = true
	e.Generation = s.gen
	return e.Generation, nil
}

// CommitPage applies a fetched page to id. With appendPage false the entry
// is replaced by the page; with appendPage true the page's children are
// appended, skipping ids already present.
func (s *Store) CommitPage(id int64, page fetcher.Page, appendPage bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || !appendPage {
		gen := uint64(0)
		if ok {
			gen = e.Generation
		}
		e = &Entry{Generation: gen}
		s.entries[id] = e
	}

	seen := make(map[int64]bool, len(e.Children)+len(page.Children))
	for _, c := range e.Children {
		seen[c.ID] = true
	}
	for _, c := range page.Children {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		e.Children = append(e.Children, c)
	}

	e.Offset = len(e.Children)
	e.HasMore = page.HasMore
	e.Exhausted = !page.HasMore
	e.Err = nil
	e.Loading = false
}

// FailLoad records a failed fetch for id. Children, offset and pagination
// flags are left untouched so the load can be retried at the same offset.
func (s *Store) FailLoad(id int64, err *fetcher.LoadError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.Loading = false
	e.Err = err
}

// Reset drops every entry. Used when navigating to another root.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[int64]*Entry)
}

// Len returns the number of expanded parents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

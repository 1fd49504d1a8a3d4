// Package materializer drives expand, collapse and load-more over the
// expansion store, gated by the viewer's depth policy.
//
// Network work is split in three steps so the UI loop never blocks:
// ToggleExpand/LoadMore decide synchronously and return a Request, Run
// performs the fetch (on a bubbletea command goroutine), and Apply folds
// the Result back into the store on the UI loop.
package materializer

import (
	"context"
	"errors"
	"sync"

	"github.com/vanderheijden86/refnet/pkg/debug"
	"github.com/vanderheijden86/refnet/pkg/expansion"
	"github.com/vanderheijden86/refnet/pkg/fetcher"
	"github.com/vanderheijden86/refnet/pkg/model"
	"github.com/vanderheijden86/refnet/pkg/policy"
)

// DefaultPageSize is the number of children requested per page below the
// root.
const DefaultPageSize = 50

// ErrNotExpandable is returned by the blocking helpers when the policy or
// the node's state rules out the requested load.
var ErrNotExpandable = errors.New("node cannot be expanded")

// ChildFetcher is the SubtreePage fetcher contract.
type ChildFetcher interface {
	FetchChildren(ctx context.Context, parentID int64, offset, limit int) (fetcher.Page, error)
}

// NodeState is the derived per-node state.
type NodeState int

const (
	Collapsed NodeState = iota
	Loading
	LoadedPartial
	LoadedExhausted
	Errored
)

func (s NodeState) String() string {
	switch s {
	case Loading:
		return "loading"
	case LoadedPartial:
		return "partial"
	case LoadedExhausted:
		return "exhausted"
	case Errored:
		return "errored"
	default:
		return "collapsed"
	}
}

// Request describes one pending page fetch.
type Request struct {
	ParentID   int64
	Offset     int
	Limit      int
	Append     bool
	Generation uint64
}

// Result is the outcome of running a Request.
type Result struct {
	Request
	Page fetcher.Page
	Err  error
}

// Row is the read-only projection of a visible node.
type Row struct {
	ID             int64
	DisplayName    string
	Email          string
	CreatedAt      string
	AuthLevel      int
	HasDescendants bool
	CanExpand      bool
	IsExpanded     bool
	Volume         *float64
}

// Trailer is the per-parent state behind the trailing load-more,
// exhausted or error affordance.
type Trailer struct {
	Children  []Row
	HasMore   bool
	Loading   bool
	Exhausted bool
	Err       *fetcher.LoadError
}

// Materializer owns the expansion store for one viewed tree.
type Materializer struct {
	mu       sync.RWMutex
	fetch    ChildFetcher
	store    *expansion.Store
	policy   policy.Policy
	root     model.TreeRoot
	nodes    map[int64]model.TreeNode
	pageSize int

	// rootCursor is the raw collaborator offset below the root, which can
	// run ahead of the child count when responses mix in deeper records.
	rootCursor int
	rootTotal  int
}

// New returns a materializer using f for child pages.
func New(f ChildFetcher, pageSize int) *Materializer {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Materializer{
		fetch:    f,
		store:    expansion.NewStore(),
		nodes:    make(map[int64]model.TreeNode),
		pageSize: pageSize,
	}
}

// Seed replaces the whole tree with root and its first page of children.
func (m *Materializer) Seed(root model.TreeRoot, first fetcher.Page) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.Reset()
	m.nodes = make(map[int64]model.TreeNode)
	m.root = root
	m.policy = policy.For(root.Viewer)
	m.rootCursor = 0
	m.rootTotal = 0

	m.commitLocked(root.ID, first, false)
}

// Root returns the metadata of the viewed tree.
func (m *Materializer) Root() model.TreeRoot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

// Policy returns the depth policy in effect.
func (m *Materializer) Policy() policy.Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy
}

// PageSize returns the page size used below the root.
func (m *Materializer) PageSize() int {
	return m.pageSize
}

// RootTotal is the best known number of direct children of the root. It
// never drops below the number already loaded.
func (m *Materializer) RootTotal() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rootTotal
}

// Node returns a materialized node by id.
func (m *Materializer) Node(id int64) (model.TreeNode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

// CanExpand reports whether the "view further" affordance applies to id.
func (m *Materializer) CanExpand(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return ok && m.policy.CanExpand(n)
}

// IsExpanded reports whether id has an expansion entry.
func (m *Materializer) IsExpanded(id int64) bool {
	return m.store.IsExpanded(id)
}

// State derives the node state from its entry.
func (m *Materializer) State(id int64) NodeState {
	e, ok := m.store.Get(id)
	switch {
	case !ok:
		return Collapsed
	case e.Loading:
		return Loading
	case e.Err != nil:
		return Errored
	case e.Exhausted:
		return LoadedExhausted
	default:
		return LoadedPartial
	}
}

// ToggleExpand collapses an expanded node or starts the first page load of
// a collapsed one. It returns nil when no fetch is needed: collapse, policy
// refusal, or a load already in flight, which leaves the node untouched. A
// node whose first load failed is retried rather than collapsed; one whose
// load-more failed collapses like any expanded node.
func (m *Materializer) ToggleExpand(id int64) *Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == m.root.ID {
		return nil
	}
	if e, ok := m.store.Get(id); ok {
		if e.Loading {
			return nil
		}
		if e.Err != nil && len(e.Children) == 0 {
			return m.beginLocked(id, 0, true)
		}
		m.collapseLocked(id)
		return nil
	}

	n, ok := m.nodes[id]
	if !ok || !m.policy.CanExpand(n) {
		debug.Log("toggle %d refused by policy (level=%d)", id, n.AuthLevel)
		return nil
	}
	return m.beginLocked(id, 0, false)
}

// Collapse removes id and every expansion below it. Always allowed.
func (m *Materializer) Collapse(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == m.root.ID {
		return
	}
	m.collapseLocked(id)
}

// LoadMore requests the next page of an expanded, non-exhausted node. It
// also serves as the retry after a failed load, at the same offset.
func (m *Materializer) LoadMore(id int64) *Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.store.Get(id)
	if !ok || e.Loading || e.Exhausted {
		return nil
	}
	if id == m.root.ID {
		return m.beginLocked(id, m.rootCursor, true)
	}
	n, ok := m.nodes[id]
	if !ok || !m.policy.CanExpand(n) {
		return nil
	}
	return m.beginLocked(id, e.Offset, true)
}

// Retry re-attempts the failed load of id.
func (m *Materializer) Retry(id int64) *Request {
	e, ok := m.store.Get(id)
	if !ok || e.Err == nil {
		return nil
	}
	return m.LoadMore(id)
}

func (m *Materializer) beginLocked(id int64, offset int, appendPage bool) *Request {
	gen, err := m.store.BeginLoad(id)
	if err != nil {
		debug.Log("load of %d ignored: %v", id, err)
		return nil
	}
	return &Request{
		ParentID:   id,
		Offset:     offset,
		Limit:      m.pageSize,
		Append:     appendPage,
		Generation: gen,
	}
}

// Run performs the fetch for req. It is the only blocking step.
func (m *Materializer) Run(ctx context.Context, req Request) Result {
	page, err := m.fetch.FetchChildren(ctx, req.ParentID, req.Offset, req.Limit)
	return Result{Request: req, Page: page, Err: err}
}

// Apply folds res into the store. Results for a parent that was collapsed
// while the fetch was in flight, or re-expanded since, are discarded; the
// return value reports whether res was applied.
func (m *Materializer) Apply(res Result) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.store.Get(res.ParentID)
	if !ok || e.Generation != res.Generation {
		debug.Log("discarding stale result for %d (gen %d)", res.ParentID, res.Generation)
		return false
	}
	if res.Err != nil {
		m.store.FailLoad(res.ParentID, asLoadError(res.Err))
		return true
	}
	m.commitLocked(res.ParentID, res.Page, res.Append)
	return true
}

func (m *Materializer) commitLocked(parentID int64, page fetcher.Page, appendPage bool) {
	level := m.root.Level
	if parentID != m.root.ID {
		level = m.nodes[parentID].AuthLevel
	}
	childLevel := m.policy.ChildAuthLevel(level)

	children := make([]model.TreeNode, len(page.Children))
	for i, c := range page.Children {
		c.AuthLevel = childLevel
		children[i] = c
	}
	page.Children = children

	m.store.CommitPage(parentID, page, appendPage)
	if parentID == m.root.ID {
		if !appendPage {
			m.rootCursor = 0
		}
		m.rootCursor += max(page.RawCount, len(page.Children))
		e, _ := m.store.Get(parentID)
		m.rootTotal = max(page.TotalDirectCount, len(e.Children))
	}
	for _, c := range children {
		if _, exists := m.nodes[c.ID]; !exists {
			m.nodes[c.ID] = c
		}
	}
}

func (m *Materializer) collapseLocked(id int64) {
	e, ok := m.store.Get(id)
	if !ok {
		return
	}
	for _, c := range e.Children {
		m.collapseLocked(c.ID)
		delete(m.nodes, c.ID)
	}
	m.store.Collapse(id)
}

// Expand loads the first page of id and waits for it. An already expanded
// node is left alone.
func (m *Materializer) Expand(ctx context.Context, id int64) error {
	if m.store.IsExpanded(id) {
		return nil
	}
	req := m.ToggleExpand(id)
	if req == nil {
		return ErrNotExpandable
	}
	res := m.Run(ctx, *req)
	m.Apply(res)
	return res.Err
}

// LoadMoreWait fetches the next page of id and waits for it.
func (m *Materializer) LoadMoreWait(ctx context.Context, id int64) error {
	req := m.LoadMore(id)
	if req == nil {
		return ErrNotExpandable
	}
	res := m.Run(ctx, *req)
	m.Apply(res)
	return res.Err
}

// Rows projects the children of parentID. A collapsed parent has none.
func (m *Materializer) Rows(parentID int64) []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.store.Get(parentID)
	if !ok {
		return nil
	}
	return m.projectLocked(e.Children)
}

// Trailer returns the pagination state of parentID.
func (m *Materializer) Trailer(parentID int64) (Trailer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.store.Get(parentID)
	if !ok {
		return Trailer{}, false
	}
	return Trailer{
		Children:  m.projectLocked(e.Children),
		HasMore:   e.HasMore,
		Loading:   e.Loading,
		Exhausted: e.Exhausted,
		Err:       e.Err,
	}, true
}

// Entry exposes the raw store entry for id.
func (m *Materializer) Entry(id int64) (expansion.Entry, bool) {
	return m.store.Get(id)
}

func (m *Materializer) projectLocked(children []model.TreeNode) []Row {
	rows := make([]Row, 0, len(children))
	for _, c := range children {
		rows = append(rows, Row{
			ID:             c.ID,
			DisplayName:    c.Label(),
			Email:          c.Email,
			CreatedAt:      c.CreatedAt,
			AuthLevel:      c.AuthLevel,
			HasDescendants: c.HasDescendants,
			CanExpand:      m.policy.CanExpand(c),
			IsExpanded:     m.store.IsExpanded(c.ID),
			Volume:         c.Volume,
		})
	}
	return rows
}

func asLoadError(err error) *fetcher.LoadError {
	var le *fetcher.LoadError
	if errors.As(err, &le) {
		return le
	}
	return &fetcher.LoadError{Kind: fetcher.KindTransient, Cause: err}
}

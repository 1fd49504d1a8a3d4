// Package testutil provides an in-memory referral network that behaves like
// the remote descendants endpoint. Fixtures are deterministic.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vanderheijden86/refnet/pkg/model"
)

// StatusError is returned for injected HTTP-style failures.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("status %d", e.Code) }

// StatusCode exposes the code the way the HTTP collaborator does.
func (e *StatusError) StatusCode() int { return e.Code }

// Call records one descendants request.
type Call struct {
	ParentID int64
	Limit    int
	Offset   int
}

type user struct {
	rec    model.RawUserRecord
	parent int64
}

// Network is a fake collaborator backed by an in-memory tree.
type Network struct {
	mu sync.Mutex

	Viewer model.ViewerModel

	// Multiplex makes responses carry grandchildren too, in preorder, the
	// way the real endpoint sometimes does. Offsets then index that
	// flattened listing.
	Multiplex bool
	// Cap limits the records per response regardless of the limit asked.
	Cap int
	// OmitHasMore drops the hasMore flag so callers must derive it.
	OmitHasMore bool
	// OmitTotal drops totalDescendants from responses.
	OmitTotal bool
	// RequesterLevel is reported as requesterLevelToDescendant when > 0.
	RequesterLevel int

	users    map[int64]*user
	children map[int64][]int64
	failures map[int64][]error
	gates    map[int64]chan struct{}
	calls    []Call
	claimed  int
	summary  *model.Summary
}

// NewNetwork returns an empty network for the viewer model.
func NewNetwork(viewer model.ViewerModel) *Network {
	return &Network{
		Viewer:   viewer,
		users:    make(map[int64]*user),
		children: make(map[int64][]int64),
		failures: make(map[int64][]error),
		gates:    make(map[int64]chan struct{}),
	}
}

var baseTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// Add inserts user id under parent.
func (n *Network) Add(parent, id int64, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	vol := float64(id) * 10
	n.users[id] = &user{
		parent: parent,
		rec: model.RawUserRecord{
			UserID:    id,
			FullName:  name,
			Email:     fmt.Sprintf("user%d@example.com", id),
			CreatedAt: baseTime.Add(time.Duration(id) * time.Hour).Format(time.RFC3339),
			Volumen:   &vol,
		},
	}
	n.children[parent] = append(n.children[parent], id)
}

// AddRoot registers a root user with no parent.
func (n *Network) AddRoot(id int64, name string) {
	n.Add(0, id, name)
}

// Fan adds count children under parent with ids start, start+1, ...
// It returns the ids added.
func (n *Network) Fan(parent int64, start int64, count int) []int64 {
	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		id := start + int64(i)
		n.Add(parent, id, fmt.Sprintf("User %d", id))
		ids = append(ids, id)
	}
	return ids
}

// Chain adds a single-child chain of length depth below parent, starting
// at id start. It returns the ids from top to bottom.
func (n *Network) Chain(parent int64, start int64, depth int) []int64 {
	ids := make([]int64, 0, depth)
	p := parent
	for i := 0; i < depth; i++ {
		id := start + int64(i)
		n.Add(p, id, fmt.Sprintf("User %d", id))
		ids = append(ids, id)
		p = id
	}
	return ids
}

// SetSummary sets the summary reported with every page.
func (n *Network) SetSummary(s model.Summary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summary = &s
}

// FailNext queues err for the next request on parent.
func (n *Network) FailNext(parent int64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[parent] = append(n.failures[parent], err)
}

// Hold blocks requests for parent until the returned release func runs.
func (n *Network) Hold(parent int64) (release func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan struct{})
	n.gates[parent] = ch
	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.gates, parent)
			n.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns a copy of the recorded descendants requests.
func (n *Network) Calls() []Call {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Call(nil), n.calls...)
}

// CallsFor counts requests issued for parent.
func (n *Network) CallsFor(parent int64) int {
	count := 0
	for _, c := range n.Calls() {
		if c.ParentID == parent {
			count++
		}
	}
	return count
}

// SetClaimed sets the processed claims counter.
func (n *Network) SetClaimed(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.claimed = count
}

func (n *Network) descendantCount(id int64) int {
	total := 0
	for _, c := range n.children[id] {
		total += 1 + n.descendantCount(c)
	}
	return total
}

func (n *Network) record(id int64, level int) model.RawUserRecord {
	u := n.users[id]
	rec := u.rec
	rec.LevelInSubtree = level
	rec.TotalDescendants = n.descendantCount(id)
	if p, ok := n.users[u.parent]; ok {
		name, email := p.rec.FullName, p.rec.Email
		rec.DirectParentFullName = &name
		rec.DirectParentEmail = &email
	}
	return rec
}

// listing returns the records the endpoint pages over for parent.
func (n *Network) listing(parent int64) []model.RawUserRecord {
	var out []model.RawUserRecord
	for _, c := range n.children[parent] {
		out = append(out, n.record(c, 1))
		if n.Multiplex {
			for _, gc := range n.children[c] {
				out = append(out, n.record(gc, 2))
			}
		}
	}
	return out
}

// GetDirectDescendants implements the descendants endpoint.
func (n *Network) GetDirectDescendants(ctx context.Context, parentID int64, maxDepth, limit, offset int) (model.RawPage, error) {
	n.mu.Lock()
	n.calls = append(n.calls, Call{ParentID: parentID, Limit: limit, Offset: offset})
	gate := n.gates[parentID]
	n.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.RawPage{}, ctx.Err()
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if q := n.failures[parentID]; len(q) > 0 {
		err := q[0]
		n.failures[parentID] = q[1:]
		return model.RawPage{}, err
	}

	all := n.listing(parentID)
	size := limit
	if n.Cap > 0 && n.Cap < size {
		size = n.Cap
	}
	start := min(offset, len(all))
	end := min(start+size, len(all))

	page := model.RawPage{Users: append([]model.RawUserRecord(nil), all[start:end]...)}
	if !n.OmitHasMore {
		more := end < len(all)
		page.HasMore = &more
	}
	if !n.OmitTotal {
		total := len(all)
		if !n.Multiplex {
			total = len(n.children[parentID])
		}
		page.TotalDescendants = &total
	}
	if n.RequesterLevel > 0 && len(page.Users) > 0 {
		lvl := n.RequesterLevel
		page.RequesterLevelToDescendant = &lvl
	}
	if n.summary != nil {
		s := *n.summary
		page.Summary = &s
	}
	return page, nil
}

// GetViewerModel implements the viewer model endpoint.
func (n *Network) GetViewerModel(ctx context.Context) (model.ViewerModel, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Viewer, nil
}

// GetUser implements the user lookup endpoint.
func (n *Network) GetUser(ctx context.Context, id int64) (model.RawUserRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.users[id]; !ok {
		return model.RawUserRecord{}, &StatusError{Code: 404}
	}
	return n.record(id, 0), nil
}

// ClaimedCount implements the claims counter endpoint.
func (n *Network) ClaimedCount(ctx context.Context) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.claimed, nil
}

// ClaimAll implements the claim-all endpoint. The counter is not changed;
// tests drive it with SetClaimed.
func (n *Network) ClaimAll(ctx context.Context) error {
	return nil
}

// ChildIDs returns the direct child ids of parent in insertion order.
func (n *Network) ChildIDs(parent int64) []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.children[parent]...)
}

// SortedIDs returns ids sorted ascending; handy for set comparisons.
func SortedIDs(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

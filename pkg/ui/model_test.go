package ui

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/refnet/pkg/claims"
	"github.com/vanderheijden86/refnet/pkg/config"
	"github.com/vanderheijden86/refnet/pkg/materializer"
	"github.com/vanderheijden86/refnet/pkg/model"
	"github.com/vanderheijden86/refnet/pkg/testutil"
)

const testRoot = 1

func newTestNetwork() *testutil.Network {
	net := testutil.NewNetwork(model.ViewerB2C)
	net.AddRoot(testRoot, "Root Person")
	return net
}

func testConfig(pageSize int) config.Config {
	cfg := config.DefaultConfig()
	cfg.Tree.PageSize = pageSize
	return cfg
}

// drain runs cmd and every command it leads to, feeding loader messages
// back through Update. Spinner ticks are dropped so nothing sleeps.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 1000 {
			t.Fatal("commands did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case rootLoadedMsg, nodeLoadedMsg, claimsDoneMsg:
			next, nc := m.Update(msg)
			m = next.(Model)
			queue = append(queue, nc)
		}
	}
	return m
}

// startModel builds a model over net, sizes it and loads the root.
func startModel(t *testing.T, net *testutil.Network, cfg config.Config, opts ...Option) Model {
	t.Helper()
	m := NewModel(net, cfg, testRoot, opts...)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(Model)
	m = drain(t, m, m.Init())
	if !m.Seeded() {
		t.Fatalf("root did not load: %v", m.RootErr())
	}
	return m
}

// sendKey sends a rune key through Update and runs the resulting commands.
func sendKey(t *testing.T, m Model, key string) Model {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return drain(t, next.(Model), cmd)
}

// sendSpecialKey sends a special key (enter, arrows) through Update.
func sendSpecialKey(t *testing.T, m Model, keyType tea.KeyType) Model {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: keyType})
	return drain(t, next.(Model), cmd)
}

func assertVisible(t *testing.T, m Model, want ...int64) {
	t.Helper()
	if got := m.VisibleIDs(); !slices.Equal(got, want) {
		t.Fatalf("visible = %v, want %v", got, want)
	}
}

func TestRootLoadSeedsTree(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 3)

	m := startModel(t, net, testConfig(10))

	assertVisible(t, m, 10, 11, 12)
	if m.SelectedID() != 10 {
		t.Errorf("cursor on %d, want first child", m.SelectedID())
	}
	if cur, total := m.Page(); cur != 1 || total != 1 {
		t.Errorf("page = %d/%d, want 1/1", cur, total)
	}
	view := m.View()
	for _, want := range []string{"Root Person", "User 10", "Page 1/1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestEmptyNetworkShowsEmptyState(t *testing.T) {
	m := startModel(t, newTestNetwork(), testConfig(10))
	assertVisible(t, m)
	if !strings.Contains(m.View(), "No referrals yet") {
		t.Error("empty tree should say so")
	}
	if m.RootErr() != nil {
		t.Errorf("empty tree is not an error: %v", m.RootErr())
	}
}

func TestToggleExpandAndCollapse(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 2)
	net.Fan(10, 100, 3)

	m := startModel(t, net, testConfig(10))
	m = sendSpecialKey(t, m, tea.KeyEnter)

	assertVisible(t, m, 10, 100, 101, 102, 11)
	if m.SelectedID() != 10 {
		t.Errorf("cursor moved to %d after expand", m.SelectedID())
	}
	if !strings.Contains(m.View(), "├── ") {
		t.Error("expanded children should be drawn with branch lines")
	}

	m = sendSpecialKey(t, m, tea.KeyEnter)
	assertVisible(t, m, 10, 11)

	if got := net.CallsFor(10); got != 1 {
		t.Errorf("descendant requests for 10 = %d, want 1", got)
	}
}

func TestDoubleEnterWhileLoadingKeepsExpansion(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 2)
	net.Fan(10, 100, 3)

	m := startModel(t, net, testConfig(10))
	next, first := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	next, second := next.(Model).Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = drain(t, next.(Model), tea.Batch(first, second))

	assertVisible(t, m, 10, 100, 101, 102, 11)
	if got := net.CallsFor(10); got != 1 {
		t.Errorf("descendant requests for 10 = %d, want 1", got)
	}
}

func TestExpandThenEnterAndCollapseToParent(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 1)
	net.Fan(10, 100, 2)

	m := startModel(t, net, testConfig(10))
	m = sendKey(t, m, "l") // expand
	m = sendKey(t, m, "l") // step onto the first child
	if m.SelectedID() != 100 {
		t.Fatalf("selected %d, want 100", m.SelectedID())
	}
	m = sendKey(t, m, "h") // child is collapsed: jump to parent
	if m.SelectedID() != 10 {
		t.Fatalf("selected %d, want parent 10", m.SelectedID())
	}
	m = sendKey(t, m, "h")
	assertVisible(t, m, 10)
}

func TestPolicyRefusalSetsStatus(t *testing.T) {
	net := newTestNetwork()
	net.Chain(testRoot, 10, 3) // 10 (L2) -> 11 (L3) -> 12

	m := startModel(t, net, testConfig(10))
	m = sendSpecialKey(t, m, tea.KeyEnter)
	m = sendKey(t, m, "j")
	if m.SelectedID() != 11 {
		t.Fatalf("selected %d, want 11", m.SelectedID())
	}

	m = sendSpecialKey(t, m, tea.KeyEnter)
	if !strings.Contains(m.Status(), "cannot open") {
		t.Errorf("status = %q, want a policy refusal", m.Status())
	}
	if got := net.CallsFor(11); got != 0 {
		t.Errorf("refused expansion issued %d requests", got)
	}

	m = sendKey(t, m, "v")
	if m.RootID() != testRoot {
		t.Errorf("re-rooted onto a node the policy hides")
	}
	if !strings.Contains(m.Status(), "cannot view") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestLoadMoreViaKeyAndTrailer(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 1)
	net.Fan(10, 100, 5)

	m := startModel(t, net, testConfig(2))
	m = sendSpecialKey(t, m, tea.KeyEnter)
	assertVisible(t, m, 10, 100, 101)
	if !strings.Contains(m.View(), "load more") {
		t.Error("partial list should offer load more")
	}

	m = sendKey(t, m, "m")
	assertVisible(t, m, 10, 100, 101, 102, 103)

	m = sendKey(t, m, "G") // the trailer closes the list
	m = sendSpecialKey(t, m, tea.KeyEnter)
	assertVisible(t, m, 10, 100, 101, 102, 103, 104)

	if st := m.Materializer().State(10); st != materializer.LoadedExhausted {
		t.Errorf("state = %v, want exhausted", st)
	}
	before := net.CallsFor(10)
	m = sendKey(t, m, "m")
	if net.CallsFor(10) != before {
		t.Error("exhausted list issued another request")
	}
}

func TestNextPageFetchesRootChildren(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 12)

	m := startModel(t, net, testConfig(10))
	if cur, total := m.Page(); cur != 1 || total != 2 {
		t.Fatalf("page = %d/%d, want 1/2", cur, total)
	}
	if got := net.CallsFor(testRoot); got != 1 {
		t.Fatalf("root requests after load = %d, want 1", got)
	}

	m = sendKey(t, m, "]")
	assertVisible(t, m, 20, 21)
	if cur, _ := m.Page(); cur != 2 {
		t.Errorf("page = %d, want 2", cur)
	}

	m = sendKey(t, m, "[")
	if len(m.VisibleIDs()) != 10 {
		t.Errorf("first page shows %d children", len(m.VisibleIDs()))
	}
	m = sendKey(t, m, "]")
	if got := net.CallsFor(testRoot); got != 2 {
		t.Errorf("revisiting a loaded page refetched: %d requests", got)
	}

	m = sendKey(t, m, "]")
	if !strings.Contains(m.Status(), "last page") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestRootLevelLoadMoreIsNextPage(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 15)

	m := startModel(t, net, testConfig(10))
	m = sendKey(t, m, "m")
	if cur, _ := m.Page(); cur != 2 {
		t.Errorf("m at root level should turn the page, got page %d", cur)
	}
	assertVisible(t, m, 20, 21, 22, 23, 24)
}

func TestPageSizeChange(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 30)

	m := startModel(t, net, testConfig(10))
	m = sendKey(t, m, "+")
	if m.PageSize() != 25 {
		t.Fatalf("page size = %d, want 25", m.PageSize())
	}
	if got := len(m.VisibleIDs()); got != 25 {
		t.Errorf("visible = %d, want a full page of 25", got)
	}
	if cur, total := m.Page(); cur != 1 || total != 2 {
		t.Errorf("page = %d/%d, want 1/2", cur, total)
	}
	if m.Status() != "25 per page" {
		t.Errorf("status = %q", m.Status())
	}

	m = sendKey(t, m, "-")
	m = sendKey(t, m, "-")
	if m.PageSize() != 10 {
		t.Errorf("page size = %d, want the smallest, 10", m.PageSize())
	}
	if _, total := m.Page(); total != 3 {
		t.Errorf("page count = %d, want 3", total)
	}
}

func TestRootPageRetryAfterFailure(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 12)

	m := startModel(t, net, testConfig(10))
	net.FailNext(testRoot, errors.New("connection reset"))

	m = sendKey(t, m, "]")
	if cur, _ := m.Page(); cur != 1 {
		t.Fatalf("failed fetch should keep page 1, got %d", cur)
	}
	if !strings.Contains(m.View(), "press r to retry") {
		t.Error("footer should offer a retry")
	}

	m = sendKey(t, m, "r")
	assertVisible(t, m, 20, 21)
}

func TestNodeRetryAfterFailure(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 1)
	net.Fan(10, 100, 2)
	net.FailNext(10, errors.New("timeout"))

	m := startModel(t, net, testConfig(10))
	m = sendSpecialKey(t, m, tea.KeyEnter)
	if st := m.Materializer().State(10); st != materializer.Errored {
		t.Fatalf("state = %v, want errored", st)
	}
	assertVisible(t, m, 10)

	m = sendKey(t, m, "r")
	assertVisible(t, m, 10, 100, 101)
}

func TestUnauthorizedBranchDoesNotOfferRetry(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 1)
	net.Fan(10, 100, 2)
	net.FailNext(10, &testutil.StatusError{Code: 403})

	m := startModel(t, net, testConfig(10))
	m = sendSpecialKey(t, m, tea.KeyEnter)
	view := m.View()
	if strings.Contains(view, "press r to retry") {
		t.Error("unauthorized branch should not offer retry")
	}
}

func TestStaleNodeResultIsDiscarded(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 2)
	net.Fan(10, 100, 3)

	m := startModel(t, net, testConfig(10))
	next, pending := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	m = sendKey(t, m, "h") // collapse while the page is in flight
	m = drain(t, m, pending)

	if m.Materializer().IsExpanded(10) {
		t.Error("collapsed node was re-expanded by a late result")
	}
	assertVisible(t, m, 10, 11)
	if m.busy() {
		t.Error("model still busy after every fetch finished")
	}
}

func TestRerootAndBack(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 2)
	net.Fan(10, 100, 3)

	m := startModel(t, net, testConfig(10))
	m = sendKey(t, m, "v")
	if m.RootID() != 10 {
		t.Fatalf("root = %d, want 10", m.RootID())
	}
	assertVisible(t, m, 100, 101, 102)
	if !strings.Contains(m.View(), "User 10") {
		t.Error("header should name the new root")
	}

	m = sendKey(t, m, "u")
	if m.RootID() != testRoot {
		t.Fatalf("root = %d after back, want %d", m.RootID(), testRoot)
	}
	assertVisible(t, m, 10, 11)

	// Nothing left to go back to.
	m = sendKey(t, m, "u")
	if m.RootID() != testRoot {
		t.Errorf("back with empty history moved to %d", m.RootID())
	}
}

func TestFavoritesAndPin(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 2)
	net.Fan(10, 100, 1)

	var saved []config.Config
	saver := func(c config.Config) error {
		saved = append(saved, c)
		return nil
	}
	m := startModel(t, net, testConfig(10), WithConfigSaver(saver))

	m = sendKey(t, m, "1")
	if !strings.Contains(m.Status(), "No favorite on 1") {
		t.Errorf("status = %q", m.Status())
	}

	m = sendKey(t, m, "F")
	if m.Status() != "Pinned to 1" {
		t.Errorf("status = %q", m.Status())
	}
	if len(saved) != 1 {
		t.Fatalf("config saved %d times, want 1", len(saved))
	}
	if id, ok := saved[0].FavoriteRoot(1); !ok || id != testRoot {
		t.Errorf("saved favorite 1 = %d, %v", id, ok)
	}

	m = sendKey(t, m, "F")
	if m.Status() != "Already pinned to 1" {
		t.Errorf("status = %q", m.Status())
	}

	m = sendKey(t, m, "v")
	if m.RootID() != 10 {
		t.Fatalf("root = %d, want 10", m.RootID())
	}
	m = sendKey(t, m, "1")
	if m.RootID() != testRoot {
		t.Errorf("favorite jumped to %d, want %d", m.RootID(), testRoot)
	}
}

func TestPinReportsSaveError(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 1)
	m := startModel(t, net, testConfig(10),
		WithConfigSaver(func(config.Config) error { return errors.New("read-only") }))

	m = sendKey(t, m, "F")
	if !strings.Contains(m.Status(), "read-only") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestCopyEmail(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 2)

	var copied string
	m := startModel(t, net, testConfig(10), WithClipboard(func(s string) error {
		copied = s
		return nil
	}))
	m = sendKey(t, m, "j")
	m = sendKey(t, m, "y")

	if copied != "user11@example.com" {
		t.Errorf("copied %q", copied)
	}
	if !strings.Contains(m.Status(), "Copied user11@example.com") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestClaimCommissions(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 1)
	net.SetClaimed(3)

	poller := claims.New(net, claims.WithClock(time.Now, func(ctx context.Context, d time.Duration) error {
		net.SetClaimed(5)
		return nil
	}))
	m := startModel(t, net, testConfig(10), WithClaimsPoller(poller))

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	m = next.(Model)
	if !strings.Contains(m.View(), "claiming") {
		t.Error("footer should show the claim in progress")
	}
	m = drain(t, m, cmd)

	if m.Status() != "Commissions claimed (3 → 5)" {
		t.Errorf("status = %q", m.Status())
	}
	if m.busy() {
		t.Error("claim still marked in progress")
	}
}

func TestClaimTimeout(t *testing.T) {
	net := newTestNetwork()
	net.SetClaimed(3)

	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	poller := claims.New(net,
		claims.WithTimeout(10*time.Second),
		claims.WithClock(
			func() time.Time { return clock },
			func(ctx context.Context, d time.Duration) error {
				clock = clock.Add(d)
				return nil
			}))
	m := startModel(t, net, testConfig(10), WithClaimsPoller(poller))
	m = sendKey(t, m, "c")

	if m.Status() != "Claim submitted, still processing" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestRootLoadFailureAndRetry(t *testing.T) {
	net := testutil.NewNetwork(model.ViewerB2C) // root user missing: lookup fails

	m := NewModel(net, testConfig(10), testRoot)
	m = drain(t, m, m.Init())

	if m.Seeded() || m.RootErr() == nil {
		t.Fatal("missing root should fail to load")
	}
	view := m.View()
	if !strings.Contains(view, "tree failed to load") {
		t.Errorf("view should report the failed load:\n%s", view)
	}

	// Tree keys do nothing on the error screen.
	m = sendKey(t, m, "j")

	net.AddRoot(testRoot, "Root Person")
	net.Fan(testRoot, 10, 2)
	m = sendKey(t, m, "r")
	if !m.Seeded() || m.RootErr() != nil {
		t.Fatalf("retry did not load the root: %v", m.RootErr())
	}
	assertVisible(t, m, 10, 11)
}

func TestStaleRootLoadIgnored(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 2)
	m := startModel(t, net, testConfig(10))

	next, _ := m.Update(rootLoadedMsg{seq: m.rootSeq - 1, root: model.TreeRoot{ID: 99}})
	m = next.(Model)

	if m.RootID() != testRoot {
		t.Errorf("stale root load replaced the tree with %d", m.RootID())
	}
	assertVisible(t, m, 10, 11)
}

func TestDetailPanelToggle(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 1)

	m := startModel(t, net, testConfig(10))
	m = sendKey(t, m, "d")
	view := m.View()
	for _, want := range []string{"Downline", "Sponsor"} {
		if !strings.Contains(view, want) {
			t.Errorf("detail panel missing %q", want)
		}
	}

	m = sendKey(t, m, "d")
	if strings.Contains(m.View(), "Sponsor") {
		t.Error("detail panel still shown after toggling off")
	}
}

func TestHelpToggle(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 1)

	m := startModel(t, net, testConfig(10))
	m = sendKey(t, m, "?")
	if !strings.Contains(m.View(), "collapse or parent") {
		t.Error("full help should list every binding")
	}
}

func TestQuitReturnsQuitCmd(t *testing.T) {
	m := NewModel(newTestNetwork(), testConfig(10), testRoot)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

// reopenableNetwork counts Reopen calls like a fixture-backed source.
type reopenableNetwork struct {
	*testutil.Network
	reopened int
	err      error
}

func (r *reopenableNetwork) Reopen() error {
	r.reopened++
	return r.err
}

func TestFixtureChangeReloadsRoot(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 2)
	src := &reopenableNetwork{Network: net}

	m := NewModel(src, testConfig(10), testRoot)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = drain(t, next.(Model), next.(Model).Init())
	assertVisible(t, m, 10, 11)

	net.Add(testRoot, 12, "New Recruit")
	next, cmd := m.Update(FixtureChangedMsg{})
	m = drain(t, next.(Model), cmd)

	if src.reopened != 1 {
		t.Errorf("reopened %d times, want 1", src.reopened)
	}
	assertVisible(t, m, 10, 11, 12)
	if !strings.Contains(m.Status(), "reloaded") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestFixtureReopenFailureKeepsTree(t *testing.T) {
	net := newTestNetwork()
	net.Fan(testRoot, 10, 2)
	src := &reopenableNetwork{Network: net, err: errors.New("database is locked")}

	m := NewModel(src, testConfig(10), testRoot)
	m = drain(t, m, m.Init())

	next, cmd := m.Update(FixtureChangedMsg{})
	m = drain(t, next.(Model), cmd)

	assertVisible(t, m, 10, 11)
	if !strings.Contains(m.Status(), "database is locked") {
		t.Errorf("status = %q", m.Status())
	}
}

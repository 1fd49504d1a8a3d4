// Package ui is the bubbletea front end: a lazily loaded referral tree
// with per-node expansion, load-more trailers and root-level pages.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/refnet/pkg/claims"
	"github.com/vanderheijden86/refnet/pkg/config"
	"github.com/vanderheijden86/refnet/pkg/debug"
	"github.com/vanderheijden86/refnet/pkg/fetcher"
	"github.com/vanderheijden86/refnet/pkg/materializer"
	"github.com/vanderheijden86/refnet/pkg/metrics"
	"github.com/vanderheijden86/refnet/pkg/model"
	"github.com/vanderheijden86/refnet/pkg/rootloader"
	"github.com/vanderheijden86/refnet/pkg/watcher"
)

// Source is everything the UI asks of the platform.
type Source interface {
	rootloader.Source
	claims.Source
}

// rootLoadedMsg carries the outcome of a root load.
type rootLoadedMsg struct {
	seq  int
	root model.TreeRoot
	page fetcher.Page
	err  error
}

// nodeLoadedMsg carries one finished child page fetch.
type nodeLoadedMsg struct {
	res materializer.Result
}

// claimsDoneMsg reports the end of a claim-all poll.
type claimsDoneMsg struct {
	res claims.Result
	err error
}

// FixtureChangedMsg is sent when the fixture database changes on disk.
type FixtureChangedMsg struct{}

// WatchFixtureCmd waits for the next fixture change.
func WatchFixtureCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FixtureChangedMsg{}
	}
}

// reopener is implemented by sources that cache a handle to a file that
// may be replaced.
type reopener interface {
	Reopen() error
}

// Option configures a Model.
type Option func(*Model)

// WithContext sets the context fetch commands run under.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// WithClaimsPoller replaces the default claim poller.
func WithClaimsPoller(p *claims.Poller) Option {
	return func(m *Model) { m.poller = p }
}

// WithConfigSaver replaces config.Save for pinned favorites.
func WithConfigSaver(save func(config.Config) error) Option {
	return func(m *Model) { m.saveConfig = save }
}

// WithFixtureWatcher reloads the current root whenever w reports a change.
func WithFixtureWatcher(w *watcher.Watcher) Option {
	return func(m *Model) { m.watcher = w }
}

// WithClipboard replaces the system clipboard.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) { m.copyText = write }
}

// Model is the main Bubble Tea model for rn.
type Model struct {
	ctx        context.Context
	cfg        config.Config
	saveConfig func(config.Config) error
	copyText   func(string) error

	loader  *rootloader.Loader
	mat     *materializer.Materializer
	poller  *claims.Poller
	watcher *watcher.Watcher // live reload of a fixture, nil for the API
	reopen  func() error

	// UI Components
	tree    TreeView
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	theme   Theme
	detail  *detailRenderer

	// Root navigation
	rootID      int64
	history     []int64
	rootSeq     int
	rootLoading bool
	rootErr     error
	seeded      bool
	pendingPage int // root page waiting for more children, -1 when none
	reloading   bool

	inflight int
	spinning bool
	claiming bool

	showDetail bool

	statusMsg     string
	statusIsError bool

	width  int
	height int
}

// NewModel creates the model for rootID. Nothing is fetched until Init.
func NewModel(src Source, cfg config.Config, rootID int64, opts ...Option) Model {
	pageSize := cfg.Tree.PageSize
	if pageSize < 1 {
		pageSize = config.DefaultPageSize
	}
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	mat := materializer.New(fetcher.New(src), pageSize)

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)),
	)

	m := Model{
		ctx:         context.Background(),
		cfg:         cfg,
		saveConfig:  config.Save,
		copyText:    clipboard.WriteAll,
		loader:      rootloader.New(src),
		mat:         mat,
		poller:      claims.New(src),
		tree:        NewTreeView(mat, theme, pageSize),
		keys:        DefaultKeyMap(),
		help:        help.New(),
		spinner:     sp,
		theme:       theme,
		detail:      &detailRenderer{},
		rootID:      rootID,
		rootSeq:     1,
		rootLoading: true,
		pendingPage: -1,
		spinning:    true, // Init starts the first tick
		showDetail:  cfg.UI.ShowDetail,
		width:       80,
		height:      24,
	}
	if r, ok := src.(reopener); ok {
		m.reopen = r.Reopen
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadRootCmd(m.rootSeq, m.rootID), m.spinner.Tick}
	if m.watcher != nil {
		cmds = append(cmds, WatchFixtureCmd(m.watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) loadRootCmd(seq int, rootID int64) tea.Cmd {
	ctx, loader, pageSize := m.ctx, m.loader, m.tree.PageSize()
	return func() tea.Msg {
		root, page, err := loader.Load(ctx, rootID, pageSize)
		return rootLoadedMsg{seq: seq, root: root, page: page, err: err}
	}
}

func (m Model) fetchCmd(req *materializer.Request) tea.Cmd {
	if req == nil {
		return nil
	}
	ctx, mat := m.ctx, m.mat
	r := *req
	return func() tea.Msg {
		return nodeLoadedMsg{res: mat.Run(ctx, r)}
	}
}

func (m Model) claimCmd() tea.Cmd {
	ctx, p := m.ctx, m.poller
	return func() tea.Msg {
		res, err := p.ClaimAll(ctx)
		return claimsDoneMsg{res: res, err: err}
	}
}

// startFetch issues req and keeps the spinner turning while it runs.
func (m *Model) startFetch(req *materializer.Request) tea.Cmd {
	if req == nil {
		return nil
	}
	m.inflight++
	return tea.Batch(m.fetchCmd(req), m.spin())
}

func (m *Model) spin() tea.Cmd {
	if m.spinning {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m Model) busy() bool {
	return m.rootLoading || m.claiming || m.inflight > 0
}

// navigate starts loading another root. The current tree stays on screen
// until the new one arrives.
func (m *Model) navigate(rootID int64, remember bool) tea.Cmd {
	if remember && m.seeded && rootID != m.rootID {
		m.history = append(m.history, m.rootID)
	}
	m.rootID = rootID
	m.rootSeq++
	m.rootLoading = true
	m.rootErr = nil
	m.pendingPage = -1
	return tea.Batch(m.loadRootCmd(m.rootSeq, rootID), m.spin())
}

func (m *Model) setStatus(msg string, isError bool) {
	m.statusMsg = msg
	m.statusIsError = isError
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.tree.SetSize(m.treeWidth(), m.bodyHeight())
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.tree.SetSpinnerFrame(m.spinner.View())
		return m, cmd

	case rootLoadedMsg:
		return m.handleRootLoaded(msg)

	case nodeLoadedMsg:
		return m.handleNodeLoaded(msg)

	case FixtureChangedMsg:
		return m.handleFixtureChanged()

	case claimsDoneMsg:
		m.claiming = false
		m.handleClaimsDone(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleRootLoaded(msg rootLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.rootSeq {
		debug.Log("ignoring stale root load %d (current %d)", msg.seq, m.rootSeq)
		return m, nil
	}
	m.rootLoading = false
	reloaded := m.reloading
	m.reloading = false
	if msg.err != nil {
		m.rootErr = msg.err
		return m, nil
	}
	m.mat.Seed(msg.root, msg.page)
	m.seeded = true
	m.rootID = msg.root.ID
	m.tree.Reset()
	m.tree.SetSize(m.treeWidth(), m.bodyHeight())
	if reloaded {
		m.setStatus("Fixture changed, tree reloaded", false)
	} else {
		m.setStatus("", false)
	}
	return m, nil
}

// handleFixtureChanged reopens the source and reloads the current root.
// Expanded branches are not restored.
func (m Model) handleFixtureChanged() (tea.Model, tea.Cmd) {
	var rearm tea.Cmd
	if m.watcher != nil {
		rearm = WatchFixtureCmd(m.watcher)
	}
	if m.reopen != nil {
		if err := m.reopen(); err != nil {
			m.setStatus(fmt.Sprintf("Reload failed: %v", err), true)
			return m, rearm
		}
	}
	debug.Log("fixture changed, reloading root %d", m.rootID)
	m.reloading = true
	return m, tea.Batch(m.navigate(m.rootID, false), rearm)
}

func (m Model) handleNodeLoaded(msg nodeLoadedMsg) (tea.Model, tea.Cmd) {
	m.inflight = max(0, m.inflight-1)
	res := msg.res
	if !m.mat.Apply(res) {
		return m, nil
	}
	m.tree.Rebuild()

	if res.ParentID != m.rootID || m.pendingPage < 0 {
		return m, nil
	}
	if res.Err != nil {
		m.pendingPage = -1
		return m, nil
	}
	if m.tree.PageLoaded(m.pendingPage) {
		m.tree.ChangePage(m.pendingPage)
		m.pendingPage = -1
		return m, nil
	}
	// Still short of a full page: keep pulling while the server has more.
	if req := m.mat.LoadMore(m.rootID); req != nil {
		return m, m.startFetch(req)
	}
	m.pendingPage = -1
	return m, nil
}

func (m *Model) handleClaimsDone(msg claimsDoneMsg) {
	if msg.err != nil {
		m.setStatus(fmt.Sprintf("Claim failed: %v", msg.err), true)
		return
	}
	switch msg.res.Outcome {
	case claims.Claimed:
		m.setStatus(fmt.Sprintf("Commissions claimed (%d → %d)", msg.res.Before, msg.res.After), false)
	case claims.TimedOut:
		m.setStatus("Claim submitted, still processing", false)
	default:
		m.setStatus("Claim cancelled", true)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.tree.SetSize(m.treeWidth(), m.bodyHeight())
		return m, nil
	case key.Matches(msg, k.Back):
		if len(m.history) == 0 {
			return m, nil
		}
		prev := m.history[len(m.history)-1]
		m.history = m.history[:len(m.history)-1]
		return m, m.navigate(prev, false)
	case key.Matches(msg, k.Favorite):
		n := int(msg.String()[0] - '0')
		id, ok := m.cfg.FavoriteRoot(n)
		if !ok {
			m.setStatus(fmt.Sprintf("No favorite on %d (press F to pin the current root)", n), true)
			return m, nil
		}
		return m, m.navigate(id, true)
	case key.Matches(msg, k.Claim):
		if m.claiming || m.poller == nil {
			return m, nil
		}
		m.claiming = true
		m.setStatus("Claiming commissions…", false)
		return m, tea.Batch(m.claimCmd(), m.spin())
	case key.Matches(msg, k.Retry) && !m.rootLoading && (!m.seeded || m.rootErr != nil):
		return m, m.navigate(m.rootID, false)
	}

	if !m.seeded || m.rootErr != nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, k.Down):
		m.tree.MoveDown()
	case key.Matches(msg, k.Up):
		m.tree.MoveUp()
	case key.Matches(msg, k.Top):
		m.tree.JumpToTop()
	case key.Matches(msg, k.Bottom):
		m.tree.JumpToBottom()
	case key.Matches(msg, k.HalfDown):
		m.tree.PageDown()
	case key.Matches(msg, k.HalfUp):
		m.tree.PageUp()
	case key.Matches(msg, k.Toggle):
		return m, m.toggleSelected()
	case key.Matches(msg, k.Expand):
		return m, m.expandOrEnter()
	case key.Matches(msg, k.Collapse):
		m.collapseOrParent()
	case key.Matches(msg, k.LoadMore):
		return m, m.loadMoreSelected()
	case key.Matches(msg, k.Retry):
		return m, m.retrySelected()
	case key.Matches(msg, k.NextPage):
		return m, m.changePage(m.tree.Page() + 1)
	case key.Matches(msg, k.PrevPage):
		return m, m.changePage(m.tree.Page() - 1)
	case key.Matches(msg, k.Bigger):
		return m, m.changePageSize(1)
	case key.Matches(msg, k.Smaller):
		return m, m.changePageSize(-1)
	case key.Matches(msg, k.Reroot):
		return m, m.viewSubtree()
	case key.Matches(msg, k.Pin):
		m.pinRoot()
	case key.Matches(msg, k.Copy):
		m.copyEmail()
	case key.Matches(msg, k.Detail):
		m.showDetail = !m.showDetail
		m.tree.SetSize(m.treeWidth(), m.bodyHeight())
	}
	return m, nil
}

// ── Tree actions ──

func (m *Model) toggleSelected() tea.Cmd {
	l, ok := m.tree.Selected()
	if !ok {
		return nil
	}
	if l.kind == lineTrailer {
		return m.loadMoreOrRetry(l.parentID)
	}
	id := l.row.ID
	wasExpanded := m.mat.IsExpanded(id)
	req := m.mat.ToggleExpand(id)
	if req == nil && !wasExpanded && l.row.HasDescendants && !l.row.CanExpand {
		m.setStatus("Your role cannot open this branch any further", true)
	}
	m.tree.Rebuild()
	m.tree.SelectByID(id)
	return m.startFetch(req)
}

func (m *Model) expandOrEnter() tea.Cmd {
	row, ok := m.tree.SelectedRow()
	if !ok {
		return nil
	}
	if !m.mat.IsExpanded(row.ID) {
		return m.toggleSelected()
	}
	// Step onto the first child, or the trailer when there are none yet.
	m.tree.MoveDown()
	return nil
}

func (m *Model) collapseOrParent() {
	l, ok := m.tree.Selected()
	if !ok {
		return
	}
	if l.kind == lineNode && m.mat.IsExpanded(l.row.ID) {
		m.mat.Collapse(l.row.ID)
		m.tree.Rebuild()
		m.tree.SelectByID(l.row.ID)
		return
	}
	m.tree.JumpToParent()
}

// loadMoreSelected pages the parent whose list the cursor is in: the
// selected node when it is expanded, otherwise its parent. Root-level
// "load more" is the next page.
func (m *Model) loadMoreSelected() tea.Cmd {
	l, ok := m.tree.Selected()
	if !ok {
		return nil
	}
	parent := l.parentID
	if l.kind == lineNode && m.mat.IsExpanded(l.row.ID) {
		parent = l.row.ID
	}
	if parent == m.rootID {
		return m.changePage(m.tree.Page() + 1)
	}
	return m.loadMoreOrRetry(parent)
}

func (m *Model) loadMoreOrRetry(parent int64) tea.Cmd {
	if m.mat.State(parent) == materializer.Errored {
		return m.startFetch(m.mat.Retry(parent))
	}
	req := m.mat.LoadMore(parent)
	m.tree.Rebuild()
	return m.startFetch(req)
}

// retrySelected retries the failed load nearest the cursor, falling back
// to a failed root page.
func (m *Model) retrySelected() tea.Cmd {
	if l, ok := m.tree.Selected(); ok {
		target := l.parentID
		if l.kind == lineNode && m.mat.State(l.row.ID) == materializer.Errored {
			target = l.row.ID
		}
		if target != m.rootID {
			if req := m.mat.Retry(target); req != nil {
				m.tree.Rebuild()
				return m.startFetch(req)
			}
		}
	}
	req := m.mat.Retry(m.rootID)
	if req != nil && m.pendingPage < 0 {
		m.pendingPage = m.tree.Page() + 1
	}
	return m.startFetch(req)
}

// changePage moves to root-level page p, fetching more root children
// first when p is not fully loaded yet.
func (m *Model) changePage(p int) tea.Cmd {
	if p < 0 {
		return nil
	}
	_, total := m.tree.PageInfo()
	if p >= total {
		m.setStatus("Already on the last page", false)
		return nil
	}
	if m.tree.PageLoaded(p) {
		m.tree.ChangePage(p)
		return nil
	}
	m.pendingPage = p
	return m.startFetch(m.mat.LoadMore(m.rootID))
}

func (m *Model) changePageSize(delta int) tea.Cmd {
	size := m.cfg.NextPageSize(m.tree.PageSize(), delta)
	if size == m.tree.PageSize() {
		return nil
	}
	m.tree.ChangePageSize(size)
	m.setStatus(fmt.Sprintf("%d per page", size), false)
	if m.tree.PageLoaded(m.tree.Page()) {
		return nil
	}
	m.pendingPage = m.tree.Page()
	return m.startFetch(m.mat.LoadMore(m.rootID))
}

// viewSubtree re-roots the tree on the selected participant. The depth
// policy decides, as it does for expansion.
func (m *Model) viewSubtree() tea.Cmd {
	row, ok := m.tree.SelectedRow()
	if !ok {
		return nil
	}
	if !row.CanExpand {
		m.setStatus("Your role cannot view this branch", true)
		return nil
	}
	return m.navigate(row.ID, true)
}

func (m *Model) pinRoot() {
	slot := 0
	for n := 1; n <= 9; n++ {
		id, ok := m.cfg.FavoriteRoot(n)
		if ok && id == m.rootID {
			m.setStatus(fmt.Sprintf("Already pinned to %d", n), false)
			return
		}
		if !ok && slot == 0 {
			slot = n
		}
	}
	if slot == 0 {
		m.setStatus("All favorite slots are taken", true)
		return
	}
	m.cfg.SetFavorite(slot, m.rootID)
	if err := m.saveConfig(m.cfg); err != nil {
		m.setStatus(fmt.Sprintf("Could not save favorites: %v", err), true)
		return
	}
	m.setStatus(fmt.Sprintf("Pinned to %d", slot), false)
}

func (m *Model) copyEmail() {
	row, ok := m.tree.SelectedRow()
	if !ok || row.Email == "" {
		return
	}
	if err := m.copyText(row.Email); err != nil {
		m.setStatus(fmt.Sprintf("Clipboard error: %v", err), true)
		return
	}
	m.setStatus(fmt.Sprintf("Copied %s to clipboard", row.Email), false)
}

// ── Layout ──

func (m Model) footerHeight() int {
	if m.help.ShowAll {
		return 8
	}
	return 2
}

func (m Model) bodyHeight() int {
	return max(3, m.height-3-m.footerHeight())
}

func (m Model) treeWidth() int {
	if m.showDetail && m.width >= 90 {
		return m.width * 3 / 5
	}
	return m.width
}

func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	var body string
	switch {
	case m.rootErr != nil:
		body = m.renderRootError()
	case !m.seeded:
		body = m.renderLoadingScreen()
	case m.showDetail:
		body = m.renderSplitView()
	default:
		body = m.tree.View()
	}

	out := lipgloss.JoinVertical(lipgloss.Left, m.renderRootHeader(), RenderDivider(m.width), body, m.renderFooter())
	return lipgloss.NewStyle().Width(m.width).MaxHeight(m.height).Render(out)
}

func (m Model) renderLoadingScreen() string {
	lines := []string{
		m.spinner.View(),
		"",
		lipgloss.NewStyle().Foreground(ColorText).Bold(true).Render("Loading network…"),
	}
	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderRootError() string {
	msg := m.rootErr.Error()
	var le *fetcher.LoadError
	if errors.As(m.rootErr, &le) {
		msg = errorCopy(le)
	}
	lines := []string{
		m.theme.ErrorText.Bold(true).Render(rootloader.ErrRootLoad.Error()),
		"",
		m.theme.MutedText.Render(msg),
		"",
		m.theme.MutedText.Render("press r to retry"),
	}
	if len(m.history) > 0 {
		lines = append(lines, m.theme.MutedText.Render("press u to go back"))
	}
	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderRootHeader() string {
	if !m.seeded {
		return m.theme.Header.Render(fmt.Sprintf("refnet · #%d", m.rootID)) + "\n"
	}
	root := m.mat.Root()
	level := fmt.Sprintf("L%d", root.Level)
	if root.LevelIsDefault {
		level += " (default)"
	}
	title := m.theme.Header.Render(fmt.Sprintf("%s · %s · %s", root.Label(), level, root.Viewer))
	if root.Email != "" {
		title += " " + m.theme.MutedText.Render(root.Email)
	}
	s := root.Summary
	summary := m.theme.SecondaryText.Render(fmt.Sprintf(
		"active referrals %d · commissions 30d %s · volume %s",
		s.ActiveReferrals, formatAmount(s.TrailingCommissions), formatAmount(s.TotalVolume)))
	return title + "\n" + summary
}

func (m Model) renderSplitView() string {
	treeWidth := m.treeWidth()
	detailWidth := max(20, m.width-treeWidth-2)

	md := "_Select a participant to see details._"
	if row, ok := m.tree.SelectedRow(); ok {
		if n, ok := m.mat.Node(row.ID); ok {
			md = nodeMarkdown(n, m.mat.Policy())
		}
	}
	detail := PanelStyle.
		Width(detailWidth).
		Height(m.bodyHeight() - 2).
		Render(m.detail.render(md, detailWidth-2))

	if treeWidth == m.width {
		// Too narrow to split: the panel replaces the tree.
		return detail
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.tree.View(), detail)
}

func (m Model) renderFooter() string {
	var parts []string
	if m.seeded && m.rootErr == nil {
		cur, total := m.tree.PageInfo()
		parts = append(parts, fmt.Sprintf("Page %d/%d · %d per page", cur, total, m.tree.PageSize()))
		if tr, ok := m.mat.Trailer(m.rootID); ok {
			switch {
			case tr.Loading:
				parts = append(parts, m.spinner.View()+" loading")
			case tr.Err != nil:
				parts = append(parts, m.theme.ErrorText.Render(errorCopy(tr.Err)))
			}
		}
	}
	if m.claiming {
		parts = append(parts, m.spinner.View()+" claiming")
	}
	if m.statusMsg != "" {
		style := m.theme.InfoText
		if m.statusIsError {
			style = m.theme.ErrorText
		}
		parts = append(parts, style.Render(m.statusMsg))
	}
	line := m.theme.MutedText.Render(strings.Join(parts, "  ·  "))
	return line + "\n" + m.help.View(m.keys)
}

// ── Accessors used by tests and the CLI ──

// RootID returns the root currently shown or being loaded.
func (m Model) RootID() int64 { return m.rootID }

// Seeded reports whether a tree has been loaded.
func (m Model) Seeded() bool { return m.seeded }

// RootErr returns the page-level load error, if any.
func (m Model) RootErr() error { return m.rootErr }

// Status returns the status line text.
func (m Model) Status() string { return m.statusMsg }

// Materializer exposes the tree state.
func (m Model) Materializer() *materializer.Materializer { return m.mat }

// SelectedID returns the id of the selected node, or 0 on a trailer.
func (m Model) SelectedID() int64 {
	row, ok := m.tree.SelectedRow()
	if !ok {
		return 0
	}
	return row.ID
}

// Page returns the 1-based root page and the page count.
func (m Model) Page() (int, int) { return m.tree.PageInfo() }

// PageSize returns the root-level page size.
func (m Model) PageSize() int { return m.tree.PageSize() }

// VisibleIDs lists the node ids on screen in order, trailers excluded.
func (m Model) VisibleIDs() []int64 {
	var out []int64
	for _, l := range m.tree.lines {
		if l.kind == lineNode {
			out = append(out, l.row.ID)
		}
	}
	return out
}

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/refnet/pkg/materializer"
)

type lineKind int

const (
	lineNode    lineKind = iota // a materialized participant
	lineTrailer                 // load more / loading / end / error under an expanded parent
)

// treeLine is one visible line of the flattened tree.
type treeLine struct {
	kind     lineKind
	row      materializer.Row
	trailer  materializer.Trailer
	parentID int64
	depth    int    // 0 = direct child of the root
	prefix   string // branch characters, unstyled
}

// TreeView flattens the materializer into navigable lines. Only the
// root-level list is paginated; expanded subtrees are shown in full with
// their own load-more trailers.
type TreeView struct {
	mat            *materializer.Materializer
	theme          Theme
	lines          []treeLine
	cursor         int
	viewportOffset int
	width          int
	height         int

	page     int // zero-based root-level page
	pageSize int

	spinnerFrame string
}

// NewTreeView creates a tree view over mat.
func NewTreeView(mat *materializer.Materializer, theme Theme, pageSize int) TreeView {
	if pageSize < 1 {
		pageSize = materializer.DefaultPageSize
	}
	return TreeView{mat: mat, theme: theme, pageSize: pageSize, spinnerFrame: "⠋"}
}

// SetSize sets the area available to the tree, header row included.
func (t *TreeView) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.ensureCursorVisible()
}

// SetSpinnerFrame sets the glyph drawn for loading parents.
func (t *TreeView) SetSpinnerFrame(frame string) {
	t.spinnerFrame = frame
}

// Rebuild re-reads the materializer. The cursor stays on the same node
// when it is still visible.
func (t *TreeView) Rebuild() {
	var keepID int64
	var keepTrailer bool
	if l, ok := t.Selected(); ok {
		keepTrailer = l.kind == lineTrailer
		keepID = l.row.ID
		if keepTrailer {
			keepID = l.parentID
		}
	}

	t.lines = t.lines[:0]
	root := t.mat.Root()
	rows := t.mat.Rows(root.ID)
	start, end := t.pageBounds(len(rows))
	for _, r := range rows[start:end] {
		t.appendNode(r, root.ID, 0, "")
	}

	if keepID != 0 {
		t.selectLine(keepID, keepTrailer)
	}
	t.clampCursor()
	t.ensureCursorVisible()
}

func (t *TreeView) appendNode(r materializer.Row, parentID int64, depth int, prefix string) {
	connector := ""
	if depth > 0 {
		connector = "├── "
	}
	t.lines = append(t.lines, treeLine{kind: lineNode, row: r, parentID: parentID, depth: depth, prefix: prefix + connector})
	if !r.IsExpanded {
		return
	}
	tr, ok := t.mat.Trailer(r.ID)
	if !ok {
		return
	}
	childPrefix := prefix
	if depth > 0 {
		// The trailer always closes the sibling list, so the rail continues.
		childPrefix += "│   "
	}
	for _, c := range tr.Children {
		t.appendNode(c, r.ID, depth+1, childPrefix)
	}
	t.lines = append(t.lines, treeLine{kind: lineTrailer, trailer: tr, parentID: r.ID, depth: depth + 1, prefix: childPrefix + "└── "})
}

// ── Root-level pagination ──

func (t *TreeView) pageBounds(loaded int) (start, end int) {
	start = min(t.page*t.pageSize, loaded)
	end = min(start+t.pageSize, loaded)
	return start, end
}

// PageInfo returns the 1-based current page and the page count, derived
// from the best known number of root children.
func (t *TreeView) PageInfo() (current, total int) {
	known := max(t.mat.RootTotal(), len(t.mat.Rows(t.mat.Root().ID)))
	total = max(1, (known+t.pageSize-1)/t.pageSize)
	return min(t.page+1, total), total
}

// Page returns the zero-based root-level page.
func (t *TreeView) Page() int { return t.page }

// PageSize returns the root-level page size.
func (t *TreeView) PageSize() int { return t.pageSize }

// PageLoaded reports whether page p can be shown from the children already
// loaded: it is full, or it is the final partial page.
func (t *TreeView) PageLoaded(p int) bool {
	rootID := t.mat.Root().ID
	loaded := len(t.mat.Rows(rootID))
	if loaded >= (p+1)*t.pageSize {
		return true
	}
	tr, ok := t.mat.Trailer(rootID)
	return ok && !tr.HasMore && (loaded > p*t.pageSize || p == 0)
}

// Reset forgets the previous tree and shows the first page of the
// current one.
func (t *TreeView) Reset() {
	t.lines = t.lines[:0]
	t.page = 0
	t.cursor = 0
	t.viewportOffset = 0
	t.Rebuild()
}

// ChangePage shows root-level page p (zero-based) and moves the cursor to
// its first line.
func (t *TreeView) ChangePage(p int) {
	t.page = max(0, p)
	t.cursor = 0
	t.viewportOffset = 0
	t.Rebuild()
}

// ChangePageSize re-slices the root-level list, keeping the first child of
// the current page visible.
func (t *TreeView) ChangePageSize(size int) {
	if size < 1 || size == t.pageSize {
		return
	}
	first := t.page * t.pageSize
	t.pageSize = size
	t.page = first / size
	t.Rebuild()
}

// ── Selection and movement ──

// Selected returns the line under the cursor.
func (t *TreeView) Selected() (treeLine, bool) {
	if t.cursor >= 0 && t.cursor < len(t.lines) {
		return t.lines[t.cursor], true
	}
	return treeLine{}, false
}

// SelectedRow returns the node under the cursor; trailers have none.
func (t *TreeView) SelectedRow() (materializer.Row, bool) {
	l, ok := t.Selected()
	if !ok || l.kind != lineNode {
		return materializer.Row{}, false
	}
	return l.row, true
}

// SelectByID moves the cursor to the node with the given id.
func (t *TreeView) SelectByID(id int64) bool {
	return t.selectLine(id, false)
}

func (t *TreeView) selectLine(id int64, trailer bool) bool {
	for i, l := range t.lines {
		if trailer && l.kind == lineTrailer && l.parentID == id ||
			!trailer && l.kind == lineNode && l.row.ID == id {
			t.cursor = i
			t.ensureCursorVisible()
			return true
		}
	}
	return false
}

// Cursor returns the index of the selected line.
func (t *TreeView) Cursor() int { return t.cursor }

// LineCount returns the number of visible lines.
func (t *TreeView) LineCount() int { return len(t.lines) }

// MoveDown moves the cursor down one line.
func (t *TreeView) MoveDown() {
	if t.cursor < len(t.lines)-1 {
		t.cursor++
		t.ensureCursorVisible()
	}
}

// MoveUp moves the cursor up one line.
func (t *TreeView) MoveUp() {
	if t.cursor > 0 {
		t.cursor--
		t.ensureCursorVisible()
	}
}

// JumpToTop moves the cursor to the first line.
func (t *TreeView) JumpToTop() {
	t.cursor = 0
	t.ensureCursorVisible()
}

// JumpToBottom moves the cursor to the last line.
func (t *TreeView) JumpToBottom() {
	if len(t.lines) > 0 {
		t.cursor = len(t.lines) - 1
		t.ensureCursorVisible()
	}
}

// JumpToParent moves the cursor to the parent of the selected line. Root
// children have no visible parent.
func (t *TreeView) JumpToParent() bool {
	l, ok := t.Selected()
	if !ok || l.parentID == t.mat.Root().ID {
		return false
	}
	return t.SelectByID(l.parentID)
}

// PageDown moves the cursor down by half a viewport.
func (t *TreeView) PageDown() {
	step := max(1, t.height/2)
	t.cursor = min(t.cursor+step, len(t.lines)-1)
	t.clampCursor()
	t.ensureCursorVisible()
}

// PageUp moves the cursor up by half a viewport.
func (t *TreeView) PageUp() {
	step := max(1, t.height/2)
	t.cursor = max(0, t.cursor-step)
	t.ensureCursorVisible()
}

func (t *TreeView) clampCursor() {
	if t.cursor >= len(t.lines) {
		t.cursor = len(t.lines) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
}

// effectiveVisibleCount is the number of tree lines that fit, accounting
// for the column header and the position indicator.
func (t *TreeView) effectiveVisibleCount() int {
	visible := t.height - 1
	if visible <= 0 {
		visible = 19
	}
	if len(t.lines) > visible {
		visible--
	}
	return max(1, visible)
}

// visibleRange returns the [start, end) window of lines to render.
func (t *TreeView) visibleRange() (start, end int) {
	if len(t.lines) == 0 {
		return 0, 0
	}
	count := t.effectiveVisibleCount()
	start = max(0, t.viewportOffset)
	end = start + count
	if end > len(t.lines) {
		end = len(t.lines)
		start = max(0, end-count)
	}
	return start, end
}

// ensureCursorVisible scrolls just enough to keep the cursor on screen.
func (t *TreeView) ensureCursorVisible() {
	if len(t.lines) == 0 {
		t.viewportOffset = 0
		return
	}
	count := t.effectiveVisibleCount()
	if t.cursor < t.viewportOffset {
		t.viewportOffset = t.cursor
	}
	if t.cursor >= t.viewportOffset+count {
		t.viewportOffset = t.cursor - count + 1
	}
	t.viewportOffset = min(t.viewportOffset, max(0, len(t.lines)-count))
	t.viewportOffset = max(0, t.viewportOffset)
}

// ── Rendering ──

// View renders the column header and the visible window of lines.
func (t *TreeView) View() string {
	if len(t.lines) == 0 {
		return t.renderEmptyState()
	}

	var sb strings.Builder
	sb.WriteString(t.RenderHeader())
	sb.WriteString("\n")

	start, end := t.visibleRange()
	for i := start; i < end; i++ {
		isSelected := i == t.cursor
		line := t.renderLine(t.lines[i], isSelected)
		if isSelected {
			line = t.theme.Selected.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if len(t.lines) > t.effectiveVisibleCount() {
		sb.WriteString(t.theme.MutedText.Render(
			fmt.Sprintf(" %d-%d of %d lines", start+1, end, len(t.lines))))
	}
	return sb.String()
}

func (t *TreeView) renderEmptyState() string {
	r := t.theme.Renderer
	var sb strings.Builder
	sb.WriteString(r.NewStyle().Foreground(t.theme.Primary).Bold(true).Render("No referrals yet"))
	sb.WriteString("\n\n")
	sb.WriteString(t.theme.MutedText.Render("This participant has no one in their network."))
	return sb.String()
}

// RenderHeader returns the styled column header row.
func (t *TreeView) RenderHeader() string {
	width := t.width
	if width <= 0 {
		width = 80
	}
	return t.theme.Renderer.NewStyle().
		Background(t.theme.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Width(width).
		Render("  NAME                                   LVL  DOWNLINE    VOLUME   JOINED")
}

func (t *TreeView) renderLine(l treeLine, isSelected bool) string {
	if l.kind == lineTrailer {
		return t.renderTrailer(l)
	}
	return t.renderNode(l, isSelected)
}

// renderNode lays a row out as
// [prefix][indicator] [name] [email] ... [level] [downline] [volume] [age].
func (t *TreeView) renderNode(l treeLine, isSelected bool) string {
	r := t.theme.Renderer
	row := l.row
	width := t.width
	if width <= 0 {
		width = 80
	}
	// One less than the full width keeps the terminal from wrapping; the
	// selection bar takes two more.
	width--
	if isSelected {
		width -= 2
	}

	var left strings.Builder
	prefix := t.theme.MutedText.Render(l.prefix)
	left.WriteString(prefix)
	left.WriteString(r.NewStyle().Foreground(t.theme.Secondary).Render(t.indicator(row)))
	left.WriteString(" ")
	fixed := lipgloss.Width(prefix) + 2

	// ── Right side: level, downline, volume, age ──
	var right []string
	right = append(right, RenderLevelBadge(row.AuthLevel, t.theme))
	if node, ok := t.mat.Node(row.ID); ok {
		right = append(right, t.theme.SecondaryText.Render(fmt.Sprintf("%8s", downline(node.TotalDescendants))))
		if width > 60 {
			vol := "-"
			if row.Volume != nil {
				vol = formatAmount(*row.Volume)
			}
			right = append(right, t.theme.SuccessText.Render(fmt.Sprintf("%9s", vol)))
		}
		if width > 72 {
			right = append(right, t.theme.MutedText.Render(fmt.Sprintf("%8s", FormatTimeRel(node.CreatedTime()))))
		}
	}
	rightSide := strings.Join(right, " ")
	rightWidth := lipgloss.Width(rightSide)

	// ── Name and email fill the remaining space ──
	avail := max(5, width-fixed-rightWidth-2)
	nameStyle := r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#E8E8E8"})
	if isSelected {
		nameStyle = nameStyle.Foreground(t.theme.Primary).Bold(true)
	}
	name := truncate(row.DisplayName, avail)
	left.WriteString(nameStyle.Render(name))
	if rest := avail - lipgloss.Width(name) - 1; rest > 6 && row.Email != "" && row.Email != row.DisplayName {
		left.WriteString(" ")
		left.WriteString(t.theme.MutedText.Render(truncate(row.Email, rest)))
	}

	padding := max(0, width-lipgloss.Width(left.String())-rightWidth)
	line := left.String() + strings.Repeat(" ", padding) + rightSide
	return r.NewStyle().Width(width).MaxWidth(width).Render(line)
}

func (t *TreeView) indicator(row materializer.Row) string {
	switch {
	case row.IsExpanded && t.mat.State(row.ID) == materializer.Loading:
		return t.spinnerFrame
	case row.IsExpanded:
		return "▾"
	case row.CanExpand:
		return "▸"
	default:
		return "•"
	}
}

func (t *TreeView) renderTrailer(l treeLine) string {
	prefix := t.theme.MutedText.Render(l.prefix)
	tr := l.trailer
	n := len(tr.Children)
	switch {
	case tr.Loading:
		return prefix + t.theme.InfoText.Render(t.spinnerFrame+" loading…")
	case tr.Err != nil:
		return prefix + t.theme.ErrorText.Render(errorCopy(tr.Err))
	case tr.HasMore:
		return prefix + t.theme.InfoText.Render(fmt.Sprintf("load more (%d loaded)", n))
	case n == 0:
		return prefix + t.theme.MutedText.Render("no referrals")
	default:
		return prefix + t.theme.MutedText.Render("— end —")
	}
}

func downline(n int) string {
	if n <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}

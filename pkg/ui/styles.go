package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLOR PALETTE - Adaptive colors for light and dark terminals
// ══════════════════════════════════════════════════════════════════════════════

var (
	ColorBgHighlight = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#44475A"}
	ColorText        = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorMuted       = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}

	ColorPrimary = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}

	// Level badge text
	ColorLevelBadgeText = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}
)

// ══════════════════════════════════════════════════════════════════════════════
// PANEL STYLES - For the detail split
// ══════════════════════════════════════════════════════════════════════════════

var (
	// PanelStyle frames the detail panel
	PanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary)
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGES
// ══════════════════════════════════════════════════════════════════════════════

// RenderLevelBadge renders "L2"-style badges. Levels at the viewer's depth
// limit get the warning color so the end of the visible tree stands out.
func RenderLevelBadge(level int, t Theme) string {
	label := fmt.Sprintf("L%d", level)
	if level < 1 {
		label = "L?"
	}
	return t.Renderer.NewStyle().
		Foreground(ColorLevelBadgeText).
		Background(t.LevelColor(level)).
		Bold(true).
		Render(label)
}

// ══════════════════════════════════════════════════════════════════════════════
// DIVIDERS AND SEPARATORS
// ══════════════════════════════════════════════════════════════════════════════

// RenderDivider renders a horizontal divider line
func RenderDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(ColorBgHighlight).
		Render(strings.Repeat("─", width))
}

package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Levels
	Level1 lipgloss.AdaptiveColor
	Level2 lipgloss.AdaptiveColor
	Level3 lipgloss.AdaptiveColor
	Deep   lipgloss.AdaptiveColor

	// Feedback
	Success lipgloss.AdaptiveColor
	Warning lipgloss.AdaptiveColor
	Danger  lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base     lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style

	// Pre-computed row styles, created once instead of per frame
	MutedText     lipgloss.Style // Age, email
	SecondaryText lipgloss.Style // Counts
	PrimaryBold   lipgloss.Style // Root name
	InfoText      lipgloss.Style // Load more
	ErrorText     lipgloss.Style // Node-scoped errors
	SuccessText   lipgloss.Style // Volume
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}, // Gray
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"}, // Dim

		Level1: lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}, // Green
		Level2: lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}, // Cyan
		Level3: lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}, // Orange, last visible level for limited viewers
		Deep:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple

		Success: lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
		Warning: lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		Danger:  lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Reverse(TermProfile < colorprofile.ANSI256).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		PaddingLeft(1).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.MutedText = r.NewStyle().Foreground(ColorMuted)
	t.SecondaryText = r.NewStyle().Foreground(t.Secondary)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.InfoText = r.NewStyle().Foreground(ColorInfo)
	t.ErrorText = r.NewStyle().Foreground(t.Danger)
	t.SuccessText = r.NewStyle().Foreground(t.Success)

	return t
}

// LevelColor returns the color for an auth level badge.
func (t Theme) LevelColor(level int) lipgloss.AdaptiveColor {
	switch level {
	case 1:
		return t.Level1
	case 2:
		return t.Level2
	case 3:
		return t.Level3
	default:
		return t.Deep
	}
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/vanderheijden86/refnet/pkg/model"
	"github.com/vanderheijden86/refnet/pkg/policy"
)

// nodeMarkdown describes a participant for the detail panel.
func nodeMarkdown(n model.TreeNode, pol policy.Policy) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", n.Label())
	fmt.Fprintf(&sb, "- **ID:** %d\n", n.ID)
	if n.Email != "" {
		fmt.Fprintf(&sb, "- **Email:** %s\n", n.Email)
	}
	fmt.Fprintf(&sb, "- **Level:** L%d\n", n.AuthLevel)
	if joined := n.CreatedTime(); !joined.IsZero() {
		fmt.Fprintf(&sb, "- **Joined:** %s (%s)\n", joined.Format("2006-01-02"), FormatTimeRel(joined))
	}
	fmt.Fprintf(&sb, "- **Downline:** %d\n", n.TotalDescendants)
	if n.Volume != nil {
		fmt.Fprintf(&sb, "- **Volume:** %s\n", formatAmount(*n.Volume))
	}
	if n.CommissionsGenerated != nil {
		fmt.Fprintf(&sb, "- **Commissions generated:** %s\n", formatAmount(*n.CommissionsGenerated))
	}
	if n.ParentName != "" || n.ParentEmail != "" {
		sponsor := n.ParentName
		if n.ParentEmail != "" {
			sponsor = strings.TrimSpace(sponsor + " <" + n.ParentEmail + ">")
		}
		fmt.Fprintf(&sb, "- **Sponsor:** %s\n", sponsor)
	}
	if n.HasDescendants && !pol.CanExpand(n) {
		sb.WriteString("\n> Your role cannot open this branch any further.\n")
	}
	return sb.String()
}

// detailRenderer caches a glamour renderer per wrap width.
type detailRenderer struct {
	width int
	r     *glamour.TermRenderer
}

func (d *detailRenderer) render(md string, width int) string {
	if d.r == nil || d.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		d.r, d.width = r, width
	}
	out, err := d.r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n ")
}

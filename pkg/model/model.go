// Package model holds the referral network types shared by the fetcher,
// the expansion store, the materializer and the UI.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ViewerModel is the MLM model of the signed-in viewer. It selects the
// depth policy in effect.
type ViewerModel string

const (
	ViewerB2C ViewerModel = "b2c"
	ViewerB2B ViewerModel = "b2b" // unrestricted: own same-type network
	ViewerB2T ViewerModel = "b2t"
)

// ParseViewerModel normalizes a server-reported model string. Unknown
// values fall back to the depth-limited b2c model.
func ParseViewerModel(s string) ViewerModel {
	switch ViewerModel(strings.ToLower(strings.TrimSpace(s))) {
	case ViewerB2B:
		return ViewerB2B
	case ViewerB2T:
		return ViewerB2T
	default:
		return ViewerB2C
	}
}

// IsValid reports whether m is one of the known models.
func (m ViewerModel) IsValid() bool {
	switch m {
	case ViewerB2C, ViewerB2B, ViewerB2T:
		return true
	}
	return false
}

// TreeNode is one participant of the referral graph as materialized on the
// client. Nodes are immutable once committed to the expansion store.
type TreeNode struct {
	ID          int64
	DisplayName string
	Email       string
	CreatedAt   string

	// LevelInSubtree is the distance from the node the fetch was issued
	// for; always 1 for a committed child.
	LevelInSubtree int
	// AuthLevel is the level relative to the root of the viewed tree,
	// computed once at commit time.
	AuthLevel int

	TotalDescendants int
	HasDescendants   bool

	Volume               *float64
	CommissionsGenerated *float64

	ParentName  string
	ParentEmail string
}

// CreatedTime parses CreatedAt. Returns the zero time when the server
// sent something unparseable.
func (n TreeNode) CreatedTime() time.Time {
	if n.CreatedAt == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, n.CreatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Label is the best human label for the node.
func (n TreeNode) Label() string {
	if n.DisplayName != "" {
		return n.DisplayName
	}
	if n.Email != "" {
		return n.Email
	}
	return fmt.Sprintf("#%d", n.ID)
}

// Summary is the aggregate shown above the tree.
type Summary struct {
	ActiveReferrals     int     `json:"activeReferrals"`
	TrailingCommissions float64 `json:"commissionsLast30Days"`
	TotalVolume         float64 `json:"totalVolume"`
}

// TreeRoot is the metadata of the tree currently being viewed. It is
// replaced wholesale when the viewer navigates to another root.
type TreeRoot struct {
	ID          int64
	DisplayName string
	Email       string
	Viewer      ViewerModel

	// Level is the root's own level, clamped by the depth policy.
	Level int
	// LevelIsDefault is set when Level could not be derived because the
	// root has no children; Level is then 1.
	LevelIsDefault bool

	Summary Summary
}

// Label mirrors TreeNode.Label for the root header.
func (r TreeRoot) Label() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if r.Email != "" {
		return r.Email
	}
	return fmt.Sprintf("#%d", r.ID)
}

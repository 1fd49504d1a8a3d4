package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/refnet/pkg/fetcher"
	"github.com/vanderheijden86/refnet/pkg/materializer"
	"github.com/vanderheijden86/refnet/pkg/model"
	"github.com/vanderheijden86/refnet/pkg/rootloader"
)

type printOptions struct {
	PageSize int
	Depth    int // levels below the root to show, at least 1
	JSON     bool
}

// printedNode is the JSON shape of one participant in --print --json.
type printedNode struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email,omitempty"`
	Level       int           `json:"level"`
	Descendants int           `json:"descendants"`
	CanExpand   bool          `json:"can_expand"`
	Children    []printedNode `json:"children,omitempty"`
	More        bool          `json:"more,omitempty"` // more children than were fetched
	Error       string        `json:"error,omitempty"`
}

type printedTree struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Email          string        `json:"email,omitempty"`
	Viewer         string        `json:"viewer"`
	Level          int           `json:"level"`
	LevelIsDefault bool          `json:"level_is_default,omitempty"`
	Summary        model.Summary `json:"summary"`
	Total          int           `json:"total"`
	Children       []printedNode `json:"children"`
	More           bool          `json:"more,omitempty"`
}

// printTree loads rootID and its first page, expands opts.Depth levels as
// far as the depth policy allows, and writes the result to w.
func printTree(ctx context.Context, w io.Writer, src rootloader.Source, rootID int64, opts printOptions) error {
	pageSize := max(1, opts.PageSize)
	root, first, err := rootloader.New(src).Load(ctx, rootID, pageSize)
	if err != nil {
		return err
	}
	mat := materializer.New(fetcher.New(src), pageSize)
	mat.Seed(root, first)

	if err := expandLevels(ctx, mat, root.ID, max(1, opts.Depth)-1); err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(collectTree(mat))
	}
	writeText(w, mat)
	return nil
}

// expandLevels opens every expandable child of parent, levels deep. A
// failed branch is left with its error for the output to show.
func expandLevels(ctx context.Context, mat *materializer.Materializer, parent int64, levels int) error {
	if levels <= 0 {
		return nil
	}
	for _, r := range mat.Rows(parent) {
		if !r.CanExpand {
			continue
		}
		if err := mat.Expand(ctx, r.ID); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if err := expandLevels(ctx, mat, r.ID, levels-1); err != nil {
			return err
		}
	}
	return nil
}

func collectTree(mat *materializer.Materializer) printedTree {
	root := mat.Root()
	children := collectChildren(mat, root.ID)
	return printedTree{
		ID:             root.ID,
		Name:           root.Label(),
		Email:          root.Email,
		Viewer:         string(root.Viewer),
		Level:          root.Level,
		LevelIsDefault: root.LevelIsDefault,
		Summary:        root.Summary,
		Total:          mat.RootTotal(),
		Children:       children,
		More:           mat.RootTotal() > len(children),
	}
}

func collectChildren(mat *materializer.Materializer, parent int64) []printedNode {
	rows := mat.Rows(parent)
	out := make([]printedNode, 0, len(rows))
	for _, r := range rows {
		n := printedNode{
			ID:        r.ID,
			Name:      r.DisplayName,
			Email:     r.Email,
			Level:     r.AuthLevel,
			CanExpand: r.CanExpand,
		}
		if node, ok := mat.Node(r.ID); ok {
			n.Descendants = node.TotalDescendants
		}
		if tr, ok := mat.Trailer(r.ID); ok {
			n.Children = collectChildren(mat, r.ID)
			n.More = tr.HasMore
			if tr.Err != nil {
				n.Error = tr.Err.Error()
			}
		}
		out = append(out, n)
	}
	return out
}

func writeText(w io.Writer, mat *materializer.Materializer) {
	root := mat.Root()
	level := fmt.Sprintf("L%d", root.Level)
	if root.LevelIsDefault {
		level += " (default)"
	}
	fmt.Fprintf(w, "%s (#%d) · %s · %s\n", root.Label(), root.ID, level, root.Viewer)
	s := root.Summary
	fmt.Fprintf(w, "active referrals %d · commissions 30d %.2f · volume %.2f\n",
		s.ActiveReferrals, s.TrailingCommissions, s.TotalVolume)

	rows := mat.Rows(root.ID)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No referrals yet")
		return
	}
	more := mat.RootTotal() - len(rows)
	writeRows(w, mat, rows, "", more, "")
}

// writeRows draws one sibling list. more is the number of siblings not
// fetched, -1 when unknown; errMsg replaces that line when the last page
// failed.
func writeRows(w io.Writer, mat *materializer.Materializer, rows []materializer.Row, prefix string, more int, errMsg string) {
	tail := more != 0 || errMsg != ""
	for i, r := range rows {
		last := i == len(rows)-1 && !tail
		connector, rail := "├── ", "│   "
		if last {
			connector, rail = "└── ", "    "
		}

		var sb strings.Builder
		sb.WriteString(prefix + connector + r.DisplayName)
		if r.Email != "" && r.Email != r.DisplayName {
			sb.WriteString(" <" + r.Email + ">")
		}
		fmt.Fprintf(&sb, " L%d", r.AuthLevel)
		if node, ok := mat.Node(r.ID); ok && node.TotalDescendants > 0 {
			fmt.Fprintf(&sb, " · %d downline", node.TotalDescendants)
		}
		if r.HasDescendants && !r.CanExpand {
			sb.WriteString(" · hidden")
		}
		fmt.Fprintln(w, sb.String())

		tr, ok := mat.Trailer(r.ID)
		if !ok {
			continue
		}
		childMore := 0
		if tr.HasMore {
			childMore = -1
		}
		childErr := ""
		if tr.Err != nil {
			childErr = tr.Err.Kind.Message()
		}
		writeRows(w, mat, tr.Children, prefix+rail, childMore, childErr)
	}

	switch {
	case errMsg != "":
		fmt.Fprintf(w, "%s└── ! %s\n", prefix, errMsg)
	case more > 0:
		fmt.Fprintf(w, "%s└── … %d more\n", prefix, more)
	case more < 0:
		fmt.Fprintf(w, "%s└── … more\n", prefix)
	}
}

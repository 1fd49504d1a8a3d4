// Package fetcher wraps the "list direct children of N" collaborator call
// and normalizes its payload into uniform pages of TreeNodes.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/vanderheijden86/refnet/pkg/debug"
	"github.com/vanderheijden86/refnet/pkg/metrics"
	"github.com/vanderheijden86/refnet/pkg/model"
)

// Source is the collaborator the fetcher reads from.
type Source interface {
	GetDirectDescendants(ctx context.Context, parentID int64, maxDepth, limit, offset int) (model.RawPage, error)
}

// ErrInvalidRange is returned for a negative offset or a limit below 1.
var ErrInvalidRange = errors.New("invalid page range")

// Page is one normalized page of direct children.
type Page struct {
	Children         []model.TreeNode
	HasMore          bool
	TotalDirectCount int

	// RawCount is the number of records the collaborator returned before
	// the depth-1 filter. The root loader advances its cursor by it.
	RawCount int

	// RequesterLevel is the viewer's distance to this subtree, when the
	// collaborator reports it.
	RequesterLevel *int
	Summary        *model.Summary
}

// Fetcher issues SubtreePage requests. It performs no retries.
type Fetcher struct {
	src Source
}

// New returns a Fetcher reading from src.
func New(src Source) *Fetcher {
	return &Fetcher{src: src}
}

// FetchChildren returns the direct children of parentID in the window
// [offset, offset+limit). Records the collaborator reports deeper than one
// level are discarded; deeper levels are requested lazily on expansion.
func (f *Fetcher) FetchChildren(ctx context.Context, parentID int64, offset, limit int) (Page, error) {
	if offset < 0 || limit < 1 {
		return Page{}, fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidRange, offset, limit)
	}
	defer metrics.Timer(metrics.Fetch)()

	raw, err := f.src.GetDirectDescendants(ctx, parentID, 1, limit, offset)
	if err != nil {
		debug.Log("fetch children of %d at %d failed: %v", parentID, offset, err)
		return Page{}, classify(err)
	}

	page := normalize(raw, offset)
	debug.Log("fetched %d/%d children of %d at offset %d (hasMore=%v)",
		len(page.Children), page.RawCount, parentID, offset, page.HasMore)
	return page, nil
}

func normalize(raw model.RawPage, offset int) Page {
	page := Page{
		RawCount:       len(raw.Users),
		RequesterLevel: raw.RequesterLevelToDescendant,
		Summary:        raw.Summary,
	}

	seen := make(map[int64]bool, len(raw.Users))
	for _, rec := range raw.Users {
		if rec.LevelInSubtree != 1 || seen[rec.UserID] {
			continue
		}
		seen[rec.UserID] = true
		page.Children = append(page.Children, rec.Normalize())
	}

	loaded := offset + len(page.Children)
	if raw.TotalDescendants != nil {
		page.TotalDirectCount = *raw.TotalDescendants
	} else {
		page.TotalDirectCount = loaded
	}

	if raw.HasMore != nil {
		page.HasMore = *raw.HasMore
	} else {
		page.HasMore = loaded < page.TotalDirectCount
	}
	return page
}

// classify maps a collaborator error onto a LoadError kind. A 403 means the
// viewer lost visibility of the node; everything else is transient.
func classify(err error) *LoadError {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) && sc.StatusCode() == http.StatusForbidden {
		return &LoadError{Kind: KindUnauthorized, Cause: err}
	}
	return &LoadError{Kind: KindTransient, Cause: err}
}

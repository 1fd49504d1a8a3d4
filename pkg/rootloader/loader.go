// Package rootloader loads the root of a viewed tree: its metadata, the
// viewer's model and the first page of direct children.
package rootloader

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/refnet/pkg/debug"
	"github.com/vanderheijden86/refnet/pkg/fetcher"
	"github.com/vanderheijden86/refnet/pkg/metrics"
	"github.com/vanderheijden86/refnet/pkg/model"
	"github.com/vanderheijden86/refnet/pkg/policy"
)

// ErrRootLoad wraps any failure while loading the root. It is distinct
// from an empty tree, which loads without error.
var ErrRootLoad = errors.New("tree failed to load")

// MaxRounds bounds the number of fetches used to assemble the first page.
const MaxRounds = 20

// Source is the part of the collaborator the loader needs.
type Source interface {
	fetcher.Source
	GetViewerModel(ctx context.Context) (model.ViewerModel, error)
	GetUser(ctx context.Context, id int64) (model.RawUserRecord, error)
}

// Loader loads tree roots.
type Loader struct {
	src   Source
	fetch *fetcher.Fetcher
}

// New returns a Loader over src.
func New(src Source) *Loader {
	return &Loader{src: src, fetch: fetcher.New(src)}
}

// Load fetches the root metadata and viewer model concurrently with the
// first page of children. The page holds at least pageSize children unless
// the collaborator ran out first.
func (l *Loader) Load(ctx context.Context, rootID int64, pageSize int) (model.TreeRoot, fetcher.Page, error) {
	defer metrics.Timer(metrics.RootLoad)()
	if pageSize < 1 {
		return model.TreeRoot{}, fetcher.Page{}, fmt.Errorf("%w: page size %d", ErrRootLoad, pageSize)
	}

	var (
		viewer model.ViewerModel
		user   model.RawUserRecord
		first  fetcher.Page
		level  *int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := l.src.GetViewerModel(gctx)
		if err != nil {
			return fmt.Errorf("viewer model: %w", err)
		}
		viewer = model.ParseViewerModel(string(v))
		return nil
	})
	g.Go(func() error {
		u, err := l.src.GetUser(gctx, rootID)
		if err != nil {
			return fmt.Errorf("root user %d: %w", rootID, err)
		}
		user = u
		return nil
	})
	g.Go(func() error {
		p, lvl, err := l.firstPage(gctx, rootID, pageSize)
		if err != nil {
			return err
		}
		first, level = p, lvl
		return nil
	})
	if err := g.Wait(); err != nil {
		debug.Log("root %d failed to load: %v", rootID, err)
		return model.TreeRoot{}, fetcher.Page{}, fmt.Errorf("%w: %w", ErrRootLoad, err)
	}

	root := model.TreeRoot{
		ID:          rootID,
		DisplayName: user.FullName,
		Email:       user.Email,
		Viewer:      viewer,
	}
	if first.Summary != nil {
		root.Summary = *first.Summary
	}
	pol := policy.For(viewer)
	if level != nil {
		root.Level = pol.ClampLevel(*level)
	} else {
		root.Level = 1
		root.LevelIsDefault = true
	}

	debug.Log("root %d loaded: viewer=%s level=%d children=%d hasMore=%v",
		rootID, viewer, root.Level, len(first.Children), first.HasMore)
	return root, first, nil
}

// firstPage assembles up to pageSize direct children. The collaborator may
// mix deeper records into a response, so the raw cursor advances by the
// records consumed rather than the children kept. Later rounds ask only for
// the shortfall: every raw record yields at most one child, so the page
// never overshoots and the cursor stays on the first unread record.
func (l *Loader) firstPage(ctx context.Context, rootID int64, pageSize int) (fetcher.Page, *int, error) {
	var (
		out    fetcher.Page
		level  *int
		offset int
		seen   = make(map[int64]bool)
	)
	for round := 0; round < MaxRounds; round++ {
		p, err := l.fetch.FetchChildren(ctx, rootID, offset, pageSize-len(out.Children))
		if err != nil {
			return fetcher.Page{}, nil, fmt.Errorf("first page at offset %d: %w", offset, err)
		}
		if level == nil && len(p.Children) > 0 && p.RequesterLevel != nil {
			lvl := *p.RequesterLevel
			level = &lvl
		}
		if out.Summary == nil {
			out.Summary = p.Summary
		}
		for _, c := range p.Children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out.Children = append(out.Children, c)
		}
		out.RawCount += p.RawCount
		out.HasMore = p.HasMore
		out.TotalDirectCount = max(p.TotalDirectCount, len(out.Children))
		offset += p.RawCount

		if !p.HasMore || p.RawCount == 0 || len(out.Children) >= pageSize {
			return out, level, nil
		}
	}
	debug.Log("root %d: first page incomplete after %d rounds", rootID, MaxRounds)
	return out, level, nil
}

package fetcher_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vanderheijden86/refnet/pkg/fetcher"
	"github.com/vanderheijden86/refnet/pkg/model"
	"github.com/vanderheijden86/refnet/pkg/testutil"
)

// stubSource returns a fixed page; used where the fake network cannot
// produce the payload shape under test.
type stubSource struct {
	page model.RawPage
	err  error
}

func (s stubSource) GetDirectDescendants(ctx context.Context, parentID int64, maxDepth, limit, offset int) (model.RawPage, error) {
	return s.page, s.err
}

func intPtr(i int) *int    { return &i }
func boolPtr(b bool) *bool { return &b }

func TestFetchChildrenRejectsBadRange(t *testing.T) {
	f := fetcher.New(testutil.NewNetwork(model.ViewerB2C))
	ctx := context.Background()

	if _, err := f.FetchChildren(ctx, 1, -1, 10); !errors.Is(err, fetcher.ErrInvalidRange) {
		t.Errorf("negative offset: got %v", err)
	}
	if _, err := f.FetchChildren(ctx, 1, 0, 0); !errors.Is(err, fetcher.ErrInvalidRange) {
		t.Errorf("zero limit: got %v", err)
	}
}

func TestFetchChildrenFiltersDeeperRecords(t *testing.T) {
	net := testutil.NewNetwork(model.ViewerB2C)
	net.Multiplex = true
	net.Fan(1, 10, 2)
	net.Fan(10, 100, 3)

	page, err := fetcher.New(net).FetchChildren(context.Background(), 1, 0, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.RawCount != 5 {
		t.Errorf("expected 5 raw records (2 children + 3 grandchildren), got %d", page.RawCount)
	}
	testutil.AssertIDs(t, page.Children, 10, 11)
	for _, c := range page.Children {
		if c.LevelInSubtree != 1 {
			t.Errorf("child %d has level %d", c.ID, c.LevelInSubtree)
		}
	}
	if !page.Children[0].HasDescendants {
		t.Error("child 10 should report descendants")
	}
}

func TestFetchChildrenTrustsExplicitHasMore(t *testing.T) {
	src := stubSource{page: model.RawPage{
		Users:            []model.RawUserRecord{{UserID: 1, LevelInSubtree: 1}},
		HasMore:          boolPtr(true),
		TotalDescendants: intPtr(1),
	}}
	page, err := fetcher.New(src).FetchChildren(context.Background(), 9, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !page.HasMore {
		t.Error("explicit hasMore=true must be trusted even when total says otherwise")
	}
}

func TestFetchChildrenDerivesHasMore(t *testing.T) {
	net := testutil.NewNetwork(model.ViewerB2C)
	net.OmitHasMore = true
	net.Fan(1, 10, 12)
	f := fetcher.New(net)

	page, err := f.FetchChildren(context.Background(), 1, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !page.HasMore || page.TotalDirectCount != 12 {
		t.Errorf("first page: hasMore=%v total=%d", page.HasMore, page.TotalDirectCount)
	}

	page, err = f.FetchChildren(context.Background(), 1, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.HasMore || len(page.Children) != 2 {
		t.Errorf("second page: hasMore=%v children=%d", page.HasMore, len(page.Children))
	}
}

func TestFetchChildrenWithoutTotalOrFlag(t *testing.T) {
	src := stubSource{page: model.RawPage{
		Users: []model.RawUserRecord{{UserID: 1, LevelInSubtree: 1}, {UserID: 2, LevelInSubtree: 1}},
	}}
	page, err := fetcher.New(src).FetchChildren(context.Background(), 9, 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.HasMore {
		t.Error("with no flag and no total, nothing more is expected")
	}
	if page.TotalDirectCount != 6 {
		t.Errorf("total = %d, want offset+len = 6", page.TotalDirectCount)
	}
}

func TestFetchChildrenDropsDuplicateIDs(t *testing.T) {
	src := stubSource{page: model.RawPage{
		Users: []model.RawUserRecord{
			{UserID: 1, LevelInSubtree: 1},
			{UserID: 1, LevelInSubtree: 1},
			{UserID: 2, LevelInSubtree: 1},
		},
	}}
	page, err := fetcher.New(src).FetchChildren(context.Background(), 9, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertNoDuplicateIDs(t, page.Children)
	testutil.AssertIDs(t, page.Children, 1, 2)
}

func TestFetchChildrenEmptyPage(t *testing.T) {
	net := testutil.NewNetwork(model.ViewerB2C)
	net.AddRoot(1, "Root")

	page, err := fetcher.New(net).FetchChildren(context.Background(), 1, 0, 10)
	if err != nil {
		t.Fatalf("empty result is not an error: %v", err)
	}
	if len(page.Children) != 0 || page.HasMore {
		t.Errorf("expected empty final page, got %+v", page)
	}
}

func TestFetchChildrenClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want fetcher.ErrorKind
	}{
		{"forbidden", &testutil.StatusError{Code: 403}, fetcher.KindUnauthorized},
		{"server", &testutil.StatusError{Code: 500}, fetcher.KindTransient},
		{"not found", &testutil.StatusError{Code: 404}, fetcher.KindTransient},
		{"network", errors.New("connection reset"), fetcher.KindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := testutil.NewNetwork(model.ViewerB2C)
			net.FailNext(1, tt.err)

			_, err := fetcher.New(net).FetchChildren(context.Background(), 1, 0, 10)
			var le *fetcher.LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %T", err)
			}
			if le.Kind != tt.want {
				t.Errorf("kind = %v, want %v", le.Kind, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("cause should stay reachable through Unwrap")
			}
		})
	}
}

func TestErrorKindMessagesDiffer(t *testing.T) {
	if fetcher.KindUnauthorized.Message() == fetcher.KindTransient.Message() {
		t.Error("unauthorized and transient errors must render different copy")
	}
}

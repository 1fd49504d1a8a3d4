package datasource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/refnet/pkg/model"
)

func TestChain(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorConfig())

	tests := []struct {
		name  string
		depth int
		want  int
	}{
		{"chain_0", 0, 1},
		{"chain_1", 1, 2},
		{"chain_5", 5, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := gen.Chain(tt.depth)
			if len(ms) != tt.want {
				t.Fatalf("Chain(%d) = %d members, want %d", tt.depth, len(ms), tt.want)
			}
			if ms[0].ParentID != 0 {
				t.Error("first member should be the root")
			}
			for i := 1; i < len(ms); i++ {
				if ms[i].ParentID != ms[i-1].ID {
					t.Errorf("member %d parent = %d, want %d", i, ms[i].ParentID, ms[i-1].ID)
				}
			}
		})
	}
}

func TestStar(t *testing.T) {
	ms := NewGenerator(DefaultGeneratorConfig()).Star(7)
	if len(ms) != 8 {
		t.Fatalf("got %d members", len(ms))
	}
	for _, m := range ms[1:] {
		if m.ParentID != ms[0].ID {
			t.Errorf("member %d not under root", m.ID)
		}
	}
}

func TestTree(t *testing.T) {
	tests := []struct {
		depth, breadth, want int
	}{
		{1, 3, 4},
		{2, 2, 7},
		{3, 3, 40},
	}
	for _, tt := range tests {
		ms := NewGenerator(DefaultGeneratorConfig()).Tree(tt.depth, tt.breadth)
		if len(ms) != tt.want {
			t.Errorf("Tree(%d,%d) = %d members, want %d", tt.depth, tt.breadth, len(ms), tt.want)
		}
	}
}

func TestRandomRespectsBounds(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.MaxFanout = 3
	ms := NewGenerator(cfg).Random(4)

	children := map[int64]int{}
	depth := map[int64]int{ms[0].ID: 0}
	for _, m := range ms[1:] {
		children[m.ParentID]++
		depth[m.ID] = depth[m.ParentID] + 1
	}
	for id, n := range children {
		if n > 3 {
			t.Errorf("member %d has %d children, max 3", id, n)
		}
	}
	for id, d := range depth {
		if d > 4 {
			t.Errorf("member %d at depth %d", id, d)
		}
	}
	if children[ms[0].ID] == 0 {
		t.Error("root should recruit at least one member")
	}
}

func TestDeterminism(t *testing.T) {
	a := NewGenerator(DefaultGeneratorConfig()).Random(3)
	b := NewGenerator(DefaultGeneratorConfig()).Random(3)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].ParentID != b[i].ParentID ||
			a[i].FullName != b[i].FullName || *a[i].Volume != *b[i].Volume {
			t.Fatalf("member %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGeneratedFixtureRoundTrip(t *testing.T) {
	users := NewGenerator(DefaultGeneratorConfig()).Tree(2, 3)
	path := filepath.Join(t.TempDir(), "demo.db")
	err := WriteFixture(context.Background(), path, Fixture{
		Viewer:   model.ViewerB2B,
		ViewerID: users[0].ID,
		Users:    users,
	})
	if err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}

	src, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer src.Close()

	page, err := src.GetDirectDescendants(context.Background(), users[0].ID, 1, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Users) != 3 {
		t.Fatalf("root children = %d, want 3", len(page.Users))
	}
	for _, u := range page.Users {
		if u.TotalDescendants != 3 {
			t.Errorf("user %d total = %d, want 3", u.UserID, u.TotalDescendants)
		}
	}
}

func BenchmarkRandom(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NewGenerator(DefaultGeneratorConfig()).Random(5)
	}
}

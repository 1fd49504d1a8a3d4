package datasource

import (
	"fmt"
	"math/rand"
	"time"
)

// GeneratorConfig controls network generation.
type GeneratorConfig struct {
	Seed      int64     // Random seed for determinism (0 = use current time)
	RootID    int64     // ID of the root member (default 1)
	BaseTime  time.Time // Base time for sign-up timestamps (default: fixed time)
	MaxFanout int       // Upper bound of children per member for Random (default 6)
}

// DefaultGeneratorConfig returns a deterministic config for demos and tests.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:      42,
		RootID:    1,
		BaseTime:  time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		MaxFanout: 6,
	}
}

// Generator creates deterministic referral networks of various shapes for
// fixture databases.
type Generator struct {
	cfg    GeneratorConfig
	rng    *rand.Rand
	nextID int64
}

// NewGenerator creates a Generator with the given config.
func NewGenerator(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = DefaultGeneratorConfig().BaseTime
	}
	if cfg.RootID == 0 {
		cfg.RootID = 1
	}
	if cfg.MaxFanout < 1 {
		cfg.MaxFanout = 6
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) member(parent int64) FixtureUser {
	id := g.cfg.RootID + g.nextID
	g.nextID++
	volume := float64(g.rng.Intn(500000)) / 100
	commissions := float64(g.rng.Intn(20000)) / 100
	return FixtureUser{
		ID:          id,
		ParentID:    parent,
		FullName:    fmt.Sprintf("%s %s", firstNames[g.rng.Intn(len(firstNames))], lastNames[g.rng.Intn(len(lastNames))]),
		Email:       fmt.Sprintf("member%d@example.com", id),
		CreatedAt:   g.cfg.BaseTime.Add(time.Duration(g.nextID) * 6 * time.Hour).Format(time.RFC3339),
		Volume:      &volume,
		Commissions: &commissions,
	}
}

// Chain creates a root with a single line of depth descendants.
func (g *Generator) Chain(depth int) []FixtureUser {
	g.nextID = 0
	root := g.member(0)
	out := []FixtureUser{root}
	parent := root.ID
	for i := 0; i < depth; i++ {
		m := g.member(parent)
		out = append(out, m)
		parent = m.ID
	}
	return out
}

// Star creates a root with n direct children and nothing deeper.
func (g *Generator) Star(n int) []FixtureUser {
	g.nextID = 0
	root := g.member(0)
	out := []FixtureUser{root}
	for i := 0; i < n; i++ {
		out = append(out, g.member(root.ID))
	}
	return out
}

// Tree creates a complete tree with given depth and breadth.
func (g *Generator) Tree(depth, breadth int) []FixtureUser {
	g.nextID = 0
	root := g.member(0)
	out := []FixtureUser{root}
	level := []int64{root.ID}
	for d := 0; d < depth; d++ {
		var next []int64
		for _, p := range level {
			for b := 0; b < breadth; b++ {
				m := g.member(p)
				out = append(out, m)
				next = append(next, m.ID)
			}
		}
		level = next
	}
	return out
}

// Random creates an uneven tree: each member recruits between 0 and
// MaxFanout others, down to depth levels. Members at the last level have
// no children.
func (g *Generator) Random(depth int) []FixtureUser {
	g.nextID = 0
	root := g.member(0)
	out := []FixtureUser{root}
	level := []int64{root.ID}
	for d := 0; d < depth && len(level) > 0; d++ {
		var next []int64
		for _, p := range level {
			n := g.rng.Intn(g.cfg.MaxFanout + 1)
			if d == 0 && n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				m := g.member(p)
				out = append(out, m)
				next = append(next, m.ID)
			}
		}
		level = next
	}
	return out
}

var firstNames = []string{
	"Ana", "Bruno", "Carla", "Diego", "Elena", "Fabio", "Gloria", "Hugo",
	"Irene", "Javier", "Karla", "Luis", "Marta", "Nico", "Olga", "Pablo",
}

var lastNames = []string{
	"Alvarez", "Benitez", "Castro", "Duarte", "Espinoza", "Flores",
	"Gomez", "Herrera", "Ibarra", "Juarez", "Lopez", "Morales",
}

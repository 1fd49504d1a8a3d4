package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/refnet/internal/datasource"
	"github.com/vanderheijden86/refnet/pkg/config"
	"github.com/vanderheijden86/refnet/pkg/model"
)

// runDemo writes a generated fixture database so rn can be tried without
// platform credentials.
func runDemo(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rn demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	shape := fs.String("shape", "random", "Network shape: random, tree, star or chain")
	depth := fs.Int("depth", 4, "Levels below the root")
	breadth := fs.Int("breadth", 3, "Children per member (tree) or direct children (star)")
	fanout := fs.Int("fanout", 6, "Most recruits per member (random)")
	seed := fs.Int64("seed", 42, "Random seed")
	viewer := fs.String("viewer", string(model.ViewerB2C), "Viewer model stored in the fixture: b2c, b2b or b2t")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	path := fs.Arg(0)
	if path == "" {
		path = filepath.Join(config.DataDir(), "demo.db")
	}
	vm := model.ViewerModel(*viewer)
	if !vm.IsValid() {
		fmt.Fprintf(stderr, "Error: unknown viewer model %q\n", *viewer)
		return 2
	}

	cfg := datasource.DefaultGeneratorConfig()
	cfg.Seed = *seed
	cfg.MaxFanout = *fanout
	users, err := generate(datasource.NewGenerator(cfg), *shape, *depth, *breadth)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fixture := datasource.Fixture{Viewer: vm, ViewerID: users[0].ID, Users: users}
	if err := datasource.WriteFixture(context.Background(), path, fixture); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Wrote %d members to %s\n", len(users), path)
	fmt.Fprintf(stdout, "Open it with: rn --db %s\n", path)
	return 0
}

func generate(g *datasource.Generator, shape string, depth, breadth int) ([]datasource.FixtureUser, error) {
	if depth < 0 || breadth < 0 {
		return nil, fmt.Errorf("depth and breadth must not be negative")
	}
	switch shape {
	case "random":
		return g.Random(depth), nil
	case "tree":
		return g.Tree(depth, breadth), nil
	case "star":
		return g.Star(breadth), nil
	case "chain":
		return g.Chain(depth), nil
	}
	return nil, fmt.Errorf("unknown shape %q (want random, tree, star or chain)", shape)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/refnet/internal/datasource"
	"github.com/vanderheijden86/refnet/pkg/config"
	"github.com/vanderheijden86/refnet/pkg/debug"
	"github.com/vanderheijden86/refnet/pkg/metrics"
	"github.com/vanderheijden86/refnet/pkg/ui"
	"github.com/vanderheijden86/refnet/pkg/version"
	"github.com/vanderheijden86/refnet/pkg/watcher"
	"github.com/vanderheijden86/refnet/pkg/wizard"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "init":
			return runInit(stderr)
		case "demo":
			return runDemo(args[1:], stdout, stderr)
		}
	}

	fs := flag.NewFlagSet("rn", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rootFlag := fs.Int64("root", 0, "Root user id to open (default: ui.default_root, then the fixture viewer)")
	apiFlag := fs.String("api", "", "Platform API base URL (overrides RN_API_URL)")
	tokenFlag := fs.String("token", "", "API bearer token (overrides RN_TOKEN)")
	dbFlag := fs.String("db", "", "SQLite fixture database (overrides RN_DB)")
	pageSize := fs.Int("page-size", 0, "Children per page")
	printFlag := fs.Bool("print", false, "Print the tree as plain text instead of starting the TUI")
	depth := fs.Int("depth", 1, "Levels to expand with --print")
	jsonFlag := fs.Bool("json", false, "With --print, emit JSON")
	stats := fs.Bool("stats", false, "Print timing metrics on exit")
	noWatch := fs.Bool("no-watch", false, "Do not reload when the fixture database changes")
	help := fs.Bool("help", false, "Show help")
	versionFlag := fs.Bool("version", false, "Show version")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *help {
		fmt.Fprintln(stdout, "Usage: rn [options]")
		fmt.Fprintln(stdout, "       rn init          interactive setup")
		fmt.Fprintln(stdout, "       rn demo [PATH]   write a demo fixture database")
		fmt.Fprintln(stdout, "\nBrowse a referral network one page at a time.")
		fs.SetOutput(stdout)
		fs.PrintDefaults()
		return 0
	}

	if *versionFlag {
		fmt.Fprintf(stdout, "rn %s\n", version.Version)
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		// Non-fatal: continue with defaults
		fmt.Fprintf(stderr, "warning: %v\n", err)
		cfg = config.DefaultConfig()
	}
	cfg.ApplyEnv(os.Getenv)
	applyFlags(&cfg, *apiFlag, *tokenFlag, *dbFlag, *pageSize)

	if *stats {
		defer metrics.WriteReport(stderr)
	}

	src, closer, err := datasource.Open(datasource.Options{
		APIURL:    cfg.API.URL,
		Token:     cfg.API.Token,
		Timeout:   cfg.API.Timeout,
		DBPath:    cfg.Fixture.Path,
		Multiplex: cfg.Fixture.Multiplex,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, "Run 'rn init' to configure a data source, or 'rn demo' to create a fixture.")
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootID, err := resolveRoot(ctx, *rootFlag, cfg, src)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if *printFlag || *jsonFlag || !isTerminal(stdout) {
		opts := printOptions{PageSize: cfg.Tree.PageSize, Depth: *depth, JSON: *jsonFlag}
		if err := printTree(ctx, stdout, src, rootID, opts); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	// The program handles SIGINT itself.
	stop()
	tuiCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := []ui.Option{ui.WithContext(tuiCtx)}
	if sq, ok := src.(*datasource.SQLiteSource); ok && !*noWatch {
		if w := startFixtureWatcher(sq.Path(), stderr); w != nil {
			defer w.Stop()
			opts = append(opts, ui.WithFixtureWatcher(w))
		}
	}
	m := ui.NewModel(src, cfg, rootID, opts...)
	if err := runTUIProgram(m); err != nil {
		fmt.Fprintf(stderr, "Error running rn: %v\n", err)
		return 1
	}
	return 0
}

// applyFlags layers command-line values over the file and environment. An
// explicit --api without --db means the API is wanted even when a fixture
// is configured.
func applyFlags(cfg *config.Config, api, token, db string, pageSize int) {
	if api != "" {
		cfg.API.URL = api
		if db == "" {
			cfg.Fixture.Path = ""
		}
	}
	if token != "" {
		cfg.API.Token = token
	}
	if db != "" {
		cfg.Fixture.Path = db
	}
	if pageSize > 0 {
		cfg.Tree.PageSize = pageSize
	}
}

// viewerIDer is implemented by sources that know who the viewer is.
type viewerIDer interface {
	ViewerID(ctx context.Context) (int64, bool)
}

// resolveRoot picks the participant to open: the flag, then the configured
// default, then the source's own viewer.
func resolveRoot(ctx context.Context, flagRoot int64, cfg config.Config, src any) (int64, error) {
	switch {
	case flagRoot > 0:
		return flagRoot, nil
	case flagRoot < 0:
		return 0, fmt.Errorf("invalid root id %d", flagRoot)
	case cfg.UI.DefaultRoot > 0:
		return cfg.UI.DefaultRoot, nil
	}
	if v, ok := src.(viewerIDer); ok {
		if id, ok := v.ViewerID(ctx); ok {
			return id, nil
		}
	}
	return 0, errors.New("no root user: pass --root or set ui.default_root (rn init)")
}

// startFixtureWatcher watches the fixture for rewrites such as a second
// "rn demo". Failure only disables live reload.
func startFixtureWatcher(path string, stderr io.Writer) *watcher.Watcher {
	w, err := watcher.NewWatcher(path,
		watcher.WithDebounceDuration(300*time.Millisecond),
		watcher.WithOnError(func(err error) {
			debug.Log("fixture watcher: %v", err)
		}),
	)
	if err == nil {
		err = w.Start()
	}
	if err != nil {
		fmt.Fprintf(stderr, "warning: live reload disabled: %v\n", err)
		return nil
	}
	return w
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runInit(stderr io.Writer) int {
	path := config.ConfigPath()
	cfg, err := config.LoadFrom(path)
	if err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if _, err := wizard.New(cfg, path).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(stderr, "Setup cancelled")
			return 1
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set RN_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("RN_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}

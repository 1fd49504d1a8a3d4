// Package wizard implements "rn init", the interactive first-run setup.
//
// It asks where the referral data comes from (the platform API or a local
// SQLite fixture), how many children to show per page and which
// participant to open by default, then writes the config file.
package wizard

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/refnet/internal/datasource"
	"github.com/vanderheijden86/refnet/pkg/config"
)

// Source choices offered by the wizard.
const (
	SourceAPI     = "api"
	SourceFixture = "fixture"
)

// Answers holds the raw form values. Numbers stay strings until Apply so
// the form can show what the user typed.
type Answers struct {
	Source      string
	APIURL      string
	Token       string
	FixturePath string
	PageSize    string
	DefaultRoot string
	ShowDetail  bool
}

// AnswersFrom pre-fills the form from an existing config.
func AnswersFrom(cfg config.Config) Answers {
	a := Answers{
		Source:      SourceAPI,
		APIURL:      cfg.API.URL,
		Token:       cfg.API.Token,
		FixturePath: cfg.Fixture.Path,
		PageSize:    strconv.Itoa(cfg.Tree.PageSize),
		ShowDetail:  cfg.UI.ShowDetail,
	}
	if cfg.Fixture.Path != "" {
		a.Source = SourceFixture
	}
	if cfg.UI.DefaultRoot > 0 {
		a.DefaultRoot = strconv.FormatInt(cfg.UI.DefaultRoot, 10)
	}
	return a
}

// Apply validates the answers and folds them into cfg. Choosing one source
// clears the other so the config stays unambiguous.
func (a Answers) Apply(cfg config.Config) (config.Config, error) {
	switch a.Source {
	case SourceAPI:
		if err := ValidateURL(a.APIURL); err != nil {
			return cfg, err
		}
		cfg.API.URL = strings.TrimSpace(a.APIURL)
		cfg.API.Token = strings.TrimSpace(a.Token)
		cfg.Fixture.Path = ""
	case SourceFixture:
		if strings.TrimSpace(a.FixturePath) == "" {
			return cfg, errors.New("fixture path is required")
		}
		cfg.Fixture.Path = strings.TrimSpace(a.FixturePath)
		cfg.API.URL = ""
		cfg.API.Token = ""
	default:
		return cfg, fmt.Errorf("unknown source %q", a.Source)
	}

	size, err := parsePageSize(a.PageSize, cfg.Tree.PageSizes)
	if err != nil {
		return cfg, err
	}
	cfg.Tree.PageSize = size

	root, err := parseRootID(a.DefaultRoot)
	if err != nil {
		return cfg, err
	}
	cfg.UI.DefaultRoot = root
	cfg.UI.ShowDetail = a.ShowDetail
	return cfg, nil
}

// ValidateURL accepts absolute http(s) URLs.
func ValidateURL(s string) error {
	src := datasource.DataSource{Type: datasource.SourceTypeHTTP, Location: strings.TrimSpace(s)}
	if src.Location == "" {
		return errors.New("API URL is required")
	}
	return datasource.ValidateSource(&src)
}

func parsePageSize(s string, allowed []int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return config.DefaultPageSize, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("page size must be a positive number, got %q", s)
	}
	if len(allowed) > 0 && !slices.Contains(allowed, n) {
		return 0, fmt.Errorf("page size %d is not one of %v", n, allowed)
	}
	return n, nil
}

func parseRootID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("root must be a user id, got %q", s)
	}
	return id, nil
}

// Wizard runs the interactive flow.
type Wizard struct {
	cfg  config.Config
	path string
	out  io.Writer
}

// New creates a wizard that edits cfg and saves it to path.
func New(cfg config.Config, path string) *Wizard {
	return &Wizard{cfg: cfg, path: path, out: os.Stdout}
}

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// Run asks the questions, validates the answers and saves the config.
func (w *Wizard) Run() (config.Config, error) {
	w.printBanner()

	a := AnswersFrom(w.cfg)
	if err := w.collectSource(&a); err != nil {
		return w.cfg, err
	}
	if err := w.collectSourceConfig(&a); err != nil {
		return w.cfg, err
	}
	if err := w.collectTree(&a); err != nil {
		return w.cfg, err
	}

	cfg, err := a.Apply(w.cfg)
	if err != nil {
		return w.cfg, err
	}
	if err := config.SaveTo(cfg, w.path); err != nil {
		return w.cfg, err
	}
	fmt.Fprintf(w.out, "Saved %s\n", w.path)
	w.cfg = cfg
	return cfg, nil
}

func (w *Wizard) printBanner() {
	fmt.Fprintln(w.out, "")
	fmt.Fprintln(w.out, "╔══════════════════════════════════════════════╗")
	fmt.Fprintln(w.out, "║           rn → Referral Network Setup        ║")
	fmt.Fprintln(w.out, "╠══════════════════════════════════════════════╣")
	fmt.Fprintln(w.out, "║  Press Ctrl+C anytime to cancel              ║")
	fmt.Fprintln(w.out, "╚══════════════════════════════════════════════╝")
	fmt.Fprintln(w.out, "")
}

func (w *Wizard) step(title string) {
	fmt.Fprintln(w.out, title)
	fmt.Fprintln(w.out, "────────────────────────────")
}

func (w *Wizard) collectSource(a *Answers) error {
	w.step("Step 1: Data Source")

	form := newForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where does the network come from?").
				Options(
					huh.NewOption("Commission platform API", SourceAPI),
					huh.NewOption("Local SQLite fixture (see rn demo)", SourceFixture),
				).
				Value(&a.Source),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	fmt.Fprintln(w.out, "")
	return nil
}

func (w *Wizard) collectSourceConfig(a *Answers) error {
	var group *huh.Group
	switch a.Source {
	case SourceAPI:
		w.step("Step 2: API Configuration")
		group = huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Value(&a.APIURL).
				Placeholder("https://platform.example.com").
				Validate(ValidateURL),
			huh.NewInput().
				Title("API token").
				Description("Sent as a bearer token").
				EchoMode(huh.EchoModePassword).
				Value(&a.Token),
		)
	default:
		w.step("Step 2: Fixture")
		defaultPath := filepath.Join(config.DataDir(), "demo.db")
		if a.FixturePath == "" {
			a.FixturePath = defaultPath
		}
		group = huh.NewGroup(
			huh.NewInput().
				Title("Fixture database").
				Value(&a.FixturePath).
				Placeholder(defaultPath),
		)
	}
	if err := newForm(group).Run(); err != nil {
		return err
	}
	fmt.Fprintln(w.out, "")
	return nil
}

func (w *Wizard) collectTree(a *Answers) error {
	w.step("Step 3: Tree")

	allowed := w.cfg.Tree.PageSizes
	form := newForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Children per page").
				Description(fmt.Sprintf("One of %v", allowed)).
				Value(&a.PageSize).
				Validate(func(s string) error {
					_, err := parsePageSize(s, allowed)
					return err
				}),
			huh.NewInput().
				Title("Default root user id (optional)").
				Description("Leave empty to open your own network").
				Value(&a.DefaultRoot).
				Validate(func(s string) error {
					_, err := parseRootID(s)
					return err
				}),
			huh.NewConfirm().
				Title("Show the detail panel on start?").
				Value(&a.ShowDetail),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	fmt.Fprintln(w.out, "")
	return nil
}

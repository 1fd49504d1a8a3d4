// Package config handles loading and saving refnet configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/refnet/config.yaml
//   - Data:    ~/.local/share/refnet/ (demo fixtures)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "refnet"

// DefaultPageSize is the number of children requested per page.
const DefaultPageSize = 50

// APIConfig points at the commission platform.
type APIConfig struct {
	URL     string        `yaml:"url,omitempty"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// FixtureConfig points at a local SQLite fixture used instead of the API.
type FixtureConfig struct {
	Path      string `yaml:"path,omitempty"`
	Multiplex int    `yaml:"multiplex,omitempty"` // levels per listing, 0 or 1 = direct children only
}

// TreeConfig holds pagination settings.
type TreeConfig struct {
	PageSize  int   `yaml:"page_size,omitempty"`
	PageSizes []int `yaml:"page_sizes,omitempty"` // choices cycled with +/-
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	DefaultRoot int64 `yaml:"default_root,omitempty"`
	ShowDetail  bool  `yaml:"show_detail,omitempty"` // open the detail panel on start
}

// Config is the top-level configuration for refnet.
type Config struct {
	API       APIConfig     `yaml:"api,omitempty"`
	Fixture   FixtureConfig `yaml:"fixture,omitempty"`
	Tree      TreeConfig    `yaml:"tree,omitempty"`
	UI        UIConfig      `yaml:"ui,omitempty"`
	Favorites map[int]int64 `yaml:"favorites,omitempty"` // Number key (1-9) -> root user id
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{Timeout: 20 * time.Second},
		Tree: TreeConfig{
			PageSize:  DefaultPageSize,
			PageSizes: []int{10, 25, 50, 100},
		},
		Favorites: make(map[int]int64),
	}
}

// ConfigDir returns the XDG config directory for refnet.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the XDG data directory for refnet.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Favorites == nil {
		cfg.Favorites = make(map[int]int64)
	}
	cfg.Fixture.Path = expandHome(cfg.Fixture.Path)
	cfg.normalize()
	return cfg, nil
}

// normalize repairs values a hand-edited file may get wrong.
func (c *Config) normalize() {
	if c.Tree.PageSize < 1 {
		c.Tree.PageSize = DefaultPageSize
	}
	sizes := c.Tree.PageSizes[:0:0]
	for _, s := range c.Tree.PageSizes {
		if s > 0 {
			sizes = append(sizes, s)
		}
	}
	if !slices.Contains(sizes, c.Tree.PageSize) {
		sizes = append(sizes, c.Tree.PageSize)
	}
	slices.Sort(sizes)
	c.Tree.PageSizes = slices.Compact(sizes)
	if c.API.Timeout <= 0 {
		c.API.Timeout = 20 * time.Second
	}
}

// ApplyEnv overlays RN_API_URL, RN_TOKEN, RN_DB and RN_PAGE_SIZE.
// getenv is os.Getenv outside tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("RN_API_URL"); v != "" {
		c.API.URL = v
	}
	if v := getenv("RN_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := getenv("RN_DB"); v != "" {
		c.Fixture.Path = expandHome(v)
	}
	if v := getenv("RN_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Tree.PageSize = n
		}
	}
	c.normalize()
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path. The file holds the API
// token, so it is only readable by the owner.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FavoriteRoot returns the root assigned to number key n (1-9).
func (c Config) FavoriteRoot(n int) (int64, bool) {
	id, ok := c.Favorites[n]
	return id, ok && id > 0
}

// SetFavorite assigns a root id to a number key (1-9). Zero clears it.
func (c *Config) SetFavorite(n int, rootID int64) {
	if c.Favorites == nil {
		c.Favorites = make(map[int]int64)
	}
	if rootID == 0 {
		delete(c.Favorites, n)
	} else {
		c.Favorites[n] = rootID
	}
}

// NextPageSize returns the configured page size after cur, or cur when it
// is already the largest. With delta < 0 it steps down instead.
func (c Config) NextPageSize(cur, delta int) int {
	sizes := c.Tree.PageSizes
	if len(sizes) == 0 {
		return cur
	}
	i := slices.Index(sizes, cur)
	if i < 0 {
		i, _ = slices.BinarySearch(sizes, cur)
		if delta > 0 {
			i--
		}
	}
	switch {
	case delta > 0 && i+1 < len(sizes):
		return sizes[i+1]
	case delta < 0 && i > 0:
		return sizes[i-1]
	}
	return cur
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

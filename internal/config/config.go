// Package config loads spanlabel configuration from defaults, the user
// config, the project config and SPANLABEL_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
)

// ProjectDirName is the per-project data directory.
const ProjectDirName = ".spanlabel"

// Project config file names, in lookup order.
var projectConfigNames = []string{".spanlabel.yaml", ".spanlabel.yml"}

// Config represents the complete spanlabel configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Engine   EngineConfig   `yaml:"engine" json:"engine"`
	UI       UIConfig       `yaml:"ui" json:"ui"`
	Watch    WatchConfig    `yaml:"watch" json:"watch"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Stats    StatsConfig    `yaml:"stats" json:"stats"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Sessions SessionsConfig `yaml:"sessions" json:"sessions"`
}

// StoreConfig configures the SQLite annotation store.
type StoreConfig struct {
	// Path is the database file. Relative paths resolve against the project root.
	Path string `yaml:"path" json:"path"`

	// LabelCacheSize bounds the label LRU cache.
	LabelCacheSize int `yaml:"label_cache_size" json:"label_cache_size"`

	// BusyTimeoutMS is how long SQLite waits on a competing writer.
	BusyTimeoutMS int `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
}

// EngineConfig configures the annotation engine.
type EngineConfig struct {
	// StrictInvariants panics on internal invariant violations instead of
	// logging them. Meant for development and CI.
	StrictInvariants bool `yaml:"strict_invariants" json:"strict_invariants"`
}

// UIConfig configures the terminal annotator.
type UIConfig struct {
	NoColor bool `yaml:"no_color" json:"no_color"`

	// OverlapColor is the background of regions where annotations overlap.
	OverlapColor string `yaml:"overlap_color" json:"overlap_color"`

	// Palette colors labels that have no color of their own, by label id.
	Palette []string `yaml:"palette" json:"palette"`

	// WrapWidth wraps document text; 0 uses the terminal width.
	WrapWidth int `yaml:"wrap_width" json:"wrap_width"`
}

// WatchConfig configures the database watcher used to pick up edits made by
// other processes.
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Debounce string `yaml:"debounce" json:"debounce"`
}

// SearchConfig configures annotation search.
type SearchConfig struct {
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// StatsConfig configures corpus statistics.
type StatsConfig struct {
	// Workers is the number of documents analyzed concurrently.
	Workers int `yaml:"workers" json:"workers"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// SessionsConfig configures where last-used state is kept.
type SessionsConfig struct {
	StoragePath string `yaml:"storage_path" json:"storage_path"`
}

// DefaultPalette is used for labels without an explicit color.
var DefaultPalette = []string{"#5fafff", "#87d787", "#ffaf5f", "#d787d7", "#ffd75f", "#5fd7d7", "#ff8787", "#afafff"}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			Path:           filepath.Join(ProjectDirName, "annotations.db"),
			LabelCacheSize: 256,
			BusyTimeoutMS:  5000,
		},
		Engine: EngineConfig{
			StrictInvariants: false,
		},
		UI: UIConfig{
			OverlapColor: "#626262",
			Palette:      append([]string(nil), DefaultPalette...),
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: "200ms",
		},
		Search: SearchConfig{
			MaxResults: 20,
		},
		Stats: StatsConfig{
			Workers: runtime.NumCPU(),
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		Sessions: SessionsConfig{
			StoragePath: defaultSessionsPath(),
		},
	}
}

func defaultSessionsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".spanlabel", "sessions")
	}
	return filepath.Join(home, ".spanlabel", "sessions")
}

// GetUserConfigPath returns the path to the user/global configuration file:
//   - $XDG_CONFIG_HOME/spanlabel/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/spanlabel/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "spanlabel", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "spanlabel", "config.yaml")
	}
	return filepath.Join(home, ".config", "spanlabel", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the project rooted at dir.
// Sources apply in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/spanlabel/config.yaml)
//  3. Project config (.spanlabel.yaml in dir)
//  4. Environment variables (SPANLABEL_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if path := ProjectConfigPath(dir); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the project config file in dir, or "" if none.
func ProjectConfigPath(dir string) string {
	for _, name := range projectConfigNames {
		if p := filepath.Join(dir, name); fileExists(p) {
			return p
		}
	}
	return ""
}

// loadYAML decodes a config file on top of c, so keys missing from the file
// keep their current values. Unknown keys are rejected.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return spanerr.New(spanerr.ErrCodeConfigNotFound, fmt.Sprintf("failed to read config file %s", path), err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return spanerr.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies SPANLABEL_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SPANLABEL_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("SPANLABEL_STRICT"); v != "" {
		c.Engine.StrictInvariants = parseBool(v)
	}
	if v := os.Getenv("SPANLABEL_NO_COLOR"); v != "" {
		c.UI.NoColor = parseBool(v)
	}
	if v := os.Getenv("SPANLABEL_WATCH"); v != "" {
		c.Watch.Enabled = parseBool(v)
	}
	if v := os.Getenv("SPANLABEL_WATCH_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("SPANLABEL_SEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("SPANLABEL_STATS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Stats.Workers = n
		}
	}
	if v := os.Getenv("SPANLABEL_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("SPANLABEL_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Store.Path) == "" {
		return spanerr.ConfigError("store.path must not be empty", nil)
	}
	if c.Store.LabelCacheSize <= 0 {
		return spanerr.ConfigError(fmt.Sprintf("store.label_cache_size must be positive, got %d", c.Store.LabelCacheSize), nil)
	}
	if c.Store.BusyTimeoutMS < 0 {
		return spanerr.ConfigError(fmt.Sprintf("store.busy_timeout_ms must be non-negative, got %d", c.Store.BusyTimeoutMS), nil)
	}
	if c.UI.WrapWidth < 0 {
		return spanerr.ConfigError(fmt.Sprintf("ui.wrap_width must be non-negative, got %d", c.UI.WrapWidth), nil)
	}
	if _, err := c.WatchDebounce(); err != nil {
		return spanerr.ConfigError(fmt.Sprintf("watch.debounce is not a duration: %q", c.Watch.Debounce), err)
	}
	if c.Search.MaxResults < 0 {
		return spanerr.ConfigError(fmt.Sprintf("search.max_results must be non-negative, got %d", c.Search.MaxResults), nil)
	}
	if c.Stats.Workers < 0 {
		return spanerr.ConfigError(fmt.Sprintf("stats.workers must be non-negative, got %d", c.Stats.Workers), nil)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return spanerr.ConfigError(fmt.Sprintf("server.transport must be 'stdio', got %s", c.Server.Transport), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return spanerr.ConfigError(fmt.Sprintf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel), nil)
	}
	return nil
}

// WatchDebounce parses watch.debounce.
func (c *Config) WatchDebounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}

// DatabasePath resolves store.path against the project root.
func (c *Config) DatabasePath(root string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(root, c.Store.Path)
}

// DataDir is the directory holding the database, locks and logs of a project.
func (c *Config) DataDir(root string) string {
	return filepath.Dir(c.DatabasePath(root))
}

// LabelColor picks the palette color for a label without its own color.
func (c *Config) LabelColor(labelID int64) string {
	if len(c.UI.Palette) == 0 {
		return DefaultPalette[int(labelID)%len(DefaultPalette)]
	}
	idx := int(labelID) % len(c.UI.Palette)
	if idx < 0 {
		idx = -idx
	}
	return c.UI.Palette[idx]
}

// FindProjectRoot walks up from startDir looking for a .spanlabel directory,
// a project config file or a .git directory. It falls back to startDir.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ProjectDirName)) ||
			ProjectConfigPath(currentDir) != "" ||
			dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads only the user configuration file on top of defaults.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeNewDefaults fills fields that an older config file left at their zero
// value and returns the names of the fields it set.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Version == 0 {
		c.Version = defaults.Version
		added = append(added, "version")
	}
	if c.Store.LabelCacheSize == 0 {
		c.Store.LabelCacheSize = defaults.Store.LabelCacheSize
		added = append(added, "store.label_cache_size")
	}
	if c.Store.BusyTimeoutMS == 0 {
		c.Store.BusyTimeoutMS = defaults.Store.BusyTimeoutMS
		added = append(added, "store.busy_timeout_ms")
	}
	if c.UI.OverlapColor == "" {
		c.UI.OverlapColor = defaults.UI.OverlapColor
		added = append(added, "ui.overlap_color")
	}
	if len(c.UI.Palette) == 0 {
		c.UI.Palette = defaults.UI.Palette
		added = append(added, "ui.palette")
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = defaults.Watch.Debounce
		added = append(added, "watch.debounce")
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = defaults.Search.MaxResults
		added = append(added, "search.max_results")
	}
	if c.Sessions.StoragePath == "" {
		c.Sessions.StoragePath = defaults.Sessions.StoragePath
		added = append(added, "sessions.storage_path")
	}
	// watch.enabled and engine.strict_invariants are booleans; an explicit
	// false cannot be told apart from a missing key, so they are left alone.

	return added
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Package config loads watchcrew settings: built-in defaults, then a TOML
// file, then WATCHCREW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/infblueocean/watchcrew/internal/team"
)

// EnvPrefix prefixes every environment override. The first underscore after
// the prefix separates section from key: WATCHCREW_BACKEND_REQUEST_TIMEOUT
// sets backend.request_timeout.
const EnvPrefix = "WATCHCREW_"

// Config is the full application configuration.
type Config struct {
	Backend BackendConfig `koanf:"backend"`
	Game    GameConfig    `koanf:"game"`
	Viewer  ViewerConfig  `koanf:"viewer"`
	Chat    ChatConfig    `koanf:"chat"`
	Pacing  PacingConfig  `koanf:"pacing"`
	Loop    LoopConfig    `koanf:"loop"`
	News    NewsConfig    `koanf:"news"`
	Agents  AgentsConfig  `koanf:"agents"`
	Storage StorageConfig `koanf:"storage"`
	Log     LogConfig     `koanf:"log"`
}

// BackendConfig locates the orchestrate server.
type BackendConfig struct {
	URL string `koanf:"url"`
	// RequestTimeout bounds the wait for response headers of one cycle.
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// CallTimeout bounds the non-streaming endpoints (news, reset, personas).
	CallTimeout time.Duration `koanf:"call_timeout"`
}

// GameConfig describes the broadcast being watched.
type GameConfig struct {
	ID     string `koanf:"id"` // e.g. 250523_HTSS (home HT, away SS)
	Status string `koanf:"status"`
	Flow   string `koanf:"flow"`
}

// ViewerConfig describes the person at the keyboard.
type ViewerConfig struct {
	Name string `koanf:"name"`
	Team string `koanf:"team"` // empty: the game's home team
}

// ChatConfig tunes commentary parsing.
type ChatConfig struct {
	DefaultTeamLabel string `koanf:"default_team_label"`
	RepairJSON       bool   `koanf:"repair_json"`
}

// PacingConfig tunes the display pacer.
type PacingConfig struct {
	ReferenceLength int           `koanf:"reference_length"`
	MinInterval     time.Duration `koanf:"min_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
}

// LoopConfig tunes the request loop.
type LoopConfig struct {
	Period time.Duration `koanf:"period"`
}

// Feed is one RSS/Atom source of team headlines.
type Feed struct {
	Team string `koanf:"team"`
	URL  string `koanf:"url"`
}

// NewsConfig selects where news context comes from.
type NewsConfig struct {
	UseBackend bool          `koanf:"use_backend"`
	Feeds      []Feed        `koanf:"feeds"`
	MinRefresh time.Duration `koanf:"min_refresh"`
	Headlines  int           `koanf:"headlines"`
}

// AgentsConfig points at an optional roster file.
type AgentsConfig struct {
	File  string `koanf:"file"`
	Watch bool   `koanf:"watch"`
}

// StorageConfig locates local state.
type StorageConfig struct {
	DataDir string `koanf:"data_dir"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `koanf:"level"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"backend.url":             "http://localhost:8000",
		"backend.request_timeout": "20s",
		"backend.call_timeout":    "60s",
		"game.id":                 "250523_HTSS",
		"game.status":             "경기 진행 중",
		"game.flow":               "",
		"viewer.name":             "나",
		"viewer.team":             "",
		"chat.default_team_label": "samsung",
		"chat.repair_json":        true,
		"pacing.reference_length": 100,
		"pacing.min_interval":     "3500ms",
		"pacing.max_interval":     "4500ms",
		"loop.period":             "15s",
		"news.use_backend":        true,
		"news.min_refresh":        "30m",
		"news.headlines":          20,
		"agents.file":             "",
		"agents.watch":            false,
		"storage.data_dir":        "~/.watchcrew",
		"log.level":               "info",
	}
}

// DefaultPath returns ~/.watchcrew/watchcrew.toml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".watchcrew", "watchcrew.toml")
}

// Load builds the configuration. An explicit path must exist; with an
// empty path the default file is read only if present.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config %s: %w", path, err)
		}
	} else if def := DefaultPath(); fileExists(def) {
		if err := k.Load(file.Provider(def), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config %s: %w", def, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	cfg.Storage.DataDir = expandHome(cfg.Storage.DataDir)
	cfg.Agents.File = expandHome(cfg.Agents.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

// Validate checks values that would break the loop or the pacer.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.URL == "" {
		errs = append(errs, errors.New("backend.url is required"))
	}
	if c.Backend.RequestTimeout <= 0 {
		errs = append(errs, errors.New("backend.request_timeout must be positive"))
	}
	if _, err := team.ParseGameID(c.Game.ID); err != nil {
		errs = append(errs, fmt.Errorf("game.id: %w", err))
	}
	if c.Viewer.Team != "" {
		if _, ok := team.NewResolver(nil).Resolve(c.Viewer.Team); !ok {
			errs = append(errs, fmt.Errorf("viewer.team %q is not a known team", c.Viewer.Team))
		}
	}
	if c.Pacing.ReferenceLength <= 0 {
		errs = append(errs, errors.New("pacing.reference_length must be positive"))
	}
	if c.Pacing.MinInterval < 0 || c.Pacing.MaxInterval < c.Pacing.MinInterval {
		errs = append(errs, errors.New("pacing intervals must satisfy 0 <= min_interval <= max_interval"))
	}
	if c.Loop.Period <= 0 {
		errs = append(errs, errors.New("loop.period must be positive"))
	}
	for i, f := range c.News.Feeds {
		if f.URL == "" {
			errs = append(errs, fmt.Errorf("news.feeds[%d]: url is required", i))
		}
		if _, ok := team.NewResolver(nil).Resolve(f.Team); !ok {
			errs = append(errs, fmt.Errorf("news.feeds[%d]: unknown team %q", i, f.Team))
		}
	}
	return errors.Join(errs...)
}

// ParsedGame returns the parsed game ID. Valid after Load.
func (c *Config) ParsedGame() team.Game {
	g, _ := team.ParseGameID(c.Game.ID)
	return g
}

// ViewerTeam returns the viewer's team ID, defaulting to the home team.
func (c *Config) ViewerTeam() string {
	g := c.ParsedGame()
	return team.NewResolver(nil).ResolveOr(c.Viewer.Team, g.Home)
}

// DBPath is the SQLite file inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, "watchcrew.db")
}

// LogDir is where the text log and the event log go.
func (c *Config) LogDir() string {
	return filepath.Join(c.Storage.DataDir, "logs")
}

const sample = `# watchcrew configuration

[backend]
url = "http://localhost:8000"
request_timeout = "20s"

[game]
id = "250523_HTSS"      # YYMMDD_<home><away>
status = "경기 진행 중"

[viewer]
name = "나"
# team = "Kia Tigers"   # defaults to the home team

[pacing]
min_interval = "3500ms"
max_interval = "4500ms"

[loop]
period = "15s"

[news]
use_backend = true
min_refresh = "30m"

# Offline headlines instead of the backend summary:
# [[news.feeds]]
# team = "HT"
# url = "https://example.com/tigers.rss"

[agents]
# file = "~/.watchcrew/agents.json"
watch = false
`

// InitFile writes a sample configuration to path.
func InitFile(path string) error {
	if fileExists(path) {
		return fmt.Errorf("configuration file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sample), 0644)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

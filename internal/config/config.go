package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	appDirName  = "tradebot"
	feedPath    = "/ws/user-feed"
	logFileName = "tradebot.log"
	defaultAPI  = "http://localhost:8000/api/v1"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

type Config struct {
	API     APIConfig     `yaml:"api"`
	Feed    FeedConfig    `yaml:"feed"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	UI      UIConfig      `yaml:"ui"`
}

type APIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	FeedURL           string        `yaml:"feed_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type FeedConfig struct {
	Reconnect          bool          `yaml:"reconnect"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PongTimeout        time.Duration `yaml:"pong_timeout"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

type UIConfig struct {
	SearchDebounce time.Duration `yaml:"search_debounce"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           defaultAPI,
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
		},
		Feed: FeedConfig{
			ReconnectBaseDelay: time.Second,
			ReconnectMaxDelay:  30 * time.Second,
			PingInterval:       30 * time.Second,
			PongTimeout:        60 * time.Second,
		},
		Storage: StorageConfig{
			Backend: StorageFile,
		},
		Log: LogConfig{
			Level: "info",
		},
		UI: UIConfig{
			SearchDebounce: 500 * time.Millisecond,
		},
	}
}

// Load reads the yaml file at path on top of the defaults, then applies
// .env and environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	// .env is optional; values already in the environment win.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TRADEBOT_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("TRADEBOT_FEED_URL"); v != "" {
		c.API.FeedURL = v
	}
	if v := os.Getenv("TRADEBOT_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("TRADEBOT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q", c.API.BaseURL)
	}
	switch c.Storage.Backend {
	case StorageFile, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	return nil
}

// FeedURL returns the configured feed URL or derives one from the REST
// base URL: http://host/api/v1 → ws://host/api/v1/ws/user-feed.
func (c *Config) FeedURL() string {
	if c.API.FeedURL != "" {
		return c.API.FeedURL
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return "ws://localhost:8000/api/v1" + feedPath
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s%s", scheme, u.Host, strings.TrimSuffix(u.Path, "/"), feedPath)
}

// StateDir returns the storage directory, defaulting to
// ~/.local/state/tradebot (respecting XDG_STATE_HOME).
func (c *Config) StateDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}

// LogPath returns the log file location.
func (c *Config) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.StateDir(), logFileName)
}

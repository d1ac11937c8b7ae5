package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppDirName is the per-user directory holding the usage database and shell config.
const AppDirName = "aion-terminal"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Terminal  TerminalConfig
	Shell     ShellConfig
	Store     StoreConfig
	Scraper   ScraperConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// TerminalConfig holds session manager tuning.
type TerminalConfig struct {
	DefaultCols    uint16        `envconfig:"TERMINAL_DEFAULT_COLS" default:"80"`
	DefaultRows    uint16        `envconfig:"TERMINAL_DEFAULT_ROWS" default:"24"`
	KillGrace      time.Duration `envconfig:"TERMINAL_KILL_GRACE" default:"3s"`
	DrainTimeout   time.Duration `envconfig:"TERMINAL_DRAIN_TIMEOUT" default:"500ms"`
	ReadBufferSize int           `envconfig:"TERMINAL_READ_BUFFER" default:"4096"`
}

// ShellConfig locates the shell resolution config file.
type ShellConfig struct {
	ConfigPath string `envconfig:"SHELL_CONFIG_PATH"`
	Watch      bool   `envconfig:"SHELL_CONFIG_WATCH" default:"true"`
}

// StoreConfig locates the usage database.
type StoreConfig struct {
	Path string `envconfig:"USAGE_DB_PATH"`
}

// ScraperConfig holds token scraper settings.
type ScraperConfig struct {
	Agent          string        `envconfig:"SCRAPER_AGENT" default:"claude-code"`
	PersistTimeout time.Duration `envconfig:"SCRAPER_PERSIST_TIMEOUT" default:"5s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Terminal: TerminalConfig{
			DefaultCols:    80,
			DefaultRows:    24,
			KillGrace:      3 * time.Second,
			DrainTimeout:   500 * time.Millisecond,
			ReadBufferSize: 4096,
		},
		Shell: ShellConfig{
			Watch: true,
		},
		Scraper: ScraperConfig{
			Agent:          "claude-code",
			PersistTimeout: 5 * time.Second,
		},
	}
}

// ResolvePaths fills empty file locations with defaults under the user's
// config directory and makes sure that directory exists.
func (c *Config) ResolvePaths() error {
	if c.Store.Path != "" && c.Shell.ConfigPath != "" {
		return nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return fmt.Errorf("failed to resolve config dir: %w", err)
	}
	dir := filepath.Join(base, AppDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create app dir: %w", err)
	}

	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(dir, "aion.db")
	}
	if c.Shell.ConfigPath == "" {
		c.Shell.ConfigPath = filepath.Join(dir, "shell.toml")
	}
	return nil
}

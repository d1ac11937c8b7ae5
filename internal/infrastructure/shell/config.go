package shell

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Shell selections accepted in Config.DefaultShell.
const (
	ShellZsh    = "zsh"
	ShellBash   = "bash"
	ShellFish   = "fish"
	ShellSh     = "sh"
	ShellCustom = "custom"
)

var (
	ErrInvalidConfig     = errors.New("invalid shell config")
	ErrUnsupportedFormat = errors.New("unsupported shell config format")
)

// Config selects the shell new sessions run.
type Config struct {
	DefaultShell string            `toml:"default_shell" yaml:"default_shell" json:"default_shell"`
	CustomPath   string            `toml:"custom_path,omitempty" yaml:"custom_path,omitempty" json:"custom_path,omitempty"`
	DefaultEnv   map[string]string `toml:"default_env" yaml:"default_env" json:"default_env"`
	LoginShell   bool              `toml:"login_shell" yaml:"login_shell" json:"login_shell"`
}

// DefaultConfig returns a zsh login shell with no extra environment.
func DefaultConfig() Config {
	return Config{
		DefaultShell: ShellZsh,
		DefaultEnv:   map[string]string{},
		LoginShell:   true,
	}
}

// Validate checks the shell selection.
func (c Config) Validate() error {
	switch c.DefaultShell {
	case ShellZsh, ShellBash, ShellFish, ShellSh:
		return nil
	case ShellCustom:
		if c.CustomPath == "" {
			return fmt.Errorf("%w: custom shell requires custom_path", ErrInvalidConfig)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown default_shell %q", ErrInvalidConfig, c.DefaultShell)
	}
}

func (c Config) clone() Config {
	c.DefaultEnv = maps.Clone(c.DefaultEnv)
	if c.DefaultEnv == nil {
		c.DefaultEnv = map[string]string{}
	}
	return c
}

// LoadFile reads the config at path. A missing file is created with
// defaults. Fields absent from the file keep their default values.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := SaveFile(path, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read shell config: %w", err)
	}

	cfg := DefaultConfig()
	if err := decode(path, data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse shell config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.clone(), nil
}

// SaveFile writes cfg to path, replacing the file atomically.
func SaveFile(path string, cfg Config) error {
	data, err := encode(path, cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create shell config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".shell-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write shell config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write shell config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write shell config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write shell config: %w", err)
	}
	return nil
}

func format(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func decode(path string, data []byte, cfg *Config) error {
	switch format(path) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".json":
		return sonic.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func encode(path string, cfg Config) ([]byte, error) {
	switch format(path) {
	case ".toml":
		return toml.Marshal(cfg)
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	case ".json":
		return sonic.MarshalIndent(cfg, "", "  ")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

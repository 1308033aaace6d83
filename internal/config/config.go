// Package config loads steno-history settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwulff/steno/history/internal/clipboard"
	"github.com/jwulff/steno/history/internal/daemon"
	"github.com/jwulff/steno/history/internal/db"

	"gopkg.in/yaml.v3"
)

// EnvSocket overrides the configured socket path.
const EnvSocket = "STENO_HISTORY_SOCKET"

// Config holds all settings.
type Config struct {
	Socket    string          `yaml:"socket"`
	Database  string          `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Clipboard ClipboardConfig `yaml:"clipboard"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// ClipboardConfig controls how the daemon writes to the clipboard.
// Backend is "system" or "osc52"; Tmux applies to osc52 only, and nil means
// detect from $TMUX.
type ClipboardConfig struct {
	Backend string `yaml:"backend"`
	Tmux    *bool  `yaml:"tmux"`
}

func appSupportDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Application Support", "Steno")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(appSupportDir(), "history.yaml")
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Socket:   daemon.SocketPath(),
		Database: db.DefaultDBPath(),
		Log: LogConfig{
			File:  filepath.Join(appSupportDir(), "history.log"),
			Level: "info",
		},
		Clipboard: ClipboardConfig{Backend: clipboard.BackendSystem},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// An empty path means DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(expandHome(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvSocket)); v != "" {
		cfg.Socket = v
	}

	cfg.Socket = expandHome(cfg.Socket)
	cfg.Database = expandHome(cfg.Database)
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.Socket == "" {
		return errors.New("config: socket is required")
	}
	if c.Database == "" {
		return errors.New("config: database is required")
	}
	switch c.Clipboard.Backend {
	case "", clipboard.BackendSystem, clipboard.BackendOSC52:
	default:
		return fmt.Errorf("config: unknown clipboard backend %q", c.Clipboard.Backend)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	return nil
}

// UseTmux resolves the clipboard tmux setting.
func (c Config) UseTmux() bool {
	if c.Clipboard.Tmux != nil {
		return *c.Clipboard.Tmux
	}
	return os.Getenv("TMUX") != ""
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

// Package config loads reposync's configuration.
//
// Values come from, in increasing priority: built-in defaults, a config
// file (TOML or YAML, found as reposync.{toml,yaml} in the working directory
// or the user config directory unless given explicitly), REPOSYNC_*
// environment variables and command-line flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/steveyegge/reposync/internal/lockfile"
	"github.com/steveyegge/reposync/internal/logging"
)

// EnvPrefix prefixes environment overrides: REPOSYNC_BRANCH,
// REPOSYNC_GIT_TIMEOUT, ...
const EnvPrefix = "REPOSYNC"

// FileName is the config file base name searched for when none is given.
const FileName = "reposync"

// Config is the effective configuration.
type Config struct {
	Workspace string        `mapstructure:"workspace"`
	Remote    string        `mapstructure:"remote"`
	Branch    string        `mapstructure:"branch"`
	Interval  time.Duration `mapstructure:"interval"`
	LockFile  string        `mapstructure:"lock_file"`
	Backend   string        `mapstructure:"backend"`

	Git       GitConfig       `mapstructure:"git"`
	Commit    CommitConfig    `mapstructure:"commit"`
	Log       LogConfig       `mapstructure:"log"`
	History   HistoryConfig   `mapstructure:"history"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// GitConfig configures the git backend.
type GitConfig struct {
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CommitConfig configures commits made by reposync.
type CommitConfig struct {
	AuthorName    string `mapstructure:"author_name"`
	AuthorEmail   string `mapstructure:"author_email"`
	MessagePrefix string `mapstructure:"message_prefix"`
}

// LogConfig configures the log destination and rotation.
type LogConfig struct {
	File       string `mapstructure:"file"`
	Format     string `mapstructure:"format"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// HistoryConfig configures the cycle history database.
type HistoryConfig struct {
	// Path is the sqlite file; empty disables history
	Path string `mapstructure:"path"`

	// Keep is the number of cycles retained
	Keep int `mapstructure:"keep"`
}

// DashboardConfig configures the live dashboard.
type DashboardConfig struct {
	// Port is the HTTP port; 0 disables the dashboard
	Port int `mapstructure:"port"`
}

// defaults holds every key with its default. Registering all keys also
// makes AutomaticEnv overrides visible to Unmarshal.
var defaults = map[string]any{
	"workspace":             "",
	"remote":                "",
	"branch":                "main",
	"interval":              5 * time.Minute,
	"lock_file":             "",
	"backend":               "git",
	"git.binary":            "git",
	"git.timeout":           2 * time.Minute,
	"commit.author_name":    "",
	"commit.author_email":   "",
	"commit.message_prefix": "reposync",
	"log.file":              "",
	"log.format":            logging.FormatText,
	"log.max_size_mb":       10,
	"log.max_backups":       5,
	"log.max_age_days":      30,
	"log.compress":          false,
	"history.path":          "",
	"history.keep":          1000,
	"dashboard.port":        0,
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	cfg, _ := Decode(NewViper())
	return cfg
}

// NewViper returns a viper instance with defaults and environment binding
// set up. Callers may bind flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (file, or the first reposync.{toml,yaml}
// found in the search path when file is empty) into v and returns the
// decoded configuration. A missing file is fine when none was requested.
// The result is not validated; call Validate.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		for _, dir := range SearchPaths() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return Decode(v)
}

// Decode converts the current state of v into a Config and fills in
// derived defaults.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Workspace != "" {
		if abs, err := filepath.Abs(expandHome(cfg.Workspace)); err == nil {
			cfg.Workspace = abs
		}
	}
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.History.Path = expandHome(cfg.History.Path)
	cfg.LockFile = expandHome(cfg.LockFile)

	return &cfg, nil
}

// SearchPaths lists the directories searched for reposync.{toml,yaml}.
func SearchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "reposync"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "reposync"))
	}
	return paths
}

// DefaultPath is where `config init` writes when no path is given.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "reposync", FileName+".toml")
	}
	return FileName + ".toml"
}

// LockPath returns the configured lock file, or the default next to the
// workspace.
func (c *Config) LockPath() string {
	if c.LockFile != "" {
		return c.LockFile
	}
	return lockfile.DefaultPath(c.Workspace)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Workspace == "" {
		errs = append(errs, errors.New("workspace is required"))
	}
	if c.Remote == "" {
		errs = append(errs, errors.New("remote is required"))
	}
	if c.Branch == "" {
		errs = append(errs, errors.New("branch is required"))
	}
	if c.Backend == "" {
		errs = append(errs, errors.New("backend is required"))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.Git.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("git.timeout must be positive, got %s", c.Git.Timeout))
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be %q or %q, got %q",
			logging.FormatText, logging.FormatJSON, c.Log.Format))
	}
	if c.History.Keep < 0 {
		errs = append(errs, fmt.Errorf("history.keep must not be negative, got %d", c.History.Keep))
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port))
	}

	return errors.Join(errs...)
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// fileView is the on-disk shape of Config. Durations are written as Go
// duration strings ("5m0s"), which viper decodes back.
type fileView struct {
	Workspace string `toml:"workspace" yaml:"workspace"`
	Remote    string `toml:"remote" yaml:"remote"`
	Branch    string `toml:"branch" yaml:"branch"`
	Interval  string `toml:"interval" yaml:"interval"`
	LockFile  string `toml:"lock_file,omitempty" yaml:"lock_file,omitempty"`
	Backend   string `toml:"backend" yaml:"backend"`

	Git struct {
		Binary  string `toml:"binary" yaml:"binary"`
		Timeout string `toml:"timeout" yaml:"timeout"`
	} `toml:"git" yaml:"git"`

	Commit struct {
		AuthorName    string `toml:"author_name,omitempty" yaml:"author_name,omitempty"`
		AuthorEmail   string `toml:"author_email,omitempty" yaml:"author_email,omitempty"`
		MessagePrefix string `toml:"message_prefix" yaml:"message_prefix"`
	} `toml:"commit" yaml:"commit"`

	Log struct {
		File       string `toml:"file,omitempty" yaml:"file,omitempty"`
		Format     string `toml:"format" yaml:"format"`
		MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
		Compress   bool   `toml:"compress" yaml:"compress"`
	} `toml:"log" yaml:"log"`

	History struct {
		Path string `toml:"path,omitempty" yaml:"path,omitempty"`
		Keep int    `toml:"keep" yaml:"keep"`
	} `toml:"history" yaml:"history"`

	Dashboard struct {
		Port int `toml:"port" yaml:"port"`
	} `toml:"dashboard" yaml:"dashboard"`
}

func (c *Config) view() fileView {
	var f fileView
	f.Workspace = c.Workspace
	f.Remote = c.Remote
	f.Branch = c.Branch
	f.Interval = c.Interval.String()
	f.LockFile = c.LockFile
	f.Backend = c.Backend
	f.Git.Binary = c.Git.Binary
	f.Git.Timeout = c.Git.Timeout.String()
	f.Commit.AuthorName = c.Commit.AuthorName
	f.Commit.AuthorEmail = c.Commit.AuthorEmail
	f.Commit.MessagePrefix = c.Commit.MessagePrefix
	f.Log.File = c.Log.File
	f.Log.Format = c.Log.Format
	f.Log.MaxSizeMB = c.Log.MaxSizeMB
	f.Log.MaxBackups = c.Log.MaxBackups
	f.Log.MaxAgeDays = c.Log.MaxAgeDays
	f.Log.Compress = c.Log.Compress
	f.History.Path = c.History.Path
	f.History.Keep = c.History.Keep
	f.Dashboard.Port = c.Dashboard.Port
	return f
}

// WriteTOML writes c to path as TOML. An existing file is only replaced
// when force is set.
func (c *Config) WriteTOML(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("# reposync configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(c.view()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// YAML renders c as YAML.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c.view()); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Watch calls onChange with the re-decoded configuration each time the
// config file loaded into v is written or replaced. Decode or validation
// errors are passed through; the caller decides whether to keep the old
// configuration. v must have a config file loaded.
func Watch(v *viper.Viper, onChange func(*Config, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Decode(v)
		if err == nil {
			err = cfg.Validate()
		}
		onChange(cfg, err)
	})
	v.WatchConfig()
}

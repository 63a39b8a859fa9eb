// Copyright 2024-2026 Aiku AI

// Package config loads the bot configuration from a YAML file, a .env file
// and SMARTBOT_* environment variables, in that order of precedence from
// lowest to highest.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/aiku/smartbot/pkg/decoration"
	"github.com/aiku/smartbot/pkg/dispatcher"
)

//go:embed example-config.yaml
var ExampleConfig string

const (
	NetworkMattermost = "mattermost"
	NetworkMatrix     = "matrix"
)

// Config is the full bot configuration. Secrets are never read from the
// YAML file.
type Config struct {
	Network             string `yaml:"network"`
	Prefix              string `yaml:"prefix"`
	ParseMode           string `yaml:"parse_mode"`
	RegisterBaseModules bool   `yaml:"register_base_modules"`
	SessionFile         string `yaml:"session_file"`

	Mattermost MattermostConfig  `yaml:"mattermost"`
	Matrix     MatrixConfig      `yaml:"matrix"`
	Logging    zeroconfig.Config `yaml:"logging"`

	// Session is a token from SMARTBOT_SESSION. When empty the session file
	// is tried.
	Session string `yaml:"-"`
}

type MattermostConfig struct {
	ServerURL string `yaml:"server_url"`
	Login     string `yaml:"login"`
	Password  string `yaml:"-"`
	PerPage   int    `yaml:"per_page"`
}

type MatrixConfig struct {
	HomeserverURL string `yaml:"homeserver_url"`
	Username      string `yaml:"username"`
	Password      string `yaml:"-"`
	DeviceName    string `yaml:"device_name"`
	PageSize      int    `yaml:"page_size"`
}

// Load reads the config at path, upgrades it against [ExampleConfig] and
// applies environment overrides. A missing file means the example is used
// as-is. With save the upgraded file is written back to path.
func Load(path string, save bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		data = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	upgraded, err := Upgrade(data)
	if err != nil {
		return nil, err
	}
	if save {
		if err := os.WriteFile(path, upgraded, 0o600); err != nil {
			return nil, fmt.Errorf("failed to save upgraded config: %w", err)
		}
	}
	cfg, err := Parse(upgraded)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a complete config document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values the dispatcher does not check itself.
func (c *Config) Validate() error {
	if _, err := decoration.ParseParseMode(c.ParseMode); err != nil {
		return fmt.Errorf("%w: %w", dispatcher.ErrBadParseMode, err)
	}
	switch c.Network {
	case NetworkMattermost:
		if c.Mattermost.ServerURL == "" {
			return errors.New("mattermost.server_url is required")
		}
	case NetworkMatrix:
		if c.Matrix.HomeserverURL == "" {
			return errors.New("matrix.homeserver_url is required")
		}
	default:
		return fmt.Errorf("unknown network %q (want %q or %q)", c.Network, NetworkMattermost, NetworkMatrix)
	}
	return nil
}

// DispatcherOptions maps the config onto dispatcher options. The base
// modules are left for the caller to fill in.
func (c *Config) DispatcherOptions() (dispatcher.Options, error) {
	mode, err := decoration.ParseParseMode(c.ParseMode)
	if err != nil {
		return dispatcher.Options{}, fmt.Errorf("%w: %w", dispatcher.ErrBadParseMode, err)
	}
	return dispatcher.Options{
		Session:             c.Session,
		Prefix:              c.Prefix,
		ParseMode:           mode,
		RegisterBaseModules: c.RegisterBaseModules,
		SessionFile:         c.SessionFile,
	}, nil
}

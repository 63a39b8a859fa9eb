// Copyright 2024-2026 Aiku AI

package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envOverrides holds the SMARTBOT_* variables. Nil pointers leave the file
// value alone.
type envOverrides struct {
	Network             *string `env:"NETWORK"`
	Prefix              *string `env:"PREFIX"`
	ParseMode           *string `env:"PARSE_MODE"`
	RegisterBaseModules *bool   `env:"REGISTER_BASE_MODULES"`
	SessionFile         *string `env:"SESSION_FILE"`
	Session             string  `env:"SESSION"`

	MattermostURL      *string `env:"MATTERMOST_URL"`
	MattermostLogin    *string `env:"MATTERMOST_LOGIN"`
	MattermostPassword string  `env:"MATTERMOST_PASSWORD"`

	MatrixHomeserver *string `env:"MATRIX_HOMESERVER"`
	MatrixUsername   *string `env:"MATRIX_USERNAME"`
	MatrixPassword   string  `env:"MATRIX_PASSWORD"`
}

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SMARTBOT_"

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides c with SMARTBOT_* variables from environ, or from the
// process environment when environ is nil.
func (c *Config) ApplyEnv(environ map[string]string) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	setIfPresent(&c.Network, o.Network)
	setIfPresent(&c.Prefix, o.Prefix)
	setIfPresent(&c.ParseMode, o.ParseMode)
	setIfPresent(&c.RegisterBaseModules, o.RegisterBaseModules)
	setIfPresent(&c.SessionFile, o.SessionFile)
	setIfPresent(&c.Mattermost.ServerURL, o.MattermostURL)
	setIfPresent(&c.Mattermost.Login, o.MattermostLogin)
	setIfPresent(&c.Matrix.HomeserverURL, o.MatrixHomeserver)
	setIfPresent(&c.Matrix.Username, o.MatrixUsername)
	c.Session = o.Session
	c.Mattermost.Password = o.MattermostPassword
	c.Matrix.Password = o.MatrixPassword
	return nil
}

func setIfPresent[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

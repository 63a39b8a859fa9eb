// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command smartbot runs a userbot that treats the account's own messages
// starting with the configured prefix as commands. It connects to Mattermost
// or Matrix, and keeps the session token in a file when it stops
// unexpectedly so the next start can resume without logging in again.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	flag "maunium.net/go/mauflag"

	"github.com/aiku/smartbot/pkg/basemodules"
	"github.com/aiku/smartbot/pkg/config"
	"github.com/aiku/smartbot/pkg/dispatcher"
	"github.com/aiku/smartbot/pkg/network/matrix"
	"github.com/aiku/smartbot/pkg/network/mattermost"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath = flag.MakeFull("c", "config", "The path to your config file.", "config.yaml").String()
	saveConfig = flag.MakeFull("s", "save-config", "Write the upgraded config back to the config file.", "false").Bool()
	envFile    = flag.MakeFull("e", "env-file", "The path to an optional .env file.", ".env").String()
	version    = flag.MakeFull("v", "version", "View version and quit.", "false").Bool()
)

var wantHelp, _ = flag.MakeHelpFlag()

func main() {
	flag.SetHelpTitles(
		"smartbot - A command-dispatching userbot for Mattermost and Matrix.",
		"smartbot [-hsv] [-c <path>] [-e <path>]",
	)
	if err := flag.Parse(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	} else if *version {
		fmt.Printf("smartbot %s (commit %s, built %s)\n", Tag, Commit, BuildTime)
		os.Exit(0)
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(10)
	}
	cfg, err := config.Load(*configPath, *saveConfig)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(10)
	}
	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Invalid config:", err)
		os.Exit(11)
	}
	log, err := cfg.Logging.Compile()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(12)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, *log); err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Str("version", Tag).
		Str("commit", Commit).
		Str("network", cfg.Network).
		Msg("Initializing smartbot")

	opts, err := cfg.DispatcherOptions()
	if err != nil {
		return err
	}
	if opts.Session == "" {
		opts.Session, err = dispatcher.ReadSessionFile(cfg.SessionFile)
		if err != nil {
			return err
		}
		if opts.Session != "" {
			log.Info().Str("session_file", cfg.SessionFile).Msg("Resuming session from file")
		}
	}
	opts.BaseModules = basemodules.All()

	dp, err := dispatcher.New(newConnector(cfg, log), opts, log)
	if err != nil {
		return err
	}
	return dp.Start(ctx)
}

func newConnector(cfg *config.Config, log zerolog.Logger) dispatcher.Connector {
	if cfg.Network == config.NetworkMatrix {
		return &matrix.Connector{
			HomeserverURL: cfg.Matrix.HomeserverURL,
			Username:      cfg.Matrix.Username,
			Password:      cfg.Matrix.Password,
			DeviceName:    cfg.Matrix.DeviceName,
			PageSize:      cfg.Matrix.PageSize,
			Log:           log,
		}
	}
	return &mattermost.Connector{
		ServerURL: cfg.Mattermost.ServerURL,
		Login:     cfg.Mattermost.Login,
		Password:  cfg.Mattermost.Password,
		PerPage:   cfg.Mattermost.PerPage,
		Log:       log,
	}
}

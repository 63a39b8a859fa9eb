// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package mattermost implements the dispatcher's protocol client over the
// Mattermost REST and WebSocket APIs.
//
// The session token saved by the dispatcher is the Mattermost personal
// access or session token. When it is missing or rejected, the connector
// logs in with the configured login and password.
package mattermost

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"github.com/aiku/smartbot/pkg/decoration"
	"github.com/aiku/smartbot/pkg/dispatcher"
)

// DefaultPerPage is the page size used when iterating channel history.
const DefaultPerPage = 200

var ErrNoCredentials = errors.New("no session token and no login credentials")

// Connector logs in to a Mattermost server.
type Connector struct {
	ServerURL string
	Login     string
	Password  string
	// PerPage is the history page size. Zero means [DefaultPerPage].
	PerPage int
	Log     zerolog.Logger
}

var _ dispatcher.Connector = (*Connector)(nil)

func (c *Connector) Connect(ctx context.Context, session string) (dispatcher.Client, error) {
	log := c.Log.With().Str("component", "mm_client").Logger()
	serverURL := strings.TrimSuffix(c.ServerURL, "/")
	api := model.NewAPIv4Client(serverURL)

	var me *model.User
	if session != "" {
		api.SetToken(session)
		var err error
		me, _, err = api.GetMe(ctx, "")
		if err != nil {
			if c.Login == "" {
				return nil, fmt.Errorf("authentication failed: %w", err)
			}
			log.Warn().Err(err).Msg("Saved session was rejected, logging in with password")
			me = nil
		}
	}
	if me == nil {
		if c.Login == "" || c.Password == "" {
			return nil, ErrNoCredentials
		}
		var err error
		me, _, err = api.Login(ctx, c.Login, c.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to log in: %w", err)
		}
	}
	log.Info().Str("user_id", me.Id).Str("username", me.Username).Msg("Authenticated")

	perPage := c.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Client{
		api:       api,
		serverURL: serverURL,
		userID:    me.Id,
		perPage:   perPage,
		parseMode: decoration.ParseModeHTML,
		stopChan:  make(chan struct{}),
		log:       log,
	}, nil
}

// httpToWS converts an HTTP(S) URL to a WS(S) URL.
func httpToWS(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	if strings.HasPrefix(url, "http://") {
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

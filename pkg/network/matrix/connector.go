// Copyright 2024-2026 Aiku AI

// Package matrix implements the dispatcher's protocol client over the Matrix
// client-server API.
//
// The session token is the Matrix access token. Restoring it skips the
// password login; the user and device are recovered with whoami.
package matrix

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"

	"github.com/aiku/smartbot/pkg/decoration"
	"github.com/aiku/smartbot/pkg/dispatcher"
)

// DefaultPageSize is the number of events requested per /messages call.
const DefaultPageSize = 100

var ErrNoCredentials = errors.New("no access token and no login credentials")

// Connector logs in to a Matrix homeserver.
type Connector struct {
	HomeserverURL string
	Username      string
	Password      string
	DeviceName    string
	// PageSize is the history page size. Zero means [DefaultPageSize].
	PageSize int
	Log      zerolog.Logger
}

var _ dispatcher.Connector = (*Connector)(nil)

func (c *Connector) Connect(ctx context.Context, session string) (dispatcher.Client, error) {
	log := c.Log.With().Str("component", "matrix_client").Logger()
	cli, err := mautrix.NewClient(c.HomeserverURL, "", session)
	if err != nil {
		return nil, fmt.Errorf("failed to create matrix client: %w", err)
	}
	cli.Log = log

	restored := false
	if session != "" {
		resp, err := cli.Whoami(ctx)
		if err == nil {
			cli.UserID = resp.UserID
			cli.DeviceID = resp.DeviceID
			restored = true
		} else if c.Username == "" {
			return nil, fmt.Errorf("authentication failed: %w", err)
		} else {
			log.Warn().Err(err).Msg("Saved access token was rejected, logging in with password")
			cli.AccessToken = ""
		}
	}
	if !restored {
		if c.Username == "" || c.Password == "" {
			return nil, ErrNoCredentials
		}
		_, err = cli.Login(ctx, &mautrix.ReqLogin{
			Type: mautrix.AuthTypePassword,
			Identifier: mautrix.UserIdentifier{
				Type: mautrix.IdentifierTypeUser,
				User: c.Username,
			},
			Password:                 c.Password,
			InitialDeviceDisplayName: c.DeviceName,
			StoreCredentials:         true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to log in: %w", err)
		}
	}
	log.Info().
		Str("user_id", string(cli.UserID)).
		Str("device_id", string(cli.DeviceID)).
		Bool("restored", restored).
		Msg("Authenticated")

	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	client := &Client{
		cli:       cli,
		pageSize:  pageSize,
		parseMode: decoration.ParseModeHTML,
		log:       log,
	}
	client.registerSyncHandlers()
	return client, nil
}

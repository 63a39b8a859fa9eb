// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mattermost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"github.com/aiku/smartbot/pkg/decoration"
	"github.com/aiku/smartbot/pkg/decoration/mdhtml"
	"github.com/aiku/smartbot/pkg/dispatcher"
	"github.com/aiku/smartbot/pkg/network/mattermost/mmfmt"
)

var ErrWebSocketClosed = errors.New("websocket event channel closed")

// Client is an authenticated Mattermost user session.
type Client struct {
	api       *model.Client4
	serverURL string
	userID    string
	perPage   int

	mu        sync.RWMutex
	parseMode decoration.ParseMode
	handlers  []dispatcher.EventHandler
	wsClient  *model.WebSocketClient

	stopOnce sync.Once
	stopChan chan struct{}
	log      zerolog.Logger
}

var _ dispatcher.Client = (*Client)(nil)

// UserID returns the Mattermost ID of the logged-in account.
func (c *Client) UserID() string {
	return c.userID
}

func (c *Client) SaveSession() string {
	return c.api.AuthToken
}

func (c *Client) SetParseMode(mode decoration.ParseMode) {
	c.mu.Lock()
	c.parseMode = mode
	c.mu.Unlock()
}

func (c *Client) AddHandler(handler dispatcher.EventHandler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, handler)
	c.mu.Unlock()
}

// render converts decoration output in the configured parse mode to
// Mattermost markdown.
func (c *Client) render(text string) string {
	c.mu.RLock()
	mode := c.parseMode
	c.mu.RUnlock()
	if mode == decoration.ParseModeMarkdown {
		text = mdhtml.Convert(text)
	}
	return mmfmt.FromHTML(text)
}

// RunUntilDisconnected opens the WebSocket and delivers posted events until
// ctx is done, Disconnect is called or the socket closes. There is no
// automatic reconnect.
func (c *Client) RunUntilDisconnected(ctx context.Context) error {
	wsURL := httpToWS(c.serverURL)
	ws, err := model.NewWebSocketClient4(wsURL, c.api.AuthToken)
	if err != nil {
		return fmt.Errorf("failed to create websocket client: %w", err)
	}
	c.mu.Lock()
	c.wsClient = ws
	c.mu.Unlock()
	defer c.closeWebSocket()

	ws.Listen()
	c.log.Info().Str("ws_url", wsURL).Msg("WebSocket connected")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stopChan:
			return nil
		case evt, ok := <-ws.EventChannel:
			if !ok {
				if ws.ListenError != nil {
					return fmt.Errorf("%w: %w", ErrWebSocketClosed, ws.ListenError)
				}
				return ErrWebSocketClosed
			}
			if evt == nil {
				continue
			}
			c.handleEvent(ctx, evt)
		}
	}
}

func (c *Client) closeWebSocket() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wsClient != nil {
		c.wsClient.Close()
		c.wsClient = nil
	}
}

// Disconnect closes the WebSocket connection and stops the event loop.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	c.closeWebSocket()
}

// handleEvent delivers posted events to the handlers. Other event types are
// ignored.
func (c *Client) handleEvent(ctx context.Context, evt *model.WebSocketEvent) {
	if evt.EventType() != model.WebsocketEventPosted {
		c.log.Trace().Str("event_type", string(evt.EventType())).Msg("Unhandled event type")
		return
	}
	post, err := parsePostedEvent(evt)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to parse posted event")
		return
	}
	c.mu.RLock()
	handlers := c.handlers
	c.mu.RUnlock()
	msg := &Event{message: c.newMessage(post)}
	for _, h := range handlers {
		h(ctx, msg)
	}
}

func parsePostedEvent(evt *model.WebSocketEvent) (*model.Post, error) {
	postJSON, ok := evt.GetData()["post"].(string)
	if !ok {
		return nil, fmt.Errorf("posted event missing post data")
	}
	var post model.Post
	if err := json.Unmarshal([]byte(postJSON), &post); err != nil {
		return nil, fmt.Errorf("failed to unmarshal post: %w", err)
	}
	return &post, nil
}

// IterMessages pages backwards through the channel history, newest first.
func (c *Client) IterMessages(ctx context.Context, chatID string, opts dispatcher.IterOptions) iter.Seq2[dispatcher.Message, error] {
	return func(yield func(dispatcher.Message, error) bool) {
		anchor := opts.Before
		count := 0
		for {
			var postList *model.PostList
			var err error
			if anchor == "" {
				postList, _, err = c.api.GetPostsForChannel(ctx, chatID, 0, c.perPage, "", false, false)
			} else {
				postList, _, err = c.api.GetPostsBefore(ctx, chatID, anchor, 0, c.perPage, "", false, false)
			}
			if err != nil {
				yield(nil, fmt.Errorf("failed to fetch posts: %w", err))
				return
			}
			if postList == nil || len(postList.Order) == 0 {
				return
			}
			for _, postID := range postList.Order {
				post := postList.Posts[postID]
				if post == nil {
					continue
				}
				if opts.FromSelf && (post.UserId != c.userID || isServicePost(post)) {
					continue
				}
				if !yield(c.newMessage(post), nil) {
					return
				}
				count++
				if opts.Limit > 0 && count >= opts.Limit {
					return
				}
			}
			if len(postList.Order) < c.perPage {
				return
			}
			anchor = postList.Order[len(postList.Order)-1]
		}
	}
}

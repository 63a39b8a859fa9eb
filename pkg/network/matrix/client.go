// Copyright 2024-2026 Aiku AI

package matrix

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/smartbot/pkg/decoration"
	"github.com/aiku/smartbot/pkg/decoration/mdhtml"
	"github.com/aiku/smartbot/pkg/dispatcher"
)

// Client is a logged-in Matrix session.
type Client struct {
	cli      *mautrix.Client
	pageSize int

	mu        sync.RWMutex
	parseMode decoration.ParseMode
	handlers  []dispatcher.EventHandler

	stopOnce sync.Once
	log      zerolog.Logger
}

var _ dispatcher.Client = (*Client)(nil)

// UserID returns the Matrix ID of the logged-in account.
func (c *Client) UserID() id.UserID {
	return c.cli.UserID
}

func (c *Client) SaveSession() string {
	return c.cli.AccessToken
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

func (c *Client) registerSyncHandlers() {
	syncer, ok := c.cli.Syncer.(mautrix.ExtensibleSyncer)
	if !ok {
		c.log.Warn().Msg("Syncer does not accept handlers, no events will be delivered")
		return
	}
	// Events from the initial sync happened before this run.
	syncer.OnSync(func(_ context.Context, _ *mautrix.RespSync, since string) bool {
		return since != ""
	})
	syncer.OnEventType(event.EventMessage, c.handleMessage)
}

func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	content := evt.Content.AsMessage()
	if content.RelatesTo != nil && content.RelatesTo.Type == event.RelReplace {
		return
	}
	c.mu.RLock()
	handlers := c.handlers
	c.mu.RUnlock()
	msg := &Event{message: c.newMessage(evt)}
	for _, h := range handlers {
		h(ctx, msg)
	}
}

// RunUntilDisconnected syncs until ctx is done or Disconnect is called.
func (c *Client) RunUntilDisconnected(ctx context.Context) error {
	c.log.Info().Msg("Starting sync")
	err := c.cli.SyncWithContext(ctx)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

func (c *Client) Disconnect() {
	c.stopOnce.Do(func() {
		c.cli.StopSync()
	})
}

// render converts decoration output in the configured parse mode to message
// content.
func (c *Client) render(text string) *event.MessageEventContent {
	c.mu.RLock()
	mode := c.parseMode
	c.mu.RUnlock()
	if mode == decoration.ParseModeMarkdown {
		text = mdhtml.Convert(text)
	}
	content := format.HTMLToContent(toMatrixHTML(text))
	return &content
}

// IterMessages pages backwards through the room timeline with /messages.
func (c *Client) IterMessages(ctx context.Context, chatID string, opts dispatcher.IterOptions) iter.Seq2[dispatcher.Message, error] {
	return func(yield func(dispatcher.Message, error) bool) {
		roomID := id.RoomID(chatID)
		// The anchor may be anyone's message, so senders are filtered here
		// rather than by the server.
		filter := &mautrix.FilterPart{Types: []event.Type{event.EventMessage}}
		seenAnchor := opts.Before == ""
		from := ""
		count := 0
		for {
			resp, err := c.cli.Messages(ctx, roomID, from, "", mautrix.DirectionBackward, filter, c.pageSize)
			if err != nil {
				yield(nil, fmt.Errorf("failed to fetch messages: %w", err))
				return
			}
			for _, evt := range resp.Chunk {
				if !seenAnchor {
					seenAnchor = evt.ID == id.EventID(opts.Before)
					continue
				}
				if !c.isVisible(evt) || (opts.FromSelf && evt.Sender != c.cli.UserID) {
					continue
				}
				if !yield(c.newMessage(evt), nil) {
					return
				}
				count++
				if opts.Limit > 0 && count >= opts.Limit {
					return
				}
			}
			if resp.End == "" || len(resp.Chunk) == 0 || resp.End == from {
				return
			}
			from = resp.End
		}
	}
}

// isVisible parses evt and reports whether it is a message that still has
// content and is not an edit.
func (c *Client) isVisible(evt *event.Event) bool {
	if evt.Type.Type != event.EventMessage.Type || evt.Unsigned.RedactedBecause != nil {
		return false
	}
	if evt.Content.Parsed == nil {
		if err := evt.Content.ParseRaw(evt.Type); err != nil && !errors.Is(err, event.ErrContentAlreadyParsed) {
			c.log.Debug().Err(err).Str("event_id", string(evt.ID)).Msg("Failed to parse history event")
			return false
		}
	}
	content := evt.Content.AsMessage()
	if content.RelatesTo != nil && content.RelatesTo.Type == event.RelReplace {
		return false
	}
	return content.MsgType != "" || content.Body != ""
}

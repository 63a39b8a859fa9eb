// Copyright 2024-2026 Aiku AI

package matrix

import (
	"context"
	"fmt"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/smartbot/pkg/dispatcher"
)

// message wraps a room message event.
type message struct {
	client *Client
	evt    *event.Event
}

var _ dispatcher.Message = (*message)(nil)

func (c *Client) newMessage(evt *event.Event) *message {
	return &message{client: c, evt: evt}
}

func (m *message) ID() string     { return string(m.evt.ID) }
func (m *message) ChatID() string { return string(m.evt.RoomID) }
func (m *message) Outgoing() bool { return m.evt.Sender == m.client.cli.UserID }

// Text returns the body without the quoted reply fallback some clients
// still prepend to replies.
func (m *message) Text() string {
	content := m.evt.Content.AsMessage()
	if content.RelatesTo.GetReplyTo() == "" {
		return content.Body
	}
	stripped := *content
	stripped.RemoveReplyFallback()
	return stripped.Body
}

// IsService reports whether the event is anything but a live room message.
func (m *message) IsService() bool {
	return m.evt.Type.Type != event.EventMessage.Type || m.evt.Unsigned.RedactedBecause != nil
}

// Edit sends an m.replace edit of the message.
func (m *message) Edit(ctx context.Context, text string) error {
	content := m.client.render(text)
	content.SetEdit(m.evt.ID)
	if _, err := m.client.cli.SendMessageEvent(ctx, m.evt.RoomID, event.EventMessage, content); err != nil {
		return fmt.Errorf("failed to send edit: %w", err)
	}
	return nil
}

// Delete redacts the message.
func (m *message) Delete(ctx context.Context) error {
	if _, err := m.client.cli.RedactEvent(ctx, m.evt.RoomID, m.evt.ID); err != nil {
		return fmt.Errorf("failed to redact event: %w", err)
	}
	return nil
}

// Event is a room message. Replies use m.in_reply_to.
type Event struct {
	*message
}

var _ dispatcher.Event = (*Event)(nil)

func (e *Event) replyTo() id.EventID {
	return e.evt.Content.AsMessage().RelatesTo.GetReplyTo()
}

func (e *Event) IsReply() bool {
	return e.replyTo() != ""
}

func (e *Event) ReplyMessage(ctx context.Context) (dispatcher.Message, error) {
	target := e.replyTo()
	if target == "" {
		return nil, nil
	}
	evt, err := e.client.cli.GetEvent(ctx, e.evt.RoomID, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get replied event: %w", err)
	}
	if evt.Content.Parsed == nil {
		// Unknown or state event types fail to parse and count as service
		// messages, so the error is only logged.
		if err := evt.Content.ParseRaw(evt.Type); err != nil {
			e.client.log.Debug().Err(err).Str("event_id", string(target)).Msg("Failed to parse replied event")
		}
	}
	return e.client.newMessage(evt), nil
}

// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dispatcher

import (
	"context"
	"iter"

	"github.com/aiku/smartbot/pkg/decoration"
)

// Message is a chat message the client can act on.
type Message interface {
	ID() string
	ChatID() string
	Text() string
	// Outgoing reports whether the message was sent by the logged-in account.
	Outgoing() bool
	// IsService reports whether the message is a system notice (joins,
	// header changes and the like) rather than user content.
	IsService() bool
	Edit(ctx context.Context, text string) error
	Delete(ctx context.Context) error
}

// Event is an inbound message event.
type Event interface {
	Message
	IsReply() bool
	// ReplyMessage fetches the message this event replies to. It returns nil
	// when the event is not a reply and an error wrapping
	// [ErrReplyUnavailable] when the target cannot be acted on by itself.
	ReplyMessage(ctx context.Context) (Message, error)
}

// IterOptions filters [Client.IterMessages].
type IterOptions struct {
	// Limit caps the number of messages yielded. Zero means no limit.
	Limit int
	// FromSelf restricts the iteration to messages sent by the logged-in account.
	FromSelf bool
	// Before, if set, starts iteration strictly before the message with this ID.
	Before string
}

// EventHandler receives every message event seen by the client.
type EventHandler func(ctx context.Context, evt Event)

// Client is a live protocol session.
type Client interface {
	// SaveSession returns a token that lets a later [Connector.Connect] call
	// resume this session without logging in again.
	SaveSession() string
	SetParseMode(mode decoration.ParseMode)
	// AddHandler subscribes handler to message events. Handlers are only
	// called while RunUntilDisconnected is running.
	AddHandler(handler EventHandler)
	// RunUntilDisconnected blocks until ctx is done or the connection is lost.
	// It returns nil when ctx ended the run.
	RunUntilDisconnected(ctx context.Context) error
	// IterMessages yields messages of a chat from newest to oldest.
	IterMessages(ctx context.Context, chatID string, opts IterOptions) iter.Seq2[Message, error]
	Disconnect()
}

// Connector establishes protocol sessions.
type Connector interface {
	// Connect logs in, reusing session when it is not empty.
	Connect(ctx context.Context, session string) (Client, error)
}

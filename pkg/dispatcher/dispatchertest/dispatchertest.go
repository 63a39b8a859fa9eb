// Copyright 2024-2026 Aiku AI

// Package dispatchertest provides an in-memory protocol client for testing
// the dispatcher and command modules without a chat server.
package dispatchertest

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strconv"
	"sync"

	"github.com/aiku/smartbot/pkg/decoration"
	"github.com/aiku/smartbot/pkg/dispatcher"
)

// ErrConnectionLost is returned by RunUntilDisconnected after LoseConnection.
var ErrConnectionLost = errors.New("connection lost")

// Connector hands out a single [Client].
type Connector struct {
	Client *Client
	// Err, if set, is returned by Connect instead of the client.
	Err error

	mu       sync.Mutex
	sessions []string
}

var _ dispatcher.Connector = (*Connector)(nil)

// NewConnector returns a connector whose client issues token as its session.
func NewConnector(token string) *Connector {
	return &Connector{Client: NewClient(token)}
}

func (c *Connector) Connect(_ context.Context, session string) (dispatcher.Client, error) {
	c.mu.Lock()
	c.sessions = append(c.sessions, session)
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Client, nil
}

// Sessions returns the session tokens passed to Connect.
func (c *Connector) Sessions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.sessions)
}

// Client is an in-memory chat with a history per chat ID.
type Client struct {
	// DeleteErr, if set, is returned by every Delete call.
	DeleteErr error

	mu           sync.Mutex
	token        string
	parseMode    decoration.ParseMode
	handlers     []dispatcher.EventHandler
	chats        map[string][]*Message
	nextID       int
	deleted      []string
	edits        map[string][]string
	runCtx       context.Context
	running      chan struct{}
	lost         chan error
	disconnected int
}

var _ dispatcher.Client = (*Client)(nil)

func NewClient(token string) *Client {
	return &Client{
		token:   token,
		chats:   make(map[string][]*Message),
		edits:   make(map[string][]string),
		running: make(chan struct{}),
		lost:    make(chan error, 1),
	}
}

func (c *Client) SaveSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) SetParseMode(mode decoration.ParseMode) {
	c.mu.Lock()
	c.parseMode = mode
	c.mu.Unlock()
}

func (c *Client) ParseMode() decoration.ParseMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parseMode
}

func (c *Client) AddHandler(handler dispatcher.EventHandler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, handler)
	c.mu.Unlock()
}

// Running is closed once RunUntilDisconnected has started.
func (c *Client) Running() <-chan struct{} {
	return c.running
}

func (c *Client) RunUntilDisconnected(ctx context.Context) error {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()
	close(c.running)
	select {
	case <-ctx.Done():
		return nil
	case err := <-c.lost:
		return err
	}
}

// LoseConnection makes RunUntilDisconnected return err.
func (c *Client) LoseConnection(err error) {
	if err == nil {
		err = ErrConnectionLost
	}
	c.lost <- err
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	c.disconnected++
	c.mu.Unlock()
}

// Disconnected returns how many times Disconnect was called.
func (c *Client) Disconnected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// AddMessage appends a message to the chat history without emitting it.
func (c *Client) AddMessage(chatID, text string, outgoing bool) *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	msg := &Message{client: c, id: strconv.Itoa(c.nextID), chatID: chatID, text: text, outgoing: outgoing}
	c.chats[chatID] = append(c.chats[chatID], msg)
	return msg
}

// AddServiceMessage appends a system notice to the chat history.
func (c *Client) AddServiceMessage(chatID, text string) *Message {
	msg := c.AddMessage(chatID, text, false)
	msg.service = true
	return msg
}

// NewEvent adds a message to the history and wraps it as an event. replyTo
// may be nil.
func (c *Client) NewEvent(chatID, text string, outgoing bool, replyTo *Message) *Event {
	return &Event{Message: c.AddMessage(chatID, text, outgoing), replyTo: replyTo}
}

// Emit delivers evt to every handler with the context of the running
// RunUntilDisconnected call. It must be called after Running is closed.
func (c *Client) Emit(evt dispatcher.Event) {
	c.mu.Lock()
	ctx := c.runCtx
	handlers := slices.Clone(c.handlers)
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	for _, h := range handlers {
		h(ctx, evt)
	}
}

func (c *Client) IterMessages(ctx context.Context, chatID string, opts dispatcher.IterOptions) iter.Seq2[dispatcher.Message, error] {
	return func(yield func(dispatcher.Message, error) bool) {
		c.mu.Lock()
		history := slices.Clone(c.chats[chatID])
		deleted := slices.Clone(c.deleted)
		c.mu.Unlock()

		start := len(history) - 1
		if opts.Before != "" {
			idx := slices.IndexFunc(history, func(m *Message) bool { return m.id == opts.Before })
			if idx >= 0 {
				start = idx - 1
			}
		}
		count := 0
		for i := start; i >= 0; i-- {
			if opts.Limit > 0 && count >= opts.Limit {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			msg := history[i]
			if slices.Contains(deleted, msg.id) || (opts.FromSelf && !msg.outgoing) {
				continue
			}
			count++
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// Deleted returns the IDs of deleted messages in deletion order.
func (c *Client) Deleted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.deleted)
}

// Edits returns every text msgID was edited to, oldest first.
func (c *Client) Edits(msgID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.edits[msgID])
}

// Message is a message in the in-memory history.
type Message struct {
	client   *Client
	id       string
	chatID   string
	text     string
	outgoing bool
	service  bool
}

var _ dispatcher.Message = (*Message)(nil)

func (m *Message) ID() string      { return m.id }
func (m *Message) ChatID() string  { return m.chatID }
func (m *Message) Outgoing() bool  { return m.outgoing }
func (m *Message) IsService() bool { return m.service }

func (m *Message) Text() string {
	m.client.mu.Lock()
	defer m.client.mu.Unlock()
	return m.text
}

func (m *Message) Edit(_ context.Context, text string) error {
	m.client.mu.Lock()
	defer m.client.mu.Unlock()
	m.text = text
	m.client.edits[m.id] = append(m.client.edits[m.id], text)
	return nil
}

func (m *Message) Delete(_ context.Context) error {
	if m.client.DeleteErr != nil {
		return m.client.DeleteErr
	}
	m.client.mu.Lock()
	defer m.client.mu.Unlock()
	m.client.deleted = append(m.client.deleted, m.id)
	return nil
}

// Event is a message event, optionally replying to another message.
type Event struct {
	*Message
	replyTo *Message
}

var _ dispatcher.Event = (*Event)(nil)

func (e *Event) IsReply() bool { return e.replyTo != nil }

func (e *Event) ReplyMessage(context.Context) (dispatcher.Message, error) {
	if e.replyTo == nil {
		return nil, nil
	}
	return e.replyTo, nil
}

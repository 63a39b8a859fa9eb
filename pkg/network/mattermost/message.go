// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mattermost

import (
	"context"
	"fmt"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/aiku/smartbot/pkg/dispatcher"
)

func isServicePost(post *model.Post) bool {
	return post.Type != "" && post.Type != model.PostTypeDefault
}

// message wraps a Mattermost post.
type message struct {
	client *Client
	post   *model.Post
}

var _ dispatcher.Message = (*message)(nil)

func (c *Client) newMessage(post *model.Post) *message {
	return &message{client: c, post: post}
}

func (m *message) ID() string      { return m.post.Id }
func (m *message) ChatID() string  { return m.post.ChannelId }
func (m *message) Text() string    { return m.post.Message }
func (m *message) Outgoing() bool  { return m.post.UserId == m.client.userID }
func (m *message) IsService() bool { return isServicePost(m.post) }

func (m *message) Edit(ctx context.Context, text string) error {
	rendered := m.client.render(text)
	if _, _, err := m.client.api.PatchPost(ctx, m.post.Id, &model.PostPatch{Message: &rendered}); err != nil {
		return fmt.Errorf("failed to edit post: %w", err)
	}
	return nil
}

func (m *message) Delete(ctx context.Context) error {
	if _, err := m.client.api.DeletePost(ctx, m.post.Id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

// Event is a posted message. Replies are thread replies; the replied-to
// message is the thread root.
type Event struct {
	*message
}

var _ dispatcher.Event = (*Event)(nil)

func (e *Event) IsReply() bool {
	return e.post.RootId != ""
}

// ReplyMessage returns the thread root. Deleting a root post deletes its
// whole thread, so a root that has replies besides this event is reported
// as [dispatcher.ErrReplyUnavailable].
func (e *Event) ReplyMessage(ctx context.Context) (dispatcher.Message, error) {
	if e.post.RootId == "" {
		return nil, nil
	}
	thread, _, err := e.client.api.GetPostThread(ctx, e.post.RootId, "", false)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	root := thread.Posts[e.post.RootId]
	if root == nil {
		return nil, fmt.Errorf("thread %s has no root post", e.post.RootId)
	}
	for id := range thread.Posts {
		if id != root.Id && id != e.post.Id {
			return nil, fmt.Errorf("%w: thread %s has other replies", dispatcher.ErrReplyUnavailable, root.Id)
		}
	}
	return e.client.newMessage(root), nil
}

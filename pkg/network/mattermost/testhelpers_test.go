// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mattermost

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"github.com/aiku/smartbot/pkg/decoration"
)

// endpointCall records which API endpoints were hit during a test.
type endpointCall struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeMM is a test helper that wraps an httptest.Server simulating the
// Mattermost API. It records calls and keeps an in-memory post store.
type fakeMM struct {
	Server *httptest.Server

	mu    sync.Mutex
	calls []endpointCall

	// Users maps user ID to model.User for GetMe responses.
	Users map[string]*model.User
	// TokenToUser maps bearer tokens to user IDs for GetMe auth.
	TokenToUser map[string]string
	// Passwords maps "login:password" to the token issued by Login.
	Passwords map[string]string
	// Posts maps post ID to post.
	Posts map[string]*model.Post
	// ChannelOrder maps channel ID to its post IDs, oldest first.
	ChannelOrder map[string][]string
	// FailEndpoints causes specific path prefixes to return 500.
	FailEndpoints map[string]bool
}

func newFakeMM() *fakeMM {
	f := &fakeMM{
		Users:         make(map[string]*model.User),
		TokenToUser:   make(map[string]string),
		Passwords:     make(map[string]string),
		Posts:         make(map[string]*model.Post),
		ChannelOrder:  make(map[string][]string),
		FailEndpoints: make(map[string]bool),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	return f
}

func (f *fakeMM) Close() {
	f.Server.Close()
}

// AddPost stores a post as the newest message of its channel.
func (f *fakeMM) AddPost(post *model.Post) *model.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Posts[post.Id] = post
	f.ChannelOrder[post.ChannelId] = append(f.ChannelOrder[post.ChannelId], post.Id)
	return post
}

func (f *fakeMM) Post(postID string) *model.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Posts[postID]
}

func (f *fakeMM) record(r *http.Request, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpointCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
}

func (f *fakeMM) Calls() []endpointCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// DeletedPosts returns the IDs passed to DELETE /posts/{id}.
func (f *fakeMM) DeletedPosts() []string {
	var ids []string
	for _, c := range f.Calls() {
		if c.Method == http.MethodDelete && strings.HasPrefix(c.Path, "/api/v4/posts/") {
			ids = append(ids, strings.TrimPrefix(c.Path, "/api/v4/posts/"))
		}
	}
	return ids
}

func (f *fakeMM) resolveToken(r *http.Request) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	auth := r.Header.Get("Authorization")
	for tok, uid := range f.TokenToUser {
		if auth == "BEARER "+tok || auth == "Bearer "+tok {
			return uid
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"message": msg, "status_code": status})
}

func (f *fakeMM) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.record(r, string(body))

	for prefix := range f.FailEndpoints {
		if strings.Contains(r.URL.Path, prefix) {
			writeError(w, http.StatusInternalServerError, "fake error")
			return
		}
	}

	path := r.URL.Path
	switch {
	// POST /api/v4/users/login
	case r.Method == http.MethodPost && path == "/api/v4/users/login":
		var req map[string]string
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		token, ok := f.Passwords[req["login_id"]+":"+req["password"]]
		user := f.Users[f.TokenToUser[token]]
		f.mu.Unlock()
		if !ok || user == nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		w.Header().Set(model.HeaderToken, token)
		_ = json.NewEncoder(w).Encode(user)

	// GET /api/v4/users/me
	case r.Method == http.MethodGet && path == "/api/v4/users/me":
		uid := f.resolveToken(r)
		if uid == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		f.mu.Lock()
		u := f.Users[uid]
		f.mu.Unlock()
		if u == nil {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		_ = json.NewEncoder(w).Encode(u)

	// GET /api/v4/channels/{channel_id}/posts (GetPostsForChannel / GetPostsBefore)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/api/v4/channels/") && strings.HasSuffix(path, "/posts"):
		chID := strings.Split(path, "/")[4]
		_ = json.NewEncoder(w).Encode(f.postPage(chID, r.URL.Query().Get("before"), r.URL.Query().Get("per_page")))

	// PUT /api/v4/posts/{post_id}/patch
	case r.Method == http.MethodPut && strings.HasPrefix(path, "/api/v4/posts/") && strings.HasSuffix(path, "/patch"):
		postID := strings.Split(path, "/")[4]
		var patch model.PostPatch
		_ = json.Unmarshal(body, &patch)
		f.mu.Lock()
		post := f.Posts[postID]
		if post != nil && patch.Message != nil {
			post.Message = *patch.Message
		}
		f.mu.Unlock()
		if post == nil {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		_ = json.NewEncoder(w).Encode(post)

	// GET /api/v4/posts/{post_id}/thread
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/api/v4/posts/") && strings.HasSuffix(path, "/thread"):
		rootID := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v4/posts/"), "/thread")
		f.mu.Lock()
		root := f.Posts[rootID]
		list := model.NewPostList()
		if root != nil {
			list.AddPost(root)
			list.AddOrder(root.Id)
			for _, id := range f.ChannelOrder[root.ChannelId] {
				if p := f.Posts[id]; p.RootId == rootID {
					list.AddPost(p)
					list.AddOrder(p.Id)
				}
			}
		}
		f.mu.Unlock()
		if root == nil {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		_ = json.NewEncoder(w).Encode(list)

	// GET /api/v4/posts/{post_id}
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/api/v4/posts/"):
		f.mu.Lock()
		post := f.Posts[strings.TrimPrefix(path, "/api/v4/posts/")]
		f.mu.Unlock()
		if post == nil {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		_ = json.NewEncoder(w).Encode(post)

	// DELETE /api/v4/posts/{post_id}
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/api/v4/posts/"):
		postID := strings.TrimPrefix(path, "/api/v4/posts/")
		f.mu.Lock()
		if post := f.Posts[postID]; post != nil {
			delete(f.Posts, postID)
			order := f.ChannelOrder[post.ChannelId]
			f.ChannelOrder[post.ChannelId] = slices.DeleteFunc(slices.Clone(order), func(id string) bool { return id == postID })
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})

	default:
		writeError(w, http.StatusNotFound, "not found: "+path)
	}
}

// postPage returns up to perPage posts older than before, newest first.
func (f *fakeMM) postPage(chID, before, perPageStr string) *model.PostList {
	f.mu.Lock()
	defer f.mu.Unlock()
	perPage, err := strconv.Atoi(perPageStr)
	if err != nil || perPage <= 0 {
		perPage = 60
	}
	order := f.ChannelOrder[chID]
	end := len(order)
	if before != "" {
		end = slices.Index(order, before)
		if end < 0 {
			end = 0
		}
	}
	list := model.NewPostList()
	for i := end - 1; i >= 0 && len(list.Order) < perPage; i-- {
		post := f.Posts[order[i]]
		list.AddPost(post)
		list.AddOrder(post.Id)
	}
	return list
}

// newWebSocketEvent creates a model.WebSocketEvent for testing handlers.
func newWebSocketEvent(eventType model.WebsocketEventType, channelID string, data map[string]any) *model.WebSocketEvent {
	evt := model.NewWebSocketEvent(eventType, "", channelID, "", nil, "")
	return evt.SetData(data)
}

// postedEvent wraps post in a posted WebSocket event.
func postedEvent(post *model.Post) *model.WebSocketEvent {
	data, _ := json.Marshal(post)
	return newWebSocketEvent(model.WebsocketEventPosted, post.ChannelId, map[string]any{"post": string(data)})
}

// newTestClient creates a Client logged in to a fake server as my-user-id.
func newTestClient(serverURL string, perPage int) *Client {
	api := model.NewAPIv4Client(serverURL)
	api.SetToken("test-token")
	return &Client{
		api:       api,
		serverURL: serverURL,
		userID:    "my-user-id",
		perPage:   perPage,
		parseMode: decoration.ParseModeHTML,
		stopChan:  make(chan struct{}),
		log:       zerolog.Nop(),
	}
}

// Copyright 2024-2026 Aiku AI

package matrix

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/smartbot/pkg/decoration"
)

const (
	testRoom  = "!room:example.org"
	testUser  = "@bot:example.org"
	otherUser = "@alice:example.org"
)

type hsCall struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeHS simulates the parts of the client-server API the client uses.
// Room timelines are kept oldest first.
type fakeHS struct {
	Server *httptest.Server

	mu    sync.Mutex
	calls []hsCall

	// Tokens maps access tokens to user IDs.
	Tokens map[string]string
	// Passwords maps "user:password" to the token issued by /login.
	Passwords map[string]string
	Events    map[string]map[string]any
	Timeline  map[string][]string
	Fail      map[string]bool
}

func newFakeHS() *fakeHS {
	f := &fakeHS{
		Tokens:    make(map[string]string),
		Passwords: make(map[string]string),
		Events:    make(map[string]map[string]any),
		Timeline:  make(map[string][]string),
		Fail:      make(map[string]bool),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	return f
}

func (f *fakeHS) Close() {
	f.Server.Close()
}

// AddEvent appends a room event with the given content.
func (f *fakeHS) AddEvent(room, evtID, sender string, content map[string]any) {
	f.AddRawEvent(room, map[string]any{
		"type":             "m.room.message",
		"event_id":         evtID,
		"room_id":          room,
		"sender":           sender,
		"origin_server_ts": 1700000000000 + len(f.Timeline[room]),
		"content":          content,
	})
}

func (f *fakeHS) AddRawEvent(room string, evt map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	evtID := evt["event_id"].(string)
	f.Events[evtID] = evt
	f.Timeline[room] = append(f.Timeline[room], evtID)
}

func textContent(body string) map[string]any {
	return map[string]any{"msgtype": "m.text", "body": body}
}

func (f *fakeHS) Calls(method, pathPrefix string) []hsCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []hsCall
	for _, c := range f.calls {
		if c.Method == method && strings.HasPrefix(c.Path, pathPrefix) {
			out = append(out, c)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMatrixError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"errcode": code, "error": msg})
}

func (f *fakeHS) handler(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	path := strings.TrimPrefix(r.URL.Path, "/_matrix/client/v3")

	f.mu.Lock()
	f.calls = append(f.calls, hsCall{Method: r.Method, Path: path, Body: body})
	for prefix := range f.Fail {
		if strings.HasPrefix(path, prefix) {
			f.mu.Unlock()
			writeMatrixError(w, http.StatusInternalServerError, "M_UNKNOWN", "forced failure")
			return
		}
	}
	f.mu.Unlock()

	if path == "/login" && r.Method == http.MethodPost {
		f.handleLogin(w, body)
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	userID, ok := f.Tokens[token]
	f.mu.Unlock()
	if !ok {
		writeMatrixError(w, http.StatusUnauthorized, "M_UNKNOWN_TOKEN", "unknown token")
		return
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case path == "/account/whoami":
		writeJSON(w, http.StatusOK, map[string]string{"user_id": userID, "device_id": "DEVICE"})
	case len(parts) >= 4 && parts[0] == "rooms" && parts[2] == "redact" && r.Method == http.MethodPut:
		writeJSON(w, http.StatusOK, map[string]string{"event_id": "$redaction"})
	case len(parts) >= 4 && parts[0] == "rooms" && parts[2] == "send" && r.Method == http.MethodPut:
		writeJSON(w, http.StatusOK, map[string]string{"event_id": "$sent"})
	case len(parts) == 4 && parts[0] == "rooms" && parts[2] == "event":
		f.mu.Lock()
		evt, ok := f.Events[parts[3]]
		f.mu.Unlock()
		if !ok {
			writeMatrixError(w, http.StatusNotFound, "M_NOT_FOUND", "event not found")
			return
		}
		writeJSON(w, http.StatusOK, evt)
	case len(parts) == 3 && parts[0] == "rooms" && parts[2] == "messages":
		f.handleMessages(w, r, parts[1])
	default:
		writeMatrixError(w, http.StatusNotFound, "M_UNRECOGNIZED", "unrecognized request")
	}
}

func (f *fakeHS) handleLogin(w http.ResponseWriter, body map[string]any) {
	identifier, _ := body["identifier"].(map[string]any)
	user, _ := identifier["user"].(string)
	password, _ := body["password"].(string)
	f.mu.Lock()
	token, ok := f.Passwords[user+":"+password]
	userID := f.Tokens[token]
	f.mu.Unlock()
	if !ok {
		writeMatrixError(w, http.StatusForbidden, "M_FORBIDDEN", "invalid password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":      userID,
		"access_token": token,
		"device_id":    "NEWDEVICE",
	})
}

// handleMessages serves backwards pagination. The from token is the number of
// events already returned, counted from the newest.
func (f *fakeHS) handleMessages(w http.ResponseWriter, r *http.Request, room string) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("from"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	timeline := f.Timeline[room]
	chunk := []map[string]any{}
	next := offset
	for i := len(timeline) - 1 - offset; i >= 0 && len(chunk) < limit; i-- {
		chunk = append(chunk, f.Events[timeline[i]])
		next++
	}
	end := ""
	if next < len(timeline) {
		end = strconv.Itoa(next)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chunk": chunk,
		"start": strconv.Itoa(offset),
		"end":   end,
	})
}

// newTestClient returns a client logged in as testUser with the given page size.
func newTestClient(f *fakeHS, pageSize int) *Client {
	f.mu.Lock()
	f.Tokens["bot-token"] = testUser
	f.mu.Unlock()
	cli, err := mautrix.NewClient(f.Server.URL, id.UserID(testUser), "bot-token")
	if err != nil {
		panic(err)
	}
	cli.Log = zerolog.Nop()
	c := &Client{
		cli:       cli,
		pageSize:  pageSize,
		parseMode: decoration.ParseModeHTML,
		log:       zerolog.Nop(),
	}
	c.registerSyncHandlers()
	return c
}

func messageEvent(evtID, sender string, content *event.MessageEventContent) *event.Event {
	return &event.Event{
		Type:    event.EventMessage,
		ID:      id.EventID(evtID),
		RoomID:  id.RoomID(testRoom),
		Sender:  id.UserID(sender),
		Content: event.Content{Parsed: content},
	}
}

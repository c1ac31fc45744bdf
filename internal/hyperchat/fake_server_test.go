package hyperchat

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeHyperChat is an in-memory HyperChat API.
type fakeHyperChat struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	users        map[string]*User
	chats        map[string]*Chat
	messages     []map[string]any
	created      []map[string]any
	assigned     []string
	closed       []string
	uploads      int
	agentsAvail  int
	agentsOnline bool
	nextID       int
	lastAppID    string
	lastSecret   string
}

func newFakeHyperChat(t *testing.T) *fakeHyperChat {
	t.Helper()
	f := &fakeHyperChat{t: t, users: map[string]*User{}, chats: map[string]*Chat{}, agentsAvail: 1, agentsOnline: true}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeHyperChat) id(prefix string) string {
	f.nextID++
	return prefix + string(rune('0'+f.nextID))
}

func (f *fakeHyperChat) client(t *testing.T, queue bool) *Client {
	t.Helper()
	c, err := NewClient(Config{AppID: "app", Secret: "sec", Server: f.srv.URL, RoomID: "1", Source: "3", QueueActive: queue}, f.srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func jsonUnmarshal(raw string, out any) error {
	return json.Unmarshal([]byte(raw), out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeHyperChat) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastAppID = r.Header.Get("x-hyper-appid")
	f.lastSecret = r.Header.Get("x-hyper-secret")

	path := strings.TrimPrefix(r.URL.Path, "/v1/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")

	switch {
	case path == "agents/available":
		writeJSON(w, map[string]any{"agents": map[string]int{r.URL.Query().Get("roomIds"): f.agentsAvail}})

	case path == "agents/online":
		writeJSON(w, map[string]any{"agentsOnline": f.agentsOnline})

	case path == "users/" && r.Method == http.MethodPost:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		ext, _ := body["externalId"].(string)
		for _, u := range f.users {
			if u.ExternalID == ext {
				w.WriteHeader(http.StatusConflict)
				writeJSON(w, map[string]any{"error": map[string]any{"code": 409, "message": "user exists"}})
				return
			}
		}
		name, _ := body["name"].(string)
		u := &User{ID: f.id("u"), Name: name, ExternalID: ext}
		f.users[u.ID] = u
		writeJSON(w, map[string]any{"user": u})

	case path == "users/" && r.Method == http.MethodGet:
		ext := r.URL.Query().Get("externalId")
		var found []User
		for _, u := range f.users {
			if u.ExternalID == ext {
				found = append(found, *u)
			}
		}
		writeJSON(w, map[string]any{"users": found})

	case parts[0] == "users" && len(parts) == 2:
		u, ok := f.users[parts[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"error": map[string]any{"code": 404, "message": "not found"}})
			return
		}
		writeJSON(w, map[string]any{"user": u})

	case path == "chats/" && r.Method == http.MethodPost:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.created = append(f.created, body)
		creator, _ := body["creator"].(string)
		c := &Chat{ID: f.id("c"), Status: StatusWaiting, Creator: creator, Source: "3"}
		f.chats[c.ID] = c
		if u, ok := f.users[creator]; ok {
			u.Chats = append([]string{c.ID}, u.Chats...)
		}
		writeJSON(w, map[string]any{"chat": c})

	case parts[0] == "chats" && len(parts) == 3 && parts[2] == "assign":
		f.assigned = append(f.assigned, parts[1])
		if c, ok := f.chats[parts[1]]; ok {
			c.Status = StatusActive
		}
		writeJSON(w, map[string]any{"agent": map[string]any{"id": "agent-1"}})

	case parts[0] == "chats" && len(parts) == 3 && parts[2] == "messages":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.messages = append(f.messages, body)
		writeJSON(w, map[string]any{"message": body})

	case parts[0] == "chats" && len(parts) == 2 && r.Method == http.MethodDelete:
		f.closed = append(f.closed, parts[1])
		if c, ok := f.chats[parts[1]]; ok {
			c.Status = StatusClosed
		}
		writeJSON(w, map[string]any{"success": true})

	case parts[0] == "chats" && len(parts) == 2:
		c, ok := f.chats[parts[1]]
		if !ok {
			writeJSON(w, map[string]any{})
			return
		}
		writeJSON(w, map[string]any{"chat": c})

	case path == "media/":
		f.uploads++
		_, _ = io.Copy(io.Discard, r.Body)
		writeJSON(w, map[string]any{"media": map[string]any{"id": "m1"}})

	case parts[0] == "files":
		_, _ = w.Write([]byte("PNGDATA"))

	default:
		http.NotFound(w, r)
	}
}

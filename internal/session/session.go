// Package session keeps per-user conversation state. A Session is loaded once per
// inbound request and every mutation is written through to the Backend
// immediately; there is no batching and no locking between concurrent requests.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/dotpath"
)

type Session struct {
	id      string
	store   *dotpath.Store
	backend Backend
}

// Open loads the session id from backend.
func Open(ctx context.Context, backend Backend, id string) (*Session, error) {
	data, err := backend.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return &Session{id: id, store: dotpath.New(data), backend: backend}, nil
}

func (s *Session) ID() string { return s.id }

// Get returns the value at key, or def when it is not set.
func (s *Session) Get(key string, def any) any {
	return s.store.GetOr(key, def)
}

func (s *Session) Has(key string) bool {
	return s.store.Has(key)
}

func (s *Session) Set(ctx context.Context, key string, value any) error {
	s.store.Set(key, value)
	return s.flush(ctx)
}

// Add appends value to the list stored at key.
func (s *Session) Add(ctx context.Context, key string, value any) error {
	var list []any
	if current, ok := s.store.GetOr(key, nil).([]any); ok {
		list = current
	}
	s.store.Set(key, append(list, value))
	return s.flush(ctx)
}

func (s *Session) Delete(ctx context.Context, key string) error {
	s.store.Delete(key)
	return s.flush(ctx)
}

func (s *Session) Clear(ctx context.Context) error {
	s.store.Clear()
	return s.flush(ctx)
}

// String returns the string at key or "".
func (s *Session) String(key string) string {
	switch v := s.store.GetOr(key, nil).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// Int returns the number at key or 0. Values read back from a backend are float64.
func (s *Session) Int(key string) int {
	switch v := s.store.GetOr(key, nil).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// Truthy reports whether key holds a value other than nil, false, 0, "" or an
// empty collection. Flags such as chatOnGoing hold either false or a chat id.
func (s *Session) Truthy(key string) bool {
	switch v := s.store.GetOr(key, nil).(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != "" && v != "0"
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case map[string]any:
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

// Decode converts the value at key into out through its JSON form. It returns
// false when the key is not set.
func (s *Session) Decode(key string, out any) (bool, error) {
	v, ok := s.store.GetOr(key, nil), s.store.Has(key)
	if !ok || v == nil {
		return false, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return true, err
	}
	return true, json.Unmarshal(raw, out)
}

func (s *Session) flush(ctx context.Context) error {
	if err := s.backend.Save(ctx, s.id, s.store.Data()); err != nil {
		return fmt.Errorf("save session %s: %w", s.id, err)
	}
	return nil
}

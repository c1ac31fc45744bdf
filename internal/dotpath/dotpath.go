// Package dotpath stores nested values addressed by dot-separated paths, e.g.
// "sessionToken.expiration" reads data["sessionToken"]["expiration"].
package dotpath

import (
	"errors"
	"fmt"
	"strings"
)

const Separator = "."

// ErrNotFound is returned by Get when a path does not exist.
var ErrNotFound = errors.New("path not found")

// Store is a tree of map[string]any levels. It is not safe for concurrent use.
type Store struct {
	data map[string]any
}

// New builds a store over data. A nil map starts empty.
func New(data map[string]any) *Store {
	if data == nil {
		data = map[string]any{}
	}
	return &Store{data: data}
}

// Has reports whether path exists, even if it holds a nil value.
func (s *Store) Has(path string) bool {
	_, ok := s.lookup(path)
	return ok
}

// Get returns the value at path. An empty path returns the whole tree.
func (s *Store) Get(path string) (any, error) {
	if path == "" {
		return s.data, nil
	}
	v, ok := s.lookup(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return v, nil
}

// GetOr returns the value at path or def when the path does not exist.
func (s *Store) GetOr(path string, def any) any {
	if v, ok := s.lookup(path); ok {
		return v
	}
	return def
}

// Set stores value at path, creating intermediate levels and replacing any
// non-map value found on the way.
func (s *Store) Set(path string, value any) {
	keys := split(path)
	level := s.data
	for _, key := range keys[:len(keys)-1] {
		next, ok := level[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			level[key] = next
		}
		level = next
	}
	level[keys[len(keys)-1]] = value
}

// Delete removes the leaf at path. Missing parents make it a no-op.
func (s *Store) Delete(path string) {
	keys := split(path)
	level := s.data
	for _, key := range keys[:len(keys)-1] {
		next, ok := level[key].(map[string]any)
		if !ok {
			return
		}
		level = next
	}
	delete(level, keys[len(keys)-1])
}

// Clear empties the store.
func (s *Store) Clear() {
	s.data = map[string]any{}
}

// Data exposes the underlying tree, e.g. for serialization.
func (s *Store) Data() map[string]any {
	return s.data
}

// FirstKey returns the top-level key of path.
func FirstKey(path string) string {
	return split(path)[0]
}

func (s *Store) lookup(path string) (any, bool) {
	var current any = s.data
	for _, key := range split(path) {
		level, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = level[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func split(path string) []string {
	return strings.Split(path, Separator)
}

package chatbot

import "context"

// SessionStore is the part of the user session the client keeps its
// conversation token in.
type SessionStore interface {
	String(key string) string
	Int(key string) int
	Set(ctx context.Context, key string, value any) error
}

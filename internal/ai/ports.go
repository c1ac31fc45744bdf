package ai

import "context"

// Model is the language model behind the bot. It knows nothing about the
// channel or the storage.
type Model interface {
	Reply(ctx context.Context, systemPrompt string, history []Message) (string, error)
}

// Message is one conversation turn.
type Message struct {
	Role      string // "user" | "assistant" | "system"
	Text      string
	CreatedAt int64
}

// Repo keeps the transcript of every conversation.
type Repo interface {
	SaveMessage(ctx context.Context, conversationID string, msg Message) error
	History(ctx context.Context, conversationID string) ([]Message, error)
}

// SessionStore is the part of the user session the bot keeps its
// conversation token, pending form and variables in.
type SessionStore interface {
	String(key string) string
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

type Translator interface {
	Translate(key string, params map[string]string) string
}

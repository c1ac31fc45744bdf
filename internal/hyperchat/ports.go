package hyperchat

import "context"

// Recipient is the end user behind a chat, reached through the channel the chat
// was opened from.
type Recipient interface {
	SendTextMessage(ctx context.Context, text string) error
	SendAttachment(ctx context.Context, a Attachment) error
	ShowTyping(ctx context.Context, on bool) error
	// ChatClosed runs after the user was told that the chat is over.
	ChatClosed(ctx context.Context, chat *Chat) error
}

// Resolver finds the recipient of a chat from the creator's external id.
type Resolver interface {
	Resolve(ctx context.Context, externalID string) (Recipient, error)
}

type Translator interface {
	Translate(key string, params map[string]string) string
}

package hyperchat

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Chat statuses reported by HyperChat.
const (
	StatusWaiting = "waiting"
	StatusActive  = "active"
	StatusClosed  = "closed"
)

// Flex decodes identifiers and flags that HyperChat sends either as strings,
// numbers or booleans.
type Flex string

func (f *Flex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Flex(s)
	default:
		*f = Flex(data)
	}
	return nil
}

func (f Flex) String() string { return string(f) }

// True reports whether the value means yes (true, 1, "1").
func (f Flex) True() bool {
	if b, err := strconv.ParseBool(string(f)); err == nil {
		return b
	}
	return false
}

type Chat struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	InQueue    Flex   `json:"inQueue"`
	Creator    string `json:"creator"`
	Source     Flex   `json:"source"`
	ExternalID string `json:"externalId,omitempty"`
}

type User struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Nickname   string         `json:"nickname,omitempty"`
	Contact    string         `json:"contact,omitempty"`
	ExternalID string         `json:"externalId,omitempty"`
	ProviderID Flex           `json:"providerId,omitempty"`
	ExtraInfo  map[string]any `json:"extraInfo,omitempty"`
	Chats      []string       `json:"chats,omitempty"`
}

// IsAgent reports whether the user is an agent rather than an end user.
func (u *User) IsAgent() bool {
	return u != nil && u.ProviderID != ""
}

// DisplayName is the nickname when set, the name otherwise.
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Name
}

type ChatUser struct {
	Name       string         `json:"name"`
	Contact    string         `json:"contact,omitempty"`
	ExternalID string         `json:"externalId"`
	ExtraInfo  map[string]any `json:"extraInfo,omitempty"`
}

// HistoryEntry is one line of the bot conversation attached to a new chat.
// Sender is "assistant" for the bot or the HyperChat id of the user.
type HistoryEntry struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Created int64  `json:"created"`
}

// ChatData describes the chat to open.
type ChatData struct {
	RoomID         string
	User           ChatUser
	History        []HistoryEntry
	ChatExternalID string
}

type OpenResult struct {
	Chat    *Chat
	Existed bool
}

// Attachment is a media message sent by an agent.
type Attachment struct {
	Name          string
	MimeType      string
	URL           string
	ContentBase64 string
}

// Event is one webhook call.
type Event struct {
	Trigger   string          `json:"trigger"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
}

type eventData struct {
	ChatID  string          `json:"chatId"`
	UserID  string          `json:"userId"`
	Type    string          `json:"type"`
	Message *messageData    `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type messageData struct {
	ID      string          `json:"id"`
	Chat    string          `json:"chat"`
	Sender  string          `json:"sender"`
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

type mediaContent struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
}

type queueData struct {
	QueuePosition int `json:"queuePosition"`
}

// chatID returns the chat the event refers to.
func (d eventData) chatID() string {
	if d.ChatID != "" {
		return d.ChatID
	}
	if d.Message != nil {
		return d.Message.Chat
	}
	return ""
}

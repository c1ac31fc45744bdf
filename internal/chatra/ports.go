package chatra

import (
	"context"
	"strconv"
	"strings"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/connector"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/session"
)

// Payload is the webhook body Chatra posts for every visitor message.
type Payload struct {
	ChatID      string     `json:"chat_id"`
	Text        string     `json:"text"`
	ClientID    *string    `json:"client_id"`
	SupporterID *string    `json:"supporter_id"`
	ClientInfo  ClientInfo `json:"client_info"`
}

type ClientInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (p Payload) clientID() string {
	if p.ClientID == nil {
		return ""
	}
	return *p.ClientID
}

// Outbound pushes messages to the widget.
type Outbound interface {
	SendToChat(ctx context.Context, clientID string, text string) error
}

// Engine runs one inbound request.
type Engine interface {
	HandleRequest(ctx context.Context, req connector.Request) error
}

// BotFactory returns the bot conversation of a session. Host and path of the
// webhook request select the bot environment.
type BotFactory func(ctx context.Context, sess *session.Session, host, path string) (connector.Bot, error)

// Choice kinds. A numbered reply picks the choice at that position.
const (
	choiceOption    = "option"
	choiceText      = "text"
	choiceEscalate  = "escalate"
	choiceRating    = "rating"
	choiceFederated = "federated"
)

// Choice is one numbered option shown to the user and kept in the session
// until the next inbound message.
type Choice struct {
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	Value    string `json:"value,omitempty"`
	Escalate bool   `json:"escalate,omitempty"`
	RateCode string `json:"rateCode,omitempty"`
	RatingID int    `json:"ratingId,omitempty"`
	Comment  bool   `json:"comment,omitempty"`
	Negative bool   `json:"negative,omitempty"`
	Index    int    `json:"index,omitempty"`
}

// Prompt is a text followed by numbered choices.
type Prompt struct {
	Text    string
	Choices []Choice
}

func (p Prompt) String() string {
	var b strings.Builder
	b.WriteString(p.Text)
	for i, c := range p.Choices {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strconv.Itoa(i+1) + ". " + c.Label)
	}
	return b.String()
}

// Package botapi holds the Chatbot API message shapes shared by the bot clients,
// the channel digesters and the orchestration engine.
package botapi

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrTimedOut is returned by a bot client when the conversation API answered
// "Endpoint request timed out".
var ErrTimedOut = errors.New("bot endpoint request timed out")

// Answer types returned by the Chatbot API.
const (
	TypeAnswer                 = "answer"
	TypePolarQuestion          = "polarQuestion"
	TypeMultipleChoiceQuestion = "multipleChoiceQuestion"
	TypeExtendedContentsAnswer = "extendedContentsAnswer"
)

// Answer flags and callbacks the engine branches on.
const (
	FlagNoResults = "no-results"
	FlagEscalate  = "escalate"
	FlagNoRating  = "no-rating"

	CallbackEscalationStart = "escalationStart"
	CallbackEscalateToAgent = "escalateToAgent"
	CallbackCreateTicket    = "createTicket"

	AttrDirectCall      = "DIRECT_CALL"
	AttrDynamicRedirect = "DYNAMIC_REDIRECT"
	EscalationOffer     = "escalationOffer"
)

// Event is a tracking event (rate, click, contact events).
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Media is a file sent by the user.
type Media struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	Data     []byte `json:"data"`
}

// UserMessage is the canonical form of one inbound message, as produced by a
// channel digester. Exactly one group of fields is expected to be set.
type UserMessage struct {
	Message    string `json:"message,omitempty"`
	Option     string `json:"option,omitempty"`
	DirectCall string `json:"directCall,omitempty"`

	// Tracking event sent as a message (type rate or click).
	Type string         `json:"type,omitempty"`
	Data map[string]any `json:"data,omitempty"`

	// Answer to the ask-to-escalate question.
	EscalateOption *bool `json:"escalateOption,omitempty"`

	// Content rating submission.
	RatingData       *Event `json:"ratingData,omitempty"`
	IsNegativeRating bool   `json:"isNegativeRating,omitempty"`
	AskRatingComment bool   `json:"askRatingComment,omitempty"`

	Media *Media `json:"media,omitempty"`

	// Either an index into the stored federated sub-answers or an inline answer.
	ExtendedContentAnswer json.RawMessage `json:"extendedContentAnswer,omitempty"`
}

// IsEvent reports whether the message is a tracking event rather than text.
func (m UserMessage) IsEvent() bool {
	return m.Type != "" && m.Type != TypeAnswer
}

// HasContent reports whether the message can be sent to the conversation API.
func (m UserMessage) HasContent() bool {
	return m.Message != "" || m.Option != "" || m.DirectCall != ""
}

func (m UserMessage) Event() Event {
	return Event{Type: m.Type, Data: m.Data}
}

// EventMessage turns an event back into a message for dispatch.
func EventMessage(ev Event) UserMessage {
	return UserMessage{Type: ev.Type, Data: ev.Data}
}

type AnswerOption struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

type ActionParameters struct {
	Callback string         `json:"callback"`
	Data     map[string]any `json:"data,omitempty"`
}

type Action struct {
	Type       string           `json:"type,omitempty"`
	Parameters ActionParameters `json:"parameters"`
}

type TrackingCode struct {
	RateCode  string `json:"rateCode,omitempty"`
	ClickCode string `json:"clickCode,omitempty"`
}

type Contents struct {
	Title        string        `json:"title,omitempty"`
	TrackingCode *TrackingCode `json:"trackingCode,omitempty"`
}

type AnswerParameters struct {
	Contents *Contents `json:"contents,omitempty"`
}

// Answer is one bubble of a bot response.
type Answer struct {
	Type        string            `json:"type,omitempty"`
	Message     string            `json:"message"`
	MessageList []string          `json:"messageList,omitempty"`
	Options     []AnswerOption    `json:"options,omitempty"`
	Flags       []string          `json:"flags,omitempty"`
	Actions     []Action          `json:"actions,omitempty"`
	Attributes  map[string]any    `json:"attributes,omitempty"`
	Parameters  *AnswerParameters `json:"parameters,omitempty"`
	SubAnswers  []Answer          `json:"subAnswers,omitempty"`
}

func (a Answer) HasFlag(flag string) bool {
	for _, f := range a.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Callback returns the callback name of the first action, if any.
func (a Answer) Callback() string {
	if len(a.Actions) == 0 {
		return ""
	}
	return a.Actions[0].Parameters.Callback
}

// CallbackData returns the data attached to the first action.
func (a Answer) CallbackData() map[string]any {
	if len(a.Actions) == 0 {
		return nil
	}
	return a.Actions[0].Parameters.Data
}

// Attribute returns a string attribute or "".
func (a Answer) Attribute(name string) string {
	s, _ := a.Attributes[name].(string)
	return s
}

func (a Answer) trackingCode() *TrackingCode {
	if a.Parameters == nil || a.Parameters.Contents == nil {
		return nil
	}
	return a.Parameters.Contents.TrackingCode
}

func (a Answer) RateCode() string {
	if tc := a.trackingCode(); tc != nil {
		return tc.RateCode
	}
	return ""
}

func (a Answer) ClickCode() string {
	if tc := a.trackingCode(); tc != nil {
		return tc.ClickCode
	}
	return ""
}

// BotResponse is a Chatbot API reply. The API answers either with an
// {"answers": [...]} envelope or with a single answer object; both decode into
// Answers.
type BotResponse struct {
	Answers []Answer `json:"answers"`
}

// TextResponse builds a single text answer.
func TextResponse(text string) *BotResponse {
	return &BotResponse{Answers: []Answer{{Type: TypeAnswer, Message: text}}}
}

func (r *BotResponse) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if raw, ok := probe["answers"]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		var answers []Answer
		if err := json.Unmarshal(raw, &answers); err != nil {
			return err
		}
		r.Answers = answers
		return nil
	}
	var single Answer
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	r.Answers = []Answer{single}
	return nil
}

// DropLast removes the last answer bubble.
func (r *BotResponse) DropLast() {
	if len(r.Answers) > 0 {
		r.Answers = r.Answers[:len(r.Answers)-1]
	}
}

// ConversationSettings are sent when a new bot conversation starts.
type ConversationSettings struct {
	Configuration map[string]any
	UserType      int
	Environment   string
	Source        string
}

// Variable is one conversation variable as returned by the Chatbot API.
type Variable struct {
	Value any `json:"value"`
}

// VariableValue is a variable assignment.
type VariableValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HistoryEntry is one line of the bot conversation history.
type HistoryEntry struct {
	User     string `json:"user"`
	Message  string `json:"message"`
	DateTime string `json:"datetime"`
}

// TranscriptEntry is a history line prepared for the live-agent and ticketing
// backends. Sender is "assistant" for bot turns.
type TranscriptEntry struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Created int64  `json:"created"`
}

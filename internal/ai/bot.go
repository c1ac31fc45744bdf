// Package ai is a bot backend driven by an OpenAI chat model. It speaks the
// same answer shapes as the Chatbot API so the orchestration engine can use
// either one.
package ai

import (
	"context"
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	connerrors "github.com/inbenta-integrations/chatbot-api-connector/internal/errors"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/logger"
)

const (
	keyToken       = "aiConversation.token"
	keyPendingForm = "aiConversation.pendingForm"
	keyVariables   = "aiVariables"

	roleUser      = "user"
	roleAssistant = "assistant"

	historyLayout = "2006-01-02 15:04:05"
)

type Config struct {
	// Replies under this confidence are answered as no-results.
	MinConfidence float64
	// Appended to SystemPrompt.
	Facts string
}

type Bot struct {
	model   Model
	repo    Repo
	session SessionStore
	lang    Translator
	log     *logger.Logger
	cfg     Config
	newID   func() string
}

func NewBot(model Model, repo Repo, session SessionStore, lang Translator, log *logger.Logger, cfg Config) *Bot {
	return &Bot{
		model:   model,
		repo:    repo,
		session: session,
		lang:    lang,
		log:     log,
		cfg:     cfg,
		newID:   uuid.NewString,
	}
}

type modelReply struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Escalate   bool    `json:"escalate"`
}

// StartConversation starts a new transcript.
func (b *Bot) StartConversation(ctx context.Context) (string, error) {
	token := b.newID()
	if err := b.session.Set(ctx, keyToken, token); err != nil {
		return "", err
	}
	if err := b.session.Delete(ctx, keyPendingForm); err != nil {
		return "", err
	}
	b.log.Info("ai conversation started", "session_id", token)
	return token, nil
}

func (b *Bot) token(ctx context.Context) (string, error) {
	if t := b.session.String(keyToken); t != "" {
		return t, nil
	}
	return b.StartConversation(ctx)
}

func (b *Bot) SendMessage(ctx context.Context, msg botapi.UserMessage) (*botapi.BotResponse, error) {
	token, err := b.token(ctx)
	if err != nil {
		return nil, err
	}
	if msg.DirectCall == botapi.CallbackEscalationStart {
		return b.escalationStart(ctx)
	}

	text := strings.TrimSpace(msg.Message)
	if text == "" {
		text = strings.TrimSpace(msg.Option)
	}
	if text == "" {
		return &botapi.BotResponse{}, nil
	}
	if b.session.String(keyPendingForm) != "" {
		return b.completeForm(ctx, text)
	}

	if err := b.repo.SaveMessage(ctx, token, Message{Role: roleUser, Text: text}); err != nil {
		return nil, connerrors.Backend("openai", 0, "save user turn", err)
	}
	history, err := b.repo.History(ctx, token)
	if err != nil {
		return nil, connerrors.Backend("openai", 0, "load history", err)
	}

	raw, err := b.model.Reply(ctx, b.systemPrompt(), history)
	if err != nil {
		return nil, connerrors.Backend("openai", 0, "completion failed", err)
	}
	answer := b.answerFrom(raw)

	if err := b.repo.SaveMessage(ctx, token, Message{Role: roleAssistant, Text: answer.Message}); err != nil {
		return nil, connerrors.Backend("openai", 0, "save assistant turn", err)
	}
	return &botapi.BotResponse{Answers: []botapi.Answer{answer}}, nil
}

func (b *Bot) systemPrompt() string {
	if b.cfg.Facts == "" {
		return SystemPrompt
	}
	return SystemPrompt + "\nFacts:\n" + b.cfg.Facts
}

// answerFrom turns the model reply into a bot answer. An unreadable or
// unconfident reply becomes a no-results answer.
func (b *Bot) answerFrom(raw string) botapi.Answer {
	var reply modelReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &reply); err != nil || strings.TrimSpace(reply.Answer) == "" {
		b.log.Warn("unparsable model reply", "error", err)
		return b.noResults()
	}

	answer := botapi.Answer{Type: botapi.TypeAnswer, Message: reply.Answer}
	if reply.Confidence < b.cfg.MinConfidence {
		b.log.Info("low confidence reply", "confidence", reply.Confidence)
		answer = b.noResults()
	}
	if reply.Escalate {
		answer.Flags = append(answer.Flags, botapi.FlagEscalate)
	}
	return answer
}

func (b *Bot) noResults() botapi.Answer {
	return botapi.Answer{
		Type:    botapi.TypeAnswer,
		Message: b.lang.Translate("no_results", nil),
		Flags:   []string{botapi.FlagNoResults},
	}
}

// escalationStart collects the e-mail address for the agent when one can
// take the chat.
func (b *Bot) escalationStart(ctx context.Context) (*botapi.BotResponse, error) {
	if b.session.String(keyVariables+".agents_available") != "true" {
		return botapi.TextResponse(b.lang.Translate("no_agents", nil)), nil
	}
	if err := b.session.Set(ctx, keyPendingForm, "EMAIL_ADDRESS"); err != nil {
		return nil, err
	}
	return botapi.TextResponse(b.lang.Translate("ask_email", nil)), nil
}

// completeForm answers with the escalateToAgent callback once the address is
// valid.
func (b *Bot) completeForm(ctx context.Context, text string) (*botapi.BotResponse, error) {
	addr, err := mail.ParseAddress(text)
	if err != nil {
		return botapi.TextResponse(b.lang.Translate("invalid_email", nil)), nil
	}
	if err := b.session.Delete(ctx, keyPendingForm); err != nil {
		return nil, err
	}
	return &botapi.BotResponse{Answers: []botapi.Answer{{
		Type:    botapi.TypeAnswer,
		Message: b.lang.Translate("escalation_form_done", nil),
		Flags:   []string{botapi.FlagNoRating},
		Actions: []botapi.Action{{Parameters: botapi.ActionParameters{
			Callback: botapi.CallbackEscalateToAgent,
			Data:     map[string]any{"EMAIL_ADDRESS": addr.Address},
		}}},
	}}}, nil
}

// TrackEvent only logs: the model keeps no analytics.
func (b *Bot) TrackEvent(_ context.Context, ev botapi.Event) error {
	b.log.Info("ai event", "type", ev.Type)
	return nil
}

// SetVariable keeps the variable in the session.
func (b *Bot) SetVariable(ctx context.Context, v botapi.VariableValue) (bool, error) {
	if v.Name == "" || strings.Contains(v.Name, ".") {
		return false, nil
	}
	if err := b.session.Set(ctx, keyVariables+"."+v.Name, v.Value); err != nil {
		return false, err
	}
	return true, nil
}

// ChatHistory returns the transcript with assistant turns attributed to the
// bot, like the Chatbot API does.
func (b *Bot) ChatHistory(ctx context.Context) ([]botapi.HistoryEntry, error) {
	token := b.session.String(keyToken)
	if token == "" {
		return nil, nil
	}
	msgs, err := b.repo.History(ctx, token)
	if err != nil {
		return nil, connerrors.Backend("openai", 0, "load history", err)
	}
	out := make([]botapi.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		user := m.Role
		if user == roleAssistant {
			user = "bot"
		}
		out = append(out, botapi.HistoryEntry{
			User:     user,
			Message:  m.Text,
			DateTime: time.Unix(m.CreatedAt, 0).UTC().Format(historyLayout),
		})
	}
	return out, nil
}

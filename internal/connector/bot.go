package connector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	connerrors "github.com/inbenta-integrations/chatbot-api-connector/internal/errors"
)

// sendMessageToBot dispatches a message or a tracking event. An expired
// conversation is restarted and the message sent once more.
func (c *conversation) sendMessageToBot(ctx context.Context, msg botapi.UserMessage) (*botapi.BotResponse, error) {
	resp, err := c.dispatch(ctx, msg)
	if connerrors.IsSessionExpired(err) {
		c.log.Info("bot conversation expired, starting a new one")
		if _, err = c.bot.StartConversation(ctx); err == nil {
			resp, err = c.dispatch(ctx, msg)
		}
	}
	if err != nil {
		if errors.Is(err, errHalt) {
			return nil, err
		}
		return nil, fmt.Errorf("error while sending message to bot: %w", err)
	}
	return resp, nil
}

func (c *conversation) dispatch(ctx context.Context, msg botapi.UserMessage) (*botapi.BotResponse, error) {
	if msg.IsEvent() {
		return c.sendEventToBot(ctx, msg.Event())
	}
	if !msg.HasContent() {
		return nil, nil
	}
	if err := c.channel.ShowBotTyping(ctx, true); err != nil {
		c.log.Warn("typing indicator failed", "error", err)
	}
	resp, err := c.bot.SendMessage(ctx, msg)
	if errors.Is(err, botapi.ErrTimedOut) {
		return botapi.TextResponse(c.translate("api_timeout", nil)), nil
	}
	return resp, err
}

// sendEventToBot tracks a rate or click event. Any other event ends the
// request. A rating is answered with the comment prompt or a thanks message.
func (c *conversation) sendEventToBot(ctx context.Context, ev botapi.Event) (*botapi.BotResponse, error) {
	if ev.Type != "rate" && ev.Type != "click" {
		return nil, errHalt
	}
	if err := c.bot.TrackEvent(ctx, ev); err != nil {
		return nil, err
	}
	if ev.Type != "rate" {
		return nil, nil
	}

	if c.sess.Truthy(keyAskingRatingComment) {
		willEscalate, err := c.willEscalateFromNegativeRating(ctx)
		if err != nil {
			return nil, err
		}
		if !willEscalate {
			return botapi.TextResponse(c.translate("ask_rating_comment", nil)), nil
		}
	}
	if err := c.sess.Set(ctx, keyAskingRatingComment, false); err != nil {
		return nil, err
	}

	text := c.translate("thanks", nil)
	switch ratingValue(ev.Data["value"]) {
	case 1:
		if c.lang.Has("rating_positive") {
			text = c.translate("rating_positive", nil)
		}
	case 2:
		if c.lang.Has("rating_negative") {
			text = c.translate("rating_negative", nil)
		}
	}
	return botapi.TextResponse(text), nil
}

func (c *conversation) willEscalateFromNegativeRating(ctx context.Context) (bool, error) {
	if !c.shouldEscalateFromNegativeRating() {
		return false, nil
	}
	return c.checkAgents(ctx)
}

func ratingValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

// trackContactEvent tracks a contact event. When chatID is set the payload
// names the chat so that the bot analytics can link to it.
func (c *conversation) trackContactEvent(ctx context.Context, eventType, chatID string) error {
	ev := botapi.Event{Type: eventType, Data: map[string]any{"value": "true"}}
	if chatID != "" {
		region := c.app.Chat.RegionServer
		if region == "" {
			region = "us"
		}
		ev.Data["value"] = map[string]any{
			"chatId": chatID,
			"appId":  c.app.Chat.AppID,
			"region": region,
		}
	}
	return c.bot.TrackEvent(ctx, ev)
}

func (c *conversation) setVariableValue(ctx context.Context, name, value string) (bool, error) {
	return c.bot.SetVariable(ctx, botapi.VariableValue{Name: name, Value: value})
}

var historyLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// chatbotHistory returns the non-empty lines of the bot conversation, with
// bot turns attributed to "assistant".
func (c *conversation) chatbotHistory(ctx context.Context) ([]botapi.TranscriptEntry, error) {
	entries, err := c.bot.ChatHistory(ctx)
	if err != nil {
		return nil, err
	}
	history := make([]botapi.TranscriptEntry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Message) == "" {
			continue
		}
		sender := e.User
		if sender == "bot" {
			sender = "assistant"
		}
		history = append(history, botapi.TranscriptEntry{
			Sender:  sender,
			Message: e.Message,
			Created: parseHistoryTime(e.DateTime),
		})
	}
	return history, nil
}

func parseHistoryTime(s string) int64 {
	for _, layout := range historyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix()
		}
	}
	return 0
}

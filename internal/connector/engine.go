// Package connector drives one inbound channel request through the bot, the
// escalation dialogue, the live-agent chat and the post-chat survey.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/config"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/logger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/session"
)

// errHalt ends the request successfully once a terminal answer has been sent.
var errHalt = errors.New("request handled")

// Engine holds the collaborators shared by every request.
type Engine struct {
	app     *config.App
	lang    Translator
	live    LiveChat
	tickets Ticketing
	log     *logger.Logger
	now     func() time.Time
}

// Options are the optional backends. A nil LiveChat disables escalation to
// agents and a nil Ticketing disables tickets, surveys and remote timetables.
type Options struct {
	LiveChat  LiveChat
	Ticketing Ticketing
	Now       func() time.Time
}

func New(app *config.App, lang Translator, log *logger.Logger, opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		app:     app,
		lang:    lang,
		live:    opts.LiveChat,
		tickets: opts.Ticketing,
		log:     log,
		now:     now,
	}
}

// Request is one inbound channel call.
type Request struct {
	Session  *session.Session
	Bot      Bot
	Channel  Channel
	Digester Digester
	Payload  []byte
}

// conversation is the state machine of one request.
type conversation struct {
	*Engine
	sess     *session.Session
	bot      Bot
	channel  Channel
	digester Digester
	payload  []byte
	log      *logger.Logger
}

func (e *Engine) conversation(req Request) *conversation {
	return &conversation{
		Engine:   e,
		sess:     req.Session,
		bot:      req.Bot,
		channel:  req.Channel,
		digester: req.Digester,
		payload:  req.Payload,
		log:      e.log.With("session_id", req.Session.ID()),
	}
}

// HandleRequest digests the payload and runs it through the non-bot actions
// and then the bot. A returned error is meant to be reported to the caller as
// {"error": message}.
func (e *Engine) HandleRequest(ctx context.Context, req Request) error {
	c := e.conversation(req)
	err := c.handle(ctx)
	if errors.Is(err, errHalt) {
		return nil
	}
	if err != nil {
		c.log.Error("request failed", "error", err)
	}
	return err
}

func (c *conversation) handle(ctx context.Context) error {
	if err := c.setExitQueueCommand(ctx); err != nil {
		return err
	}
	messages, err := c.digester.DigestToAPI(ctx, c.payload)
	if err != nil {
		return err
	}
	if err := c.handleNonBotActions(ctx, messages); err != nil {
		return err
	}
	return c.handleBotActions(ctx, messages)
}

// handleNonBotActions runs the actions that bypass the bot: a running survey,
// an ongoing live chat, the answer to the ask-to-escalate question and the
// selection of a federated answer.
func (c *conversation) handleNonBotActions(ctx context.Context, messages []botapi.UserMessage) error {
	if err := c.handleSurvey(ctx, messages); err != nil {
		return err
	}

	onGoing, err := c.chatOnGoing(ctx)
	if err != nil {
		return err
	}
	if onGoing {
		if err := c.validateIsInQueue(ctx, messages); err != nil {
			return err
		}
		if err := c.sendMessagesToChat(ctx, messages); err != nil {
			return err
		}
		return errHalt
	}

	if c.sess.Truthy(keyAskingForEscalation) {
		if err := c.handleEscalation(ctx, messages); err != nil {
			return err
		}
	}

	if len(messages) > 0 && len(messages[0].ExtendedContentAnswer) > 0 {
		if err := c.handleFederatedSelection(ctx, messages[0].ExtendedContentAnswer); err != nil {
			return err
		}
		return errHalt
	}
	return nil
}

// handleBotActions sends every message to the bot and relays its answers,
// then opens the escalation dialogue or shows the rating prompt.
func (c *conversation) handleBotActions(ctx context.Context, messages []botapi.UserMessage) error {
	var (
		needEscalation bool
		hasFormData    bool
		rateCode       string
	)
	for _, msg := range messages {
		if err := c.handleCommands(ctx, msg); err != nil {
			return err
		}
		if err := c.saveLastTextMessage(ctx, msg); err != nil {
			return err
		}
		outgoing, err := c.checkContentRatingsComment(ctx, msg)
		if err != nil {
			return err
		}

		resp, err := c.sendMessageToBot(ctx, outgoing)
		if err != nil {
			return err
		}
		if resp == nil {
			continue
		}

		escalate, err := c.checkEscalation(ctx, resp)
		if err != nil {
			return err
		}
		if escalate {
			needEscalation = true
		}
		if needEscalation && c.escalationType() == EscalationOffer {
			// the polar question is replaced by the escalation dialogue
			resp.DropLast()
		}

		form, err := c.checkEscalationForm(ctx, resp)
		if err != nil {
			return err
		}
		hasFormData = hasFormData || form

		if code := c.checkContentRatings(resp); code != "" {
			rateCode = code
		}

		if err := c.sendMessagesToExternal(ctx, resp); err != nil {
			return err
		}
		if err := c.checkCallbackTicketCreation(ctx, resp); err != nil {
			return err
		}
	}

	if needEscalation || hasFormData {
		if err := c.handleEscalation(ctx, nil); err != nil {
			return err
		}
	}

	if rateCode == "" || c.sess.Truthy(keyAskingForEscalation) {
		return nil
	}
	onGoing, err := c.chatOnGoing(ctx)
	if err != nil || onGoing {
		return err
	}
	return c.displayContentRatings(ctx, rateCode)
}

// handleCommands runs the utility commands. Each one ends the request.
func (c *conversation) handleCommands(ctx context.Context, msg botapi.UserMessage) error {
	switch msg.Message {
	case commandClearSession:
		if err := c.sess.Clear(ctx); err != nil {
			return err
		}
		c.log.Info("user session cleared")
		if err := c.relayText(ctx, "User session cleared."); err != nil {
			return err
		}
		return errHalt
	case commandShowUserID:
		if err := c.relayText(ctx, c.channel.ExternalID()); err != nil {
			return err
		}
		return errHalt
	}
	return nil
}

func (c *conversation) saveLastTextMessage(ctx context.Context, msg botapi.UserMessage) error {
	if msg.Message == "" {
		return nil
	}
	return c.sess.Set(ctx, keyLastUserQuestion, msg.Message)
}

// handleFederatedSelection shows the federated answer chosen by the user,
// either by index into the stored sub-answers or inline.
func (c *conversation) handleFederatedSelection(ctx context.Context, raw json.RawMessage) error {
	var index int
	if err := json.Unmarshal(raw, &index); err == nil {
		var answers []botapi.Answer
		if _, err := c.sess.Decode(keyFederatedSubanswers, &answers); err != nil {
			return err
		}
		if index < 0 || index >= len(answers) {
			return nil
		}
		return c.displayFederatedAnswer(ctx, answers[index])
	}

	if !strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		return nil
	}
	var answer botapi.Answer
	if err := json.Unmarshal(raw, &answer); err != nil {
		return err
	}
	return c.displayFederatedAnswer(ctx, answer)
}

// displayFederatedAnswer relays the answer and logs the click on it.
func (c *conversation) displayFederatedAnswer(ctx context.Context, answer botapi.Answer) error {
	if err := c.sendMessagesToExternal(ctx, &botapi.BotResponse{Answers: []botapi.Answer{answer}}); err != nil {
		return err
	}
	code := answer.ClickCode()
	if code == "" {
		return nil
	}
	_, err := c.sendEventToBot(ctx, botapi.Event{Type: "click", Data: map[string]any{"code": code}})
	return err
}

// sendMessagesToExternal digests a bot response and sends it to the channel.
func (c *conversation) sendMessagesToExternal(ctx context.Context, resp *botapi.BotResponse) error {
	out, err := c.digester.DigestFromAPI(ctx, resp, c.sess.String(keyLastUserQuestion))
	if err != nil {
		return err
	}
	for _, msg := range out {
		if err := c.channel.SendMessage(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *conversation) relayText(ctx context.Context, text string) error {
	return c.sendMessagesToExternal(ctx, botapi.TextResponse(text))
}

func (c *conversation) translate(key string, params map[string]string) string {
	return c.lang.Translate(key, params)
}

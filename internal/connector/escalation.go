package connector

import (
	"context"
	"strings"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/hyperchat"
)

func (c *conversation) chatEnabled() bool {
	return c.app.ChatEnabled() && c.live != nil
}

func (c *conversation) escalationType() EscalationType {
	return EscalationType(c.sess.String(keyEscalationType))
}

// checkEscalation updates the no-results counter with every answer and
// reports whether one of them triggers an escalation. The first trigger found
// is recorded as the escalation type.
func (c *conversation) checkEscalation(ctx context.Context, resp *botapi.BotResponse) (bool, error) {
	if !c.chatEnabled() {
		return false, nil
	}
	for _, answer := range resp.Answers {
		if err := c.updateNoResultsCount(ctx, answer); err != nil {
			return false, err
		}

		var kind EscalationType
		switch {
		case answer.HasFlag(botapi.FlagEscalate):
			kind = EscalationAPIFlag
		case c.shouldEscalateFromNoResults():
			kind = EscalationNoResults
		case c.shouldEscalateFromNegativeRating():
			kind = EscalationNegativeRating
		case answer.Callback() == botapi.CallbackEscalationStart:
			kind = EscalationDirect
		case answer.Attribute(botapi.AttrDirectCall) == botapi.EscalationOffer:
			kind = EscalationOffer
		default:
			continue
		}

		if kind == EscalationDirect || kind == EscalationOffer {
			if err := c.sess.Set(ctx, keyEscalationV2, true); err != nil {
				return false, err
			}
		}
		if err := c.sess.Set(ctx, keyEscalationType, string(kind)); err != nil {
			return false, err
		}
		c.log.Info("escalation triggered", "type", string(kind))
		return true, nil
	}
	return false, nil
}

func (c *conversation) shouldEscalateFromNoResults() bool {
	limit := c.app.Chat.TriesBeforeEscalation
	return c.chatEnabled() && limit > 0 && c.sess.Int(keyNoResultsCount) >= limit
}

func (c *conversation) shouldEscalateFromNegativeRating() bool {
	limit := c.app.Chat.NegativeRatingsBeforeEscalation
	return c.chatEnabled() && limit > 0 && c.sess.Int(keyNegativeRatingCount) >= limit
}

// updateNoResultsCount counts consecutive no-results answers.
func (c *conversation) updateNoResultsCount(ctx context.Context, answer botapi.Answer) error {
	count := 0
	if answer.HasFlag(botapi.FlagNoResults) {
		count = c.sess.Int(keyNoResultsCount) + 1
	}
	return c.sess.Set(ctx, keyNoResultsCount, count)
}

// reduceCurrentEscalationCounter steps back the counter that triggered the
// escalation so that the next qualifying answer triggers it again. The
// counter is not clamped at zero.
func (c *conversation) reduceCurrentEscalationCounter(ctx context.Context) error {
	switch c.escalationType() {
	case EscalationNoResults:
		return c.sess.Set(ctx, keyNoResultsCount, c.sess.Int(keyNoResultsCount)-1)
	case EscalationNegativeRating:
		return c.sess.Set(ctx, keyNegativeRatingCount, c.sess.Int(keyNegativeRatingCount)-1)
	}
	return nil
}

// checkEscalationForm stores the form attached to an escalateToAgent callback.
func (c *conversation) checkEscalationForm(ctx context.Context, resp *botapi.BotResponse) (bool, error) {
	for _, answer := range resp.Answers {
		if answer.Callback() != botapi.CallbackEscalateToAgent {
			continue
		}
		form := answer.CallbackData()
		if form == nil {
			form = map[string]any{}
		}
		if err := c.sess.Set(ctx, keyEscalationForm, form); err != nil {
			return false, err
		}
		if err := c.sess.Set(ctx, keyEscalationType, string(EscalationDirect)); err != nil {
			return false, err
		}
		if err := c.sess.Set(ctx, keyEscalationV2, true); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// handleEscalation asks the user whether to talk to an agent, or handles the
// answer to that question when it is pending.
func (c *conversation) handleEscalation(ctx context.Context, answer []botapi.UserMessage) error {
	if err := c.escalateIfFormHasBeenDone(ctx); err != nil {
		return err
	}

	if !c.sess.Truthy(keyAskingForEscalation) {
		return c.askForEscalation(ctx)
	}

	if err := c.sess.Set(ctx, keyAskingForEscalation, false); err != nil {
		return err
	}
	if err := c.sess.Set(ctx, keyNoResultsCount, 0); err != nil {
		return err
	}
	if err := c.sess.Set(ctx, keyNegativeRatingCount, 0); err != nil {
		return err
	}
	if len(answer) == 0 || answer[0].EscalateOption == nil {
		return nil
	}

	offer := c.escalationType() == EscalationOffer
	if *answer[0].EscalateOption {
		if !offer {
			if err := c.escalateToAgent(ctx); err != nil {
				return err
			}
			return errHalt
		}
		if err := c.sess.Set(ctx, keyEscalationOfferYes, true); err != nil {
			return err
		}
		if err := c.escalateIfFormHasBeenDone(ctx); err != nil {
			return err
		}
		if err := c.sendEscalationStart(ctx); err != nil {
			return err
		}
		return errHalt
	}

	if offer {
		resp, err := c.sendMessageToBot(ctx, botapi.UserMessage{Message: "no"})
		if err != nil {
			return err
		}
		if resp != nil {
			if err := c.sendMessagesToExternal(ctx, resp); err != nil {
				return err
			}
		}
	} else {
		if err := c.relayText(ctx, c.translate("escalation_rejected", nil)); err != nil {
			return err
		}
		if err := c.trackContactEvent(ctx, EventContactRejected, ""); err != nil {
			return err
		}
	}
	if err := c.sess.Delete(ctx, keyEscalationType); err != nil {
		return err
	}
	if err := c.sess.Delete(ctx, keyEscalationV2); err != nil {
		return err
	}
	return errHalt
}

// askForEscalation sends the ask-to-escalate question when agents can take
// the chat. Direct escalations skip the question.
func (c *conversation) askForEscalation(ctx context.Context) error {
	if c.escalationType() == EscalationDirect {
		return c.sendEscalationStart(ctx)
	}

	open, err := c.checkServiceHours(ctx)
	if err != nil {
		return err
	}
	if !open {
		return c.relayText(ctx, c.translate("out_of_time", nil))
	}

	agents, err := c.checkAgents(ctx)
	if err != nil {
		return err
	}
	if agents {
		if err := c.sess.Set(ctx, keyAskingForEscalation, true); err != nil {
			return err
		}
		return c.channel.SendMessage(ctx, c.digester.BuildEscalationMessage())
	}

	c.log.Info("no agents available", "type", string(c.escalationType()))
	if c.sess.Truthy(keyEscalationV2) {
		if err := c.sendNoAgentsToBot(ctx); err != nil {
			return err
		}
	} else if err := c.relayText(ctx, c.translate("no_agents", nil)); err != nil {
		return err
	}
	if err := c.reduceCurrentEscalationCounter(ctx); err != nil {
		return err
	}
	return c.trackContactEvent(ctx, EventChatNoAgents, "")
}

// sendNoAgentsToBot lets the bot flow tell the user that nobody is available.
func (c *conversation) sendNoAgentsToBot(ctx context.Context) error {
	if _, err := c.setVariableValue(ctx, "agents_available", "false"); err != nil {
		return err
	}
	return c.sendDirectCall(ctx, botapi.CallbackEscalationStart)
}

func (c *conversation) sendDirectCall(ctx context.Context, call string) error {
	resp, err := c.sendMessageToBot(ctx, botapi.UserMessage{DirectCall: call})
	if err != nil || resp == nil {
		return err
	}
	return c.sendMessagesToExternal(ctx, resp)
}

// sendEscalationStart hands the escalation to the bot flow, which collects
// the user data. Channels without an editable profile open the chat at once.
func (c *conversation) sendEscalationStart(ctx context.Context) error {
	open, err := c.checkServiceHours(ctx)
	if err != nil {
		return err
	}
	if !open {
		return c.relayText(ctx, c.translate("out_of_time", nil))
	}
	if _, ok := c.channel.(ProfileEditor); !ok {
		return c.escalateToAgent(ctx)
	}

	agents, err := c.checkAgents(ctx)
	if err != nil {
		return err
	}
	available := "false"
	if agents {
		available = "true"
	}
	if _, err := c.setVariableValue(ctx, "agents_available", available); err != nil {
		return err
	}
	if !agents {
		if err := c.sess.Delete(ctx, keyEscalationForm); err != nil {
			return err
		}
	}
	return c.sendDirectCall(ctx, botapi.CallbackEscalationStart)
}

// escalateIfFormHasBeenDone opens the chat once the bot flow has collected
// the escalation form. For offers the user must have accepted first.
func (c *conversation) escalateIfFormHasBeenDone(ctx context.Context) error {
	if !c.sess.Truthy(keyEscalationV2) || !c.sess.Truthy(keyEscalationForm) {
		return nil
	}
	if c.escalationType() == EscalationOffer && !c.sess.Truthy(keyEscalationOfferYes) {
		return nil
	}

	if editor, ok := c.channel.(ProfileEditor); ok {
		var form map[string]any
		if _, err := c.sess.Decode(keyEscalationForm, &form); err != nil {
			return err
		}
		name := strings.TrimSpace(formText(form, "FIRST_NAME") + " " + formText(form, "LAST_NAME"))
		if err := editor.SetFullName(ctx, name); err != nil {
			return err
		}
		if err := editor.SetEmail(ctx, formText(form, "EMAIL_ADDRESS")); err != nil {
			return err
		}
		delete(form, "FIRST_NAME")
		delete(form, "LAST_NAME")
		delete(form, "EMAIL_ADDRESS")
		if err := editor.SetExtraInfo(ctx, form); err != nil {
			return err
		}
	}

	if err := c.sess.Delete(ctx, keyEscalationOfferYes); err != nil {
		return err
	}
	if err := c.escalateToAgent(ctx); err != nil {
		return err
	}
	return errHalt
}

func formText(form map[string]any, key string) string {
	s, _ := form[key].(string)
	return s
}

// escalateToAgent opens a live chat when agents can take it, then drops the
// escalation state whatever the outcome.
func (c *conversation) escalateToAgent(ctx context.Context) error {
	if err := c.openLiveChat(ctx); err != nil {
		return err
	}
	for _, key := range []string{keyEscalationForm, keyEscalationType, keyEscalationV2} {
		if err := c.sess.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (c *conversation) openLiveChat(ctx context.Context) error {
	open, err := c.checkServiceHours(ctx)
	if err != nil {
		return err
	}
	if !open {
		return c.relayText(ctx, c.translate("out_of_time", nil))
	}

	agents, err := c.checkAgents(ctx)
	if err != nil {
		return err
	}
	if !agents {
		c.log.Info("no agents available to open a chat", "type", string(c.escalationType()))
		// implicit triggers stay silent
		if c.sess.Truthy(keyEscalationV2) {
			if err := c.sendNoAgentsToBot(ctx); err != nil {
				return err
			}
		} else if c.escalationType() == EscalationAPIFlag {
			if err := c.relayText(ctx, c.translate("no_agents", nil)); err != nil {
				return err
			}
		}
		return c.trackContactEvent(ctx, EventChatNoAgents, "")
	}

	if err := c.relayText(ctx, c.translate("creating_chat", nil)); err != nil {
		return err
	}
	data, err := c.chatData(ctx)
	if err != nil {
		return err
	}
	result, err := c.live.OpenChat(ctx, data)
	if err != nil || result == nil || result.Chat == nil {
		c.log.Error("chat creation failed", "error", err)
		return c.relayText(ctx, c.translate("error_creating_chat", nil))
	}

	if err := c.sess.Set(ctx, keyChatOnGoing, result.Chat.ID); err != nil {
		return err
	}
	c.log.Info("chat opened", "chat_id", result.Chat.ID, "existed", result.Existed)
	return c.trackContactEvent(ctx, EventChatAttended, result.Chat.ID)
}

func (c *conversation) chatData(ctx context.Context) (hyperchat.ChatData, error) {
	var extra map[string]any
	if p, ok := c.channel.(ExtraInfoProvider); ok {
		extra = p.ExtraInfo()
	}
	history, err := c.chatbotHistory(ctx)
	if err != nil {
		return hyperchat.ChatData{}, err
	}
	data := hyperchat.ChatData{
		RoomID: c.app.Chat.RoomID,
		User: hyperchat.ChatUser{
			Name:       c.channel.FullName(),
			Contact:    c.channel.Email(),
			ExternalID: c.channel.ExternalID(),
			ExtraInfo:  extra,
		},
	}
	for _, h := range history {
		data.History = append(data.History, hyperchat.HistoryEntry{
			Sender:  h.Sender,
			Message: h.Message,
			Created: h.Created,
		})
	}
	return data, nil
}

// checkAgents asks the live-agent backend for online agents in queue mode and
// for available agents otherwise.
func (c *conversation) checkAgents(ctx context.Context) (bool, error) {
	if c.live == nil {
		return false, nil
	}
	if c.live.IsQueueModeActive() {
		return c.live.CheckAgentsOnline(ctx)
	}
	return c.live.CheckAgentsAvailable(ctx)
}

package connector

import (
	"context"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/messenger"
)

// checkCallbackTicketCreation creates a ticket from the first createTicket
// callback of the response and tells the user how it went.
func (c *conversation) checkCallbackTicketCreation(ctx context.Context, resp *botapi.BotResponse) error {
	for _, answer := range resp.Answers {
		if answer.Callback() != botapi.CallbackCreateTicket || answer.CallbackData() == nil {
			continue
		}
		if c.tickets == nil {
			return c.channel.SendTextMessage(ctx, c.translate("ticket_error", nil))
		}

		form := make(map[string]any, len(answer.CallbackData())+1)
		for k, v := range answer.CallbackData() {
			form[k] = v
		}
		if _, ok := form["QUEUE"]; !ok {
			form["QUEUE"] = c.ticketQueue()
		}

		history, err := c.chatbotHistory(ctx)
		if err != nil {
			return err
		}
		ref, err := c.tickets.CreateTicket(ctx, form, transcript(history), c.app.Chat.Source)
		if err != nil {
			c.log.Error("ticket creation failed", "error", err)
		}
		if err != nil || ref == "" {
			return c.channel.SendTextMessage(ctx, c.translate("ticket_error", nil))
		}
		c.log.Info("ticket created", "ticket", ref)
		return c.channel.SendTextMessage(ctx, c.translate("ticket_created", nil)+ref)
	}
	return nil
}

func (c *conversation) ticketQueue() any {
	if q := c.app.Chat.TicketQueue; q != "" {
		return q
	}
	return 1
}

func transcript(history []botapi.TranscriptEntry) []messenger.TranscriptEntry {
	out := make([]messenger.TranscriptEntry, len(history))
	for i, h := range history {
		out[i] = messenger.TranscriptEntry{Sender: h.Sender, Message: h.Message, Created: h.Created}
	}
	return out
}

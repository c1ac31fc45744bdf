package connector

import (
	"context"
	"strings"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/hyperchat"
)

// chatOnGoing reports whether the user is talking to an agent. A chat found
// closed is forgotten.
func (c *conversation) chatOnGoing(ctx context.Context) (bool, error) {
	if !c.chatEnabled() {
		return false, nil
	}
	chatID := c.sess.String(keyChatOnGoing)
	if chatID == "" {
		return false, nil
	}
	chat, err := c.live.ChatInfo(ctx, chatID)
	if err != nil {
		return false, err
	}
	if chat == nil || chat.Status == "" {
		return false, nil
	}
	if chat.Status != hyperchat.StatusClosed {
		return true, nil
	}
	return false, c.sess.Set(ctx, keyChatOnGoing, false)
}

// setExitQueueCommand copies the configured exit command into the session.
func (c *conversation) setExitQueueCommand(ctx context.Context) error {
	cmd := c.app.Chat.ExitQueueCommand
	if !c.chatEnabled() || cmd == "" || c.sess.String(keyExitQueueCommand) != "" {
		return nil
	}
	return c.sess.Set(ctx, keyExitQueueCommand, cmd)
}

// validateIsInQueue reminds a queued user to wait, or closes the chat when the
// user typed the exit command. Once the chat is active it is no longer polled.
func (c *conversation) validateIsInQueue(ctx context.Context, messages []botapi.UserMessage) error {
	chatID := c.sess.String(keyChatOnGoing)
	activeKey := keyChatActivePrefix + chatID
	if chatID == "" || c.sess.Truthy(activeKey) {
		return nil
	}
	chat, err := c.live.ChatInfo(ctx, chatID)
	if err != nil || chat == nil {
		return err
	}

	switch {
	case chat.Status == hyperchat.StatusWaiting && chat.InQueue.True():
		if err := c.exitQueueIfRequested(ctx, messages, chat); err != nil {
			return err
		}
		text := c.translate("on_waiting_queue", nil)
		if cmd := c.sess.String(keyExitQueueCommand); cmd != "" {
			text += " " + c.translate("on_waiting_queue_exit", map[string]string{"exitCommand": cmd})
		}
		return c.channel.SendTextMessage(ctx, text)
	case chat.Status == hyperchat.StatusActive:
		return c.sess.Set(ctx, activeKey, true)
	}
	return nil
}

// exitQueueIfRequested closes the chat and ends the request when the first
// message is the exit command.
func (c *conversation) exitQueueIfRequested(ctx context.Context, messages []botapi.UserMessage, chat *hyperchat.Chat) error {
	cmd := c.sess.String(keyExitQueueCommand)
	if cmd == "" || len(messages) == 0 || !strings.EqualFold(messages[0].Message, cmd) {
		return nil
	}

	externalID := c.channel.ExternalID()
	if creator, err := c.live.UserInfo(ctx, chat.Creator); err == nil && creator != nil && creator.ExternalID != "" {
		externalID = creator.ExternalID
	}
	if err := c.live.CloseChat(ctx, externalID); err != nil {
		return err
	}
	c.log.Info("user left the queue", "chat_id", chat.ID)
	if err := c.channel.SendTextMessage(ctx, c.translate("chat_closed", nil)); err != nil {
		return err
	}
	if err := c.sess.Set(ctx, keyChatOnGoing, false); err != nil {
		return err
	}
	return errHalt
}

// sendMessagesToChat relays the user messages to the agent.
func (c *conversation) sendMessagesToChat(ctx context.Context, messages []botapi.UserMessage) error {
	externalID := c.channel.ExternalID()
	for _, msg := range messages {
		var err error
		if msg.Media != nil {
			err = c.live.SendMedia(ctx, externalID, msg.Media.Name, msg.Media.MimeType, msg.Media.Data)
		} else {
			err = c.live.SendMessage(ctx, externalID, msg.Message)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

package hyperchat

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/logger"
)

// Webhook triggers.
const (
	TriggerMessageNew       = "messages:new"
	TriggerChatClose        = "chats:close"
	TriggerInvitationAccept = "invitations:accept"
	TriggerUserActivity     = "users:activity"
	TriggerForeverAlone     = "forever:alone"
	TriggerQueueUpdate      = "queues:update"
)

// EventFunc handles a trigger instead of the default logic.
type EventFunc func(ctx context.Context, ev Event) error

type Handler struct {
	client   *Client
	resolver Resolver
	lang     Translator
	log      *logger.Logger
	custom   map[string]EventFunc
}

func NewHandler(client *Client, resolver Resolver, lang Translator, log *logger.Logger) *Handler {
	return &Handler{client: client, resolver: resolver, lang: lang, log: log, custom: map[string]EventFunc{}}
}

// Register overrides the handling of one trigger.
func (h *Handler) Register(trigger string, fn EventFunc) {
	h.custom[trigger] = fn
}

// HandleWebhook answers the webhook handshake and processes events.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if secret := r.Header.Get("X-Hook-Secret"); secret != "" {
		w.Header().Set("X-Hook-Secret", secret)
		w.WriteHeader(http.StatusOK)
		return
	}

	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if ev.Trigger == "" || len(ev.Data) == 0 || string(ev.Data) == "null" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.HandleEvent(r.Context(), ev); err != nil {
		h.log.Error("hyperchat event failed", "trigger", ev.Trigger, "error", err)
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleEvent relays one event to the user of the chat. Events of chats opened
// from another source are ignored.
func (h *Handler) HandleEvent(ctx context.Context, ev Event) error {
	if fn, ok := h.custom[ev.Trigger]; ok {
		return fn(ctx, ev)
	}

	var data eventData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return err
	}

	chat, err := h.client.ChatInfo(ctx, data.chatID())
	if err != nil {
		return err
	}
	if chat == nil || chat.Source.String() != h.client.Config().Source {
		return nil
	}
	creator, err := h.client.UserInfo(ctx, chat.Creator)
	if err != nil {
		return err
	}
	if creator == nil || creator.ExternalID == "" {
		return nil
	}
	rcpt, err := h.resolver.Resolve(ctx, creator.ExternalID)
	if err != nil {
		return err
	}

	log := h.log.With("trigger", ev.Trigger, "chat_id", chat.ID)

	switch ev.Trigger {
	case TriggerMessageNew:
		return h.agentMessage(ctx, rcpt, data.Message)

	case TriggerChatClose:
		if data.UserID != "system" {
			closer, err := h.client.UserInfo(ctx, data.UserID)
			if err != nil {
				return err
			}
			if !closer.IsAgent() {
				return nil
			}
		}
		log.Info("chat closed")
		return h.notifyClose(ctx, rcpt, chat)

	case TriggerInvitationAccept:
		agent, err := h.client.UserInfo(ctx, data.UserID)
		if err != nil || agent == nil {
			return err
		}
		log.Info("agent joined")
		return rcpt.SendTextMessage(ctx, h.lang.Translate("agent_joined", map[string]string{"agentName": agent.DisplayName()}))

	case TriggerUserActivity:
		return rcpt.ShowTyping(ctx, data.Type == "writing")

	case TriggerForeverAlone:
		if err := h.client.CloseChatByID(ctx, chat.ID); err != nil {
			return err
		}
		log.Info("chat left alone, closed")
		return h.notifyClose(ctx, rcpt, chat)

	case TriggerQueueUpdate:
		var q queueData
		if len(data.Data) > 0 {
			if err := json.Unmarshal(data.Data, &q); err != nil {
				return err
			}
		}
		if q.QueuePosition <= 0 {
			return nil
		}
		key := "queue_estimation"
		if q.QueuePosition == 1 {
			key = "queue_estimation_first"
		}
		return rcpt.SendTextMessage(ctx, h.lang.Translate(key, map[string]string{"queuePosition": strconv.Itoa(q.QueuePosition)}))
	}
	return nil
}

func (h *Handler) agentMessage(ctx context.Context, rcpt Recipient, msg *messageData) error {
	if msg == nil {
		return nil
	}
	sender, err := h.client.UserInfo(ctx, msg.Sender)
	if err != nil {
		return err
	}
	if !sender.IsAgent() {
		return nil
	}

	switch msg.Type {
	case "text":
		var text string
		if err := json.Unmarshal(msg.Message, &text); err != nil {
			return err
		}
		return rcpt.SendTextMessage(ctx, text)
	case "media":
		var media mediaContent
		if err := json.Unmarshal(msg.Message, &media); err != nil {
			return err
		}
		content, err := h.client.Download(ctx, media.URL, media.Type)
		if err != nil {
			return err
		}
		return rcpt.SendAttachment(ctx, Attachment{
			Name:          media.Name,
			MimeType:      media.Type,
			URL:           h.client.ContentURL(media.URL),
			ContentBase64: content,
		})
	}
	return nil
}

func (h *Handler) notifyClose(ctx context.Context, rcpt Recipient, chat *Chat) error {
	if err := rcpt.SendTextMessage(ctx, h.lang.Translate("chat_closed", nil)); err != nil {
		return err
	}
	return rcpt.ChatClosed(ctx, chat)
}

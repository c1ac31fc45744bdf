package chatra

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/connector"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/logger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/session"
)

const maxPayloadBytes = 1 << 20

type Handler struct {
	engine   Engine
	sessions session.Backend
	opener   *Opener
	bots     BotFactory
	log      *logger.Logger
}

func NewHandler(engine Engine, sessions session.Backend, opener *Opener, bots BotFactory, log *logger.Logger) *Handler {
	return &Handler{engine: engine, sessions: sessions, opener: opener, bots: bots, log: log}
}

// HandleWebhook takes an inbound visitor message. Chatra does not wait for the
// answer: the request is acknowledged first and processed after.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if payload.ChatID == "" || payload.Text == "" || payload.clientID() == "" {
		http.Error(w, "missing chat_id, client_id or text", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	// operators answer in the widget themselves
	if payload.SupporterID != nil {
		return
	}

	log := h.log.With("request_id", uuid.NewString(), "session_id", payload.clientID(), "chat_id", payload.ChatID)
	if err := h.process(context.WithoutCancel(r.Context()), r, payload, raw, log); err != nil {
		log.Error("chatra webhook failed", "error", err)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
	}
}

func (h *Handler) process(ctx context.Context, r *http.Request, payload Payload, raw []byte, log *logger.Logger) error {
	sess, err := session.Open(ctx, h.sessions, payload.clientID())
	if err != nil {
		return err
	}
	ch, dg := h.opener.open(sess)
	if err := ch.updateProfile(ctx, payload.ClientInfo); err != nil {
		return err
	}
	bot, err := h.bots(ctx, sess, r.Host, r.URL.Path)
	if err != nil {
		return err
	}

	log.Debug("chatra message received", "length", len(payload.Text))
	return h.engine.HandleRequest(ctx, connector.Request{
		Session:  sess,
		Bot:      bot,
		Channel:  ch,
		Digester: dg,
		Payload:  raw,
	})
}

package chatra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/connector"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/lang"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/logger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/session"
)

type fakeEngine struct {
	requests []connector.Request
	err      error
}

func (e *fakeEngine) HandleRequest(_ context.Context, req connector.Request) error {
	e.requests = append(e.requests, req)
	return e.err
}

type nopBot struct{}

func (nopBot) StartConversation(context.Context) (string, error) { return "t", nil }
func (nopBot) SendMessage(context.Context, botapi.UserMessage) (*botapi.BotResponse, error) {
	return &botapi.BotResponse{}, nil
}
func (nopBot) TrackEvent(context.Context, botapi.Event) error { return nil }
func (nopBot) SetVariable(context.Context, botapi.VariableValue) (bool, error) {
	return true, nil
}
func (nopBot) ChatHistory(context.Context) ([]botapi.HistoryEntry, error) { return nil, nil }

func newTestHandler(t *testing.T, engine Engine) (*Handler, session.Backend) {
	t.Helper()
	tr, err := lang.Load("en", "")
	require.NoError(t, err)
	backend := session.NewMemoryBackend()
	bots := func(context.Context, *session.Session, string, string) (connector.Bot, error) { return nopBot{}, nil }
	h := NewHandler(engine, backend, NewOpener(&fakeOutbound{}, tr, logger.Nop()), bots, logger.Nop())
	return h, backend
}

func post(h *Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chatra/webhook", strings.NewReader(body))
	h.HandleWebhook(rec, req)
	return rec
}

func TestWebhookRunsEngine(t *testing.T) {
	engine := &fakeEngine{}
	h, backend := newTestHandler(t, engine)
	body := `{"chat_id":"chat-1","client_id":"client-1","text":"hello","client_info":{"name":"Ann Lee","email":"ann@example.com"}}`

	rec := post(h, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	require.Len(t, engine.requests, 1)
	req := engine.requests[0]
	assert.Equal(t, "client-1", req.Session.ID())
	assert.Equal(t, body, string(req.Payload))
	assert.Equal(t, "Ann Lee", req.Channel.FullName())
	assert.Equal(t, "client-1", req.Channel.ExternalID())

	sess, err := session.Open(context.Background(), backend, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", sess.String(keyProfileEmail))
}

func TestWebhookReportsEngineFailure(t *testing.T) {
	h, _ := newTestHandler(t, &fakeEngine{err: errors.New("bot down")})

	rec := post(h, `{"chat_id":"chat-1","client_id":"client-1","text":"hello"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"error":"bot down"}`, rec.Body.String())
}

func TestWebhookIgnoresOperatorMessages(t *testing.T) {
	engine := &fakeEngine{}
	h, _ := newTestHandler(t, engine)

	rec := post(h, `{"chat_id":"chat-1","client_id":"client-1","supporter_id":"op-1","text":"hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, engine.requests)
}

func TestWebhookRejectsBadRequests(t *testing.T) {
	h, _ := newTestHandler(t, &fakeEngine{})

	for _, body := range []string{
		`{`,
		`{"chat_id":"chat-1","client_id":"client-1"}`,
		`{"chat_id":"chat-1","text":"hi"}`,
	} {
		rec := post(h, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRoutesRequireJSON(t *testing.T) {
	engine := &fakeEngine{}
	h, _ := newTestHandler(t, engine)
	r := chi.NewRouter()
	RegisterRoutes(r, h)

	body := `{"chat_id":"chat-1","client_id":"client-1","text":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/chatra/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Empty(t, engine.requests)

	req = httptest.NewRequest(http.MethodPost, "/chatra/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, engine.requests, 1)
}

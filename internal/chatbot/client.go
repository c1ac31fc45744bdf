// Package chatbot is the Chatbot API conversation client.
package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	connerrors "github.com/inbenta-integrations/chatbot-api-connector/internal/errors"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/inbenta"
)

const (
	// A conversation stays alive this long without user interaction.
	SessionTokenTTL = 1440 * time.Second

	keySessionToken      = "sessionToken.token"
	keySessionExpiration = "sessionToken.expiration"

	sessionExpiredMessage = "Session expired"
	timedOutMessage       = "Endpoint request timed out"
)

type Client struct {
	auth     *inbenta.Auth
	url      string
	session  SessionStore
	settings botapi.ConversationSettings
	now      func() time.Time
}

// New resolves the chatbot endpoint from the authentication info; a missing
// endpoint is a configuration error.
func New(ctx context.Context, auth *inbenta.Auth, session SessionStore, settings botapi.ConversationSettings) (*Client, error) {
	url, err := auth.Endpoint(ctx, "chatbot")
	if err != nil {
		return nil, err
	}
	return &Client{auth: auth, url: url, session: session, settings: settings, now: time.Now}, nil
}

// StartConversation opens a new bot conversation and stores its token in the session.
func (c *Client) StartConversation(ctx context.Context) (string, error) {
	h, err := c.auth.Headers(ctx)
	if err != nil {
		return "", err
	}
	h.Set("x-inbenta-user-type", strconv.Itoa(c.settings.UserType))
	h.Set("x-inbenta-env", c.settings.Environment)
	if c.settings.Source != "" {
		h.Set("x-inbenta-source", c.settings.Source)
	}

	conf := c.settings.Configuration
	if conf == nil {
		conf = map[string]any{}
	}
	var resp struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/conversation", h, conf, &resp); err != nil {
		return "", err
	}
	if resp.SessionToken == "" {
		return "", connerrors.Backend("chatbot", 0, "error starting conversation: no session token", nil)
	}

	if err := c.session.Set(ctx, keySessionToken, resp.SessionToken); err != nil {
		return "", err
	}
	exp := c.now().Add(SessionTokenTTL).Unix()
	if err := c.session.Set(ctx, keySessionExpiration, exp); err != nil {
		return "", err
	}
	return resp.SessionToken, nil
}

// SendMessage posts one user message. A stale conversation token fails with a
// SessionExpired error; a gateway timeout fails with botapi.ErrTimedOut.
func (c *Client) SendMessage(ctx context.Context, msg botapi.UserMessage) (*botapi.BotResponse, error) {
	h, err := c.conversationHeaders(ctx)
	if err != nil {
		return nil, err
	}
	var resp botapi.BotResponse
	if err := c.call(ctx, http.MethodPost, "/v1/conversation/message", h, msg, &resp); err != nil {
		return nil, err
	}
	if len(resp.Answers) == 1 && resp.Answers[0].Type == "" && resp.Answers[0].Message == timedOutMessage {
		return nil, botapi.ErrTimedOut
	}
	return &resp, nil
}

func (c *Client) TrackEvent(ctx context.Context, ev botapi.Event) error {
	h, err := c.conversationHeaders(ctx)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, "/v1/tracking/events", h, ev, nil)
}

// SetVariable reports whether the Chatbot API accepted the value.
func (c *Client) SetVariable(ctx context.Context, v botapi.VariableValue) (bool, error) {
	h, err := c.conversationHeaders(ctx)
	if err != nil {
		return false, err
	}
	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/conversation/variables", h, v, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (c *Client) SetMultipleVariables(ctx context.Context, vars []botapi.VariableValue) error {
	h, err := c.conversationHeaders(ctx)
	if err != nil {
		return err
	}
	body := map[string]any{"variables": vars}
	return c.call(ctx, http.MethodPost, "/v1/conversation/variables/multiple", h, body, nil)
}

// GetVariables returns the conversation variables keyed by lowercase name.
func (c *Client) GetVariables(ctx context.Context) (map[string]botapi.Variable, error) {
	h, err := c.conversationHeaders(ctx)
	if err != nil {
		return nil, err
	}
	vars := map[string]botapi.Variable{}
	if err := c.call(ctx, http.MethodGet, "/v1/conversation/variables", h, nil, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// GetVariable returns the value of one variable, or nil when it is not defined.
func (c *Client) GetVariable(ctx context.Context, name string) (any, error) {
	vars, err := c.GetVariables(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := vars[strings.ToLower(name)]
	if !ok {
		return nil, nil
	}
	return v.Value, nil
}

func (c *Client) ChatHistory(ctx context.Context) ([]botapi.HistoryEntry, error) {
	h, err := c.conversationHeaders(ctx)
	if err != nil {
		return nil, err
	}
	var entries []botapi.HistoryEntry
	if err := c.call(ctx, http.MethodGet, "/v1/conversation/history", h, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// conversationHeaders returns the headers of a conversation call, starting a
// new conversation when the stored token is missing or expired.
func (c *Client) conversationHeaders(ctx context.Context) (http.Header, error) {
	token := c.session.String(keySessionToken)
	exp := int64(c.session.Int(keySessionExpiration))
	if token == "" || exp == 0 || exp < c.now().Unix() {
		var err error
		if token, err = c.StartConversation(ctx); err != nil {
			return nil, err
		}
	}
	h, err := c.auth.Headers(ctx)
	if err != nil {
		return nil, err
	}
	h.Set("x-inbenta-session", "Bearer "+token)
	return h, nil
}

func (c *Client) call(ctx context.Context, method, path string, h http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
		h.Set("Content-Type", "application/json")
	}

	err := inbenta.Call(ctx, c.auth.HTTPClient(), method, c.url+path, h, reader, out)
	if err == nil {
		return nil
	}

	var ce *connerrors.ConnectorError
	if errors.As(err, &ce) {
		switch {
		case ce.Code == http.StatusBadRequest && ce.Message == sessionExpiredMessage:
			return connerrors.SessionExpired(ce.Code, ce.Message)
		case ce.Message == timedOutMessage:
			return botapi.ErrTimedOut
		}
		ce.Service = "chatbot"
	}
	return err
}

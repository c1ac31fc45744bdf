package chatra

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	connerrors "github.com/inbenta-integrations/chatbot-api-connector/internal/errors"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/logger"
)

const defaultBaseURL = "https://app.chatra.io/api"

type ChatraOutbound struct {
	baseURL string
	token   string // PUBLIC:PRIVATE
	client  *http.Client
	log     *logger.Logger
}

func NewChatraOutbound(token string, client *http.Client, log *logger.Logger) (*ChatraOutbound, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, connerrors.Config("CHATRA_API_TOKEN not set (expected PUBLIC:PRIVATE)")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ChatraOutbound{
		baseURL: defaultBaseURL,
		token:   token,
		client:  client,
		log:     log,
	}, nil
}

// WithBaseURL points the client at another API root.
func (c *ChatraOutbound) WithBaseURL(u string) *ChatraOutbound {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// SendToChat pushes a message to the visitor.
func (c *ChatraOutbound) SendToChat(ctx context.Context, clientID string, text string) error {
	return c.send(ctx, "/pushedMessages", map[string]any{
		"clientId": clientID,
		"text":     text,
	})
}

func (c *ChatraOutbound) send(ctx context.Context, path string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+path,
		bytes.NewReader(b),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Chatra.Simple "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return connerrors.Backend("chatra", 0, "POST "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Error("chatra api error", "path", path, "status", resp.StatusCode, "body", string(respBody))
		return connerrors.Backend("chatra", resp.StatusCode, "chatra api error: "+resp.Status+" body="+string(respBody), nil)
	}

	c.log.Debug("chatra message pushed", "path", path)
	return nil
}

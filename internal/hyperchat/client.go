// Package hyperchat is the client of the HyperChat live-agent API and the
// handler of its webhook events.
package hyperchat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	connerrors "github.com/inbenta-integrations/chatbot-api-connector/internal/errors"
)

const (
	apiVersion        = "v1"
	userAlreadyExists = 409
)

type Config struct {
	AppID       string
	Secret      string
	Server      string // takes precedence over Region
	Region      string
	RoomID      string
	Source      string
	Lang        string
	QueueActive bool
}

// ServerURL returns the configured server, or the regional one.
func (c Config) ServerURL() string {
	if c.Server != "" {
		return strings.TrimRight(c.Server, "/")
	}
	region := c.Region
	if region == "" {
		region = "us"
	}
	return fmt.Sprintf("https://hyperchat-%s.inbenta.chat", region)
}

type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client

	// users with a chat being opened, keyed by external id
	opening sync.Map
}

func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.AppID == "" || cfg.Secret == "" {
		return nil, connerrors.Config("empty HyperChat appId or secret")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		cfg:     cfg,
		baseURL: cfg.ServerURL() + "/" + apiVersion + "/",
		http:    httpClient,
	}, nil
}

func (c *Client) Config() Config { return c.cfg }

func (c *Client) IsQueueModeActive() bool { return c.cfg.QueueActive }

// CheckAgentsAvailable reports whether the room has agents able to take a chat.
func (c *Client) CheckAgentsAvailable(ctx context.Context) (bool, error) {
	return c.agentsAvailable(ctx, c.cfg.RoomID)
}

// CheckAgentsOnline reports whether the room has agents online (queue mode).
func (c *Client) CheckAgentsOnline(ctx context.Context) (bool, error) {
	return c.agentsOnline(ctx, c.cfg.RoomID)
}

func (c *Client) agentsAvailable(ctx context.Context, roomID string) (bool, error) {
	if roomID == "" {
		return false, nil
	}
	var resp struct {
		Agents map[string]int `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, "agents/available", url.Values{"roomIds": {roomID}}, nil, &resp); err != nil {
		return false, err
	}
	return resp.Agents[roomID] > 0, nil
}

func (c *Client) agentsOnline(ctx context.Context, roomID string) (bool, error) {
	if roomID == "" {
		return false, nil
	}
	var resp struct {
		AgentsOnline bool `json:"agentsOnline"`
	}
	if err := c.do(ctx, http.MethodGet, "agents/online", url.Values{"roomId": {roomID}}, nil, &resp); err != nil {
		return false, err
	}
	return resp.AgentsOnline, nil
}

// OpenChat signs the user up (or reuses the existing user), returns the user's
// active chat when there is one, and otherwise creates a chat with the bot
// history attached. Outside queue mode the new chat is assigned to an agent.
func (c *Client) OpenChat(ctx context.Context, data ChatData) (*OpenResult, error) {
	user, err := c.signupOrFind(ctx, data.User)
	if err != nil {
		return nil, err
	}

	if ext := data.User.ExternalID; ext != "" {
		if _, busy := c.opening.LoadOrStore(ext, struct{}{}); busy {
			return nil, connerrors.Backend("hyperchat", 0, "already opening a chat", nil)
		}
		defer c.opening.Delete(ext)
	}

	active, err := c.activeChat(ctx, user)
	if err != nil {
		return nil, err
	}
	if active != nil && active.Status != StatusClosed {
		if data.ChatExternalID == "" || active.ExternalID == data.ChatExternalID {
			return &OpenResult{Chat: active, Existed: true}, nil
		}
	}

	roomID := data.RoomID
	if roomID == "" {
		roomID = c.cfg.RoomID
	}
	var available bool
	if c.cfg.QueueActive {
		available, err = c.agentsOnline(ctx, roomID)
	} else {
		available, err = c.agentsAvailable(ctx, roomID)
	}
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, connerrors.Backend("hyperchat", 0, "no available agents", nil)
	}

	body := map[string]any{
		"creator": user.ID,
		"room":    roomID,
		"source":  c.cfg.Source,
		"lang":    c.cfg.Lang,
	}
	if data.ChatExternalID != "" {
		body["externalId"] = data.ChatExternalID
	}
	if len(data.History) > 0 {
		history := make([]HistoryEntry, len(data.History))
		for i, h := range data.History {
			if h.Sender != "assistant" {
				h.Sender = user.ID
			}
			history[i] = h
		}
		body["history"] = history
	}

	var created struct {
		Chat *Chat `json:"chat"`
	}
	if err := c.do(ctx, http.MethodPost, "chats/", nil, body, &created); err != nil {
		return nil, fmt.Errorf("chat creation failed: %w", err)
	}
	if created.Chat == nil {
		return nil, connerrors.Backend("hyperchat", 0, "chat creation failed: empty response", nil)
	}

	if !c.cfg.QueueActive {
		if err := c.do(ctx, http.MethodGet, "chats/"+created.Chat.ID+"/assign", nil, nil, nil); err != nil {
			return nil, fmt.Errorf("chat assignation failed: %w", err)
		}
	}
	return &OpenResult{Chat: created.Chat}, nil
}

// SendMessage posts a text message from the user to the active chat.
func (c *Client) SendMessage(ctx context.Context, externalID, message string) error {
	user, chat, err := c.userChat(ctx, externalID)
	if err != nil {
		return err
	}
	body := map[string]any{
		"chatId":  chat.ID,
		"sender":  user.ID,
		"message": message,
	}
	return c.do(ctx, http.MethodPost, "chats/"+chat.ID+"/messages", nil, body, nil)
}

// SendMedia uploads a file from the user to the active chat.
func (c *Client) SendMedia(ctx context.Context, externalID, name, mimeType string, content []byte) error {
	user, chat, err := c.userChat(ctx, externalID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("chatId", chat.ID)
	_ = mw.WriteField("senderId", user.ID)
	part, err := mw.CreateFormFile("media", name)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.send(ctx, http.MethodPost, "media/", nil, &buf, mw.FormDataContentType(), nil)
}

// CloseChat closes the active chat of the user.
func (c *Client) CloseChat(ctx context.Context, externalID string) error {
	user, chat, err := c.userChat(ctx, externalID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "chats/"+chat.ID, url.Values{"userId": {user.ID}}, nil, nil)
}

// CloseChatByID closes a chat on behalf of the system.
func (c *Client) CloseChatByID(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "chats/"+chatID, nil, nil, nil)
}

// ChatInfo returns the chat, or nil when chatID is empty or unknown.
func (c *Client) ChatInfo(ctx context.Context, chatID string) (*Chat, error) {
	if chatID == "" {
		return nil, nil
	}
	var resp struct {
		Chat *Chat `json:"chat"`
	}
	if err := c.do(ctx, http.MethodGet, "chats/"+chatID, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chat, nil
}

// UserInfo returns the user, or nil when userID is empty or unknown.
func (c *Client) UserInfo(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, nil
	}
	var resp struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "users/"+userID, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// ContentURL returns the authenticated URL of an uploaded media file.
func (c *Client) ContentURL(mediaURL string) string {
	q := url.Values{"appId": {c.cfg.AppID}, "secret": {c.cfg.Secret}}
	return c.baseURL + strings.TrimPrefix(mediaURL, "/") + "?" + q.Encode()
}

// Download fetches a media file as a base64 data URL.
func (c *Client) Download(ctx context.Context, mediaURL, mimeType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ContentURL(mediaURL), nil)
	if err != nil {
		return "", err
	}
	c.authenticate(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", connerrors.Backend("hyperchat", 0, "download media", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", connerrors.Backend("hyperchat", resp.StatusCode, "download media: "+resp.Status, nil)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

func (c *Client) signupOrFind(ctx context.Context, u ChatUser) (*User, error) {
	body := map[string]any{"name": u.Name}
	if u.ExternalID != "" {
		body["externalId"] = u.ExternalID
	}
	if u.Contact != "" {
		body["contact"] = u.Contact
	}
	if len(u.ExtraInfo) > 0 {
		body["extraInfo"] = u.ExtraInfo
	}

	var resp struct {
		User *User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "users/", nil, body, &resp)
	if err == nil && resp.User != nil {
		return resp.User, nil
	}
	var ce *connerrors.ConnectorError
	if err != nil && errors.As(err, &ce) && ce.Code == userAlreadyExists {
		user, err := c.userByExternalID(ctx, u.ExternalID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}
	if err == nil {
		err = connerrors.Backend("hyperchat", 0, "error signing up the user", nil)
	}
	return nil, err
}

func (c *Client) userByExternalID(ctx context.Context, externalID string) (*User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "users/", url.Values{"externalId": {externalID}}, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, nil
	}
	return &resp.Users[0], nil
}

func (c *Client) activeChat(ctx context.Context, user *User) (*Chat, error) {
	if len(user.Chats) == 0 {
		return nil, nil
	}
	return c.ChatInfo(ctx, user.Chats[0])
}

func (c *Client) userChat(ctx context.Context, externalID string) (*User, *Chat, error) {
	user, err := c.userByExternalID(ctx, externalID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, connerrors.Backend("hyperchat", 0, "user does not exist", nil)
	}
	chat, err := c.activeChat(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	if chat == nil {
		return nil, nil, connerrors.Backend("hyperchat", 0, "chat does not exist", nil)
	}
	return user, chat, nil
}

func (c *Client) authenticate(req *http.Request) {
	req.Header.Set("x-hyper-appid", c.cfg.AppID)
	req.Header.Set("x-hyper-secret", c.cfg.Secret)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, query, reader, contentType, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	c.authenticate(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return connerrors.Backend("hyperchat", 0, method+" "+path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return connerrors.Backend("hyperchat", resp.StatusCode, "read body", err)
	}

	var envelope struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
		code := envelope.Error.Code
		if code == 0 {
			code = resp.StatusCode
		}
		return connerrors.Backend("hyperchat", code, envelope.Error.Message, nil)
	}
	if resp.StatusCode >= 300 {
		return connerrors.Backend("hyperchat", resp.StatusCode, method+" "+path+": "+resp.Status, nil)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return connerrors.Backend("hyperchat", resp.StatusCode, "decode response", err)
	}
	return nil
}

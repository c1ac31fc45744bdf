// Package messenger is the client of the Messenger (ticketing) API: work
// timetable, tickets, users and satisfaction surveys.
package messenger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/inbenta"
)

// The work timetable changes rarely; it is cached for this long.
const timetableTTL = 1800 * time.Second

type Client struct {
	auth *inbenta.Auth
	url  string
	now  func() time.Time

	mu          sync.Mutex
	timetable   *WorkTimeTable
	timetableAt time.Time
}

// New resolves the ticketing endpoint; a missing endpoint is a configuration error.
func New(ctx context.Context, auth *inbenta.Auth) (*Client, error) {
	endpoint, err := auth.Endpoint(ctx, "ticketing")
	if err != nil {
		return nil, err
	}
	return &Client{auth: auth, url: endpoint, now: time.Now}, nil
}

// WorkTimeTable returns the weekly timetables and holidays of every queue.
func (c *Client) WorkTimeTable(ctx context.Context) (*WorkTimeTable, error) {
	c.mu.Lock()
	if c.timetable != nil && c.now().Sub(c.timetableAt) < timetableTTL {
		tt := c.timetable
		c.mu.Unlock()
		return tt, nil
	}
	c.mu.Unlock()

	var tt WorkTimeTable
	if err := c.call(ctx, http.MethodGet, "/v1/settings/work-timetable", nil, &tt); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.timetable, c.timetableAt = &tt, c.now()
	c.mu.Unlock()
	return &tt, nil
}

// TicketID returns the ticket created for a live chat, or "".
func (c *Client) TicketID(ctx context.Context, chatID string) (string, error) {
	var resp struct {
		Data []struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	path := "/v1/tickets?" + url.Values{"external_id": {chatID}}.Encode()
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return resp.Data[0].ID.String(), nil
}

// StartSurvey starts survey surveyID for a ticket.
func (c *Client) StartSurvey(ctx context.Context, ticketID, surveyID string) (*Survey, error) {
	var resp struct {
		Data     *Survey `json:"data"`
		Response *Survey `json:"response"`
	}
	body := map[string]any{"sourceType": "ticket", "sourceId": ticketID}
	if err := c.call(ctx, http.MethodPost, "/v1/surveys/"+url.PathEscape(surveyID)+"/start", body, &resp); err != nil {
		return nil, err
	}
	if resp.Response != nil {
		return resp.Response, nil
	}
	return resp.Data, nil
}

// SurveyForChat starts the survey for the ticket linked to a chat. It returns
// nil when the chat has no ticket.
func (c *Client) SurveyForChat(ctx context.Context, chatID, surveyID string) (*Survey, error) {
	ticketID, err := c.TicketID(ctx, chatID)
	if err != nil || ticketID == "" {
		return nil, err
	}
	return c.StartSurvey(ctx, ticketID, surveyID)
}

// SubmitSurvey posts the answers keyed by question id.
func (c *Client) SubmitSurvey(ctx context.Context, answers map[string]string, token, surveyID string) error {
	body := map[string]any{"field_answers": answers, "token": token}
	return c.call(ctx, http.MethodPost, "/v1/surveys/"+url.PathEscape(surveyID)+"/submit", body, nil)
}

// userID returns the Messenger user with the given address, creating it when
// it does not exist. It returns "" when neither works.
func (c *Client) userID(ctx context.Context, email, fullName string) (string, error) {
	var found struct {
		Data []struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	path := "/v1/users?" + url.Values{"address": {email}}.Encode()
	if err := c.call(ctx, http.MethodGet, path, nil, &found); err != nil {
		return "", err
	}
	if len(found.Data) > 0 {
		return found.Data[0].ID.String(), nil
	}

	var created struct {
		UUID string `json:"uuid"`
	}
	body := map[string]any{"name": fullName, "address": email}
	if err := c.call(ctx, http.MethodPost, "/v1/users", body, &created); err != nil {
		return "", err
	}
	return created.UUID, nil
}

// CreateTicket opens a ticket from the escalation form fields (FIRST_NAME,
// LAST_NAME, EMAIL_ADDRESS, INQUIRY, QUEUE) with the conversation attached.
// It returns the ticket reference, or "" when the ticket could not be created.
func (c *Client) CreateTicket(ctx context.Context, form map[string]any, history []TranscriptEntry, source string) (string, error) {
	email := formString(form, "EMAIL_ADDRESS")
	if email == "" {
		return "", nil
	}
	fullName := strings.TrimSpace(formString(form, "FIRST_NAME") + " " + formString(form, "LAST_NAME"))
	inquiry := formString(form, "INQUIRY")
	queue := formString(form, "QUEUE")
	if queue == "" {
		queue = "1"
	}

	creator, err := c.userID(ctx, email, fullName)
	if err != nil || creator == "" || creator == "0" {
		return "", err
	}

	body := map[string]any{
		"title":        inquiry,
		"creator":      creator,
		"message":      inquiry,
		"source":       source,
		"queue":        queue,
		"autoclassify": true,
		"history":      map[string]any{"messages": processTranscript(history)},
	}
	var ticket struct {
		FullUUID string `json:"full_uuid"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/tickets", body, &ticket); err != nil {
		return "", err
	}
	return ticket.FullUUID, nil
}

func formString(form map[string]any, key string) string {
	switch v := form[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return strings.Trim(string(b), `"`)
	}
}

func (c *Client) call(ctx context.Context, method, path string, body map[string]any, out any) error {
	h, err := c.auth.Headers(ctx)
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		h.Set("Content-Type", "application/x-www-form-urlencoded")
		reader = strings.NewReader(encodeForm(body))
	}
	return inbenta.Call(ctx, c.auth.HTTPClient(), method, c.url+path, h, reader, out)
}

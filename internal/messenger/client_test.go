package messenger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/inbenta"
)

type fakeMessenger struct {
	srv            *httptest.Server
	timetableCalls int
	lastTicketForm url.Values
	lastSurveyForm url.Values
	existingUserID string
	createdUsers   int
}

func newFakeMessenger(t *testing.T) *fakeMessenger {
	t.Helper()
	f := &fakeMessenger{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"accessToken": "a",
				"expiration":  time.Now().Add(time.Hour).Unix(),
				"apis":        map[string]string{"ticketing": f.srv.URL},
			})
		case "/v1/settings/work-timetable":
			f.timetableCalls++
			_, _ = w.Write([]byte(`{"weeks":[{"queueId":1,"Monday":[{"from":"09:00","to":"17:00"}],"Tuesday":[],"Sunday":[]}],"holidays":[{"queueId":"1","days":["2024-12-25"]}]}`))
		case "/v1/tickets":
			if r.Method == http.MethodGet {
				if r.URL.Query().Get("external_id") == "chat-1" {
					_, _ = w.Write([]byte(`{"data":[{"id":42}]}`))
					return
				}
				_, _ = w.Write([]byte(`{"data":[]}`))
				return
			}
			require.NoError(t, r.ParseForm())
			f.lastTicketForm = r.PostForm
			_, _ = w.Write([]byte(`{"full_uuid":"TCK-1"}`))
		case "/v1/users":
			if r.Method == http.MethodGet {
				if f.existingUserID != "" {
					_, _ = w.Write([]byte(`{"data":[{"id":` + f.existingUserID + `}]}`))
					return
				}
				_, _ = w.Write([]byte(`{"data":[]}`))
				return
			}
			f.createdUsers++
			_, _ = w.Write([]byte(`{"uuid":"user-uuid"}`))
		case "/v1/surveys/7/start":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "ticket", r.PostForm.Get("sourceType"))
			assert.Equal(t, "42", r.PostForm.Get("sourceId"))
			_, _ = w.Write([]byte(`{"data":{"token":"stk","settings":[{"subtype":"thankyoupage","value":{"message":"Bye"}}],"pages":[{"id":1,"items":[{"id":10,"type":"field","subtype":"header"},{"id":11,"type":"field","subtype":"rating","settings":{"options":[1,2,3]}}]}]}}`))
		case "/v1/surveys/7/submit":
			require.NoError(t, r.ParseForm())
			f.lastSurveyForm = r.PostForm
			_, _ = w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func newTestClient(t *testing.T, f *fakeMessenger) *Client {
	t.Helper()
	auth, err := inbenta.NewAuth(f.srv.URL, "key", "secret", f.srv.Client())
	require.NoError(t, err)
	c, err := New(context.Background(), auth)
	require.NoError(t, err)
	return c
}

func TestWorkTimeTableIsCached(t *testing.T) {
	f := newFakeMessenger(t)
	c := newTestClient(t, f)
	ctx := context.Background()

	tt, err := c.WorkTimeTable(ctx)
	require.NoError(t, err)
	require.Len(t, tt.Weeks, 1)
	assert.Equal(t, "1", tt.Weeks[0].QueueID.String())
	assert.Equal(t, []Interval{{From: "09:00", To: "17:00"}}, tt.Weeks[0].Days[time.Monday])
	assert.Empty(t, tt.Weeks[0].Days[time.Tuesday])
	require.Len(t, tt.Holidays, 1)
	assert.Equal(t, "1", tt.Holidays[0].QueueID.String())

	_, err = c.WorkTimeTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.timetableCalls)

	c.now = func() time.Time { return time.Now().Add(timetableTTL + time.Second) }
	_, err = c.WorkTimeTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.timetableCalls)
}

func TestCreateTicketCreatesUser(t *testing.T) {
	f := newFakeMessenger(t)
	c := newTestClient(t, f)

	ref, err := c.CreateTicket(context.Background(), map[string]any{
		"FIRST_NAME":    "Ann",
		"LAST_NAME":     "Lee",
		"EMAIL_ADDRESS": "ann@example.com",
		"INQUIRY":       "My order is late",
		"QUEUE":         float64(3),
	}, []TranscriptEntry{
		{Sender: "user", Message: "hello", Created: 0},
		{Sender: "assistant", Message: "<b>Hi</b><br>there", Created: 60},
		{Sender: "assistant", Message: "   ", Created: 61},
	}, "5")
	require.NoError(t, err)
	assert.Equal(t, "TCK-1", ref)
	assert.Equal(t, 1, f.createdUsers)

	form := f.lastTicketForm
	assert.Equal(t, "My order is late", form.Get("title"))
	assert.Equal(t, "user-uuid", form.Get("creator"))
	assert.Equal(t, "3", form.Get("queue"))
	assert.Equal(t, "5", form.Get("source"))
	assert.Equal(t, "1", form.Get("autoclassify"))
	assert.Equal(t, "hello (<small>1970-01-01 00:00:00Z</small>)", form.Get("history[messages][0][message]"))
	assert.Equal(t, "Hi<br>there (<small>1970-01-01 00:01:00Z</small>)", form.Get("history[messages][1][message]"))
	assert.Equal(t, "assistant", form.Get("history[messages][1][user]"))
	assert.Empty(t, form.Get("history[messages][2][message]"))
}

func TestCreateTicketExistingUserAndDefaults(t *testing.T) {
	f := newFakeMessenger(t)
	f.existingUserID = "17"
	c := newTestClient(t, f)

	ref, err := c.CreateTicket(context.Background(), map[string]any{"EMAIL_ADDRESS": "a@b.c", "INQUIRY": "x"}, nil, "1")
	require.NoError(t, err)
	assert.Equal(t, "TCK-1", ref)
	assert.Equal(t, 0, f.createdUsers)
	assert.Equal(t, "17", f.lastTicketForm.Get("creator"))
	assert.Equal(t, "1", f.lastTicketForm.Get("queue"))
}

func TestCreateTicketWithoutEmail(t *testing.T) {
	f := newFakeMessenger(t)
	c := newTestClient(t, f)

	ref, err := c.CreateTicket(context.Background(), map[string]any{"INQUIRY": "x"}, nil, "1")
	require.NoError(t, err)
	assert.Empty(t, ref)
	assert.Nil(t, f.lastTicketForm)
}

func TestSurveyLifecycle(t *testing.T) {
	f := newFakeMessenger(t)
	c := newTestClient(t, f)
	ctx := context.Background()

	none, err := c.SurveyForChat(ctx, "chat-unknown", "7")
	require.NoError(t, err)
	assert.Nil(t, none)

	s, err := c.SurveyForChat(ctx, "chat-1", "7")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "stk", s.Token)
	require.Len(t, s.Pages, 1)
	assert.Len(t, s.Pages[0].Items, 2)

	require.NoError(t, c.SubmitSurvey(ctx, map[string]string{"11": "3"}, "stk", "7"))
	assert.Equal(t, "3", f.lastSurveyForm.Get("field_answers[11]"))
	assert.Equal(t, "stk", f.lastSurveyForm.Get("token"))
}

func TestStripTags(t *testing.T) {
	in := `<div class="x"><p>Hello <strong>world</strong></p><script>x</script><a href="/y">link</a></div>`
	assert.Equal(t, `<p>Hello world</p>x<a href="/y">link</a>`, StripTags(in, allowedTags))
}

package connector

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/config"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/hyperchat"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/lang"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/logger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/messenger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/session"
)

type fakeBot struct {
	replies   []*botapi.BotResponse
	errs      []error
	sent      []botapi.UserMessage
	events    []botapi.Event
	variables []botapi.VariableValue
	history   []botapi.HistoryEntry
	starts    int
}

func (b *fakeBot) StartConversation(context.Context) (string, error) {
	b.starts++
	return "token", nil
}

func (b *fakeBot) SendMessage(_ context.Context, msg botapi.UserMessage) (*botapi.BotResponse, error) {
	b.sent = append(b.sent, msg)
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(b.replies) == 0 {
		return botapi.TextResponse("ok"), nil
	}
	reply := b.replies[0]
	b.replies = b.replies[1:]
	return reply, nil
}

func (b *fakeBot) TrackEvent(_ context.Context, ev botapi.Event) error {
	b.events = append(b.events, ev)
	return nil
}

func (b *fakeBot) SetVariable(_ context.Context, v botapi.VariableValue) (bool, error) {
	b.variables = append(b.variables, v)
	return true, nil
}

func (b *fakeBot) ChatHistory(context.Context) ([]botapi.HistoryEntry, error) {
	return b.history, nil
}

func (b *fakeBot) eventTypes() []string {
	out := make([]string, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.Type
	}
	return out
}

type fakeChannel struct {
	sent   []any
	texts  []string
	typing int
}

func (c *fakeChannel) SendMessage(_ context.Context, msg any) error {
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) SendTextMessage(_ context.Context, text string) error {
	c.texts = append(c.texts, text)
	return nil
}

func (c *fakeChannel) ShowBotTyping(context.Context, bool) error {
	c.typing++
	return nil
}

func (c *fakeChannel) FullName() string   { return "Jane Doe" }
func (c *fakeChannel) Email() string      { return "jane@example.com" }
func (c *fakeChannel) ExternalID() string { return "user-1" }

// profileChannel can edit the user profile.
type profileChannel struct {
	fakeChannel
	name  string
	email string
	extra map[string]any
}

func (c *profileChannel) SetFullName(_ context.Context, name string) error {
	c.name = name
	return nil
}

func (c *profileChannel) SetEmail(_ context.Context, email string) error {
	c.email = email
	return nil
}

func (c *profileChannel) SetExtraInfo(_ context.Context, info map[string]any) error {
	c.extra = info
	return nil
}

func (c *profileChannel) ExtraInfo() map[string]any { return c.extra }

// fakeDigester reads a JSON array of canonical messages and renders answers
// as their text.
type fakeDigester struct{}

func (fakeDigester) DigestToAPI(_ context.Context, raw []byte) ([]botapi.UserMessage, error) {
	var out []botapi.UserMessage
	err := json.Unmarshal(raw, &out)
	return out, err
}

func (fakeDigester) DigestFromAPI(_ context.Context, resp *botapi.BotResponse, _ string) ([]any, error) {
	out := make([]any, 0, len(resp.Answers))
	for _, a := range resp.Answers {
		out = append(out, a.Message)
	}
	return out, nil
}

func (fakeDigester) BuildEscalationMessage() any { return "ESCALATE?" }

func (fakeDigester) BuildContentRatingsMessage(_ []config.RatingOption, rateCode string) any {
	return "RATE:" + rateCode
}

type surveyDigester struct {
	fakeDigester
	steps    []SurveyStep
	received []string
}

func (d *surveyDigester) NextSurveyQuestion(_ context.Context, _ SurveyElements, message string) ([]SurveyStep, error) {
	d.received = append(d.received, message)
	return d.steps, nil
}

func (d *surveyDigester) AskForSurvey() any { return "TAKE SURVEY?" }

type liveSent struct {
	externalID string
	message    string
	media      string
}

type fakeLive struct {
	queue   bool
	agents  bool
	openErr error
	chats   map[string]*hyperchat.Chat
	users   map[string]*hyperchat.User
	opened  []hyperchat.ChatData
	sent    []liveSent
	closed  []string
}

func newFakeLive() *fakeLive {
	return &fakeLive{agents: true, chats: map[string]*hyperchat.Chat{}, users: map[string]*hyperchat.User{}}
}

func (l *fakeLive) IsQueueModeActive() bool { return l.queue }

func (l *fakeLive) CheckAgentsOnline(context.Context) (bool, error) { return l.agents, nil }

func (l *fakeLive) CheckAgentsAvailable(context.Context) (bool, error) { return l.agents, nil }

func (l *fakeLive) OpenChat(_ context.Context, data hyperchat.ChatData) (*hyperchat.OpenResult, error) {
	l.opened = append(l.opened, data)
	if l.openErr != nil {
		return nil, l.openErr
	}
	chat := &hyperchat.Chat{ID: "chat-new", Status: hyperchat.StatusWaiting}
	l.chats[chat.ID] = chat
	return &hyperchat.OpenResult{Chat: chat}, nil
}

func (l *fakeLive) SendMessage(_ context.Context, externalID, message string) error {
	l.sent = append(l.sent, liveSent{externalID: externalID, message: message})
	return nil
}

func (l *fakeLive) SendMedia(_ context.Context, externalID, name, _ string, _ []byte) error {
	l.sent = append(l.sent, liveSent{externalID: externalID, media: name})
	return nil
}

func (l *fakeLive) ChatInfo(_ context.Context, chatID string) (*hyperchat.Chat, error) {
	return l.chats[chatID], nil
}

func (l *fakeLive) UserInfo(_ context.Context, userID string) (*hyperchat.User, error) {
	return l.users[userID], nil
}

func (l *fakeLive) CloseChat(_ context.Context, externalID string) error {
	l.closed = append(l.closed, externalID)
	return nil
}

type createdTicket struct {
	form    map[string]any
	history []messenger.TranscriptEntry
	source  string
}

type submittedSurvey struct {
	answers  map[string]string
	token    string
	surveyID string
}

type fakeTickets struct {
	table     *messenger.WorkTimeTable
	ref       string
	created   []createdTicket
	survey    *messenger.Survey
	submitted []submittedSurvey
}

func (t *fakeTickets) WorkTimeTable(context.Context) (*messenger.WorkTimeTable, error) {
	return t.table, nil
}

func (t *fakeTickets) CreateTicket(_ context.Context, form map[string]any, history []messenger.TranscriptEntry, source string) (string, error) {
	t.created = append(t.created, createdTicket{form: form, history: history, source: source})
	return t.ref, nil
}

func (t *fakeTickets) SurveyForChat(context.Context, string, string) (*messenger.Survey, error) {
	return t.survey, nil
}

func (t *fakeTickets) SubmitSurvey(_ context.Context, answers map[string]string, token, surveyID string) error {
	t.submitted = append(t.submitted, submittedSurvey{answers: answers, token: token, surveyID: surveyID})
	return nil
}

func testApp() *config.App {
	return &config.App{
		API: config.API{Key: "key", Secret: "secret"},
		Conversation: config.Conversation{
			ContentRatings: config.ContentRatings{
				Enabled: true,
				Ratings: []config.RatingOption{
					{ID: 1, Label: "yes"},
					{ID: 2, Label: "no", Comment: true, IsNegative: true},
				},
			},
		},
		Chat: config.Chat{
			Enabled:                         true,
			AppID:                           "app-1",
			RoomID:                          "1",
			Source:                          "3",
			ExitQueueCommand:                "exit",
			TriesBeforeEscalation:           2,
			NegativeRatingsBeforeEscalation: 2,
		},
	}
}

type harness struct {
	t        *testing.T
	app      *config.App
	sess     *session.Session
	bot      *fakeBot
	channel  Channel
	out      *fakeChannel
	digester Digester
	live     *fakeLive
	tickets  *fakeTickets
	now      func() time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sess, err := session.Open(context.Background(), session.NewMemoryBackend(), "user-1")
	require.NoError(t, err)
	out := &fakeChannel{}
	return &harness{
		t:        t,
		app:      testApp(),
		sess:     sess,
		bot:      &fakeBot{},
		channel:  out,
		out:      out,
		digester: fakeDigester{},
		live:     newFakeLive(),
		tickets:  &fakeTickets{ref: "T-1"},
	}
}

// withProfile switches the harness to a channel that edits the user profile.
func (h *harness) withProfile() *profileChannel {
	ch := &profileChannel{}
	h.channel = ch
	h.out = &ch.fakeChannel
	return ch
}

func (h *harness) engine() *Engine {
	tr, err := lang.Load("en", "")
	require.NoError(h.t, err)
	opts := Options{Now: h.now}
	if h.live != nil {
		opts.LiveChat = h.live
	}
	if h.tickets != nil {
		opts.Ticketing = h.tickets
	}
	return New(h.app, tr, logger.Nop(), opts)
}

func (h *harness) run(msgs ...botapi.UserMessage) error {
	raw, err := json.Marshal(msgs)
	require.NoError(h.t, err)
	return h.engine().HandleRequest(context.Background(), Request{
		Session:  h.sess,
		Bot:      h.bot,
		Channel:  h.channel,
		Digester: h.digester,
		Payload:  raw,
	})
}

func (h *harness) set(key string, value any) {
	require.NoError(h.t, h.sess.Set(context.Background(), key, value))
}

// conversation returns a request state machine for white-box tests.
func (h *harness) conversation() *conversation {
	return h.engine().conversation(Request{Session: h.sess, Bot: h.bot, Channel: h.channel, Digester: h.digester})
}

func boolPtr(b bool) *bool { return &b }

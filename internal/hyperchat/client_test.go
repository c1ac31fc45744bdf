package hyperchat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	connerrors "github.com/inbenta-integrations/chatbot-api-connector/internal/errors"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{AppID: "app"}, nil)
	assert.True(t, connerrors.IsConfig(err))
}

func TestServerURL(t *testing.T) {
	assert.Equal(t, "https://hyperchat-eu.inbenta.chat", Config{Region: "eu"}.ServerURL())
	assert.Equal(t, "https://hyperchat-us.inbenta.chat", Config{}.ServerURL())
	assert.Equal(t, "http://local:8000", Config{Server: "http://local:8000/", Region: "eu"}.ServerURL())
}

func TestAgentsChecks(t *testing.T) {
	f := newFakeHyperChat(t)
	c := f.client(t, false)
	ctx := context.Background()

	ok, err := c.CheckAgentsAvailable(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "app", f.lastAppID)
	assert.Equal(t, "sec", f.lastSecret)

	f.agentsAvail = 0
	ok, err = c.CheckAgentsAvailable(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	f.agentsOnline = false
	ok, err = c.CheckAgentsOnline(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenChatCreatesAndAssigns(t *testing.T) {
	f := newFakeHyperChat(t)
	c := f.client(t, false)
	ctx := context.Background()

	res, err := c.OpenChat(ctx, ChatData{
		User: ChatUser{Name: "Ann", ExternalID: "chatra-1"},
		History: []HistoryEntry{
			{Sender: "user", Message: "hello", Created: 1},
			{Sender: "assistant", Message: "hi", Created: 2},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Chat)
	assert.False(t, res.Existed)
	require.Len(t, f.created, 1)
	assert.Equal(t, "1", f.created[0]["room"])

	history := f.created[0]["history"].([]any)
	first := history[0].(map[string]any)
	second := history[1].(map[string]any)
	assert.Equal(t, f.created[0]["creator"], first["sender"])
	assert.Equal(t, "assistant", second["sender"])
	assert.Equal(t, []string{res.Chat.ID}, f.assigned)

	// the user already has an open chat: it is reused
	again, err := c.OpenChat(ctx, ChatData{User: ChatUser{Name: "Ann", ExternalID: "chatra-1"}})
	require.NoError(t, err)
	assert.True(t, again.Existed)
	assert.Equal(t, res.Chat.ID, again.Chat.ID)
	assert.Len(t, f.created, 1)
}

func TestOpenChatQueueModeSkipsAssign(t *testing.T) {
	f := newFakeHyperChat(t)
	c := f.client(t, true)

	res, err := c.OpenChat(context.Background(), ChatData{User: ChatUser{Name: "Bob", ExternalID: "chatra-2"}})
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, res.Chat.Status)
	assert.Empty(t, f.assigned)
}

func TestOpenChatWithoutAgents(t *testing.T) {
	f := newFakeHyperChat(t)
	f.agentsAvail = 0
	c := f.client(t, false)

	_, err := c.OpenChat(context.Background(), ChatData{User: ChatUser{Name: "Bob", ExternalID: "chatra-3"}})
	require.Error(t, err)
	assert.Empty(t, f.created)
}

func TestSendMessageAndClose(t *testing.T) {
	f := newFakeHyperChat(t)
	c := f.client(t, false)
	ctx := context.Background()

	res, err := c.OpenChat(ctx, ChatData{User: ChatUser{Name: "Ann", ExternalID: "chatra-1"}})
	require.NoError(t, err)

	require.NoError(t, c.SendMessage(ctx, "chatra-1", "hi agent"))
	require.Len(t, f.messages, 1)
	assert.Equal(t, "hi agent", f.messages[0]["message"])
	assert.Equal(t, res.Chat.ID, f.messages[0]["chatId"])

	require.NoError(t, c.SendMedia(ctx, "chatra-1", "a.png", "image/png", []byte("x")))
	assert.Equal(t, 1, f.uploads)

	require.NoError(t, c.CloseChat(ctx, "chatra-1"))
	assert.Equal(t, []string{res.Chat.ID}, f.closed)

	info, err := c.ChatInfo(ctx, res.Chat.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, info.Status)
}

func TestSendMessageUnknownUser(t *testing.T) {
	f := newFakeHyperChat(t)
	c := f.client(t, false)
	err := c.SendMessage(context.Background(), "nobody", "hi")
	assert.Error(t, err)
}

func TestChatInfoEmptyID(t *testing.T) {
	f := newFakeHyperChat(t)
	c := f.client(t, false)
	chat, err := c.ChatInfo(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, chat)
}

func TestFlex(t *testing.T) {
	var chat Chat
	require.NoError(t, jsonUnmarshal(`{"id":"c1","inQueue":1,"source":3}`, &chat))
	assert.True(t, chat.InQueue.True())
	assert.Equal(t, "3", chat.Source.String())

	require.NoError(t, jsonUnmarshal(`{"id":"c1","inQueue":false,"source":"3"}`, &chat))
	assert.False(t, chat.InQueue.True())
	assert.Equal(t, "3", chat.Source.String())
}

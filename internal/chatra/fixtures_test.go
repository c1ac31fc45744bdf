package chatra

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/lang"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/logger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/session"
)

type pushed struct {
	clientID string
	text     string
}

type fakeOutbound struct {
	pushed []pushed
	err    error
}

func (o *fakeOutbound) SendToChat(_ context.Context, clientID, text string) error {
	if o.err != nil {
		return o.err
	}
	o.pushed = append(o.pushed, pushed{clientID: clientID, text: text})
	return nil
}

func (o *fakeOutbound) texts() []string {
	out := make([]string, len(o.pushed))
	for i, p := range o.pushed {
		out[i] = p.text
	}
	return out
}

type fixture struct {
	sess    *session.Session
	out     *fakeOutbound
	channel *Channel
	dg      *Digester
	lang    *lang.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sess, err := session.Open(context.Background(), session.NewMemoryBackend(), "client-1")
	require.NoError(t, err)
	tr, err := lang.Load("en", "")
	require.NoError(t, err)
	out := &fakeOutbound{}
	opener := NewOpener(out, tr, logger.Nop())
	ch, dg := opener.open(sess)
	return &fixture{sess: sess, out: out, channel: ch, dg: dg, lang: tr}
}

func payload(t *testing.T, text string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"chat_id": "chat-1", "client_id": "client-1", "text": text})
	require.NoError(t, err)
	return raw
}

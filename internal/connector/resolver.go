package connector

import (
	"context"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/hyperchat"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/session"
)

// Resolver reaches the user of a live chat through the channel the chat was
// opened from. Sessions are keyed by the external id given to the chat.
type Resolver struct {
	engine   *Engine
	sessions session.Backend
	channels ChannelOpener
}

func NewResolver(engine *Engine, sessions session.Backend, channels ChannelOpener) *Resolver {
	return &Resolver{engine: engine, sessions: sessions, channels: channels}
}

func (r *Resolver) Resolve(ctx context.Context, externalID string) (hyperchat.Recipient, error) {
	sess, err := session.Open(ctx, r.sessions, externalID)
	if err != nil {
		return nil, err
	}
	ch, dg, err := r.channels.OpenChannel(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &recipient{engine: r.engine, sess: sess, channel: ch, digester: dg}, nil
}

type recipient struct {
	engine   *Engine
	sess     *session.Session
	channel  Channel
	digester Digester
}

func (r *recipient) SendTextMessage(ctx context.Context, text string) error {
	return r.channel.SendTextMessage(ctx, text)
}

// SendAttachment shows agent media, as a link when the channel cannot show
// files.
func (r *recipient) SendAttachment(ctx context.Context, a hyperchat.Attachment) error {
	if sender, ok := r.channel.(AttachmentSender); ok {
		return sender.SendAttachment(ctx, a)
	}
	return r.channel.SendTextMessage(ctx, a.URL)
}

func (r *recipient) ShowTyping(ctx context.Context, on bool) error {
	return r.channel.ShowBotTyping(ctx, on)
}

// ChatClosed forgets the chat and offers the satisfaction survey.
func (r *recipient) ChatClosed(ctx context.Context, chat *hyperchat.Chat) error {
	if err := r.sess.Set(ctx, keyChatOnGoing, false); err != nil {
		return err
	}
	if chat == nil {
		return nil
	}
	if err := r.sess.Delete(ctx, keyChatActivePrefix+chat.ID); err != nil {
		return err
	}
	return r.engine.offerSurvey(ctx, r.sess, r.channel, r.digester, chat.ID)
}

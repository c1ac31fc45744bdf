package chatra

import (
	"context"
	"fmt"
	"strings"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/connector"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/logger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/session"
)

const (
	keyProfileName  = "chatra.profile.name"
	keyProfileEmail = "chatra.profile.email"
	keyProfileExtra = "chatra.profile.extra"
	keyChoices      = "chatra.choices"
)

// Channel talks to one Chatra visitor. The widget has no profile API, so the
// profile lives in the session.
type Channel struct {
	out      Outbound
	sess     *session.Session
	clientID string
	log      *logger.Logger
}

func NewChannel(out Outbound, sess *session.Session, log *logger.Logger) *Channel {
	return &Channel{out: out, sess: sess, clientID: sess.ID(), log: log}
}

// SendMessage sends text or a prompt. The choices of a prompt are kept for the
// next inbound message.
func (c *Channel) SendMessage(ctx context.Context, msg any) error {
	switch m := msg.(type) {
	case string:
		return c.SendTextMessage(ctx, m)
	case Prompt:
		if err := c.sess.Set(ctx, keyChoices, m.Choices); err != nil {
			return err
		}
		return c.SendTextMessage(ctx, m.String())
	default:
		return fmt.Errorf("chatra: unsupported message %T", msg)
	}
}

func (c *Channel) SendTextMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.out.SendToChat(ctx, c.clientID, text)
}

// ShowBotTyping is a no-op: the REST API has no typing indicator.
func (c *Channel) ShowBotTyping(context.Context, bool) error { return nil }

func (c *Channel) FullName() string   { return c.sess.String(keyProfileName) }
func (c *Channel) Email() string      { return c.sess.String(keyProfileEmail) }
func (c *Channel) ExternalID() string { return c.clientID }

func (c *Channel) SetFullName(ctx context.Context, name string) error {
	return c.sess.Set(ctx, keyProfileName, name)
}

func (c *Channel) SetEmail(ctx context.Context, email string) error {
	return c.sess.Set(ctx, keyProfileEmail, email)
}

func (c *Channel) SetExtraInfo(ctx context.Context, info map[string]any) error {
	return c.sess.Set(ctx, keyProfileExtra, info)
}

func (c *Channel) ExtraInfo() map[string]any {
	info, _ := c.sess.Get(keyProfileExtra, nil).(map[string]any)
	return info
}

// updateProfile keeps what the widget knows about the visitor.
func (c *Channel) updateProfile(ctx context.Context, info ClientInfo) error {
	if name := strings.TrimSpace(info.Name); name != "" && name != c.FullName() {
		if err := c.SetFullName(ctx, name); err != nil {
			return err
		}
	}
	if email := strings.TrimSpace(info.Email); email != "" && email != c.Email() {
		return c.SetEmail(ctx, email)
	}
	return nil
}

// Opener reaches Chatra visitors by session, for events that do not come
// from the widget.
type Opener struct {
	out  Outbound
	lang connector.Translator
	log  *logger.Logger
}

func NewOpener(out Outbound, lang connector.Translator, log *logger.Logger) *Opener {
	return &Opener{out: out, lang: lang, log: log}
}

func (o *Opener) OpenChannel(_ context.Context, sess *session.Session) (connector.Channel, connector.Digester, error) {
	ch, dg := o.open(sess)
	return ch, dg, nil
}

func (o *Opener) open(sess *session.Session) (*Channel, *Digester) {
	return NewChannel(o.out, sess, o.log), NewDigester(sess, o.lang, o.log)
}

var (
	_ connector.Channel           = (*Channel)(nil)
	_ connector.ProfileEditor     = (*Channel)(nil)
	_ connector.ExtraInfoProvider = (*Channel)(nil)
	_ connector.ChannelOpener     = (*Opener)(nil)
)

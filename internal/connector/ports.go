package connector

import (
	"context"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/config"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/hyperchat"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/messenger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/session"
)

// Bot is the conversation backend of one user.
type Bot interface {
	StartConversation(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, msg botapi.UserMessage) (*botapi.BotResponse, error)
	TrackEvent(ctx context.Context, ev botapi.Event) error
	SetVariable(ctx context.Context, v botapi.VariableValue) (bool, error)
	ChatHistory(ctx context.Context) ([]botapi.HistoryEntry, error)
}

// Channel is the external channel client of one user. Messages passed to
// SendMessage are in the channel's own format, as built by its Digester.
type Channel interface {
	SendMessage(ctx context.Context, msg any) error
	SendTextMessage(ctx context.Context, text string) error
	ShowBotTyping(ctx context.Context, on bool) error
	FullName() string
	Email() string
	ExternalID() string
}

// ProfileEditor is implemented by channels that keep an editable user profile.
type ProfileEditor interface {
	SetFullName(ctx context.Context, name string) error
	SetEmail(ctx context.Context, email string) error
	SetExtraInfo(ctx context.Context, info map[string]any) error
}

type ExtraInfoProvider interface {
	ExtraInfo() map[string]any
}

// AttachmentSender is implemented by channels able to show agent media.
type AttachmentSender interface {
	SendAttachment(ctx context.Context, a hyperchat.Attachment) error
}

// Digester converts between the channel format and the canonical one.
type Digester interface {
	DigestToAPI(ctx context.Context, raw []byte) ([]botapi.UserMessage, error)
	DigestFromAPI(ctx context.Context, resp *botapi.BotResponse, lastUserQuestion string) ([]any, error)
	BuildEscalationMessage() any
	BuildContentRatingsMessage(options []config.RatingOption, rateCode string) any
}

// SurveyDigester is implemented by digesters able to run a survey in the channel.
type SurveyDigester interface {
	NextSurveyQuestion(ctx context.Context, elements SurveyElements, message string) ([]SurveyStep, error)
	AskForSurvey() any
}

// LiveChat is the live-agent backend.
type LiveChat interface {
	IsQueueModeActive() bool
	CheckAgentsOnline(ctx context.Context) (bool, error)
	CheckAgentsAvailable(ctx context.Context) (bool, error)
	OpenChat(ctx context.Context, data hyperchat.ChatData) (*hyperchat.OpenResult, error)
	SendMessage(ctx context.Context, externalID, message string) error
	SendMedia(ctx context.Context, externalID, name, mimeType string, content []byte) error
	ChatInfo(ctx context.Context, chatID string) (*hyperchat.Chat, error)
	UserInfo(ctx context.Context, userID string) (*hyperchat.User, error)
	CloseChat(ctx context.Context, externalID string) error
}

// Ticketing is the messenger backend.
type Ticketing interface {
	WorkTimeTable(ctx context.Context) (*messenger.WorkTimeTable, error)
	CreateTicket(ctx context.Context, form map[string]any, history []messenger.TranscriptEntry, source string) (string, error)
	SurveyForChat(ctx context.Context, chatID, surveyID string) (*messenger.Survey, error)
	SubmitSurvey(ctx context.Context, answers map[string]string, token, surveyID string) error
}

type Translator interface {
	Translate(key string, params map[string]string) string
	Has(key string) bool
}

// ChannelOpener builds the channel client and digester of the user owning sess.
type ChannelOpener interface {
	OpenChannel(ctx context.Context, sess *session.Session) (Channel, Digester, error)
}

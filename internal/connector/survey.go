package connector

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/messenger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/session"
)

// Sentinels yielded by SurveyDigester.NextSurveyQuestion.
const (
	SurveySubmit      = "__MAKE_SUBMIT__"
	SurveyEnd         = "__END_SURVEY__"
	SurveyNotAccepted = "__SURVEY_NOT_ACCEPTED__"
)

// SurveyStep is one output of the survey stepping: a sentinel, a text or a
// message already in channel format.
type SurveyStep struct {
	Sentinel string
	Text     string
	Message  any
}

// SurveyElements is the flattened survey kept in the session while it runs.
type SurveyElements struct {
	Token          string           `json:"token"`
	ThanksMessage  string           `json:"thanksMessage"`
	NavigatePage   any              `json:"navigatePage"`
	SurveyAccepted bool             `json:"surveyAccepted"`
	Questions      []SurveyQuestion `json:"questions"`
}

type SurveyQuestion struct {
	ID       string         `json:"id"`
	Page     string         `json:"page"`
	Type     string         `json:"type"`
	Subtype  string         `json:"subtype"`
	Settings map[string]any `json:"settings"`
	Response string         `json:"response"`
	Answered bool           `json:"answered"`
}

// handleSurvey routes the user text to the running survey and ends the
// request.
func (c *conversation) handleSurvey(ctx context.Context, messages []botapi.UserMessage) error {
	surveyDigester, ok := c.digester.(SurveyDigester)
	if !ok || !c.sess.Has(KeySurveyElements) || !c.sess.Truthy(KeySurveyLaunch) {
		return nil
	}
	var elements SurveyElements
	if _, err := c.sess.Decode(KeySurveyElements, &elements); err != nil {
		return err
	}
	text := ""
	if len(messages) > 0 {
		text = messages[0].Message
	}

	steps, err := surveyDigester.NextSurveyQuestion(ctx, elements, text)
	if err != nil {
		return err
	}
	for _, step := range steps {
		switch step.Sentinel {
		case SurveySubmit, SurveyEnd:
			// the digester may have recorded the last answer
			if _, err := c.sess.Decode(KeySurveyElements, &elements); err != nil {
				return err
			}
			if err := deleteSurveySession(ctx, c.sess); err != nil {
				return err
			}
			if step.Sentinel == SurveySubmit {
				if err := c.relayText(ctx, elements.ThanksMessage); err != nil {
					return err
				}
				if err := c.sendSurvey(ctx, elements); err != nil {
					return err
				}
			}
			return errHalt
		case SurveyNotAccepted:
			if err := deleteSurveySession(ctx, c.sess); err != nil {
				return err
			}
			continue
		}

		if step.Message != nil {
			err = c.channel.SendMessage(ctx, step.Message)
		} else {
			err = c.relayText(ctx, step.Text)
		}
		if err != nil {
			return err
		}
	}
	return errHalt
}

func deleteSurveySession(ctx context.Context, sess *session.Session) error {
	for _, key := range surveyKeys {
		if err := sess.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// sendSurvey submits the non-empty answers. Nothing is sent without a
// configured survey.
func (c *conversation) sendSurvey(ctx context.Context, elements SurveyElements) error {
	surveyID := c.app.Chat.Survey.ID
	if surveyID <= 0 || c.tickets == nil {
		return nil
	}
	answers := map[string]string{}
	for _, q := range elements.Questions {
		if q.Response != "" {
			answers[q.ID] = q.Response
		}
	}
	if err := c.tickets.SubmitSurvey(ctx, answers, elements.Token, strconv.Itoa(surveyID)); err != nil {
		return err
	}
	c.log.Info("survey submitted", "answers", len(answers))
	return nil
}

// processSurveyData flattens a started survey. Page headers are not
// questions.
func (e *Engine) processSurveyData(survey *messenger.Survey) *SurveyElements {
	if survey == nil || survey.Token == "" || survey.Pages == nil {
		return nil
	}
	elements := &SurveyElements{
		Token:         survey.Token,
		ThanksMessage: e.lang.Translate("thanks", nil),
		NavigatePage:  []any{},
		Questions:     []SurveyQuestion{},
	}
	for _, setting := range survey.Settings {
		switch setting.Subtype {
		case "thankyoupage":
			var page struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(setting.Value, &page); err == nil && page.Message != "" {
				elements.ThanksMessage = page.Message
			}
		case "navigatepage":
			var nav any
			if err := json.Unmarshal(setting.Value, &nav); err == nil {
				elements.NavigatePage = nav
			}
		}
	}
	for _, page := range survey.Pages {
		for _, item := range page.Items {
			if item.Subtype == "header" {
				continue
			}
			elements.Questions = append(elements.Questions, SurveyQuestion{
				ID:       item.ID.String(),
				Page:     page.ID.String(),
				Type:     item.Type,
				Subtype:  item.Subtype,
				Settings: item.Settings,
			})
		}
	}
	return elements
}

// offerSurvey starts the configured survey for a closed chat and asks the
// user to take it.
func (e *Engine) offerSurvey(ctx context.Context, sess *session.Session, ch Channel, dg Digester, chatID string) error {
	surveyID := e.app.Chat.Survey.ID
	surveyDigester, ok := dg.(SurveyDigester)
	if surveyID <= 0 || e.tickets == nil || !ok {
		return sess.Delete(ctx, KeySurveyConfirm)
	}

	survey, err := e.tickets.SurveyForChat(ctx, chatID, strconv.Itoa(surveyID))
	if err != nil {
		return err
	}
	elements := e.processSurveyData(survey)
	if elements == nil {
		if err := sess.Delete(ctx, KeySurveyElements); err != nil {
			return err
		}
		return sess.Delete(ctx, KeySurveyConfirm)
	}

	if err := sess.Set(ctx, KeySurveyElements, elements); err != nil {
		return err
	}
	if err := sess.Set(ctx, KeySurveyConfirm, true); err != nil {
		return err
	}
	if err := sess.Set(ctx, KeySurveyLaunch, true); err != nil {
		return err
	}
	e.log.Info("survey offered", "chat_id", chatID, "questions", len(elements.Questions))
	return ch.SendMessage(ctx, surveyDigester.AskForSurvey())
}

package connector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/messenger"
)

func runningSurvey(h *harness, steps ...SurveyStep) *surveyDigester {
	dg := &surveyDigester{steps: steps}
	h.digester = dg
	h.app.Chat.Survey.ID = 12
	h.set(KeySurveyLaunch, true)
	h.set(KeySurveyConfirm, true)
	h.set(KeySurveyElements, SurveyElements{
		Token:         "survey-token",
		ThanksMessage: "Thank you for your feedback",
		Questions: []SurveyQuestion{
			{ID: "11", Page: "1", Type: "select", Response: "5", Answered: true},
			{ID: "12", Page: "1", Type: "text"},
		},
	})
	return dg
}

func TestSurveyAsksNextQuestion(t *testing.T) {
	h := newHarness(t)
	dg := runningSurvey(h, SurveyStep{Text: "Any comments?"}, SurveyStep{Message: "OPTIONS"})

	require.NoError(t, h.run(botapi.UserMessage{Message: "5"}))

	assert.Equal(t, []string{"5"}, dg.received)
	assert.Equal(t, []any{"Any comments?", "OPTIONS"}, h.out.sent)
	assert.Empty(t, h.bot.sent)
	assert.True(t, h.sess.Has(KeySurveyElements))
}

func TestSurveySubmit(t *testing.T) {
	h := newHarness(t)
	runningSurvey(h, SurveyStep{Sentinel: SurveySubmit}, SurveyStep{Text: "never shown"})

	require.NoError(t, h.run(botapi.UserMessage{Message: "great"}))

	require.Len(t, h.tickets.submitted, 1)
	submitted := h.tickets.submitted[0]
	assert.Equal(t, map[string]string{"11": "5"}, submitted.answers)
	assert.Equal(t, "survey-token", submitted.token)
	assert.Equal(t, "12", submitted.surveyID)
	assert.Equal(t, []any{"Thank you for your feedback"}, h.out.sent)
	for _, key := range surveyKeys {
		assert.False(t, h.sess.Has(key), key)
	}
	assert.Empty(t, h.bot.sent)
}

func TestSurveyEndWithoutSubmitting(t *testing.T) {
	h := newHarness(t)
	runningSurvey(h, SurveyStep{Text: "Bye"}, SurveyStep{Sentinel: SurveyEnd})

	require.NoError(t, h.run(botapi.UserMessage{Message: "no"}))

	assert.Empty(t, h.tickets.submitted)
	assert.Equal(t, []any{"Bye"}, h.out.sent)
	assert.False(t, h.sess.Has(KeySurveyElements))
}

func TestSurveyNotAcceptedContinuesSteps(t *testing.T) {
	h := newHarness(t)
	runningSurvey(h, SurveyStep{Sentinel: SurveyNotAccepted}, SurveyStep{Text: "Maybe next time"})

	require.NoError(t, h.run(botapi.UserMessage{Message: "no"}))

	assert.Equal(t, []any{"Maybe next time"}, h.out.sent)
	assert.False(t, h.sess.Has(KeySurveyLaunch))
	assert.Empty(t, h.tickets.submitted)
	assert.Empty(t, h.bot.sent)
}

func TestSurveyIgnoredWhenNotLaunched(t *testing.T) {
	h := newHarness(t)
	dg := runningSurvey(h)
	h.set(KeySurveyLaunch, false)

	require.NoError(t, h.run(botapi.UserMessage{Message: "hello"}))

	assert.Empty(t, dg.received)
	require.Len(t, h.bot.sent, 1)
	assert.Equal(t, "hello", h.bot.sent[0].Message)
}

func TestProcessSurveyData(t *testing.T) {
	h := newHarness(t)
	survey := &messenger.Survey{
		Token: "tok",
		Settings: []messenger.SurveySetting{
			{Subtype: "thankyoupage", Value: json.RawMessage(`{"message":"See you"}`)},
			{Subtype: "navigatepage", Value: json.RawMessage(`{"next":"Next"}`)},
		},
		Pages: []messenger.SurveyPage{{
			ID: "1",
			Items: []messenger.SurveyItem{
				{ID: "10", Type: "static", Subtype: "header"},
				{ID: "11", Type: "select", Subtype: "radio", Settings: map[string]any{"options": []any{"1", "2"}}},
				{ID: "12", Type: "text", Subtype: "textarea"},
			},
		}},
	}

	elements := h.engine().processSurveyData(survey)

	require.NotNil(t, elements)
	assert.Equal(t, "tok", elements.Token)
	assert.Equal(t, "See you", elements.ThanksMessage)
	assert.Equal(t, map[string]any{"next": "Next"}, elements.NavigatePage)
	require.Len(t, elements.Questions, 2)
	assert.Equal(t, "11", elements.Questions[0].ID)
	assert.Equal(t, "1", elements.Questions[0].Page)
	assert.Equal(t, "textarea", elements.Questions[1].Subtype)
	assert.False(t, elements.Questions[1].Answered)
}

func TestProcessSurveyDataWithoutToken(t *testing.T) {
	h := newHarness(t)
	assert.Nil(t, h.engine().processSurveyData(nil))
	assert.Nil(t, h.engine().processSurveyData(&messenger.Survey{Pages: []messenger.SurveyPage{}}))

	elements := h.engine().processSurveyData(&messenger.Survey{Token: "tok", Pages: []messenger.SurveyPage{}})
	require.NotNil(t, elements)
	assert.Equal(t, "Thanks!", elements.ThanksMessage)
	assert.Empty(t, elements.Questions)
}

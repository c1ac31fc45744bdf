package chatra

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/config"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/connector"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/logger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/session"
)

// Digester converts between widget text and the bot message shapes. Options
// are shown as numbered lines; a numbered reply picks one.
type Digester struct {
	sess *session.Session
	lang connector.Translator
	log  *logger.Logger
}

func NewDigester(sess *session.Session, lang connector.Translator, log *logger.Logger) *Digester {
	return &Digester{sess: sess, lang: lang, log: log}
}

func (d *Digester) DigestToAPI(ctx context.Context, raw []byte) ([]botapi.UserMessage, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("chatra: decode payload: %w", err)
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return nil, nil
	}

	choices, err := d.pendingChoices(ctx)
	if err != nil {
		return nil, err
	}
	if choice, ok := pick(choices, text); ok {
		return []botapi.UserMessage{choice.message()}, nil
	}
	return []botapi.UserMessage{{Message: text}}, nil
}

// pendingChoices returns and forgets the choices of the last prompt.
func (d *Digester) pendingChoices(ctx context.Context) ([]Choice, error) {
	var choices []Choice
	found, err := d.sess.Decode(keyChoices, &choices)
	if err != nil || !found {
		return nil, err
	}
	return choices, d.sess.Delete(ctx, keyChoices)
}

func pick(choices []Choice, text string) (Choice, bool) {
	if n, err := strconv.Atoi(strings.TrimSuffix(text, ".")); err == nil {
		if n >= 1 && n <= len(choices) {
			return choices[n-1], true
		}
		return Choice{}, false
	}
	for _, c := range choices {
		if strings.EqualFold(c.Label, text) {
			return c, true
		}
	}
	return Choice{}, false
}

func (c Choice) message() botapi.UserMessage {
	switch c.Kind {
	case choiceOption:
		return botapi.UserMessage{Option: c.Value}
	case choiceEscalate:
		escalate := c.Escalate
		return botapi.UserMessage{EscalateOption: &escalate}
	case choiceRating:
		return botapi.UserMessage{
			RatingData: &botapi.Event{Type: "rate", Data: map[string]any{
				"code":    c.RateCode,
				"value":   c.RatingID,
				"comment": "",
			}},
			IsNegativeRating: c.Negative,
			AskRatingComment: c.Comment,
		}
	case choiceFederated:
		return botapi.UserMessage{ExtendedContentAnswer: json.RawMessage(strconv.Itoa(c.Index))}
	default:
		return botapi.UserMessage{Message: c.Value}
	}
}

func (d *Digester) DigestFromAPI(ctx context.Context, resp *botapi.BotResponse, _ string) ([]any, error) {
	if resp == nil {
		return nil, nil
	}
	out := make([]any, 0, len(resp.Answers))
	for _, a := range resp.Answers {
		text := answerText(a)
		switch {
		case a.Type == botapi.TypeExtendedContentsAnswer && len(a.SubAnswers) > 0:
			if err := d.sess.Set(ctx, connector.KeyFederatedSubanswers, a.SubAnswers); err != nil {
				return nil, err
			}
			prompt := Prompt{Text: text}
			for i, sub := range a.SubAnswers {
				prompt.Choices = append(prompt.Choices, Choice{Kind: choiceFederated, Label: subAnswerTitle(sub), Index: i})
			}
			out = append(out, prompt)
		case len(a.Options) > 0:
			prompt := Prompt{Text: text}
			for _, o := range a.Options {
				prompt.Choices = append(prompt.Choices, Choice{Kind: choiceOption, Label: htmlToText(o.Label), Value: fmt.Sprint(o.Value)})
			}
			out = append(out, prompt)
		case text != "":
			out = append(out, text)
		}
	}
	return out, nil
}

func answerText(a botapi.Answer) string {
	if a.Message != "" {
		return htmlToText(a.Message)
	}
	parts := make([]string, 0, len(a.MessageList))
	for _, m := range a.MessageList {
		if t := htmlToText(m); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func subAnswerTitle(a botapi.Answer) string {
	if a.Parameters != nil && a.Parameters.Contents != nil && a.Parameters.Contents.Title != "" {
		return a.Parameters.Contents.Title
	}
	title, _, _ := strings.Cut(answerText(a), "\n")
	return title
}

func (d *Digester) BuildEscalationMessage() any {
	return Prompt{
		Text: d.lang.Translate("ask_to_escalate", nil),
		Choices: []Choice{
			{Kind: choiceEscalate, Label: d.lang.Translate("yes", nil), Escalate: true},
			{Kind: choiceEscalate, Label: d.lang.Translate("no", nil)},
		},
	}
}

func (d *Digester) BuildContentRatingsMessage(options []config.RatingOption, rateCode string) any {
	prompt := Prompt{Text: d.lang.Translate("rate_content", nil)}
	for _, o := range options {
		prompt.Choices = append(prompt.Choices, Choice{
			Kind:     choiceRating,
			Label:    d.ratingLabel(o.Label),
			RateCode: rateCode,
			RatingID: o.ID,
			Comment:  o.Comment,
			Negative: o.IsNegative,
		})
	}
	return prompt
}

// ratingLabel translates labels given as translation keys.
func (d *Digester) ratingLabel(label string) string {
	if d.lang.Has(label) {
		return d.lang.Translate(label, nil)
	}
	return label
}

func (d *Digester) yesNo(text string) Prompt {
	return Prompt{
		Text: text,
		Choices: []Choice{
			{Kind: choiceText, Label: d.lang.Translate("yes", nil), Value: "yes"},
			{Kind: choiceText, Label: d.lang.Translate("no", nil), Value: "no"},
		},
	}
}

func (d *Digester) AskForSurvey() any {
	return d.yesNo(d.lang.Translate("ask_for_survey", nil))
}

var (
	_ connector.Digester       = (*Digester)(nil)
	_ connector.SurveyDigester = (*Digester)(nil)
)

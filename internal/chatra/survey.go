package chatra

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/connector"
)

// A question is offered again this many times before asking whether to go on.
const maxWrongSurveyAnswers = 2

// NextSurveyQuestion records the answer to the pending question and returns
// the next one, or the submit sentinel when every question is answered.
func (d *Digester) NextSurveyQuestion(ctx context.Context, elements connector.SurveyElements, message string) ([]connector.SurveyStep, error) {
	message = strings.TrimSpace(message)

	if !elements.SurveyAccepted {
		if !d.isYes(message) {
			return []connector.SurveyStep{
				{Sentinel: connector.SurveyNotAccepted},
				{Text: d.lang.Translate("thanks", nil)},
			}, nil
		}
		elements.SurveyAccepted = true
		return d.askNext(ctx, &elements)
	}

	if d.sess.Truthy(connector.KeySurveyAskForContinue) {
		if err := d.sess.Delete(ctx, connector.KeySurveyAskForContinue); err != nil {
			return nil, err
		}
		if !d.isYes(message) {
			return []connector.SurveyStep{
				{Text: d.lang.Translate("thanks", nil)},
				{Sentinel: connector.SurveyEnd},
			}, nil
		}
		if err := d.sess.Set(ctx, connector.KeySurveyWrongAnswers, 0); err != nil {
			return nil, err
		}
		return d.askNext(ctx, &elements)
	}

	if d.sess.Has(connector.KeySurveyPendingElement) {
		idx := d.sess.Int(connector.KeySurveyPendingElement)
		if idx >= 0 && idx < len(elements.Questions) {
			steps, err := d.answer(ctx, &elements, idx, message)
			if steps != nil || err != nil {
				return steps, err
			}
		}
	}
	return d.askNext(ctx, &elements)
}

// answer stores message as the response to question idx. It returns steps
// only when the answer is rejected.
func (d *Digester) answer(ctx context.Context, elements *connector.SurveyElements, idx int, message string) ([]connector.SurveyStep, error) {
	q := &elements.Questions[idx]

	var expected []string
	if _, err := d.sess.Decode(connector.KeySurveyExpectedValues, &expected); err != nil {
		return nil, err
	}
	if message == "" || (len(expected) > 0 && !slices.Contains(expected, message)) {
		wrong := d.sess.Int(connector.KeySurveyWrongAnswers) + 1
		if err := d.sess.Set(ctx, connector.KeySurveyWrongAnswers, wrong); err != nil {
			return nil, err
		}
		if wrong >= maxWrongSurveyAnswers {
			if err := d.sess.Set(ctx, connector.KeySurveyAskForContinue, true); err != nil {
				return nil, err
			}
			return []connector.SurveyStep{{Message: d.yesNo(d.lang.Translate("survey_continue", nil))}}, nil
		}
		hint := "survey_text_answer"
		if len(expected) > 0 {
			hint = "survey_wrong_answer"
		}
		return []connector.SurveyStep{
			{Text: d.lang.Translate(hint, nil)},
			d.question(*q),
		}, nil
	}

	q.Response = message
	q.Answered = true
	for _, key := range []string{
		connector.KeySurveyPendingElement,
		connector.KeySurveyExpectedValues,
		connector.KeySurveyExpectedLabels,
		connector.KeySurveyWrongAnswers,
	} {
		if err := d.sess.Delete(ctx, key); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// askNext saves the elements and asks the first unanswered question.
func (d *Digester) askNext(ctx context.Context, elements *connector.SurveyElements) ([]connector.SurveyStep, error) {
	if err := d.sess.Set(ctx, connector.KeySurveyElements, elements); err != nil {
		return nil, err
	}
	for i, q := range elements.Questions {
		if q.Answered {
			continue
		}
		if err := d.sess.Set(ctx, connector.KeySurveyPendingElement, i); err != nil {
			return nil, err
		}
		values, labels := questionOptions(q)
		if len(values) > 0 {
			if err := d.sess.Set(ctx, connector.KeySurveyExpectedValues, values); err != nil {
				return nil, err
			}
			if err := d.sess.Set(ctx, connector.KeySurveyExpectedLabels, labels); err != nil {
				return nil, err
			}
		} else if err := d.sess.Delete(ctx, connector.KeySurveyExpectedValues); err != nil {
			return nil, err
		}
		return []connector.SurveyStep{d.question(q)}, nil
	}
	return []connector.SurveyStep{{Sentinel: connector.SurveySubmit}}, nil
}

func (d *Digester) question(q connector.SurveyQuestion) connector.SurveyStep {
	label := questionLabel(q)
	values, labels := questionOptions(q)
	if len(values) == 0 {
		return connector.SurveyStep{Text: strings.TrimSpace(label + "\n" + d.lang.Translate("survey_text_answer", nil))}
	}
	prompt := Prompt{Text: label}
	for i, v := range values {
		prompt.Choices = append(prompt.Choices, Choice{Kind: choiceText, Label: labels[i], Value: v})
	}
	return connector.SurveyStep{Message: prompt}
}

func (d *Digester) isYes(message string) bool {
	return strings.EqualFold(message, "yes") || strings.EqualFold(message, d.lang.Translate("yes", nil))
}

func questionLabel(q connector.SurveyQuestion) string {
	for _, key := range []string{"label", "title", "text"} {
		if s, ok := q.Settings[key].(string); ok && s != "" {
			return htmlToText(s)
		}
	}
	return ""
}

// questionOptions reads the options of a choice question, given either as
// plain strings or as {label, value} objects.
func questionOptions(q connector.SurveyQuestion) (values, labels []string) {
	raw, _ := q.Settings["options"].([]any)
	for _, o := range raw {
		switch opt := o.(type) {
		case string:
			values = append(values, opt)
			labels = append(labels, opt)
		case map[string]any:
			label := fmt.Sprint(opt["label"])
			value, ok := opt["value"]
			if !ok || value == nil {
				value = label
			}
			values = append(values, fmt.Sprint(value))
			labels = append(labels, htmlToText(label))
		}
	}
	return values, labels
}

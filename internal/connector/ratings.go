package connector

import (
	"context"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
)

// checkContentRatingsComment folds a rating submission into the negative
// rating counter and returns the message to dispatch. While a rating comment
// is awaited, free text becomes the comment of the stored rating.
func (c *conversation) checkContentRatingsComment(ctx context.Context, msg botapi.UserMessage) (botapi.UserMessage, error) {
	if msg.RatingData != nil {
		count := 0
		if msg.IsNegativeRating {
			count = c.sess.Int(keyNegativeRatingCount) + 1
		}
		if err := c.sess.Set(ctx, keyNegativeRatingCount, count); err != nil {
			return msg, err
		}
		if msg.AskRatingComment {
			if err := c.sess.Set(ctx, keyAskingRatingComment, eventValue(*msg.RatingData)); err != nil {
				return msg, err
			}
		}
		return botapi.EventMessage(*msg.RatingData), nil
	}

	if !c.sess.Truthy(keyAskingRatingComment) {
		return msg, nil
	}
	var rating botapi.Event
	if _, err := c.sess.Decode(keyAskingRatingComment, &rating); err != nil {
		return msg, err
	}
	if rating.Data == nil {
		rating.Data = map[string]any{}
	}
	rating.Data["comment"] = msg.Message
	if err := c.sess.Set(ctx, keyAskingRatingComment, false); err != nil {
		return msg, err
	}
	return botapi.EventMessage(rating), nil
}

// eventValue is the session form of an event.
func eventValue(ev botapi.Event) map[string]any {
	data := map[string]any{}
	for k, v := range ev.Data {
		data[k] = v
	}
	return map[string]any{"type": ev.Type, "data": data}
}

// checkContentRatings returns the rate code to offer for the response, or ""
// when ratings are disabled or an answer must not be rated. The last ratable
// answer wins.
func (c *conversation) checkContentRatings(resp *botapi.BotResponse) string {
	if !c.app.Conversation.ContentRatings.Enabled {
		return ""
	}
	rateCode := ""
	for _, a := range resp.Answers {
		code := a.RateCode()
		if a.Type != botapi.TypeAnswer || code == "" {
			continue
		}
		if a.HasFlag(botapi.FlagEscalate) || a.HasFlag(botapi.FlagNoRating) {
			continue
		}
		if a.Callback() == botapi.CallbackEscalationStart ||
			a.Attribute(botapi.AttrDirectCall) == botapi.EscalationOffer ||
			a.Attribute(botapi.AttrDynamicRedirect) == botapi.EscalationOffer {
			continue
		}
		rateCode = code
	}
	return rateCode
}

func (c *conversation) displayContentRatings(ctx context.Context, rateCode string) error {
	msg := c.digester.BuildContentRatingsMessage(c.app.Conversation.ContentRatings.Ratings, rateCode)
	return c.channel.SendMessage(ctx, msg)
}

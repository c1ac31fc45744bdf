package ai

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/logger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/observability"
)

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional, for compatible gateways
}

type OpenAIClient struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

func NewOpenAIClient(cfg OpenAIConfig, log *logger.Logger) *OpenAIClient {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	conf.HTTPClient = observability.HTTPClient(60 * time.Second)

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(conf),
		model:  model,
		log:    log,
	}
}

// Reply asks the model for the next assistant turn. The format guard goes
// last so that it wins over anything in the history.
func (c *OpenAIClient) Reply(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Text,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: jsonGuard,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.log.Error("openai completion failed", "model", c.model, "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		c.log.Warn("openai returned no choices", "model", c.model)
		return "", nil
	}

	raw := resp.Choices[0].Message.Content
	c.log.Debug("openai reply", "model", c.model, "tokens", resp.Usage.TotalTokens, "raw", raw)
	return raw, nil
}

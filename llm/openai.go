package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/ptt-voice/model"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 40
)

// ErrNoChoices is returned when the completion comes back without a message.
var ErrNoChoices = errors.New("completion returned no choices")

type OpenAIClient struct {
	Client      *openai.Client
	Model       string
	Temperature float32
}

func NewOpenAIClient(client *openai.Client, model string, temperature float32) *OpenAIClient {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClient{
		Client:      client,
		Model:       model,
		Temperature: temperature,
	}
}

// Reply runs a single-turn completion: one system message, one user message.
// No history is kept between calls.
func (c *OpenAIClient) Reply(ctx context.Context, system, user string, maxTokens int) (model.ReplyText, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	req := openai.ChatCompletionRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: c.Temperature,
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	resp, err := c.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return model.ReplyText(strings.TrimSpace(resp.Choices[0].Message.Content)), nil
}

package tts

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/ptt-voice/model"
)

const (
	DefaultOpenAIModel = "gpt-4o-mini-tts"
	DefaultVoice       = "alloy"
	DefaultFormat      = "mp3"
)

type OpenAIClient struct {
	Client *openai.Client
	Model  string
	Format string
}

func NewOpenAIClient(client *openai.Client, model, format string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if format == "" {
		format = DefaultFormat
	}
	return &OpenAIClient{Client: client, Model: model, Format: format}
}

func (c *OpenAIClient) Synthesize(ctx context.Context, voice string, text model.ReplyText) (model.SpeechBytes, error) {
	if voice == "" {
		voice = DefaultVoice
	}

	resp, err := c.Client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.Model),
		Input:          string(text),
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormat(c.Format),
	})
	if err != nil {
		return nil, errors.Wrap(err, "openai speech")
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, errors.Wrap(err, "read speech body")
	}
	if len(data) == 0 {
		return nil, ErrNoAudio
	}
	return model.SpeechBytes(data), nil
}

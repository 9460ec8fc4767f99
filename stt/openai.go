package stt

import (
	"bytes"
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/ptt-voice/audio"
	"github.com/mrsingh-rishi/ptt-voice/model"
)

const DefaultOpenAIModel = "gpt-4o-mini-transcribe"

// OpenAIClient transcribes through the OpenAI audio API.
type OpenAIClient struct {
	Client *openai.Client
	Model  string
}

func NewOpenAIClient(client *openai.Client, model string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{Client: client, Model: model}
}

// Transcribe uploads the utterance as a WAV file. Temperature is pinned to 0
// so the same recording gives the same text.
func (c *OpenAIClient) Transcribe(ctx context.Context, a model.CanonicalAudio, language string) (model.Transcript, error) {
	wav, err := audio.EncodeCanonical(a)
	if err != nil {
		return "", errors.Wrap(err, "encode utterance")
	}

	resp, err := c.Client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       c.Model,
		FilePath:    "audio.wav",
		Reader:      bytes.NewReader(wav),
		Language:    language,
		Temperature: 0,
		Format:      openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", errors.Wrap(err, "openai transcription")
	}
	return model.Transcript(strings.TrimSpace(resp.Text)), nil
}

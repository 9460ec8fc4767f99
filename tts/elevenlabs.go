package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/ptt-voice/model"
)

const (
	DefaultElevenLabsBaseURL = "https://api.elevenlabs.io"
	DefaultElevenLabsModel   = "eleven_multilingual_v2"

	// MP3 is decoded by the normalizer, so no PCM format needs negotiating.
	elevenLabsOutputFormat = "mp3_44100_128"
)

type ElevenLabsClient struct {
	APIKey     string
	VoiceID    string
	ModelID    string
	BaseURL    string
	HTTPClient *http.Client
}

func NewElevenLabsClient(apiKey, voiceID, modelID string) *ElevenLabsClient {
	if modelID == "" {
		modelID = DefaultElevenLabsModel
	}
	return &ElevenLabsClient{
		APIKey:     apiKey,
		VoiceID:    voiceID,
		ModelID:    modelID,
		BaseURL:    DefaultElevenLabsBaseURL,
		HTTPClient: http.DefaultClient,
	}
}

type elevenLabsChunk struct {
	AudioBase64 string `json:"audio_base64"`
}

// Synthesize reads the with-timestamps stream and joins the decoded chunks
// into one MP3 payload. voice overrides the client's VoiceID when set.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, voice string, text model.ReplyText) (model.SpeechBytes, error) {
	if voice == "" {
		voice = c.VoiceID
	}
	if voice == "" {
		return nil, errors.New("elevenlabs voice id is empty")
	}

	base, err := url.Parse(fmt.Sprintf("%s/v1/text-to-speech/%s/stream/with-timestamps", c.BaseURL, url.PathEscape(voice)))
	if err != nil {
		return nil, errors.Wrap(err, "parse elevenlabs url")
	}
	q := base.Query()
	q.Set("output_format", elevenLabsOutputFormat)
	base.RawQuery = q.Encode()

	payload := map[string]interface{}{
		"text":     string(text),
		"model_id": c.ModelID,
		"voice_settings": map[string]float64{
			"stability":        0.75,
			"similarity_boost": 0.7,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("xi-api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "elevenlabs request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("elevenlabs returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var out bytes.Buffer
	dec := json.NewDecoder(resp.Body)
	for {
		var chunk elevenLabsChunk
		if err := dec.Decode(&chunk); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "decode elevenlabs chunk")
		}
		if chunk.AudioBase64 == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(chunk.AudioBase64)
		if err != nil {
			return nil, errors.Wrap(err, "decode audio_base64")
		}
		out.Write(raw)
	}

	if out.Len() == 0 {
		return nil, ErrNoAudio
	}
	return model.SpeechBytes(out.Bytes()), nil
}

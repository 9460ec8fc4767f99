package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/ptt-voice/audio"
	"github.com/mrsingh-rishi/ptt-voice/model"
)

const (
	DefaultDeepgramEndpoint = "https://api.deepgram.com/v1/listen"
	DefaultDeepgramModel    = "nova-2"
)

// DeepgramClient uses Deepgram's pre-recorded endpoint. Each utterance is a
// single request, so no socket is held open between turns.
type DeepgramClient struct {
	APIKey     string
	Endpoint   string
	Model      string
	HTTPClient *http.Client
}

func NewDeepgramClient(apiKey, model string) *DeepgramClient {
	if model == "" {
		model = DefaultDeepgramModel
	}
	return &DeepgramClient{
		APIKey:     apiKey,
		Endpoint:   DefaultDeepgramEndpoint,
		Model:      model,
		HTTPClient: http.DefaultClient,
	}
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (dg *DeepgramClient) Transcribe(ctx context.Context, a model.CanonicalAudio, language string) (model.Transcript, error) {
	wav, err := audio.EncodeCanonical(a)
	if err != nil {
		return "", errors.Wrap(err, "encode utterance")
	}

	base, err := url.Parse(dg.Endpoint)
	if err != nil {
		return "", errors.Wrap(err, "parse deepgram endpoint")
	}
	q := base.Query()
	q.Set("model", dg.Model)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	if language != "" {
		q.Set("language", language)
	}
	base.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(wav))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", fmt.Sprintf("Token %s", dg.APIKey))
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := dg.HTTPClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "deepgram request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read deepgram response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("deepgram returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var dr deepgramResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return "", errors.Wrap(err, "parse deepgram response")
	}
	if len(dr.Results.Channels) == 0 || len(dr.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return model.Transcript(strings.TrimSpace(dr.Results.Channels[0].Alternatives[0].Transcript)), nil
}

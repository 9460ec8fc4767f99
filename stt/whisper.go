package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/ptt-voice/audio"
	"github.com/mrsingh-rishi/ptt-voice/model"
)

const (
	DefaultWhisperEndpoint = "http://localhost:7070/inference"
	DefaultWhisperModel    = "base"
)

// WhisperClient posts utterances to a local Whisper inference server that
// accepts a multipart "file" field and answers {"text": "..."}.
type WhisperClient struct {
	Endpoint   string
	Model      string
	HTTPClient *http.Client
}

func NewWhisperClient(endpoint, model string) *WhisperClient {
	if endpoint == "" {
		endpoint = DefaultWhisperEndpoint
	}
	if model == "" {
		model = DefaultWhisperModel
	}
	return &WhisperClient{Endpoint: endpoint, Model: model, HTTPClient: http.DefaultClient}
}

type whisperResponse struct {
	Text string `json:"text"`
}

func (c *WhisperClient) Transcribe(ctx context.Context, a model.CanonicalAudio, language string) (model.Transcript, error) {
	wav, err := audio.EncodeCanonical(a)
	if err != nil {
		return "", errors.Wrap(err, "encode utterance")
	}

	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", errors.Wrap(err, "create form file")
	}
	if _, err := fw.Write(wav); err != nil {
		return "", errors.Wrap(err, "write audio to form")
	}
	fields := map[string]string{
		"model":           c.Model,
		"language":        language,
		"temperature":     "0",
		"response_format": "json",
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return "", errors.Wrapf(err, "write field %s", k)
		}
	}
	if err := mw.Close(); err != nil {
		return "", errors.Wrap(err, "close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, &b)
	if err != nil {
		return "", errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "post to whisper server")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("whisper server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var wr whisperResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return "", errors.Wrap(err, "unmarshal response")
	}
	return model.Transcript(strings.TrimSpace(wr.Text)), nil
}

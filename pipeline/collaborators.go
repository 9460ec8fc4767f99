package pipeline

//go:generate mockgen -destination=../mocks/mock_collaborators.go -package=mocks github.com/mrsingh-rishi/ptt-voice/pipeline Transcriber,Responder,Synthesizer

import (
	"context"

	"github.com/mrsingh-rishi/ptt-voice/model"
)

// Transcriber turns canonical audio into text in the given language.
// An empty transcript is a valid result.
type Transcriber interface {
	Transcribe(ctx context.Context, audio model.CanonicalAudio, language string) (model.Transcript, error)
}

// Responder produces a short reply to user under the system instruction.
type Responder interface {
	Reply(ctx context.Context, system, user string, maxTokens int) (model.ReplyText, error)
}

// Synthesizer speaks text in the given voice. The returned bytes may be in
// any container the normalizer can decode.
type Synthesizer interface {
	Synthesize(ctx context.Context, voice string, text model.ReplyText) (model.SpeechBytes, error)
}

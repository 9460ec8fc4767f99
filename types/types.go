package types

import "fmt"

// Stage identifies the pipeline step a failure belongs to.
type Stage string

const (
	StageValidate Stage = "validate"
	StageSTT      Stage = "stt"
	StageLLM      Stage = "llm"
	StageTTS      Stage = "tts"
)

// prefix is the error class shown to the caller for each stage.
var prefix = map[Stage]string{
	StageValidate: "Error WAV",
	StageSTT:      "Error STT",
	StageLLM:      "Error LLM",
	StageTTS:      "Error TTS",
}

// StageError is the terminal failure of a push-to-talk turn.
type StageError struct {
	Stage Stage
	Err   error
}

func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	return e.Message()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Message returns the plain-text body sent back to the caller.
func (e *StageError) Message() string {
	p, ok := prefix[e.Stage]
	if !ok {
		p = "Error"
	}
	detail := "unknown error"
	if e.Err != nil {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", p, detail)
}

// StatusCode maps the stage to an HTTP status: bad input is the caller's
// fault, everything else is ours.
func (e *StageError) StatusCode() int {
	if e.Stage == StageValidate {
		return 400
	}
	return 500
}

// State is a step of the linear pipeline state machine.
type State string

const (
	StateReceived      State = "received"
	StateNormalized    State = "normalized"
	StateTranscribed   State = "transcribed"
	StateReplied       State = "replied"
	StateSynthesized   State = "synthesized"
	StateNormalizedOut State = "normalized_out"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

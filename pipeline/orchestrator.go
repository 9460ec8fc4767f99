package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/ptt-voice/audio"
	"github.com/mrsingh-rishi/ptt-voice/metrics"
	"github.com/mrsingh-rishi/ptt-voice/model"
	"github.com/mrsingh-rishi/ptt-voice/silence"
	"github.com/mrsingh-rishi/ptt-voice/tts"
	"github.com/mrsingh-rishi/ptt-voice/types"
)

const (
	DefaultLanguage       = "es"
	DefaultSystemPrompt   = "Eres un asistente conversacional amable que siempre responde en español neutro y termina sus frases en PAPU."
	DefaultFallbackPrompt = "No entendí nada, responde algo genérico."
	DefaultMaxReplyTokens = 40
	DefaultVoice          = "alloy"
)

type Config struct {
	Language       string
	SystemPrompt   string
	FallbackPrompt string
	MaxReplyTokens int
	Voice          string

	// TrustInputFormat skips decoding and resampling of the upload. The
	// body must then already be a canonical WAV or the turn fails validation.
	TrustInputFormat bool
	TrimSilence      bool

	// Zero disables the per-stage deadline.
	STTTimeout time.Duration
	LLMTimeout time.Duration
	TTSTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Language:       DefaultLanguage,
		SystemPrompt:   DefaultSystemPrompt,
		FallbackPrompt: DefaultFallbackPrompt,
		MaxReplyTokens: DefaultMaxReplyTokens,
		Voice:          DefaultVoice,
		TrimSilence:    true,
		STTTimeout:     30 * time.Second,
		LLMTimeout:     30 * time.Second,
		TTSTimeout:     30 * time.Second,
	}
}

// Turn is everything one request produced. On failure it holds whatever the
// stages before the failure filled in.
type Turn struct {
	ID         string
	State      types.State
	Input      model.CanonicalAudio
	Trim       silence.Outcome
	Transcript model.Transcript
	Prompt     string
	Reply      model.ReplyText
	Speech     model.SpeechBytes
	Audio      model.CanonicalAudio
	WAV        []byte
	Timings    map[string]time.Duration
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithTrimmer(t *silence.Trimmer) Option {
	return func(o *Orchestrator) { o.trimmer = t }
}

// Orchestrator is safe for concurrent use; all state lives in the Turn.
type Orchestrator struct {
	cfg     Config
	stt     Transcriber
	llm     Responder
	tts     Synthesizer
	trimmer *silence.Trimmer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(cfg Config, stt Transcriber, llm Responder, synth Synthesizer, opts ...Option) *Orchestrator {
	if cfg.FallbackPrompt == "" {
		cfg.FallbackPrompt = DefaultFallbackPrompt
	}
	o := &Orchestrator{
		cfg: cfg,
		stt: stt,
		llm: llm,
		tts: synth,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.trimmer == nil {
		o.trimmer = silence.NewTrimmer(nil)
	}
	return o
}

// Run drives one turn to completion. A non-nil error is always a
// *types.StageError and means the returned Turn has State failed.
func (o *Orchestrator) Run(ctx context.Context, raw []byte) (*Turn, error) {
	turn := &Turn{
		ID:      uuid.NewString(),
		State:   types.StateReceived,
		Timings: make(map[string]time.Duration),
	}
	log := o.logger.With("turn_id", turn.ID)
	log.Debug("turn received", "bytes", len(raw))

	err := o.run(ctx, log, turn, raw)
	if err != nil {
		turn.State = types.StateFailed
		se := err.(*types.StageError)
		o.metrics.RecordRequest(string(se.Stage))
		log.Warn("turn failed", "stage", se.Stage, "error", se.Err)
		return turn, err
	}

	turn.State = types.StateDone
	o.metrics.RecordRequest("ok")
	log.Info("turn complete",
		"transcript", string(turn.Transcript),
		"reply", string(turn.Reply),
		"reply_bytes", len(turn.WAV),
		"total", sumTimings(turn.Timings),
	)
	return turn, nil
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, turn *Turn, raw []byte) error {
	err := o.stage(ctx, log, turn, "validate", types.StageValidate, 0, func(context.Context) error {
		in, err := o.decodeInput(raw)
		if err != nil {
			return err
		}
		turn.Input = in
		return nil
	})
	if err != nil {
		return err
	}
	turn.State = types.StateNormalized
	o.metrics.RecordUtterance(turn.Input.Duration().Seconds())

	utterance := turn.Input
	if o.cfg.TrimSilence {
		res := o.trimmer.Trim(utterance)
		turn.Trim = res.Outcome
		o.metrics.RecordTrim(res.Outcome.String())
		if res.Reason != nil {
			log.Debug("silence trim skipped", "reason", res.Reason)
		} else if res.Outcome == silence.Trimmed {
			log.Debug("silence trimmed", "from", turn.Input.Duration(), "to", res.Audio.Duration())
		}
		utterance = res.Audio
	}

	err = o.stage(ctx, log, turn, "stt", types.StageSTT, o.cfg.STTTimeout, func(ctx context.Context) error {
		text, err := o.stt.Transcribe(ctx, utterance, o.cfg.Language)
		if err != nil {
			return err
		}
		turn.Transcript = model.Transcript(strings.TrimSpace(string(text)))
		return nil
	})
	if err != nil {
		return err
	}
	turn.State = types.StateTranscribed

	turn.Prompt = string(turn.Transcript)
	if turn.Prompt == "" {
		log.Info("empty transcript, using fallback prompt")
		turn.Prompt = o.cfg.FallbackPrompt
	}

	err = o.stage(ctx, log, turn, "llm", types.StageLLM, o.cfg.LLMTimeout, func(ctx context.Context) error {
		reply, err := o.llm.Reply(ctx, o.cfg.SystemPrompt, turn.Prompt, o.cfg.MaxReplyTokens)
		if err != nil {
			return err
		}
		turn.Reply = model.ReplyText(strings.TrimSpace(string(reply)))
		return nil
	})
	if err != nil {
		return err
	}
	turn.State = types.StateReplied

	err = o.stage(ctx, log, turn, "tts", types.StageTTS, o.cfg.TTSTimeout, func(ctx context.Context) error {
		speech, err := o.tts.Synthesize(ctx, o.cfg.Voice, turn.Reply)
		if err != nil {
			return err
		}
		if len(speech) == 0 {
			return tts.ErrNoAudio
		}
		turn.Speech = speech
		return nil
	})
	if err != nil {
		return err
	}
	turn.State = types.StateSynthesized

	// a reply the normalizer cannot read is still the synthesizer's fault
	return o.stage(ctx, log, turn, "normalize_out", types.StageTTS, 0, func(context.Context) error {
		out, err := audio.Normalize(turn.Speech, audio.FormatUnknown)
		if err != nil {
			return errors.Wrap(err, "decode synthesized audio")
		}
		wav, err := audio.EncodeCanonical(out)
		if err != nil {
			return errors.Wrap(err, "encode reply")
		}
		turn.Audio = out
		turn.WAV = wav
		turn.State = types.StateNormalizedOut
		return nil
	})
}

func (o *Orchestrator) decodeInput(raw []byte) (model.CanonicalAudio, error) {
	if o.cfg.TrustInputFormat {
		return audio.DecodeCanonicalWAV(raw)
	}
	return audio.Normalize(raw, audio.FormatUnknown)
}

// stage times fn under an optional deadline and converts its failure into
// the stage's error class.
func (o *Orchestrator) stage(ctx context.Context, log *slog.Logger, turn *Turn, name string, class types.Stage, timeout time.Duration, fn func(context.Context) error) error {
	sctx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		sctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	start := time.Now()
	err := fn(sctx)
	elapsed := time.Since(start)

	turn.Timings[name] += elapsed
	o.metrics.RecordStage(name, elapsed.Seconds(), err != nil)
	log.Info("stage finished", "stage", name, "elapsed", elapsed, "ok", err == nil)

	if err == nil {
		return nil
	}
	if timeout > 0 && ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
		err = errors.Wrapf(err, "timed out after %s", timeout)
	}
	return types.NewStageError(class, err)
}

func sumTimings(t map[string]time.Duration) time.Duration {
	var total time.Duration
	for _, d := range t {
		total += d
	}
	return total
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/ptt-voice/config"
	"github.com/mrsingh-rishi/ptt-voice/llm"
	"github.com/mrsingh-rishi/ptt-voice/metrics"
	"github.com/mrsingh-rishi/ptt-voice/pipeline"
	"github.com/mrsingh-rishi/ptt-voice/server"
	"github.com/mrsingh-rishi/ptt-voice/silence"
	"github.com/mrsingh-rishi/ptt-voice/stt"
	"github.com/mrsingh-rishi/ptt-voice/tts"
)

const serviceName = "ptt-voice"

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("stt_provider", cfg.STT.Provider),
		slog.String("stt_model", cfg.STT.Model),
		slog.String("llm_model", cfg.LLM.Model),
		slog.String("tts_provider", cfg.TTS.Provider),
		slog.String("tts_voice", cfg.TTS.Voice),
		slog.Bool("trust_input_format", cfg.Audio.TrustInputFormat),
		slog.Bool("trim_silence", cfg.Audio.TrimSilence),
	)

	appMetrics := metrics.NewMetrics()
	orch := buildOrchestrator(cfg, logger, appMetrics)

	srv := server.New(orch, server.Options{
		BodyLimit: cfg.Server.BodyLimit,
		Logger:    logger,
		Metrics:   appMetrics,
		AccessLog: os.Stdout,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", slog.String("address", cfg.Server.ListenAddr()))
		errCh <- srv.Listen(cfg.Server.ListenAddr())
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("HTTP server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}
	logger.Info("Service stopped")
}

func newOpenAIClient(cfg *config.Config) *openai.Client {
	oc := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		oc.BaseURL = cfg.OpenAI.BaseURL
	}
	return openai.NewClientWithConfig(oc)
}

func newTranscriber(cfg *config.Config, client *openai.Client) pipeline.Transcriber {
	switch cfg.STT.Provider {
	case "whisper":
		return stt.NewWhisperClient(cfg.STT.WhisperEndpoint, cfg.STT.WhisperModel)
	case "deepgram":
		return stt.NewDeepgramClient(cfg.STT.DeepgramAPIKey, "")
	default:
		return stt.NewOpenAIClient(client, cfg.STT.Model)
	}
}

func newSynthesizer(cfg *config.Config, client *openai.Client) pipeline.Synthesizer {
	switch cfg.TTS.Provider {
	case "elevenlabs":
		return tts.NewElevenLabsClient(cfg.TTS.ElevenLabsAPIKey, cfg.TTS.Voice, "")
	default:
		return tts.NewOpenAIClient(client, cfg.TTS.Model, cfg.TTS.Format)
	}
}

func buildOrchestrator(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *pipeline.Orchestrator {
	client := newOpenAIClient(cfg)

	detector := silence.NewWindowDetector(silence.Options{
		ThresholdDB: cfg.Audio.SilenceThresholdDB,
		MinSilence:  cfg.Audio.GetMinSilence(),
		Window:      silence.DefaultWindow,
	})

	pcfg := pipeline.Config{
		Language:         cfg.STT.Language,
		SystemPrompt:     cfg.LLM.SystemPrompt,
		FallbackPrompt:   cfg.LLM.FallbackPrompt,
		MaxReplyTokens:   cfg.LLM.MaxTokens,
		Voice:            cfg.TTS.Voice,
		TrustInputFormat: cfg.Audio.TrustInputFormat,
		TrimSilence:      cfg.Audio.TrimSilence,
		STTTimeout:       cfg.STT.GetTimeoutDuration(),
		LLMTimeout:       cfg.LLM.GetTimeoutDuration(),
		TTSTimeout:       cfg.TTS.GetTimeoutDuration(),
	}

	return pipeline.New(pcfg,
		newTranscriber(cfg, client),
		llm.NewOpenAIClient(client, cfg.LLM.Model, cfg.LLM.Temperature),
		newSynthesizer(cfg, client),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithTrimmer(silence.NewTrimmer(detector)),
	)
}

// initLogger builds the process logger. Level and format were already
// checked by config.Validate; an empty level means info.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.Level))

	w := io.Writer(os.Stdout)
	switch cfg.Output {
	case "", "stdout":
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log output %s: %v, using stdout\n", cfg.Output, err)
			break
		}
		w = f
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

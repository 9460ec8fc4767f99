package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	STT     STTConfig     `yaml:"stt"`
	LLM     LLMConfig     `yaml:"llm"`
	TTS     TTSConfig     `yaml:"tts"`
	Audio   AudioConfig   `yaml:"audio"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Address   string `yaml:"address"`
	Port      int    `yaml:"port"`
	BodyLimit int    `yaml:"body_limit_bytes"`
}

// OpenAIConfig is shared by every stage that talks to an OpenAI-compatible API.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type STTConfig struct {
	Provider        string `yaml:"provider"` // openai, whisper or deepgram
	Model           string `yaml:"model"`
	Language        string `yaml:"language"`
	WhisperEndpoint string `yaml:"whisper_endpoint"`
	WhisperModel    string `yaml:"whisper_model"`
	DeepgramAPIKey  string `yaml:"deepgram_api_key"`
	Timeout         int    `yaml:"timeout"` // seconds
}

type LLMConfig struct {
	Model          string  `yaml:"model"`
	SystemPrompt   string  `yaml:"system_prompt"`
	FallbackPrompt string  `yaml:"fallback_prompt"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float32 `yaml:"temperature"`
	Timeout        int     `yaml:"timeout"` // seconds
}

type TTSConfig struct {
	Provider         string `yaml:"provider"` // openai or elevenlabs
	Model            string `yaml:"model"`
	Voice            string `yaml:"voice"`
	Format           string `yaml:"format"`
	ElevenLabsAPIKey string `yaml:"elevenlabs_api_key"`
	Timeout          int    `yaml:"timeout"` // seconds
}

type AudioConfig struct {
	TrustInputFormat   bool    `yaml:"trust_input_format"`
	TrimSilence        bool    `yaml:"trim_silence"`
	SilenceThresholdDB float64 `yaml:"silence_threshold_db"`
	MinSilenceMS       int     `yaml:"min_silence_ms"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:   "0.0.0.0",
			Port:      8000,
			BodyLimit: 10 * 1024 * 1024,
		},
		STT: STTConfig{
			Provider:        "openai",
			Model:           "gpt-4o-mini-transcribe",
			Language:        "es",
			WhisperEndpoint: "http://localhost:7070/inference",
			WhisperModel:    "base",
			Timeout:         30,
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			SystemPrompt:   "Eres un asistente conversacional amable que siempre responde en español neutro y termina sus frases en PAPU.",
			FallbackPrompt: "No entendí nada, responde algo genérico.",
			MaxTokens:      40,
			Temperature:    0.3,
			Timeout:        30,
		},
		TTS: TTSConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini-tts",
			Voice:    "alloy",
			Format:   "mp3",
			Timeout:  30,
		},
		Audio: AudioConfig{
			TrimSilence:        true,
			SilenceThresholdDB: -35,
			MinSilenceMS:       160,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env is optional; variables already in the environment win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Address, "HTTP_ADDR")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")

	setString(&c.STT.Provider, "STT_PROVIDER")
	setString(&c.STT.Model, "STT_MODEL")
	setString(&c.STT.Language, "STT_LANGUAGE")
	setString(&c.STT.WhisperEndpoint, "WHISPER_ENDPOINT")
	setString(&c.STT.WhisperModel, "WHISPER_MODEL")
	setString(&c.STT.DeepgramAPIKey, "DEEPGRAM_API_KEY")

	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.SystemPrompt, "LLM_SYSTEM_PROMPT")
	setString(&c.LLM.FallbackPrompt, "LLM_FALLBACK_PROMPT")

	setString(&c.TTS.Provider, "TTS_PROVIDER")
	setString(&c.TTS.Model, "TTS_MODEL")
	setString(&c.TTS.Voice, "TTS_VOICE")
	setString(&c.TTS.Format, "TTS_FORMAT")
	setString(&c.TTS.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Logging.Output, "LOG_OUTPUT")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.Server.Port, "PORT"},
		{&c.Server.BodyLimit, "BODY_LIMIT_BYTES"},
		{&c.LLM.MaxTokens, "LLM_MAX_TOKENS"},
		{&c.Audio.MinSilenceMS, "MIN_SILENCE_MS"},
		{&c.STT.Timeout, "STT_TIMEOUT"},
		{&c.LLM.Timeout, "LLM_TIMEOUT"},
		{&c.TTS.Timeout, "TTS_TIMEOUT"},
	}
	for _, v := range ints {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}

	if err := setBool(&c.Audio.TrustInputFormat, "TRUST_INPUT_FORMAT"); err != nil {
		return err
	}
	if err := setBool(&c.Audio.TrimSilence, "TRIM_SILENCE"); err != nil {
		return err
	}
	if err := setFloat(&c.Audio.SilenceThresholdDB, "SILENCE_THRESHOLD_DB"); err != nil {
		return err
	}

	temp := float64(c.LLM.Temperature)
	if err := setFloat(&temp, "LLM_TEMPERATURE"); err != nil {
		return err
	}
	c.LLM.Temperature = float32(temp)

	return nil
}

// getEnv treats an empty variable the same as an unset one.
func getEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	return value, exists && value != ""
}

func setString(dst *string, key string) {
	if v, ok := getEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := getEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := getEnv(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s must be a number, got %q", key, v)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := getEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	*dst = b
	return nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.STT.Validate(c.OpenAI); err != nil {
		return fmt.Errorf("stt config: %w", err)
	}
	if err := c.LLM.Validate(c.OpenAI); err != nil {
		return fmt.Errorf("llm config: %w", err)
	}
	if err := c.TTS.Validate(c.OpenAI); err != nil {
		return fmt.Errorf("tts config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if s.BodyLimit < 1024 {
		return fmt.Errorf("body_limit_bytes must be at least 1024, got %d", s.BodyLimit)
	}
	return nil
}

// openAIKeyRequired is true unless a base URL points at a local
// OpenAI-compatible server.
func openAIKeyRequired(o OpenAIConfig) bool {
	return o.APIKey == "" && o.BaseURL == ""
}

func (s *STTConfig) Validate(o OpenAIConfig) error {
	switch s.Provider {
	case "openai":
		if openAIKeyRequired(o) {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	case "whisper":
		if s.WhisperEndpoint == "" {
			return fmt.Errorf("whisper_endpoint cannot be empty")
		}
	case "deepgram":
		if s.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required for the deepgram provider")
		}
	default:
		return fmt.Errorf("provider must be one of [openai, whisper, deepgram], got '%s'", s.Provider)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %d", s.Timeout)
	}
	return nil
}

func (l *LLMConfig) Validate(o OpenAIConfig) error {
	if openAIKeyRequired(o) {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if l.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if l.FallbackPrompt == "" {
		return fmt.Errorf("fallback_prompt cannot be empty")
	}
	if l.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1, got %d", l.MaxTokens)
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", l.Temperature)
	}
	if l.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %d", l.Timeout)
	}
	return nil
}

// openAIVoices are the built-in OpenAI speech voices. None of them exist
// on ElevenLabs.
var openAIVoices = map[string]bool{
	"alloy": true, "ash": true, "ballad": true, "coral": true, "echo": true, "fable": true,
	"nova": true, "onyx": true, "sage": true, "shimmer": true, "verse": true,
}

func (t *TTSConfig) Validate(o OpenAIConfig) error {
	switch t.Provider {
	case "openai":
		if openAIKeyRequired(o) {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		validFormats := map[string]bool{"mp3": true, "wav": true}
		if !validFormats[t.Format] {
			return fmt.Errorf("format must be 'mp3' or 'wav', got '%s'", t.Format)
		}
	case "elevenlabs":
		if t.ElevenLabsAPIKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required for the elevenlabs provider")
		}
		if openAIVoices[t.Voice] {
			return fmt.Errorf("TTS_VOICE must be an ElevenLabs voice id for the elevenlabs provider, got OpenAI voice '%s'", t.Voice)
		}
	default:
		return fmt.Errorf("provider must be 'openai' or 'elevenlabs', got '%s'", t.Provider)
	}
	if t.Voice == "" {
		return fmt.Errorf("voice cannot be empty")
	}
	if t.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %d", t.Timeout)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if a.SilenceThresholdDB >= 0 {
		return fmt.Errorf("silence_threshold_db must be below 0 dBFS, got %f", a.SilenceThresholdDB)
	}
	if a.MinSilenceMS < 0 {
		return fmt.Errorf("min_silence_ms cannot be negative, got %d", a.MinSilenceMS)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// ListenAddr returns host:port for the HTTP listener.
func (s *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// GetTimeoutDuration returns the stage timeout as a time.Duration
func (s *STTConfig) GetTimeoutDuration() time.Duration { return seconds(s.Timeout) }

// GetTimeoutDuration returns the stage timeout as a time.Duration
func (l *LLMConfig) GetTimeoutDuration() time.Duration { return seconds(l.Timeout) }

// GetTimeoutDuration returns the stage timeout as a time.Duration
func (t *TTSConfig) GetTimeoutDuration() time.Duration { return seconds(t.Timeout) }

// GetMinSilence returns the minimum silence run as a time.Duration
func (a *AudioConfig) GetMinSilence() time.Duration {
	return time.Duration(a.MinSilenceMS) * time.Millisecond
}

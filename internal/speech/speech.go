// Package speech converts between spoken audio and text using
// OpenAI-compatible audio endpoints (Groq Whisper, OpenAI, Azure OpenAI).
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/agriassist/internal/metrics"
	openai "github.com/sashabaranov/go-openai"
)

// Defaults for the transcription and synthesis endpoints.
const (
	DefaultTranscriptionBaseURL = "https://api.groq.com/openai/v1"
	DefaultTranscriptionModel   = "whisper-large-v3-turbo"
	DefaultSpeechModel          = string(openai.TTSModel1)
	DefaultVoice                = string(openai.VoiceAlloy)
	DefaultFormat               = string(openai.SpeechResponseFormatWav)

	// audioFileName names the uploaded audio; the extension is only a hint.
	audioFileName = "question.wav"
)

// ErrEmptyAudio is returned for a zero-length audio payload.
var ErrEmptyAudio = errors.New("empty audio")

// Config configures an audio endpoint client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string

	// Azure selects Azure OpenAI routing; Model is then the deployment name.
	Azure      bool
	APIVersion string

	// Language is an optional ISO-639-1 hint for transcription.
	Language string

	// Voice and Format apply to synthesis.
	Voice  string
	Format string
}

func newClient(cfg Config, defaultBaseURL string) *openai.Client {
	var clientCfg openai.ClientConfig
	if cfg.Azure {
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		switch {
		case cfg.BaseURL != "":
			clientCfg.BaseURL = cfg.BaseURL
		case defaultBaseURL != "":
			clientCfg.BaseURL = defaultBaseURL
		}
	}
	return openai.NewClientWithConfig(clientCfg)
}

// Transcriber turns spoken questions into text.
type Transcriber struct {
	client   *openai.Client
	model    string
	language string
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewTranscriber creates a Transcriber. mc may be nil.
func NewTranscriber(cfg Config, mc *metrics.Collector, logger *slog.Logger) *Transcriber {
	if cfg.Model == "" {
		cfg.Model = DefaultTranscriptionModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{
		client:   newClient(cfg, DefaultTranscriptionBaseURL),
		model:    cfg.Model,
		language: cfg.Language,
		metrics:  mc,
		logger:   logger,
	}
}

// Transcribe returns the text spoken in audio, trimmed of surrounding
// whitespace. Silence yields an empty string and no error.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	start := time.Now()
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audioFileName,
		Reader:   bytes.NewReader(audio),
		Language: t.language,
	})
	elapsed := time.Since(start)
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordFailure(metrics.OpTranscription)
		}
		return "", fmt.Errorf("transcribe: %w", err)
	}
	if t.metrics != nil {
		t.metrics.RecordTiming(metrics.OpTranscription, elapsed)
	}

	text := strings.TrimSpace(resp.Text)
	t.logger.Debug("transcribed audio", "audio_bytes", len(audio), "chars", len(text), "duration", elapsed)
	return text, nil
}

// Synthesizer reads answers aloud.
type Synthesizer struct {
	client *openai.Client
	model  string
	voice  string
	format string
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(cfg Config) *Synthesizer {
	if cfg.Model == "" {
		cfg.Model = DefaultSpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	return &Synthesizer{
		client: newClient(cfg, ""),
		model:  cfg.Model,
		voice:  cfg.Voice,
		format: cfg.Format,
	}
}

// Synthesize returns text spoken in the configured voice and format.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormat(s.format),
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	return audio, nil
}

package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/models"
)

// Completer is a text-only generation provider.
type Completer interface {
	Complete(ctx context.Context, messages []models.Message, wantsAudio bool) (models.Completion, error)
}

// Speaker turns answer text into audio.
type Speaker interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// VoicedModel adds spoken audio to completions when it is requested.
// A synthesis failure keeps the text answer and drops the audio.
type VoicedModel struct {
	completer Completer
	speaker   Speaker
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewVoicedModel creates a VoicedModel. mc may be nil.
func NewVoicedModel(completer Completer, speaker Speaker, mc *metrics.Collector, logger *slog.Logger) *VoicedModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &VoicedModel{completer: completer, speaker: speaker, metrics: mc, logger: logger}
}

// Complete generates text, then synthesizes it when wantsAudio is set.
func (v *VoicedModel) Complete(ctx context.Context, messages []models.Message, wantsAudio bool) (models.Completion, error) {
	completion, err := v.completer.Complete(ctx, messages, false)
	if err != nil || !wantsAudio || completion.Text == "" {
		return completion, err
	}

	start := time.Now()
	audio, err := v.speaker.Synthesize(ctx, completion.Text)
	if err != nil {
		if v.metrics != nil {
			v.metrics.RecordFailure(metrics.OpSynthesis)
		}
		v.logger.Warn("speech synthesis failed, returning text only", "error", err)
		return completion, nil
	}
	if v.metrics != nil {
		v.metrics.RecordTiming(metrics.OpSynthesis, time.Since(start))
	}
	completion.Audio = audio
	return completion, nil
}

// Package answer turns retrieved context and conversation history into a
// grounded reply from a generation provider.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/models"
)

// ErrGenerationProvider marks a failed round-trip to the generation provider.
var ErrGenerationProvider = errors.New("generation provider error")

// Provider produces one completion for a message list. When wantsAudio is
// set the completion may also carry spoken audio of the text.
type Provider interface {
	Complete(ctx context.Context, messages []models.Message, wantsAudio bool) (models.Completion, error)
}

// Reply is the outcome of a generation turn.
type Reply struct {
	Text  string
	Audio []byte

	// Grounded is false when no context was found and Text is the fallback.
	// Ungrounded replies must not be recorded in conversation state.
	Grounded bool
}

// Generator applies the answering policy for one question.
type Generator struct {
	provider Provider
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewGenerator creates a Generator. mc may be nil.
func NewGenerator(provider Provider, mc *metrics.Collector, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: provider, metrics: mc, logger: logger}
}

// Generate answers question. With no documents it returns the fallback
// without calling the provider. Provider failures are wrapped with
// ErrGenerationProvider; there is no retry here.
func (g *Generator) Generate(ctx context.Context, question string, docs []models.EncodedDocument, history []models.Message, wantsAudio bool) (Reply, error) {
	if len(docs) == 0 {
		g.logger.Debug("no context retrieved, returning fallback")
		return Reply{Text: FallbackMessage}, nil
	}

	msgs := BuildMessages(history, docs, question)

	start := time.Now()
	completion, err := g.provider.Complete(ctx, msgs, wantsAudio)
	elapsed := time.Since(start)
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordFailure(metrics.OpGeneration)
		}
		g.logger.Error("generation failed", "error", err, "duration", elapsed, "context_docs", len(docs))
		return Reply{}, fmt.Errorf("%w: %w", ErrGenerationProvider, err)
	}

	if g.metrics != nil {
		g.metrics.RecordLLMUsage(metrics.OpGeneration, elapsed, completion.InputTokens, completion.OutputTokens)
	}
	g.logger.Debug("generated answer",
		"duration", elapsed,
		"history_messages", len(history),
		"context_docs", len(docs),
		"input_tokens", completion.InputTokens,
		"output_tokens", completion.OutputTokens,
		"audio_bytes", len(completion.Audio))

	return Reply{Text: completion.Text, Audio: completion.Audio, Grounded: true}, nil
}

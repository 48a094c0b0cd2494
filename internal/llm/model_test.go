package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/raphaelgruber/agriassist/internal/config"
	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("generate: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, isFatalAPIError(tt.err))
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		wrapped := wrapFatalError(errors.New("invalid api key provided"))
		assert.ErrorIs(t, wrapped, ErrFatalAPI)
		assert.True(t, IsFatal(wrapped))
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		assert.NotErrorIs(t, result, ErrFatalAPI)
		assert.Same(t, err, result)
	})

	t.Run("nil error", func(t *testing.T) {
		assert.NoError(t, wrapFatalError(nil))
	})
}

// capturingLLM records the request and answers with fixed content.
type capturingLLM struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	info     map[string]any
	err      error
}

func (c *capturingLLM) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	c.messages = msgs
	for _, opt := range options {
		opt(&c.opts)
	}
	if c.err != nil {
		return nil, c.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "Apply neem oil.", GenerationInfo: c.info}},
	}, nil
}

func (c *capturingLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c, prompt, options...)
}

func TestCompleteMapsRolesAndOptions(t *testing.T) {
	c := &capturingLLM{info: map[string]any{"PromptTokens": 321, "CompletionTokens": 45}}
	m := NewModelFromLLM(c, "test-model", 0.7, 1000)
	assert.Equal(t, "test-model", m.Model())

	completion, err := m.Complete(context.Background(), []models.Message{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleAssistant, Content: "a1"},
		{Role: models.RoleUser, Content: "q2"},
	}, true)
	require.NoError(t, err)

	assert.Equal(t, "Apply neem oil.", completion.Text)
	assert.Nil(t, completion.Audio)
	assert.Equal(t, int64(321), completion.InputTokens)
	assert.Equal(t, int64(45), completion.OutputTokens)

	require.Len(t, c.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, c.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, c.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, c.messages[2].Role)
	assert.Equal(t, llms.TextContent{Text: "q2"}, c.messages[3].Parts[0])
	assert.Equal(t, 0.7, c.opts.Temperature)
	assert.Equal(t, 1000, c.opts.MaxTokens)
}

func TestCompleteTemperature(t *testing.T) {
	msgs := []models.Message{{Role: models.RoleUser, Content: "q"}}

	zero := &capturingLLM{opts: llms.CallOptions{Temperature: 42}}
	_, err := NewModelFromLLM(zero, "m", 0, 0).Complete(context.Background(), msgs, false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero.opts.Temperature, "zero is a valid temperature")

	unset := &capturingLLM{opts: llms.CallOptions{Temperature: 42}}
	_, err = NewModelFromLLM(unset, "m", -1, 0).Complete(context.Background(), msgs, false)
	require.NoError(t, err)
	assert.Equal(t, 42.0, unset.opts.Temperature, "negative keeps the provider default")
}

func TestCompleteWrapsFatalErrors(t *testing.T) {
	m := NewModelFromLLM(&capturingLLM{err: errors.New("HTTP 401: invalid api key")}, "m", 0, 0)
	_, err := m.Complete(context.Background(), []models.Message{{Role: models.RoleUser, Content: "q"}}, false)
	assert.ErrorIs(t, err, ErrFatalAPI)
}

func TestCompleteWithFakeLLM(t *testing.T) {
	m := NewModelFromLLM(fake.NewFakeLLM([]string{"first", "second"}), "fake", 0.7, 1000)
	ctx := context.Background()
	msgs := []models.Message{{Role: models.RoleUser, Content: "hello"}}

	c1, err := m.Complete(ctx, msgs, false)
	require.NoError(t, err)
	c2, err := m.Complete(ctx, msgs, false)
	require.NoError(t, err)
	assert.Equal(t, "first", c1.Text)
	assert.Equal(t, "second", c2.Text)
	assert.Zero(t, c1.InputTokens, "fake model reports no usage")
}

func TestTokenUsageKeys(t *testing.T) {
	tests := []struct {
		name    string
		info    map[string]any
		in, out int64
	}{
		{"openai", map[string]any{"PromptTokens": 10, "CompletionTokens": 3}, 10, 3},
		{"anthropic", map[string]any{"InputTokens": int64(7), "OutputTokens": int64(2)}, 7, 2},
		{"bedrock", map[string]any{"input_tokens": int32(5), "output_tokens": float64(8)}, 5, 8},
		{"none", nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := tokenUsage(tt.info)
			assert.Equal(t, tt.in, in)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestNewModelValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"openai without key", config.Config{LLMProvider: config.ProviderOpenAI}, "OpenAI API key required"},
		{"azure without endpoint", config.Config{LLMProvider: config.ProviderAzure, AzureAPIKey: "k"}, "Azure OpenAI API key and endpoint required"},
		{"anthropic without key", config.Config{LLMProvider: config.ProviderAnthropic}, "Anthropic API key required"},
		{"unknown", config.Config{LLMProvider: "palm"}, "unsupported LLM provider: palm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewModelOpenAIDefaults(t *testing.T) {
	m, err := NewModel(context.Background(), config.Config{
		LLMProvider:    config.ProviderOpenAI,
		OpenAIAPIKey:   "sk-test",
		LLMTemperature: 0.7,
		LLMMaxTokens:   1000,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, m.Model())
}

type stubCompleter struct {
	text string
	err  error
	seen bool
}

func (s *stubCompleter) Complete(_ context.Context, _ []models.Message, wantsAudio bool) (models.Completion, error) {
	s.seen = wantsAudio
	return models.Completion{Text: s.text}, s.err
}

type stubSpeaker struct {
	audio []byte
	err   error
	calls int
}

func (s *stubSpeaker) Synthesize(_ context.Context, _ string) ([]byte, error) {
	s.calls++
	return s.audio, s.err
}

func TestVoicedModel(t *testing.T) {
	msgs := []models.Message{{Role: models.RoleUser, Content: "q"}}
	ctx := context.Background()

	t.Run("adds audio when requested", func(t *testing.T) {
		sp := &stubSpeaker{audio: []byte("RIFF....WAVE")}
		mc := metrics.NewCollector()
		v := NewVoicedModel(&stubCompleter{text: "answer"}, sp, mc, nil)

		c, err := v.Complete(ctx, msgs, true)
		require.NoError(t, err)
		assert.Equal(t, "answer", c.Text)
		assert.Equal(t, []byte("RIFF....WAVE"), c.Audio)
		assert.NotNil(t, mc.Snapshot().Synthesis)
	})

	t.Run("skips synthesis without request", func(t *testing.T) {
		sp := &stubSpeaker{audio: []byte("x")}
		c, err := NewVoicedModel(&stubCompleter{text: "answer"}, sp, nil, nil).Complete(ctx, msgs, false)
		require.NoError(t, err)
		assert.Nil(t, c.Audio)
		assert.Zero(t, sp.calls)
	})

	t.Run("synthesis failure keeps text", func(t *testing.T) {
		sp := &stubSpeaker{err: errors.New("tts down")}
		c, err := NewVoicedModel(&stubCompleter{text: "answer"}, sp, nil, nil).Complete(ctx, msgs, true)
		require.NoError(t, err)
		assert.Equal(t, "answer", c.Text)
		assert.Nil(t, c.Audio)
	})

	t.Run("generation failure propagates", func(t *testing.T) {
		sp := &stubSpeaker{}
		_, err := NewVoicedModel(&stubCompleter{err: errors.New("boom")}, sp, nil, nil).Complete(ctx, msgs, true)
		assert.Error(t, err)
		assert.Zero(t, sp.calls)
	})
}

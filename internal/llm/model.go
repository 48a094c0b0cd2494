// Package llm adapts langchaingo chat models to the answer generator.
package llm

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/agriassist/internal/config"
	"github.com/raphaelgruber/agriassist/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Default chat models per provider when AGRI_LLM_MODEL is unset.
const (
	DefaultOllamaModel    = "llama3.2"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultBedrockModel   = "anthropic.claude-3-haiku-20240307-v1:0"
)

// Model wraps a langchaingo chat model for answer generation.
type Model struct {
	llm         llms.Model
	modelName   string
	temperature float64
	maxTokens   int
}

// NewModel creates a chat model based on configuration.
func NewModel(ctx context.Context, cfg config.Config) (*Model, error) {
	var model llms.Model
	var err error
	name := cfg.LLMModel

	switch cfg.LLMProvider {
	case config.ProviderOllama, "":
		if name == "" {
			name = DefaultOllamaModel
		}
		model, err = ollama.New(
			ollama.WithModel(name),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OpenAI API key required")
		}
		if name == "" {
			name = DefaultOpenAIModel
		}
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(name),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAzure:
		if cfg.AzureAPIKey == "" || cfg.AzureEndpoint == "" {
			return nil, errors.New("Azure OpenAI API key and endpoint required")
		}
		if name == "" {
			name = DefaultOpenAIModel
		}
		// Azure routes by deployment name, which is passed as the model.
		model, err = openai.New(
			openai.WithToken(cfg.AzureAPIKey),
			openai.WithBaseURL(cfg.AzureEndpoint),
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithAPIVersion(cfg.AzureAPIVersion),
			openai.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create azure model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("Anthropic API key required")
		}
		if name == "" {
			name = DefaultAnthropicModel
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		if name == "" {
			name = DefaultBedrockModel
		}
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:         model,
		modelName:   name,
		temperature: cfg.LLMTemperature,
		maxTokens:   cfg.LLMMaxTokens,
	}, nil
}

// NewModelFromLLM wraps an existing langchaingo model. A negative
// temperature leaves the provider default in place; zero is sent as is.
func NewModelFromLLM(model llms.Model, name string, temperature float64, maxTokens int) *Model {
	return &Model{llm: model, modelName: name, temperature: temperature, maxTokens: maxTokens}
}

// Model returns the chat model name.
func (m *Model) Model() string {
	return m.modelName
}

// Complete sends the messages in a single round-trip. Audio is never
// produced here; see VoicedModel.
func (m *Model) Complete(ctx context.Context, messages []models.Message, _ bool) (models.Completion, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(chatRole(msg.Role), msg.Content))
	}

	var opts []llms.CallOption
	if m.temperature >= 0 {
		opts = append(opts, llms.WithTemperature(m.temperature))
	}
	if m.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(m.maxTokens))
	}

	response, err := m.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return models.Completion{}, fmt.Errorf("generate content: %w", wrapFatalError(err))
	}
	if len(response.Choices) == 0 {
		return models.Completion{}, errors.New("no response choices")
	}

	choice := response.Choices[0]
	in, out := tokenUsage(choice.GenerationInfo)
	return models.Completion{
		Text:         choice.Content,
		InputTokens:  in,
		OutputTokens: out,
	}, nil
}

func chatRole(r models.Role) llms.ChatMessageType {
	switch r {
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// Token usage keys differ per provider.
var (
	inputTokenKeys  = []string{"PromptTokens", "InputTokens", "input_tokens"}
	outputTokenKeys = []string{"CompletionTokens", "OutputTokens", "output_tokens"}
)

func tokenUsage(info map[string]any) (int64, int64) {
	return firstCount(info, inputTokenKeys), firstCount(info, outputTokenKeys)
}

func firstCount(info map[string]any, keys []string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

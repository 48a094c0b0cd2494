package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Provider names shared by the embedding and generation settings.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderLocal     = "local"
	ProviderVoyage    = "voyage"
)

// Vector backends.
const (
	BackendSnapshot  = "snapshot"
	BackendSurrealDB = "surrealdb"
)

// Config holds all configuration values.
type Config struct {
	// Knowledge base
	DataFile       string
	IndexDir       string
	TopK           int
	MinScore       float32
	EmbedBatchSize int
	VectorBackend  string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Embeddings
	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDimension int

	// Generation
	LLMProvider    string
	LLMModel       string
	// LLMTemperature is sent to the provider; negative keeps its default.
	LLMTemperature float64
	LLMMaxTokens   int

	// Provider credentials
	OllamaHost      string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AzureAPIKey     string
	AzureEndpoint   string
	AzureAPIVersion string
	AnthropicAPIKey string
	VoyageAPIKey    string
	AWSRegion       string

	// Speech-to-text. STTProvider is openai (any OpenAI-compatible
	// endpoint, Groq by default) or azure.
	STTProvider string
	STTBaseURL  string
	STTAPIKey   string
	STTModel    string
	STTLanguage string

	// Text-to-speech
	TTSEnabled  bool
	TTSProvider string
	TTSBaseURL  string
	TTSAPIKey   string
	TTSModel    string
	TTSVoice    string
	TTSFormat   string

	// Server
	ServerAddr  string
	MaxSessions int
	// SessionIdleMinutes closes server sessions unused for this long; 0 keeps them.
	SessionIdleMinutes int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// LoadDotEnv loads variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		DataFile:       getEnv("AGRI_DATA_FILE", "data.json"),
		IndexDir:       getEnv("AGRI_INDEX_DIR", "agri_index"),
		TopK:           getEnvInt("AGRI_TOP_K", 3),
		MinScore:       float32(getEnvFloat("AGRI_MIN_SCORE", 0)),
		EmbedBatchSize: getEnvInt("AGRI_EMBED_BATCH_SIZE", 1000),
		VectorBackend:  strings.ToLower(getEnv("AGRI_VECTOR_BACKEND", BackendSnapshot)),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "agri"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "advisory"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		EmbeddingProvider:  strings.ToLower(getEnv("AGRI_EMBED_PROVIDER", ProviderOllama)),
		EmbeddingModel:     getEnv("AGRI_EMBED_MODEL", ""),
		EmbeddingDimension: getEnvInt("AGRI_EMBED_DIMENSION", 0),

		LLMProvider:    strings.ToLower(getEnv("AGRI_LLM_PROVIDER", ProviderOllama)),
		LLMModel:       getEnv("AGRI_LLM_MODEL", ""),
		LLMTemperature: getEnvFloat("AGRI_LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:   getEnvInt("AGRI_LLM_MAX_TOKENS", 1000),

		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AzureAPIKey:     getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-12-01-preview"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		VoyageAPIKey:    getEnv("VOYAGE_API_KEY", os.Getenv("VOYAGEAI_API_KEY")),
		AWSRegion:       getEnv("AWS_REGION", ""),

		STTProvider: strings.ToLower(getEnv("AGRI_STT_PROVIDER", ProviderOpenAI)),
		STTBaseURL:  getEnv("AGRI_STT_BASE_URL", "https://api.groq.com/openai/v1"),
		STTAPIKey:   getEnv("AGRI_STT_API_KEY", os.Getenv("GROQ_API_KEY")),
		STTModel:    getEnv("AGRI_STT_MODEL", "whisper-large-v3-turbo"),
		STTLanguage: getEnv("AGRI_STT_LANGUAGE", ""),

		TTSEnabled:  getEnvBool("AGRI_TTS_ENABLED", false),
		TTSProvider: strings.ToLower(getEnv("AGRI_TTS_PROVIDER", ProviderOpenAI)),
		TTSBaseURL:  getEnv("AGRI_TTS_BASE_URL", ""),
		TTSAPIKey:   getEnv("AGRI_TTS_API_KEY", os.Getenv("OPENAI_API_KEY")),
		TTSModel:    getEnv("AGRI_TTS_MODEL", "tts-1"),
		TTSVoice:    getEnv("AGRI_TTS_VOICE", "alloy"),
		TTSFormat:   getEnv("AGRI_TTS_FORMAT", "wav"),

		ServerAddr:  getEnv("AGRI_SERVER_ADDR", ":8585"),
		MaxSessions: getEnvInt("AGRI_MAX_SESSIONS", 100),

		SessionIdleMinutes: getEnvInt("AGRI_SESSION_IDLE_MINUTES", 30),

		LogFile:  getEnv("AGRI_LOG_FILE", "/tmp/agriassist.log"),
		LogLevel: parseLogLevel(getEnv("AGRI_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return b
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/agriassist/internal/answer"
	"github.com/raphaelgruber/agriassist/internal/assistant"
	"github.com/raphaelgruber/agriassist/internal/config"
	"github.com/raphaelgruber/agriassist/internal/db"
	"github.com/raphaelgruber/agriassist/internal/embedding"
	"github.com/raphaelgruber/agriassist/internal/index"
	"github.com/raphaelgruber/agriassist/internal/llm"
	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/retriever"
	"github.com/raphaelgruber/agriassist/internal/speech"
)

// IndexInfo describes the index a runtime is serving.
type IndexInfo struct {
	Backend   string `json:"backend"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	Documents int    `json:"documents"`
}

// Runtime holds every online component: one retriever, one generator and
// one optional transcriber shared by all sessions.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	metrics     *metrics.Collector
	info        IndexInfo
	retriever   *retriever.Retriever
	generator   *answer.Generator
	transcriber assistant.Transcriber
	sessions    *assistant.Manager
	db          *db.Client
}

// EmbedderConfig maps application configuration to embedder settings.
func EmbedderConfig(cfg config.Config) embedding.Config {
	ec := embedding.Config{
		Provider:          embedding.ProviderType(cfg.EmbeddingProvider),
		Model:             cfg.EmbeddingModel,
		ExpectedDimension: cfg.EmbeddingDimension,
		BatchSize:         cfg.EmbedBatchSize,
		OllamaHost:        cfg.OllamaHost,
	}
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		ec.APIKey = cfg.OpenAIAPIKey
		ec.BaseURL = cfg.OpenAIBaseURL
	case config.ProviderAzure:
		ec.APIKey = cfg.AzureAPIKey
		ec.BaseURL = cfg.AzureEndpoint
		ec.APIVersion = cfg.AzureAPIVersion
	case config.ProviderVoyage:
		ec.APIKey = cfg.VoyageAPIKey
	}
	return ec
}

// TranscriberConfig maps application configuration to the speech-to-text
// client. The azure provider uses the Azure OpenAI endpoint, key and API
// version, with AGRI_STT_MODEL naming the deployment.
func TranscriberConfig(cfg config.Config) speech.Config {
	sc := speech.Config{
		BaseURL:  cfg.STTBaseURL,
		APIKey:   cfg.STTAPIKey,
		Model:    cfg.STTModel,
		Language: cfg.STTLanguage,
	}
	if cfg.STTProvider == config.ProviderAzure {
		sc.Azure = true
		sc.BaseURL = cfg.AzureEndpoint
		sc.APIKey = cfg.AzureAPIKey
		sc.APIVersion = cfg.AzureAPIVersion
	}
	return sc
}

// SynthesizerConfig maps application configuration to the text-to-speech
// client.
func SynthesizerConfig(cfg config.Config) speech.Config {
	sc := speech.Config{
		BaseURL: cfg.TTSBaseURL,
		APIKey:  cfg.TTSAPIKey,
		Model:   cfg.TTSModel,
		Voice:   cfg.TTSVoice,
		Format:  cfg.TTSFormat,
	}
	if cfg.TTSProvider == config.ProviderAzure {
		sc.Azure = true
		sc.BaseURL = cfg.AzureEndpoint
		sc.APIKey = cfg.AzureAPIKey
		sc.APIVersion = cfg.AzureAPIVersion
	}
	return sc
}

// DBConfig maps application configuration to SurrealDB settings.
func DBConfig(cfg config.Config) db.Config {
	return db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}
}

// NewRuntime wires the online components from configuration. The index
// must already be built (snapshot backend) or published (surrealdb).
func NewRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// Create metrics collector for runtime statistics
	mc := metrics.NewCollector()

	embedder, err := embedding.New(EmbedderConfig(cfg))
	if err != nil {
		return nil, err
	}

	rt := &Runtime{cfg: cfg, logger: logger, metrics: mc}

	var searcher retriever.Searcher
	switch cfg.VectorBackend {
	case config.BackendSnapshot, "":
		ix, err := index.Load(cfg.IndexDir, embedder.Dimension())
		if err != nil {
			return nil, err
		}
		searcher = ix
		rt.info = IndexInfo{Backend: config.BackendSnapshot, Model: ix.Model(), Dimension: ix.Dimension(), Documents: ix.Len()}

	case config.BackendSurrealDB:
		client, err := db.NewClient(ctx, DBConfig(cfg), logger)
		if err != nil {
			return nil, err
		}
		client.SetMetrics(mc)
		vi, err := db.OpenIndex(ctx, client, embedder.Dimension())
		if err != nil {
			client.Close(ctx)
			return nil, err
		}
		rt.db = client
		searcher = vi
		meta := vi.Meta()
		rt.info = IndexInfo{Backend: config.BackendSurrealDB, Model: meta.Model, Dimension: meta.Dimension, Documents: meta.Count}

	default:
		return nil, fmt.Errorf("unknown vector backend: %s", cfg.VectorBackend)
	}

	if rt.info.Model != embedder.Model() {
		logger.Warn("index was built with a different embedding model",
			"index_model", rt.info.Model, "embedder_model", embedder.Model())
	}

	rt.retriever = retriever.New(embedder, searcher,
		retriever.WithDefaultK(cfg.TopK),
		retriever.WithMinScore(cfg.MinScore),
		retriever.WithMetrics(mc),
		retriever.WithLogger(logger))

	model, err := llm.NewModel(ctx, cfg)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	var provider answer.Provider = model
	if cfg.TTSEnabled {
		synth := speech.NewSynthesizer(SynthesizerConfig(cfg))
		provider = llm.NewVoicedModel(model, synth, mc, logger)
	}
	rt.generator = answer.NewGenerator(provider, mc, logger)

	if sc := TranscriberConfig(cfg); sc.APIKey != "" {
		rt.transcriber = speech.NewTranscriber(sc, mc, logger)
	} else {
		logger.Info("no speech-to-text key configured, audio questions disabled")
	}

	rt.sessions = assistant.NewManager(rt.NewSession, cfg.MaxSessions, logger)

	logger.Info("runtime ready",
		"backend", rt.info.Backend,
		"documents", rt.info.Documents,
		"embed_model", embedder.Model(),
		"llm_provider", cfg.LLMProvider,
		"llm_model", model.Model())
	return rt, nil
}

// NewRuntimeFrom assembles a runtime from already built parts.
// transcriber may be nil.
func NewRuntimeFrom(cfg config.Config, info IndexInfo, r *retriever.Retriever, g *answer.Generator, transcriber assistant.Transcriber, mc *metrics.Collector, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.NewCollector()
	}
	rt := &Runtime{
		cfg:         cfg,
		logger:      logger,
		metrics:     mc,
		info:        info,
		retriever:   r,
		generator:   g,
		transcriber: transcriber,
	}
	rt.sessions = assistant.NewManager(rt.NewSession, cfg.MaxSessions, logger)
	return rt
}

// NewSession creates a standalone session backed by the shared components.
func (rt *Runtime) NewSession(id string) *assistant.Session {
	return assistant.NewSession(id, rt.retriever, rt.generator, rt.transcriber, assistant.Options{
		TopK:       rt.cfg.TopK,
		WantsAudio: rt.cfg.TTSEnabled,
		Metrics:    rt.metrics,
		Logger:     rt.logger,
	})
}

// Sessions returns the server-side session registry.
func (rt *Runtime) Sessions() *assistant.Manager {
	return rt.sessions
}

// Metrics returns the shared metrics collector.
func (rt *Runtime) Metrics() *metrics.Collector {
	return rt.metrics
}

// Info describes the served index.
func (rt *Runtime) Info() IndexInfo {
	return rt.info
}

// CanTranscribe reports whether audio questions are supported.
func (rt *Runtime) CanTranscribe() bool {
	return rt.transcriber != nil
}

// PruneIdleSessions closes sessions idle for longer than idle, checking
// every interval until ctx is done.
func (rt *Runtime) PruneIdleSessions(ctx context.Context, idle, interval time.Duration) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rt.sessions.Prune(now.Add(-idle))
		}
	}
}

// Close releases the database connection, if any.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt.db == nil {
		return nil
	}
	return rt.db.Close(ctx)
}

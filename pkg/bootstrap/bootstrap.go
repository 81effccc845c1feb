// Package bootstrap builds the course recommender from configuration:
// the embedder chain, the vector index, the optional recommendation log
// and the retrieval service on top of them.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/LuisaMG01/course-vectorization/engine/course"
	"github.com/LuisaMG01/course-vectorization/engine/embedding"
	"github.com/LuisaMG01/course-vectorization/engine/graph"
	"github.com/LuisaMG01/course-vectorization/engine/semantic"
	"github.com/LuisaMG01/course-vectorization/pkg/config"
	"github.com/LuisaMG01/course-vectorization/pkg/metrics"
	"github.com/LuisaMG01/course-vectorization/pkg/ollama"
	"github.com/LuisaMG01/course-vectorization/pkg/resilience"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// App holds the wired components. Close releases them.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Registry
	Embedder embedding.Embedder
	Index    semantic.Index
	Log      *graph.RecommendationLog // nil when neo4j is not configured
	Service  *course.Service

	driver neo4j.DriverWithContext
}

// NewLogger returns a JSON logger at the configured level.
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// New builds every component and initializes the collection. Any failure
// is returned after releasing what was already built.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			app.Close(context.Background())
		}
	}()

	app.Embedder, err = NewEmbedder(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	app.Index, err = NewIndex(cfg.Vector, app.Metrics, logger)
	if err != nil {
		return nil, err
	}

	opts := course.Options{
		DefaultLimit: cfg.Service.DefaultLimit,
		MaxLimit:     cfg.Service.MaxLimit,
		BatchWorkers: cfg.Service.BatchWorkers,
		PageSize:     cfg.Vector.PageSize,
		Metrics:      metrics.NewCourse(app.Metrics),
	}
	if cfg.Neo4j.URL != "" {
		app.driver, err = graph.Connect(ctx, cfg.Neo4j.URL, cfg.Neo4j.User, cfg.Neo4j.Pass)
		if err != nil {
			return nil, err
		}
		app.Log = graph.NewRecommendationLog(graph.DriverOpener{Driver: app.driver})
		if err = app.Log.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		opts.Log = app.Log
		logger.Info("recommendation log enabled", "url", cfg.Neo4j.URL)
	}

	app.Service = course.New(app.Embedder, app.Index, opts, logger)
	if err = app.Service.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: initialize index: %w", err)
	}
	logger.Info("course service ready",
		"backend", cfg.Vector.Backend,
		"provider", cfg.Embedding.Provider,
		"dims", app.Embedder.Dimensions(),
	)
	return app, nil
}

// Close releases the index, the embedder and the neo4j driver.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Index != nil {
		errs = append(errs, a.Index.Close())
	}
	if a.Embedder != nil {
		errs = append(errs, embedding.Close(a.Embedder))
	}
	if a.driver != nil {
		errs = append(errs, a.driver.Close(ctx))
	}
	return errors.Join(errs...)
}

// NewEmbedder builds provider → Guard → Cached → Throttled. The cache and
// the throttle are skipped when their settings are zero.
func NewEmbedder(cfg config.EmbeddingConfig, logger *slog.Logger) (embedding.Embedder, error) {
	var base embedding.Embedder
	switch cfg.Provider {
	case config.ProviderOllama:
		base = ollama.NewEmbedClient(cfg.OllamaURL, cfg.Model, cfg.Dimensions)
	case config.ProviderOpenAI:
		e, err := embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		base = e
	case config.ProviderONNX:
		e, err := embedding.NewONNX(embedding.ONNXConfig{
			ModelPath:   cfg.ONNXModelPath,
			VocabPath:   cfg.ONNXVocabPath,
			LibraryPath: cfg.ONNXLibraryPath,
			Dimensions:  cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		base = e
	case config.ProviderHashing:
		base = embedding.NewHashing(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("bootstrap: unknown embedding provider %q", cfg.Provider)
	}

	// Cache outermost: hits never wait on the provider's rate limit.
	emb := embedding.NewThrottled(embedding.NewGuard(base, cfg.MaxRunes, logger), cfg.RPS, cfg.Burst)
	return embedding.NewCached(emb, cfg.CacheSize), nil
}

// NewIndex opens the configured backend behind a circuit breaker whose
// state is exported as the index_breaker_state gauge.
func NewIndex(cfg config.VectorConfig, reg *metrics.Registry, logger *slog.Logger) (semantic.Index, error) {
	var idx semantic.Index
	switch cfg.Backend {
	case config.BackendQdrant:
		s, err := semantic.NewQdrant(semantic.QdrantConfig{
			Host:       cfg.Host,
			Port:       cfg.Port,
			APIKey:     cfg.APIKey,
			TLS:        cfg.UseTLS(),
			Collection: cfg.Collection,
		})
		if err != nil {
			return nil, err
		}
		idx = s
	case config.BackendBolt:
		b, err := semantic.OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		idx = b
	case config.BackendMemory:
		idx = semantic.NewMemoryIndex()
	default:
		return nil, fmt.Errorf("bootstrap: unknown vector backend %q", cfg.Backend)
	}

	gauge := reg.Gauge("index_breaker_state", "Vector index circuit breaker state (0 closed, 1 open, 2 half-open).")
	opts := resilience.DefaultBreakerOpts
	opts.IsFailure = semantic.IsBackendFailure
	opts.OnStateChange = func(from, to resilience.State) {
		gauge.Set(int64(to))
		logger.Warn("index circuit breaker state change", "from", from.String(), "to", to.String())
	}
	return semantic.NewGuarded(idx, resilience.NewBreaker(opts)), nil
}

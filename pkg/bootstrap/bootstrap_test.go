package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LuisaMG01/course-vectorization/engine/domain"
	"github.com/LuisaMG01/course-vectorization/engine/embedding"
	"github.com/LuisaMG01/course-vectorization/pkg/config"
	"github.com/LuisaMG01/course-vectorization/pkg/metrics"
	"github.com/LuisaMG01/course-vectorization/pkg/ollama"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func localConfig(backend string, dir string) *config.Config {
	cfg := config.Default()
	cfg.Embedding.Provider = config.ProviderHashing
	cfg.Embedding.Dimensions = 64
	cfg.Vector.Backend = backend
	cfg.Vector.BoltPath = filepath.Join(dir, "courses.db")
	return cfg
}

func TestNew_memoryBackend(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, localConfig(config.BackendMemory, t.TempDir()), quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Close(ctx)

	if app.Log != nil {
		t.Error("recommendation log should be disabled without neo4j url")
	}
	id, err := app.Service.LoadCourse(ctx, domain.CourseInput{Name: "Go", Description: "Concurrency in Go"})
	if err != nil {
		t.Fatalf("LoadCourse: %v", err)
	}
	matches, err := app.Service.Recommend(ctx, domain.Vacancy{Name: "Go", Description: "Concurrency in Go"}, 1)
	if err != nil || len(matches) != 1 || matches[0].ID != id {
		t.Fatalf("Recommend = %+v, %v", matches, err)
	}
	if !strings.Contains(app.Metrics.Render(), "course_operations_total") {
		t.Error("service metrics not registered")
	}
}

func TestNew_boltBackendPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	app, err := New(ctx, localConfig(config.BackendBolt, dir), quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := app.Service.LoadCourse(ctx, domain.CourseInput{ID: "c-1", Name: "SQL", Description: "Queries"})
	if err != nil {
		t.Fatalf("LoadCourse: %v", err)
	}
	if err := app.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	app, err = New(ctx, localConfig(config.BackendBolt, dir), quietLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer app.Close(ctx)
	got, err := app.Service.GetCourses(ctx, []string{id})
	if err != nil || len(got) != 1 || !got[0].Found {
		t.Fatalf("GetCourses = %+v, %v", got, err)
	}
}

func TestNewEmbedder_chain(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.EmbeddingConfig)
		wantType string
	}{
		{"guard only", func(c *config.EmbeddingConfig) { c.CacheSize = 0 }, "*embedding.Guard"},
		{"cached", func(c *config.EmbeddingConfig) {}, "*embedding.Cached"},
		{"throttled", func(c *config.EmbeddingConfig) { c.RPS = 10; c.Burst = 1; c.CacheSize = 0 }, "*embedding.Throttled"},
		{"cache over throttle", func(c *config.EmbeddingConfig) { c.RPS = 10; c.Burst = 1 }, "*embedding.Cached"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := localConfig(config.BackendMemory, "").Embedding
			tt.mutate(&cfg)
			emb, err := NewEmbedder(cfg, quietLogger())
			if err != nil {
				t.Fatal(err)
			}
			if got := typeName(emb); got != tt.wantType {
				t.Errorf("outer type = %s, want %s", got, tt.wantType)
			}
			if emb.Dimensions() != 64 {
				t.Errorf("dims = %d", emb.Dimensions())
			}
		})
	}
}

func TestNewEmbedder_cacheHitsSkipRateLimit(t *testing.T) {
	cfg := localConfig(config.BackendMemory, "").Embedding
	cfg.RPS = 0.1
	cfg.Burst = 1
	emb, err := NewEmbedder(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := range 4 {
		if _, err := emb.Embed(ctx, "Go concurrency"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	// A miss needs a fresh token, which is ten seconds away.
	if _, err := emb.Embed(ctx, "Rust ownership"); err == nil {
		t.Error("expected the limiter to reject a miss within the deadline")
	}
}

func typeName(e embedding.Embedder) string {
	switch e.(type) {
	case *embedding.Guard:
		return "*embedding.Guard"
	case *embedding.Cached:
		return "*embedding.Cached"
	case *embedding.Throttled:
		return "*embedding.Throttled"
	case *ollama.EmbedClient:
		return "*ollama.EmbedClient"
	}
	return "other"
}

func TestNewEmbedder_unknownProvider(t *testing.T) {
	cfg := config.Default().Embedding
	cfg.Provider = "word2vec"
	if _, err := NewEmbedder(cfg, quietLogger()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewIndex_unknownBackend(t *testing.T) {
	cfg := config.Default().Vector
	cfg.Backend = "faiss"
	if _, err := NewIndex(cfg, metrics.New(), quietLogger()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: "warn"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if _, err := NewLogger(config.LogConfig{Level: "chatty"}, io.Discard); err == nil {
		t.Error("expected error for unknown level")
	}
}

// Package config loads the course recommender configuration from an
// optional YAML file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported embedding providers.
const (
	ProviderOllama  = "ollama"
	ProviderOpenAI  = "openai"
	ProviderONNX    = "onnx"
	ProviderHashing = "hashing"
)

// Supported vector backends.
const (
	BackendQdrant = "qdrant"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Service   ServiceConfig   `yaml:"service"`
	NATS      NATSConfig      `yaml:"nats"`
	Neo4j     Neo4jConfig     `yaml:"neo4j"`
	OTel      OTelConfig      `yaml:"otel"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
	BodyLimit  int64  `yaml:"body_limit"` // bytes
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// VectorConfig selects and configures the vector index backend.
type VectorConfig struct {
	Backend    string `yaml:"backend"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"` // gRPC port
	APIKey     string `yaml:"api_key"`
	TLS        *bool  `yaml:"tls"` // nil means on when APIKey is set
	Collection string `yaml:"collection"`
	BoltPath   string `yaml:"bolt_path"`
	PageSize   int    `yaml:"page_size"`
}

// UseTLS reports whether the Qdrant connection uses TLS. An explicit
// setting wins; otherwise TLS is on whenever an API key is set.
func (v VectorConfig) UseTLS() bool {
	if v.TLS != nil {
		return *v.TLS
	}
	return v.APIKey != ""
}

// EmbeddingConfig selects and configures the embedder chain.
type EmbeddingConfig struct {
	Provider        string  `yaml:"provider"`
	Model           string  `yaml:"model"`
	Dimensions      int     `yaml:"dimensions"`
	OllamaURL       string  `yaml:"ollama_url"`
	OpenAIAPIKey    string  `yaml:"openai_api_key"`
	OpenAIBaseURL   string  `yaml:"openai_base_url"`
	ONNXModelPath   string  `yaml:"onnx_model_path"`
	ONNXVocabPath   string  `yaml:"onnx_vocab_path"`
	ONNXLibraryPath string  `yaml:"onnx_library_path"`
	MaxRunes        int     `yaml:"max_runes"`
	CacheSize       int     `yaml:"cache_size"` // 0 disables the cache
	RPS             float64 `yaml:"rps"`        // 0 disables throttling
	Burst           int     `yaml:"burst"`
}

// ServiceConfig tunes the retrieval service.
type ServiceConfig struct {
	BatchWorkers int `yaml:"batch_workers"`
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// NATSConfig enables the async ingest consumer when URL is set.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// Neo4jConfig enables the recommendation log when URL is set.
type Neo4jConfig struct {
	URL  string `yaml:"url"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

// OTelConfig names the service in traces.
type OTelConfig struct {
	ServiceName string `yaml:"service_name"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       "5000",
			CORSOrigin: "*",
			BodyLimit:  10 << 20,
		},
		Log: LogConfig{Level: "info"},
		Vector: VectorConfig{
			Backend:    BackendQdrant,
			Host:       "localhost",
			Port:       6334,
			Collection: "cursos",
			BoltPath:   "courses.db",
			PageSize:   100,
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderOllama,
			Model:      "nomic-embed-text",
			Dimensions: 768,
			OllamaURL:  "http://localhost:11434",
			MaxRunes:   2000,
			CacheSize:  1024,
		},
		Service: ServiceConfig{
			BatchWorkers: 1,
			DefaultLimit: 5,
			MaxLimit:     100,
		},
		OTel: OTelConfig{ServiceName: "course-recommender"},
	}
}

// Load reads the YAML file at path over the defaults. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv loads the file named by CONFIG_FILE, applies environment
// overrides and validates the result.
func FromEnv() (*Config, error) {
	return LoadWithEnv(os.Getenv("CONFIG_FILE"))
}

// LoadWithEnv loads path, applies environment overrides and validates the
// result.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
// Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.setString("PORT", &c.Server.Port)
	e.setString("CORS_ORIGIN", &c.Server.CORSOrigin)
	e.setString("LOG_LEVEL", &c.Log.Level)

	e.setString("VECTOR_BACKEND", &c.Vector.Backend)
	e.setString("QDRANT_HOST", &c.Vector.Host)
	e.setInt("QDRANT_PORT", &c.Vector.Port)
	e.setString("QDRANT_API_KEY", &c.Vector.APIKey)
	e.setBool("QDRANT_TLS", &c.Vector.TLS)
	e.setString("QDRANT_COLLECTION", &c.Vector.Collection)
	e.setString("BOLT_PATH", &c.Vector.BoltPath)

	e.setString("EMBED_PROVIDER", &c.Embedding.Provider)
	e.setString("MODEL_NAME", &c.Embedding.Model)
	e.setInt("EMBED_DIMENSIONS", &c.Embedding.Dimensions)
	e.setString("OLLAMA_URL", &c.Embedding.OllamaURL)
	e.setString("OPENAI_API_KEY", &c.Embedding.OpenAIAPIKey)
	e.setString("OPENAI_BASE_URL", &c.Embedding.OpenAIBaseURL)
	e.setString("ONNX_MODEL_PATH", &c.Embedding.ONNXModelPath)
	e.setString("ONNX_VOCAB_PATH", &c.Embedding.ONNXVocabPath)
	e.setString("ONNX_LIBRARY_PATH", &c.Embedding.ONNXLibraryPath)
	e.setInt("EMBED_MAX_RUNES", &c.Embedding.MaxRunes)
	e.setInt("EMBED_CACHE_SIZE", &c.Embedding.CacheSize)
	e.setFloat("EMBED_RPS", &c.Embedding.RPS)
	e.setInt("EMBED_BURST", &c.Embedding.Burst)

	e.setInt("BATCH_WORKERS", &c.Service.BatchWorkers)
	e.setInt("DEFAULT_LIMIT", &c.Service.DefaultLimit)
	e.setInt("MAX_LIMIT", &c.Service.MaxLimit)

	e.setString("NATS_URL", &c.NATS.URL)
	e.setString("NEO4J_URL", &c.Neo4j.URL)
	e.setString("NEO4J_USER", &c.Neo4j.User)
	e.setString("NEO4J_PASS", &c.Neo4j.Pass)
	e.setString("OTEL_SERVICE_NAME", &c.OTel.ServiceName)

	return errors.Join(e.errs...)
}

// Validate rejects unknown providers, backends and log levels and
// non-positive sizes.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{ProviderOllama, ProviderOpenAI, ProviderONNX, ProviderHashing}, c.Embedding.Provider) {
		errs = append(errs, fmt.Errorf("config: unknown embedding provider %q", c.Embedding.Provider))
	}
	if !slices.Contains([]string{BackendQdrant, BackendBolt, BackendMemory}, c.Vector.Backend) {
		errs = append(errs, fmt.Errorf("config: unknown vector backend %q", c.Vector.Backend))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("config: embedding dimensions must be positive, got %d", c.Embedding.Dimensions))
	}
	if c.Vector.Collection == "" && c.Vector.Backend == BackendQdrant {
		errs = append(errs, errors.New("config: vector collection is required"))
	}
	if c.Vector.Backend == BackendBolt && c.Vector.BoltPath == "" {
		errs = append(errs, errors.New("config: bolt path is required"))
	}
	if c.Embedding.Provider == ProviderONNX && (c.Embedding.ONNXModelPath == "" || c.Embedding.ONNXVocabPath == "") {
		errs = append(errs, errors.New("config: onnx provider needs model and vocab paths"))
	}
	if c.Embedding.Provider == ProviderOpenAI && c.Embedding.OpenAIAPIKey == "" && c.Embedding.OpenAIBaseURL == "" {
		errs = append(errs, errors.New("config: openai provider needs an API key or a base URL"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Service.DefaultLimit > c.Service.MaxLimit && c.Service.MaxLimit > 0 {
		errs = append(errs, fmt.Errorf("config: default limit %d exceeds max limit %d", c.Service.DefaultLimit, c.Service.MaxLimit))
	}
	return errors.Join(errs...)
}

// envReader collects parse errors while applying overrides.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return
	}
	*dst = n
}

func (e *envReader) setFloat(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return
	}
	*dst = f
}

func (e *envReader) setBool(key string, dst **bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return
	}
	*dst = &b
}

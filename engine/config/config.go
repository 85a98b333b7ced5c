// Package config builds the immutable runtime configuration shared by the
// ingest and assess binaries. Values come from an optional YAML file, then a
// .env file and the process environment, then defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverQdrant   = "qdrant"
	DriverSQLite   = "sqlite"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Insert failure policies.
const (
	PolicyPropagate = "propagate"
	PolicySwallow   = "swallow"
)

// LLM configures the embedding and completion services.
type LLM struct {
	Provider        string        `yaml:"provider"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	OllamaURL       string        `yaml:"ollama_url"`
	EmbeddingModel  string        `yaml:"embedding_model"`
	CompletionModel string        `yaml:"completion_model"`
	Temperature     float32       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Chunking configures the token-bounded splitter.
type Chunking struct {
	MaxTokensPerChunk int    `yaml:"max_tokens_per_chunk"`
	Encoding          string `yaml:"encoding"`
}

// Embedding configures batching and vector shape.
type Embedding struct {
	BatchSize int `yaml:"batch_size"`
	Dimension int `yaml:"dimension"`
}

// Cost configures the embedding cost estimate.
type Cost struct {
	PerThousandTokens float64 `yaml:"per_thousand_tokens"`
}

// Store configures the vector store backend.
type Store struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	Table        string `yaml:"table"`
	QdrantAddr   string `yaml:"qdrant_addr"`
	Collection   string `yaml:"collection"`
	InsertPolicy string `yaml:"insert_policy"`
}

// Assess configures the retrieval step of an assessment.
type Assess struct {
	TopK int `yaml:"top_k"`
}

// Events configures optional NATS publishing.
type Events struct {
	NATSURL string `yaml:"nats_url"`
}

// Graph configures the optional Neo4j case graph.
type Graph struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Metrics configures the metrics endpoint.
type Metrics struct {
	Port int `yaml:"port"`
}

// Config is the root configuration. It is built once by Load and passed by
// value into component constructors.
type Config struct {
	LLM       LLM       `yaml:"llm"`
	Chunking  Chunking  `yaml:"chunking"`
	Embedding Embedding `yaml:"embedding"`
	Cost      Cost      `yaml:"cost"`
	Store     Store     `yaml:"store"`
	Assess    Assess    `yaml:"assess"`
	Events    Events    `yaml:"events"`
	Graph     Graph     `yaml:"graph"`
	Metrics   Metrics   `yaml:"metrics"`
	LogLevel  string    `yaml:"log_level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LLM: LLM{
			Provider:        ProviderOpenAI,
			BaseURL:         "https://api.openai.com/v1",
			OllamaURL:       "http://localhost:11434",
			EmbeddingModel:  "text-embedding-3-small",
			CompletionModel: "gpt-4",
			Temperature:     0,
			MaxTokens:       1000,
			Timeout:         60 * time.Second,
		},
		Chunking:  Chunking{MaxTokensPerChunk: 512, Encoding: "cl100k_base"},
		Embedding: Embedding{BatchSize: 100, Dimension: 1536},
		Cost:      Cost{PerThousandTokens: 0.0002},
		Store: Store{
			Driver:       DriverPostgres,
			Table:        "motor_embeddings",
			QdrantAddr:   "localhost:6334",
			Collection:   "motor_embeddings",
			InsertPolicy: PolicyPropagate,
		},
		Assess:   Assess{TopK: 5},
		Graph:    Graph{User: "neo4j"},
		LogLevel: "info",
	}
}

// Load builds a Config. path may be empty, in which case only the
// environment and defaults are used. A missing .env file is ignored.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without Validate, for tools that only need a subset of the
// settings.
func Read(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return read(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg, err := read(path, lookup)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func read(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	e := envReader{lookup: lookup}
	e.str("OPENAI_API_KEY", &cfg.LLM.APIKey)
	e.str("LLM_PROVIDER", &cfg.LLM.Provider)
	e.str("OPENAI_BASE_URL", &cfg.LLM.BaseURL)
	e.str("OLLAMA_URL", &cfg.LLM.OllamaURL)
	e.str("EMBEDDING_MODEL", &cfg.LLM.EmbeddingModel)
	e.str("COMPLETION_MODEL", &cfg.LLM.CompletionModel)
	e.float32("TEMPERATURE", &cfg.LLM.Temperature)
	e.int("MAX_TOKENS", &cfg.LLM.MaxTokens)
	e.duration("LLM_TIMEOUT", &cfg.LLM.Timeout)
	e.int("MAX_TOKENS_PER_CHUNK", &cfg.Chunking.MaxTokensPerChunk)
	e.str("TOKEN_ENCODING", &cfg.Chunking.Encoding)
	e.int("EMBED_BATCH_SIZE", &cfg.Embedding.BatchSize)
	e.int("EMBEDDING_DIMENSION", &cfg.Embedding.Dimension)
	e.float64("EMBEDDING_COST_PER_1K_TOKENS", &cfg.Cost.PerThousandTokens)
	e.str("STORE_DRIVER", &cfg.Store.Driver)
	e.str("TIMESCALE_CONNECTION_STRING", &cfg.Store.DSN)
	e.str("DB_CONNECTION_STRING", &cfg.Store.DSN)
	e.str("MOTOR_EMBEDDINGS_TABLE", &cfg.Store.Table)
	e.str("QDRANT_URL", &cfg.Store.QdrantAddr)
	e.str("QDRANT_COLLECTION", &cfg.Store.Collection)
	e.str("INSERT_ERROR_POLICY", &cfg.Store.InsertPolicy)
	e.int("TOP_K", &cfg.Assess.TopK)
	e.str("NATS_URL", &cfg.Events.NATSURL)
	e.str("NEO4J_URL", &cfg.Graph.URL)
	e.str("NEO4J_USER", &cfg.Graph.User)
	e.str("NEO4J_PASS", &cfg.Graph.Password)
	e.int("METRICS_PORT", &cfg.Metrics.Port)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	if e.err != nil {
		return Config{}, e.err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Chunking.MaxTokensPerChunk <= 0:
		return fmt.Errorf("config: max tokens per chunk must be positive, got %d", c.Chunking.MaxTokensPerChunk)
	case c.Embedding.BatchSize <= 0:
		return fmt.Errorf("config: embed batch size must be positive, got %d", c.Embedding.BatchSize)
	case c.Embedding.Dimension <= 0:
		return fmt.Errorf("config: embedding dimension must be positive, got %d", c.Embedding.Dimension)
	case c.Assess.TopK <= 0:
		return fmt.Errorf("config: top k must be positive, got %d", c.Assess.TopK)
	case c.LLM.MaxTokens <= 0:
		return fmt.Errorf("config: max tokens must be positive, got %d", c.LLM.MaxTokens)
	case c.Cost.PerThousandTokens < 0:
		return fmt.Errorf("config: cost per 1k tokens must not be negative, got %g", c.Cost.PerThousandTokens)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return errors.New("config: OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: DB_CONNECTION_STRING is required for the %s driver", c.Store.Driver)
		}
	case DriverQdrant:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	switch c.Store.InsertPolicy {
	case PolicyPropagate, PolicySwallow:
	default:
		return fmt.Errorf("config: unknown insert policy %q", c.Store.InsertPolicy)
	}
	return nil
}

// envReader applies environment overrides, keeping the first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key, v string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float64(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) float32(key string, dst *float32) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = float32(f)
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}

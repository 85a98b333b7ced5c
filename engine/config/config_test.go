package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"OPENAI_API_KEY":       "sk-test",
		"DB_CONNECTION_STRING": "postgres://localhost/motor",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", envMap(baseEnv()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chunking.MaxTokensPerChunk != 512 {
		t.Errorf("max tokens per chunk = %d, want 512", cfg.Chunking.MaxTokensPerChunk)
	}
	if cfg.LLM.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxTokens != 1000 {
		t.Errorf("max tokens = %d, want 1000", cfg.LLM.MaxTokens)
	}
	if cfg.Cost.PerThousandTokens != 0.0002 {
		t.Errorf("cost = %v, want 0.0002", cfg.Cost.PerThousandTokens)
	}
	if cfg.Store.Table != "motor_embeddings" || cfg.Store.Driver != DriverPostgres {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Embedding.Dimension != 1536 {
		t.Errorf("dimension = %d, want 1536", cfg.Embedding.Dimension)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	env := baseEnv()
	env["MAX_TOKENS_PER_CHUNK"] = "256"
	env["TEMPERATURE"] = "0.2"
	env["EMBEDDING_COST_PER_1K_TOKENS"] = "0.00002"
	env["LLM_TIMEOUT"] = "15s"
	env["INSERT_ERROR_POLICY"] = "swallow"
	env["TOP_K"] = "3"

	cfg, err := load("", envMap(env))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chunking.MaxTokensPerChunk != 256 {
		t.Errorf("max tokens per chunk = %d", cfg.Chunking.MaxTokensPerChunk)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("temperature = %v", cfg.LLM.Temperature)
	}
	if cfg.Cost.PerThousandTokens != 0.00002 {
		t.Errorf("cost = %v", cfg.Cost.PerThousandTokens)
	}
	if cfg.LLM.Timeout != 15*time.Second {
		t.Errorf("timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Store.InsertPolicy != PolicySwallow {
		t.Errorf("policy = %q", cfg.Store.InsertPolicy)
	}
	if cfg.Assess.TopK != 3 {
		t.Errorf("top k = %d", cfg.Assess.TopK)
	}
}

func TestLoad_TimescaleFallback(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":              "sk-test",
		"TIMESCALE_CONNECTION_STRING": "postgres://ts/motor",
	}
	cfg, err := load("", envMap(env))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.DSN != "postgres://ts/motor" {
		t.Fatalf("dsn = %q", cfg.Store.DSN)
	}

	env["DB_CONNECTION_STRING"] = "postgres://primary/motor"
	cfg, err = load("", envMap(env))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.DSN != "postgres://primary/motor" {
		t.Fatalf("DB_CONNECTION_STRING should win, got %q", cfg.Store.DSN)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motor.yaml")
	yml := `
llm:
  provider: ollama
  completion_model: llama3.1:8b
  timeout: 30s
store:
  driver: sqlite
  dsn: /tmp/motor.db
chunking:
  max_tokens_per_chunk: 128
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := load(path, envMap(map[string]string{"MAX_TOKENS_PER_CHUNK": "64"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Provider != ProviderOllama || cfg.LLM.CompletionModel != "llama3.1:8b" {
		t.Errorf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Store.Driver != DriverSQLite || cfg.Store.DSN != "/tmp/motor.db" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Chunking.MaxTokensPerChunk != 64 {
		t.Errorf("env should override yaml, got %d", cfg.Chunking.MaxTokensPerChunk)
	}
	if cfg.LLM.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("defaults should survive yaml, got %q", cfg.LLM.EmbeddingModel)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing api key", map[string]string{"DB_CONNECTION_STRING": "x"}, "OPENAI_API_KEY"},
		{"missing dsn", map[string]string{"OPENAI_API_KEY": "k"}, "DB_CONNECTION_STRING"},
		{"bad int", map[string]string{"OPENAI_API_KEY": "k", "DB_CONNECTION_STRING": "x", "TOP_K": "five"}, "TOP_K"},
		{"zero chunk", map[string]string{"OPENAI_API_KEY": "k", "DB_CONNECTION_STRING": "x", "MAX_TOKENS_PER_CHUNK": "0"}, "max tokens per chunk"},
		{"bad driver", map[string]string{"OPENAI_API_KEY": "k", "STORE_DRIVER": "mongo"}, "unknown store driver"},
		{"bad policy", map[string]string{"OPENAI_API_KEY": "k", "DB_CONNECTION_STRING": "x", "INSERT_ERROR_POLICY": "retry"}, "unknown insert policy"},
		{"bad provider", map[string]string{"LLM_PROVIDER": "bard", "DB_CONNECTION_STRING": "x"}, "unknown llm provider"},
		{"negative cost", map[string]string{"OPENAI_API_KEY": "k", "DB_CONNECTION_STRING": "x", "EMBEDDING_COST_PER_1K_TOKENS": "-1"}, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load("", envMap(tt.env))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_QdrantNeedsNoDSN(t *testing.T) {
	env := map[string]string{"OPENAI_API_KEY": "k", "STORE_DRIVER": "qdrant"}
	cfg, err := load("", envMap(env))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.QdrantAddr != "localhost:6334" {
		t.Fatalf("qdrant addr = %q", cfg.Store.QdrantAddr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := load(filepath.Join(t.TempDir(), "nope.yaml"), envMap(baseEnv())); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRead_SkipsValidation(t *testing.T) {
	cfg, err := read("", envMap(map[string]string{"NATS_URL": "nats://localhost:4222"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Events.NATSURL != "nats://localhost:4222" {
		t.Fatalf("nats url = %q", cfg.Events.NATSURL)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("config without api key or dsn should not validate")
	}
}

func TestRead_EnvParseError(t *testing.T) {
	if _, err := read("", envMap(map[string]string{"TOP_K": "many"})); err == nil {
		t.Fatal("expected parse error")
	}
}

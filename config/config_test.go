package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory-gateway/core"
)

var allVars = []string{
	"MIRIX_CONFIG", "PORT", "GRPC_PORT", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL",
	"ANTHROPIC_MAX_TOKENS", "MIRIX_DATA_DIR", "REDIS_URL", "MIRIX_CACHE_SIZE",
	"MIRIX_EMBEDDER", "MIRIX_EMBEDDING_MODEL", "OLLAMA_BASE_URL", "OPENAI_API_KEY",
	"ONNX_MODEL_PATH", "ONNX_TOKENIZER_PATH", "ONNX_LIBRARY_PATH",
	"MIRIX_MIN_SIMILARITY", "MIRIX_MAX_RESULTS", "MIRIX_SHUTDOWN_TIMEOUT",
}

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range allVars {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.AnthropicAPIKey)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "", cfg.GRPCPort)
	assert.Equal(t, EmbedderHash, cfg.Embedder.Provider)
	assert.Equal(t, 10, cfg.Memory.MaxResults)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("PORT", "9090")
	t.Setenv("GRPC_PORT", "9091")
	t.Setenv("ANTHROPIC_MAX_TOKENS", "512")
	t.Setenv("MIRIX_EMBEDDER", "ollama")
	t.Setenv("MIRIX_MIN_SIMILARITY", "0.3")
	t.Setenv("MIRIX_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "9091", cfg.GRPCPort)
	assert.EqualValues(t, 512, cfg.AnthropicMaxTokens)
	assert.Equal(t, EmbedderOllama, cfg.Embedder.Provider)
	assert.InDelta(t, 0.3, cfg.Memory.MinSimilarity, 1e-9)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "7070"
data_dir: /var/lib/mirix
redis_url: redis://localhost:6379/0
embedder:
  provider: ollama
  model: nomic-embed-text
memory:
  max_results: 5
`), 0o600))

	t.Setenv("MIRIX_CONFIG", path)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("MIRIX_MAX_RESULTS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "/var/lib/mirix", cfg.DataDir)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.Model)
	assert.Equal(t, 3, cfg.Memory.MaxResults, "environment wins over the file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad max tokens", map[string]string{"ANTHROPIC_MAX_TOKENS": "lots"}},
		{"bad similarity", map[string]string{"MIRIX_MIN_SIMILARITY": "high"}},
		{"similarity out of range", map[string]string{"MIRIX_MIN_SIMILARITY": "1.5"}},
		{"unknown embedder", map[string]string{"MIRIX_EMBEDDER": "word2vec"}},
		{"openai without key", map[string]string{"MIRIX_EMBEDDER": "openai"}},
		{"onnx without model", map[string]string{"MIRIX_EMBEDDER": "onnx"}},
		{"redis over in-memory users", map[string]string{"REDIS_URL": "redis://localhost:6379/0"}},
		{"missing config file", map[string]string{"MIRIX_CONFIG": "/nonexistent/gateway.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("ANTHROPIC_API_KEY", "sk-test")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

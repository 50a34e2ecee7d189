// Package config loads gateway settings from a .env file, an optional YAML
// file and the environment, in increasing order of precedence.
//
// Secrets (API keys) are only read from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/nim-memory-gateway/core"
)

// Embedder providers.
const (
	EmbedderHash   = "hash"
	EmbedderOllama = "ollama"
	EmbedderOpenAI = "openai"
	EmbedderONNX   = "onnx"
)

// Config holds every gateway setting.
type Config struct {
	Port     string `yaml:"port"`
	GRPCPort string `yaml:"grpc_port"` // empty disables gRPC

	AnthropicAPIKey    string `yaml:"-"`
	AnthropicModel     string `yaml:"anthropic_model"`
	AnthropicMaxTokens int64  `yaml:"anthropic_max_tokens"`

	// DataDir holds the SQLite databases and the vector store. Empty keeps
	// everything in memory.
	DataDir   string `yaml:"data_dir"`
	RedisURL  string `yaml:"redis_url"`
	CacheSize int64  `yaml:"cache_size"`

	Embedder EmbedderConfig `yaml:"embedder"`
	Memory   MemoryConfig   `yaml:"memory"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	OllamaBaseURL string `yaml:"ollama_base_url"`
	OpenAIAPIKey  string `yaml:"-"`

	ONNXModelPath     string `yaml:"onnx_model_path"`
	ONNXTokenizerPath string `yaml:"onnx_tokenizer_path"`
	ONNXLibraryPath   string `yaml:"onnx_library_path"`
}

// MemoryConfig tunes retrieval in the local engine.
type MemoryConfig struct {
	MinSimilarity float64 `yaml:"min_similarity"`
	MaxResults    int     `yaml:"max_results"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Port:               "8080",
		AnthropicMaxTokens: 1024,
		CacheSize:          10000,
		Embedder:           EmbedderConfig{Provider: EmbedderHash},
		Memory:             MemoryConfig{MaxResults: 10},
		ShutdownTimeout:    10 * time.Second,
	}
}

// Load reads .env (if present), the YAML file named by MIRIX_CONFIG (if set)
// and the environment. It fails with core.ErrMissingConfiguration when
// ANTHROPIC_API_KEY is not set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("MIRIX_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.GRPCPort, "GRPC_PORT")
	setString(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&c.AnthropicModel, "ANTHROPIC_MODEL")
	setString(&c.DataDir, "MIRIX_DATA_DIR")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.Embedder.Provider, "MIRIX_EMBEDDER")
	setString(&c.Embedder.Model, "MIRIX_EMBEDDING_MODEL")
	setString(&c.Embedder.OllamaBaseURL, "OLLAMA_BASE_URL")
	setString(&c.Embedder.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.Embedder.ONNXModelPath, "ONNX_MODEL_PATH")
	setString(&c.Embedder.ONNXTokenizerPath, "ONNX_TOKENIZER_PATH")
	setString(&c.Embedder.ONNXLibraryPath, "ONNX_LIBRARY_PATH")

	if err := setInt64(&c.AnthropicMaxTokens, "ANTHROPIC_MAX_TOKENS"); err != nil {
		return err
	}
	if err := setInt64(&c.CacheSize, "MIRIX_CACHE_SIZE"); err != nil {
		return err
	}
	if v := os.Getenv("MIRIX_MAX_RESULTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MIRIX_MAX_RESULTS %q: %w", v, err)
		}
		c.Memory.MaxResults = n
	}
	if v := os.Getenv("MIRIX_MIN_SIMILARITY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid MIRIX_MIN_SIMILARITY %q: %w", v, err)
		}
		c.Memory.MinSimilarity = f
	}
	if v := os.Getenv("MIRIX_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MIRIX_SHUTDOWN_TIMEOUT %q: %w", v, err)
		}
		c.ShutdownTimeout = d
	}
	return nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("%w: ANTHROPIC_API_KEY environment variable is required", core.ErrMissingConfiguration)
	}
	if c.Port == "" {
		return fmt.Errorf("%w: PORT must not be empty", core.ErrMissingConfiguration)
	}

	switch c.Embedder.Provider {
	case EmbedderHash, EmbedderOllama:
	case EmbedderOpenAI:
		if c.Embedder.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for the openai embedder", core.ErrMissingConfiguration)
		}
	case EmbedderONNX:
		if c.Embedder.ONNXModelPath == "" || c.Embedder.ONNXTokenizerPath == "" {
			return fmt.Errorf("%w: ONNX_MODEL_PATH and ONNX_TOKENIZER_PATH are required for the onnx embedder", core.ErrMissingConfiguration)
		}
	default:
		return fmt.Errorf("unknown embedder %q (want hash, ollama, openai or onnx)", c.Embedder.Provider)
	}

	// A shared mapping would outlive users kept in process memory.
	if c.RedisURL != "" && c.DataDir == "" {
		return fmt.Errorf("%w: REDIS_URL requires MIRIX_DATA_DIR so engine users survive restarts", core.ErrMissingConfiguration)
	}

	if c.Memory.MinSimilarity < 0 || c.Memory.MinSimilarity > 1 {
		return fmt.Errorf("min similarity %v out of range [0, 1]", c.Memory.MinSimilarity)
	}
	return nil
}

func setString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	*dst = n
	return nil
}

package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OllamaConfig holds connection and model settings for the Ollama backend
// used by the remote embedding and generation providers.
type OllamaConfig struct {
	URL          string `yaml:"url"`
	EmbedModel   string `yaml:"embed_model"`
	ChatModel    string `yaml:"chat_model"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
	MaxRetries   int    `yaml:"max_retries"`
	RetryDelayMs int    `yaml:"retry_delay_ms"`
	GenMaxTokens int    `yaml:"gen_max_tokens"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbeddingConfig selects the embedding provider implementation.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "stub" or "ollama"
	StubDim  int    `yaml:"stub_dim"`
}

// GenerationConfig selects the generation provider implementation.
type GenerationConfig struct {
	Provider string `yaml:"provider"` // "stub" or "ollama"
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	Provider string        `yaml:"provider"` // "memory" or "qdrant"
	Qdrant   *QdrantConfig `yaml:"qdrant,omitempty"`
}

// ChunkingConfig configures how parsed text is split before embedding.
type ChunkingConfig struct {
	Mode    string `yaml:"mode"` // "chars", "words" or "sentences"
	Size    int    `yaml:"size"`
	Overlap int    `yaml:"overlap"`
}

// RetrievalConfig configures similarity search and context assembly.
type RetrievalConfig struct {
	TopK             int `yaml:"top_k"`
	CtxCharsPerChunk int `yaml:"ctx_chars_per_chunk"`
}

// StorageConfig configures where raw uploads are kept on disk.
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
}

// ServerConfig configures the HTTP daemon.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root application configuration. It is constructed once at
// startup and passed to component constructors; nothing reads it globally.
type Config struct {
	DefaultKB   string            `yaml:"default_kb"`
	Server      ServerConfig      `yaml:"server"`
	Ollama      OllamaConfig      `yaml:"ollama"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Generation  GenerationConfig  `yaml:"generation"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Storage     StorageConfig     `yaml:"storage"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragkb/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragkb/config.yaml and
// returns them.
func LoadDefault() (*Config, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragkb", "config.yaml"), nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.DefaultKB == "" {
		cfg.DefaultKB = "kb_default"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = "http://localhost:11434"
	}
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = "nomic-embed-text"
	}
	if cfg.Ollama.ChatModel == "" {
		cfg.Ollama.ChatModel = "llama3.2"
	}
	if cfg.Ollama.TimeoutSecs == 0 {
		cfg.Ollama.TimeoutSecs = 300
	}
	if cfg.Ollama.MaxRetries == 0 {
		cfg.Ollama.MaxRetries = 3
	}
	if cfg.Ollama.RetryDelayMs == 0 {
		cfg.Ollama.RetryDelayMs = 1000
	}
	if cfg.Ollama.GenMaxTokens == 0 {
		cfg.Ollama.GenMaxTokens = 192
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "stub"
	}
	if cfg.Embedding.StubDim == 0 {
		cfg.Embedding.StubDim = 768
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "stub"
	}
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "memory"
	}
	if cfg.VectorStore.Provider == "qdrant" && cfg.VectorStore.Qdrant == nil {
		cfg.VectorStore.Qdrant = &QdrantConfig{}
	}
	if cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Chunking.Mode == "" {
		cfg.Chunking.Mode = "chars"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 800
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 120
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.CtxCharsPerChunk == 0 {
		cfg.Retrieval.CtxCharsPerChunk = 600
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = filepath.Join("data", "uploads")
	}
}

// applyEnvOverrides lets deployment environments point at different
// backends without editing the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.Ollama.URL = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{TimeoutSecs: 15}
		}
		cfg.VectorStore.Qdrant.URL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{TimeoutSecs: 15}
		}
		cfg.VectorStore.Qdrant.APIKey = v
	}
}

// Package app assembles the pipeline components from configuration.
// Concrete providers and backends are selected here, at process start,
// and nowhere else.
package app

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ragkb/internal/chunker"
	"ragkb/internal/config"
	"ragkb/internal/domain"
	"ragkb/internal/embedding"
	"ragkb/internal/filestore"
	"ragkb/internal/llm"
	"ragkb/internal/service"
	"ragkb/internal/vectorstore/memory"
	"ragkb/internal/vectorstore/qdrant"
)

// App bundles the wired services.
type App struct {
	Config    *config.Config
	Ingestion *service.Ingestion
	Retrieval *service.Retrieval
	RAG       *service.RAG
	Library   *service.Library
	Logger    *logrus.Logger
}

// New builds embedder, generator, store and services per the config's
// provider selections.
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logrus.New()
	}

	embedder, err := buildEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}
	generator, err := buildGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(cfg, embedder.Dimension(), logger)
	if err != nil {
		return nil, err
	}

	files := filestore.New(cfg.Storage.UploadDir)
	chunks := chunker.New(chunker.Mode(cfg.Chunking.Mode), cfg.Chunking.Size, cfg.Chunking.Overlap)

	ingestion := service.NewIngestion(embedder, store, files, chunks, logger)
	retrieval := service.NewRetrieval(embedder, store, cfg.Retrieval.TopK, logger)
	rag := service.NewRAG(retrieval, generator, cfg.Retrieval.CtxCharsPerChunk, logger)
	library := service.NewLibrary(store, files, logger)

	logger.WithFields(logrus.Fields{
		"embedding":    cfg.Embedding.Provider,
		"generation":   cfg.Generation.Provider,
		"vector_store": cfg.VectorStore.Provider,
	}).Info("components assembled")

	return &App{
		Config:    cfg,
		Ingestion: ingestion,
		Retrieval: retrieval,
		RAG:       rag,
		Library:   library,
		Logger:    logger,
	}, nil
}

func buildEmbedder(cfg *config.Config, logger *logrus.Logger) (domain.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "stub", "":
		return embedding.NewStub(cfg.Embedding.StubDim), nil
	case "ollama":
		return embedding.NewOllama(embedding.OllamaConfig{
			URL:        cfg.Ollama.URL,
			Model:      cfg.Ollama.EmbedModel,
			Timeout:    time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Ollama.MaxRetries,
			RetryDelay: time.Duration(cfg.Ollama.RetryDelayMs) * time.Millisecond,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}

func buildGenerator(cfg *config.Config, logger *logrus.Logger) (domain.Generator, error) {
	switch cfg.Generation.Provider {
	case "stub", "":
		return llm.NewStub(), nil
	case "ollama":
		return llm.NewOllama(llm.OllamaConfig{
			URL:        cfg.Ollama.URL,
			Model:      cfg.Ollama.ChatModel,
			MaxTokens:  cfg.Ollama.GenMaxTokens,
			Timeout:    time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Ollama.MaxRetries,
			RetryDelay: time.Duration(cfg.Ollama.RetryDelayMs) * time.Millisecond,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", cfg.Generation.Provider)
	}
}

func buildStore(cfg *config.Config, dimension int, logger *logrus.Logger) (domain.VectorStore, error) {
	switch cfg.VectorStore.Provider {
	case "memory", "":
		return memory.NewStore(), nil
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStore(qdrant.Config{
			URL:       cfg.VectorStore.Qdrant.URL,
			APIKey:    cfg.VectorStore.Qdrant.APIKey,
			Dimension: dimension,
			Timeout:   time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown vector store provider: %s", cfg.VectorStore.Provider)
	}
}

package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"ragkb/internal/domain"
)

// Retrieval embeds a query and searches the vector store for relevant
// chunks. Results keep the store's similarity order; overlapping chunks
// are not deduplicated.
type Retrieval struct {
	embedder    domain.Embedder
	store       domain.VectorStore
	defaultTopK int
	logger      *logrus.Logger
}

// NewRetrieval creates the retrieval pipeline.
func NewRetrieval(embedder domain.Embedder, store domain.VectorStore, defaultTopK int, logger *logrus.Logger) *Retrieval {
	if logger == nil {
		logger = logrus.New()
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &Retrieval{embedder: embedder, store: store, defaultTopK: defaultTopK, logger: logger}
}

// Retrieve returns the topK most similar chunks for the query. A topK of 0
// falls back to the configured default. The payload of each hit is
// flattened into the result metadata alongside filename, chunk_index and
// the store-assigned point id.
func (s *Retrieval) Retrieve(ctx context.Context, query, kbName string, topK int) ([]domain.Retrieved, error) {
	if topK <= 0 {
		topK = s.defaultTopK
	}
	log := s.logger.WithFields(logrus.Fields{"kb": kbName, "top_k": topK})
	log.Debug("starting retrieval")

	if err := s.store.EnsureKB(ctx, kbName); err != nil {
		return nil, fmt.Errorf("retrieve from kb %q: %w", kbName, err)
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query for kb %q: %w", kbName, err)
	}
	hits, err := s.store.Query(ctx, kbName, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("query kb %q: %w", kbName, err)
	}

	results := make([]domain.Retrieved, 0, len(hits))
	for _, hit := range hits {
		metadata := map[string]any{
			domain.KeyFilename:   domain.StringField(hit.Payload, domain.KeyFilename),
			domain.KeyChunkIndex: domain.IntField(hit.Payload, domain.KeyChunkIndex),
			"point_id":           hit.ID,
		}
		for k, v := range hit.Payload {
			metadata[k] = v
		}
		results = append(results, domain.Retrieved{
			Text:     domain.StringField(hit.Payload, domain.KeyText),
			Score:    hit.Score,
			DocID:    domain.StringField(hit.Payload, domain.KeyDocID),
			Metadata: metadata,
		})
	}
	log.WithField("results", len(results)).Debug("retrieval complete")
	return results, nil
}

package domain

import (
	"context"
	"errors"
)

// Validation errors reported before any backend call is made.
var (
	ErrEmptyPointID      = errors.New("point must have a non-empty id")
	ErrEmptyVector       = errors.New("point must have a non-empty vector")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileNotFound      = errors.New("file not found")
)

// Embedder converts a batch of texts into fixed-dimension vectors,
// one per input text, order-preserving.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// Generator produces a text completion from role-tagged messages.
type Generator interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// VectorStore is a collection-oriented nearest-neighbor index keyed by
// knowledge-base name. Backends own all stored points; callers reference
// them only by id, doc_id or filename.
type VectorStore interface {
	// EnsureKB creates the collection if absent; no-op otherwise.
	EnsureKB(ctx context.Context, kb string) error
	// Upsert validates and writes points, creating the KB if needed.
	Upsert(ctx context.Context, kb string, points []Point) error
	// Query returns up to topK results by descending cosine similarity.
	// An empty query vector yields an empty result without error.
	Query(ctx context.Context, kb string, vector []float64, topK int) ([]QueryResult, error)
	// DeleteDoc removes every point whose payload doc_id matches and
	// returns the number removed; zero matches is not an error.
	DeleteDoc(ctx context.Context, kb, docID string) (int, error)
	// DeleteByFilename removes every point whose payload filename matches.
	DeleteByFilename(ctx context.Context, kb, filename string) (int, error)
	// ListDocs returns the unique doc_ids in the KB, sorted.
	ListDocs(ctx context.Context, kb string) ([]string, error)
	// ListFilenames returns the unique payload filenames in the KB, sorted.
	ListFilenames(ctx context.Context, kb string) ([]string, error)
	// ListKBs returns all collection names, sorted.
	ListKBs(ctx context.Context) ([]string, error)
	// DeleteKB removes a collection and all its points. Deleting a
	// nonexistent KB is a no-op.
	DeleteKB(ctx context.Context, kb string) error
}

package service

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ragkb/internal/chunker"
	"ragkb/internal/domain"
	"ragkb/internal/filestore"
	"ragkb/internal/parser"
)

// IngestResult summarizes one completed ingestion run.
type IngestResult struct {
	DocID          string `json:"doc_id"`
	Filename       string `json:"filename"`
	KBName         string `json:"kb_name"`
	ChunkCount     int    `json:"chunks_count"`
	PointCount     int    `json:"points_count"`
	FileSize       int64  `json:"file_size"`
	ParseDegraded  bool   `json:"parse_degraded"`
	OldPointsCount int    `json:"old_vectors_deleted,omitempty"`
}

// Ingestion runs the save → parse → chunk → embed → upsert pipeline for
// one document.
type Ingestion struct {
	embedder domain.Embedder
	store    domain.VectorStore
	files    *filestore.Store
	chunks   *chunker.Chunker
	logger   *logrus.Logger
}

// NewIngestion creates the ingestion pipeline.
func NewIngestion(embedder domain.Embedder, store domain.VectorStore, files *filestore.Store, chunks *chunker.Chunker, logger *logrus.Logger) *Ingestion {
	if logger == nil {
		logger = logrus.New()
	}
	return &Ingestion{embedder: embedder, store: store, files: files, chunks: chunks, logger: logger}
}

// IngestFile runs the full pipeline. A degraded parse is not an error: the
// placeholder text is indexed with a parse_degraded payload flag so it
// remains visible and filterable downstream. docID is generated when empty.
func (s *Ingestion) IngestFile(ctx context.Context, content []byte, filename, kbName, docID string) (*IngestResult, error) {
	if docID == "" {
		docID = uuid.NewString()
	}
	log := s.logger.WithFields(logrus.Fields{"kb": kbName, "filename": filename, "doc_id": docID})
	log.Info("starting ingestion")

	path, err := s.files.Save(content, filename, kbName)
	if err != nil {
		return nil, fmt.Errorf("ingest %q into kb %q: %w", filename, kbName, err)
	}
	fileSize := s.files.Size(path)

	parsed, err := parser.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("ingest %q into kb %q: %w", filename, kbName, err)
	}
	if parsed.Degraded {
		log.WithField("reason", parsed.Reason).Warn("text extraction degraded, indexing placeholder")
	}

	chunks := s.chunks.Chunk(parsed.Text, map[string]any{
		domain.KeySource: filename,
		domain.KeyDocID:  docID,
	})
	log.WithField("chunks", len(chunks)).Debug("chunked text")

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d chunks of %q for kb %q: %w", len(chunks), filename, kbName, err)
	}

	points := make([]domain.Point, len(chunks))
	for i, c := range chunks {
		payload := map[string]any{
			domain.KeyText:          c.Text,
			domain.KeyDocID:         docID,
			domain.KeyFilename:      filename,
			domain.KeyChunkIndex:    i,
			domain.KeyParseDegraded: parsed.Degraded,
		}
		for k, v := range c.Metadata {
			if k != domain.KeyChunkIndex {
				payload[k] = v
			}
		}
		points[i] = domain.Point{ID: uuid.NewString(), Vector: vectors[i], Payload: payload}
	}

	if err := s.store.EnsureKB(ctx, kbName); err != nil {
		return nil, fmt.Errorf("ensure kb %q for %q: %w", kbName, filename, err)
	}
	if err := s.store.Upsert(ctx, kbName, points); err != nil {
		return nil, fmt.Errorf("upsert %d points of %q to kb %q: %w", len(points), filename, kbName, err)
	}

	log.WithFields(logrus.Fields{"chunks": len(chunks), "points": len(points), "bytes": fileSize}).
		Info("ingestion complete")
	return &IngestResult{
		DocID:         docID,
		Filename:      filename,
		KBName:        kbName,
		ChunkCount:    len(chunks),
		PointCount:    len(points),
		FileSize:      fileSize,
		ParseDegraded: parsed.Degraded,
	}, nil
}

// Reindex deletes every existing point for the filename and ingests the
// stored file again under a fresh doc_id. When the deletion succeeds but
// re-ingestion fails, the file is left un-indexed; the error says so and
// the deletion is not rolled back.
func (s *Ingestion) Reindex(ctx context.Context, filename, kbName string) (*IngestResult, error) {
	path := s.files.ResolvePath(filename, kbName)
	if path == "" {
		return nil, fmt.Errorf("reindex %q in kb %q: %w", filename, kbName, domain.ErrFileNotFound)
	}
	deleted, err := s.store.DeleteByFilename(ctx, kbName, filename)
	if err != nil {
		return nil, fmt.Errorf("reindex %q in kb %q: delete old vectors: %w", filename, kbName, err)
	}
	s.logger.WithFields(logrus.Fields{"kb": kbName, "filename": filename, "deleted": deleted}).
		Info("deleted old vectors before reindex")

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reindex %q in kb %q: %d old vectors already deleted, file now un-indexed: %w",
			filename, kbName, deleted, err)
	}
	result, err := s.IngestFile(ctx, content, filename, kbName, "")
	if err != nil {
		return nil, fmt.Errorf("reindex %q in kb %q: %d old vectors already deleted, file now un-indexed: %w",
			filename, kbName, deleted, err)
	}
	result.OldPointsCount = deleted
	return result, nil
}

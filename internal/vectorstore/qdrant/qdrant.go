// Package qdrant implements the vector store against a Qdrant instance
// over its REST API. Filter-by-field deletes are translated into filtered
// scrolls paged by cursor, with the collected point ids deleted in batches.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"ragkb/internal/domain"
)

const (
	scrollPageSize  = 100
	deleteBatchSize = 100
)

// Store is a REST client to Qdrant. Collections are created with cosine
// distance and the configured vector dimension.
type Store struct {
	url       string
	apiKey    string
	dimension int
	client    *http.Client
	logger    *logrus.Logger
}

// Config configures the Qdrant store.
type Config struct {
	URL       string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// NewStore creates a Qdrant-backed vector store.
func NewStore(cfg Config, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// EnsureKB creates the collection if it is not in the collection list.
func (s *Store) EnsureKB(ctx context.Context, kb string) error {
	names, err := s.collectionNames(ctx)
	if err != nil {
		return fmt.Errorf("ensure kb %q: %w", kb, err)
	}
	for _, name := range names {
		if name == kb {
			return nil
		}
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, "/collections/"+kb, body, nil); err != nil {
		return fmt.Errorf("create collection %q: %w", kb, err)
	}
	s.logger.WithField("kb", kb).Info("created qdrant collection")
	return nil
}

// Upsert validates points locally, coerces all-digit ids to integers to
// satisfy Qdrant's id typing, and writes the batch with wait=true.
func (s *Store) Upsert(ctx context.Context, kb string, points []domain.Point) error {
	for _, p := range points {
		if p.ID == "" {
			return domain.ErrEmptyPointID
		}
		if len(p.Vector) == 0 {
			return domain.ErrEmptyVector
		}
	}
	if err := s.EnsureKB(ctx, kb); err != nil {
		return err
	}
	qpoints := make([]map[string]any, len(points))
	for i, p := range points {
		qpoints[i] = map[string]any{
			"id":      coerceID(p.ID),
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}
	body := map[string]any{"points": qpoints}
	if err := s.do(ctx, http.MethodPut, "/collections/"+kb+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("upsert %d points to kb %q: %w", len(points), kb, err)
	}
	s.logger.WithFields(logrus.Fields{"kb": kb, "points": len(points)}).Debug("upserted points")
	return nil
}

// Query searches the collection; an empty vector short-circuits to an
// empty result without a backend call.
func (s *Store) Query(ctx context.Context, kb string, vector []float64, topK int) ([]domain.QueryResult, error) {
	if len(vector) == 0 {
		return []domain.QueryResult{}, nil
	}
	if err := s.EnsureKB(ctx, kb); err != nil {
		return nil, err
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, "/collections/"+kb+"/points/search", body, &resp); err != nil {
		return nil, fmt.Errorf("query kb %q: %w", kb, err)
	}
	results := make([]domain.QueryResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		payload := r.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		results = append(results, domain.QueryResult{
			ID:      idToString(r.ID),
			Score:   r.Score,
			Payload: payload,
		})
	}
	return results, nil
}

// DeleteDoc removes every point whose payload doc_id matches.
func (s *Store) DeleteDoc(ctx context.Context, kb, docID string) (int, error) {
	return s.deleteByField(ctx, kb, domain.KeyDocID, docID)
}

// DeleteByFilename removes every point whose payload filename matches.
func (s *Store) DeleteByFilename(ctx context.Context, kb, filename string) (int, error) {
	return s.deleteByField(ctx, kb, domain.KeyFilename, filename)
}

func (s *Store) deleteByField(ctx context.Context, kb, key, value string) (int, error) {
	if err := s.EnsureKB(ctx, kb); err != nil {
		return 0, err
	}
	filter := map[string]any{
		"must": []map[string]any{
			{"key": key, "match": map[string]any{"value": value}},
		},
	}
	var ids []any
	err := s.scroll(ctx, kb, filter, func(points []scrollPoint) {
		for _, p := range points {
			ids = append(ids, p.ID)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("scroll kb %q for %s=%q: %w", kb, key, value, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	deleted := 0
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		body := map[string]any{"points": ids[start:end]}
		if err := s.do(ctx, http.MethodPost, "/collections/"+kb+"/points/delete?wait=true", body, nil); err != nil {
			return deleted, fmt.Errorf("delete batch from kb %q: %w", kb, err)
		}
		deleted += end - start
	}
	s.logger.WithFields(logrus.Fields{"kb": kb, key: value, "deleted": deleted}).
		Debug("deleted points by payload field")
	return deleted, nil
}

// ListDocs pages through the collection and collects unique doc_ids.
func (s *Store) ListDocs(ctx context.Context, kb string) ([]string, error) {
	return s.listField(ctx, kb, domain.KeyDocID)
}

// ListFilenames pages through the collection and collects unique filenames.
func (s *Store) ListFilenames(ctx context.Context, kb string) ([]string, error) {
	return s.listField(ctx, kb, domain.KeyFilename)
}

func (s *Store) listField(ctx context.Context, kb, key string) ([]string, error) {
	if err := s.EnsureKB(ctx, kb); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	err := s.scroll(ctx, kb, nil, func(points []scrollPoint) {
		for _, p := range points {
			if v := domain.StringField(p.Payload, key); v != "" {
				seen[v] = struct{}{}
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("list %s in kb %q: %w", key, kb, err)
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// ListKBs returns all collection names, sorted.
func (s *Store) ListKBs(ctx context.Context) ([]string, error) {
	names, err := s.collectionNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list kbs: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteKB drops the collection. A missing collection logs and returns nil.
func (s *Store) DeleteKB(ctx context.Context, kb string) error {
	names, err := s.collectionNames(ctx)
	if err != nil {
		return fmt.Errorf("delete kb %q: %w", kb, err)
	}
	exists := false
	for _, name := range names {
		if name == kb {
			exists = true
			break
		}
	}
	if !exists {
		s.logger.WithField("kb", kb).Warn("collection does not exist, nothing to delete")
		return nil
	}
	if err := s.do(ctx, http.MethodDelete, "/collections/"+kb, nil, nil); err != nil {
		return fmt.Errorf("delete kb %q: %w", kb, err)
	}
	s.logger.WithField("kb", kb).Info("deleted qdrant collection")
	return nil
}

type scrollPoint struct {
	ID      any            `json:"id"`
	Payload map[string]any `json:"payload"`
}

// scroll pages through the collection with the optional filter, invoking
// visit for every page until the cursor is exhausted.
func (s *Store) scroll(ctx context.Context, kb string, filter map[string]any, visit func([]scrollPoint)) error {
	var offset any
	for {
		body := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
		}
		if filter != nil {
			body["filter"] = filter
		}
		if offset != nil {
			body["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points         []scrollPoint `json:"points"`
				NextPageOffset any           `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.do(ctx, http.MethodPost, "/collections/"+kb+"/points/scroll", body, &resp); err != nil {
			return err
		}
		if len(resp.Result.Points) == 0 {
			return nil
		}
		visit(resp.Result.Points)
		if resp.Result.NextPageOffset == nil {
			return nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func (s *Store) collectionNames(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// coerceID turns all-digit point ids into integers to satisfy Qdrant's
// numeric id type; other ids pass through as strings.
func coerceID(id string) any {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return n
	}
	return id
}

func idToString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

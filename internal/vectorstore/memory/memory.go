// Package memory implements the vector store on in-process maps with a
// brute-force cosine scan. It is the demo backend: every query walks every
// stored vector, which is fine for small knowledge bases.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"ragkb/internal/domain"
)

type point struct {
	vector  []float64
	payload map[string]any
}

// Store keeps one map of points per knowledge base. A store-wide RWMutex
// guarantees upserts and queries/deletes never interleave inconsistently.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]point
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{collections: make(map[string]map[string]point)}
}

func (s *Store) EnsureKB(_ context.Context, kb string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(kb)
	return nil
}

func (s *Store) ensureLocked(kb string) map[string]point {
	c, ok := s.collections[kb]
	if !ok {
		c = make(map[string]point)
		s.collections[kb] = c
	}
	return c
}

func (s *Store) Upsert(_ context.Context, kb string, points []domain.Point) error {
	for _, p := range points {
		if p.ID == "" {
			return domain.ErrEmptyPointID
		}
		if len(p.Vector) == 0 {
			return domain.ErrEmptyVector
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ensureLocked(kb)
	for _, p := range points {
		c[p.ID] = point{vector: p.Vector, payload: p.Payload}
	}
	return nil
}

func (s *Store) Query(_ context.Context, kb string, vector []float64, topK int) ([]domain.QueryResult, error) {
	if len(vector) == 0 {
		return []domain.QueryResult{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.collections[kb]

	results := make([]domain.QueryResult, 0, len(c))
	for id, p := range c {
		if len(p.vector) != len(vector) {
			continue
		}
		results = append(results, domain.QueryResult{
			ID:      id,
			Score:   cosine(vector, p.vector),
			Payload: p.payload,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK >= 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *Store) DeleteDoc(_ context.Context, kb, docID string) (int, error) {
	return s.deleteByField(kb, domain.KeyDocID, docID), nil
}

func (s *Store) DeleteByFilename(_ context.Context, kb, filename string) (int, error) {
	return s.deleteByField(kb, domain.KeyFilename, filename), nil
}

func (s *Store) deleteByField(kb, key, value string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collections[kb]
	deleted := 0
	for id, p := range c {
		if domain.StringField(p.payload, key) == value {
			delete(c, id)
			deleted++
		}
	}
	return deleted
}

func (s *Store) ListDocs(_ context.Context, kb string) ([]string, error) {
	return s.listField(kb, domain.KeyDocID), nil
}

func (s *Store) ListFilenames(_ context.Context, kb string) ([]string, error) {
	return s.listField(kb, domain.KeyFilename), nil
}

func (s *Store) listField(kb, key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, p := range s.collections[kb] {
		if v := domain.StringField(p.payload, key); v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s *Store) ListKBs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.collections))
	for kb := range s.collections {
		out = append(out, kb)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) DeleteKB(_ context.Context, kb string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, kb)
	return nil
}

// cosine is dot(a,b)/(|a||b|), with 0 when either vector has zero norm.
func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

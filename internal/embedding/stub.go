package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strconv"
)

// Stub is a deterministic, offline embedding provider. Vectors are derived
// from a SHA-256 hash of the input text, so the same text always embeds to
// the same vector and different texts diverge with overwhelming probability.
type Stub struct {
	dim int
}

// NewStub creates a stub provider with the given vector dimension.
func NewStub(dim int) *Stub {
	if dim <= 0 {
		dim = 768
	}
	return &Stub{dim: dim}
}

// Dimension returns the fixed vector dimension.
func (s *Stub) Dimension() int { return s.dim }

// Embed returns one hash-derived vector per input text, order-preserving.
func (s *Stub) Embed(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = s.textToVector(text)
	}
	return vectors, nil
}

// textToVector reinterprets hash bytes as 4-byte unsigned integers
// normalized into [-1, 1]. When the digest is shorter than the dimension,
// the running vector length is fed back into the hash to extend it.
func (s *Stub) textToVector(text string) []float64 {
	digest := sha256.Sum256([]byte(text))
	vector := make([]float64, 0, s.dim)
	for i := 0; i+4 <= len(digest) && len(vector) < s.dim; i += 4 {
		vector = append(vector, normalize(binary.BigEndian.Uint32(digest[i:i+4])))
	}
	state := append([]byte(text), digest[:]...)
	for len(vector) < s.dim {
		state = append(state, []byte(strconv.Itoa(len(vector)))...)
		round := sha256.Sum256(state)
		vector = append(vector, normalize(binary.BigEndian.Uint32(round[:4])))
		state = append(state, round[:]...)
	}
	return vector[:s.dim]
}

func normalize(v uint32) float64 {
	return (float64(v)/float64(1<<32-1))*2 - 1
}

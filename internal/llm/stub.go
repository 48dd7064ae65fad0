package llm

import (
	"context"

	"ragkb/internal/domain"
)

// StubResponse is what the stub generator returns for every call.
const StubResponse = "This is a simulated AI response."

// Stub is the generation provider used when no backend is configured.
type Stub struct{}

// NewStub creates a stub generator.
func NewStub() *Stub { return &Stub{} }

// Chat returns a fixed placeholder completion.
func (s *Stub) Chat(_ context.Context, _ []domain.Message) (string, error) {
	return StubResponse, nil
}

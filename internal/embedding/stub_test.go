package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubDeterministic(t *testing.T) {
	stub := NewStub(768)
	ctx := context.Background()

	first, err := stub.Embed(ctx, []string{"hello world"})
	require.NoError(t, err)
	second, err := stub.Embed(ctx, []string{"hello world"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStubDifferentTextsDiverge(t *testing.T) {
	stub := NewStub(64)
	vectors, err := stub.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.NotEqual(t, vectors[0], vectors[1])
}

func TestStubDimensionAndRange(t *testing.T) {
	for _, dim := range []int{4, 8, 64, 768, 1536} {
		stub := NewStub(dim)
		assert.Equal(t, dim, stub.Dimension())

		vectors, err := stub.Embed(context.Background(), []string{"some text"})
		require.NoError(t, err)
		require.Len(t, vectors[0], dim)
		for _, v := range vectors[0] {
			assert.GreaterOrEqual(t, v, -1.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestStubOrderPreserving(t *testing.T) {
	stub := NewStub(16)
	texts := []string{"one", "two", "three"}
	batch, err := stub.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := stub.Embed(context.Background(), []string{text})
		require.NoError(t, err)
		assert.Equal(t, single[0], batch[i])
	}
}

func TestStubEmptyBatch(t *testing.T) {
	stub := NewStub(8)
	vectors, err := stub.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

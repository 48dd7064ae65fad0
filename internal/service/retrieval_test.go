package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragkb/internal/domain"
)

func TestRetrieveEmptyKB(t *testing.T) {
	env := newTestEnv(t)

	retrieved, err := env.retrieval.Retrieve(context.Background(), "anything", "fresh-kb", 5)
	require.NoError(t, err)
	assert.Empty(t, retrieved)

	// the KB was created as a side effect
	kbs, err := env.store.ListKBs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh-kb"}, kbs)
}

func TestRetrieveDefaultTopK(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := env.ingestion.IngestFile(ctx, loremBytes(100+i), "doc.txt", "kb", "")
		require.NoError(t, err)
	}

	retrieved, err := env.retrieval.Retrieve(ctx, "query", "kb", 0)
	require.NoError(t, err)
	assert.Len(t, retrieved, 5) // configured default
}

func TestRetrieveMetadataFlattening(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ingestion.IngestFile(ctx, []byte("a single chunk of document text"), "doc.txt", "kb", "doc-1")
	require.NoError(t, err)

	retrieved, err := env.retrieval.Retrieve(ctx, "document", "kb", 3)
	require.NoError(t, err)
	require.Len(t, retrieved, 1)

	r := retrieved[0]
	assert.Equal(t, "a single chunk of document text", r.Text)
	assert.Equal(t, "doc-1", r.DocID)
	assert.Equal(t, "doc.txt", domain.StringField(r.Metadata, domain.KeyFilename))
	assert.Zero(t, domain.IntField(r.Metadata, domain.KeyChunkIndex))
	assert.NotEmpty(t, domain.StringField(r.Metadata, "point_id"))
}

func TestRetrieveScoresDescending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ingestion.IngestFile(ctx, loremBytes(2000), "doc.txt", "kb", "")
	require.NoError(t, err)

	retrieved, err := env.retrieval.Retrieve(ctx, "the quick brown fox", "kb", 3)
	require.NoError(t, err)
	require.Len(t, retrieved, 3)
	for i := 1; i < len(retrieved); i++ {
		assert.GreaterOrEqual(t, retrieved[i-1].Score, retrieved[i].Score)
	}
}

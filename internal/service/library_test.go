package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragkb/internal/domain"
)

func indexOrphan(t *testing.T, env *testEnv, kb, filename string) {
	t.Helper()
	err := env.store.Upsert(context.Background(), kb, []domain.Point{{
		ID:     "orphan-" + filename,
		Vector: []float64{1, 0, 0},
		Payload: map[string]any{
			domain.KeyText:     "orphaned chunk",
			domain.KeyDocID:    "doc-" + filename,
			domain.KeyFilename: filename,
		},
	}})
	require.NoError(t, err)
}

func TestListFilesReconciliation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ingestion.IngestFile(ctx, []byte("indexed and on disk"), "a.txt", "kb", "")
	require.NoError(t, err)
	_, err = env.files.Save([]byte("on disk only"), "b.txt", "kb")
	require.NoError(t, err)
	indexOrphan(t, env, "kb", "c.txt")

	listing, err := env.library.ListFiles(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, listing.Files)
	assert.Equal(t, []string{"a.txt", "c.txt"}, listing.Indexed)
	assert.Equal(t, []string{"c.txt"}, listing.Orphaned)
	assert.Equal(t, []string{"b.txt"}, listing.Missing)
}

func TestListFilesEmptyKB(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.library.CreateKB(context.Background(), "kb"))

	listing, err := env.library.ListFiles(context.Background(), "kb")
	require.NoError(t, err)
	assert.Empty(t, listing.Files)
	assert.Empty(t, listing.Indexed)
	assert.Empty(t, listing.Orphaned)
	assert.Empty(t, listing.Missing)
}

func TestCleanupOrphaned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ingestion.IngestFile(ctx, []byte("indexed and on disk"), "a.txt", "kb", "")
	require.NoError(t, err)
	indexOrphan(t, env, "kb", "c.txt")

	files, total, err := env.library.CleanupOrphaned(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, []string{"c.txt"}, files)
	assert.Equal(t, 1, total)

	indexed, err := env.store.ListFilenames(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, indexed)
}

func TestCleanupOrphanedNothingToDo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ingestion.IngestFile(ctx, []byte("indexed and on disk"), "a.txt", "kb", "")
	require.NoError(t, err)

	files, total, err := env.library.CleanupOrphaned(ctx, "kb")
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Zero(t, total)
}

func TestDeleteFileRemovesDiskAndVectors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ingestion.IngestFile(ctx, loremBytes(2000), "doc.txt", "kb", "")
	require.NoError(t, err)

	existed, deleted, err := env.library.DeleteFile(ctx, "doc.txt", "kb")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, 3, deleted)

	listing, err := env.library.ListFiles(ctx, "kb")
	require.NoError(t, err)
	assert.Empty(t, listing.Files)
	assert.Empty(t, listing.Indexed)
}

func TestDeleteFileMissing(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.library.CreateKB(context.Background(), "kb"))

	existed, deleted, err := env.library.DeleteFile(context.Background(), "ghost.txt", "kb")
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Zero(t, deleted)
}

func TestDeleteKBRemovesVectorsAndUploads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ingestion.IngestFile(ctx, []byte("indexed and on disk"), "a.txt", "kb", "")
	require.NoError(t, err)

	require.NoError(t, env.library.DeleteKB(ctx, "kb"))

	kbs, err := env.library.ListKBs(ctx)
	require.NoError(t, err)
	assert.Empty(t, kbs)

	onDisk, err := env.files.List("kb")
	require.NoError(t, err)
	assert.Empty(t, onDisk)
}

func TestCreateKBIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.library.CreateKB(ctx, "kb"))
	require.NoError(t, env.library.CreateKB(ctx, "kb"))

	kbs, err := env.library.ListKBs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kb"}, kbs)
}

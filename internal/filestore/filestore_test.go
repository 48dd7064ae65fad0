package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndResolve(t *testing.T) {
	store := New(t.TempDir())

	path, err := store.Save([]byte("hello"), "doc.txt", "default")
	require.NoError(t, err)
	assert.Equal(t, path, store.ResolvePath("doc.txt", "default"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), store.Size(path))
}

func TestSaveStripsPathComponents(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	path, err := store.Save([]byte("x"), "../../escape.txt", "kb")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "kb", "escape.txt"), path)

	// lookups with the same hostile name hit the sanitized file
	assert.Equal(t, path, store.ResolvePath("../../escape.txt", "kb"))
	existed, err := store.Delete("../../escape.txt", "kb")
	require.NoError(t, err)
	assert.True(t, existed)

	_, err = os.Stat(filepath.Join(root, "..", "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveOverwrites(t *testing.T) {
	store := New(t.TempDir())

	_, err := store.Save([]byte("first"), "doc.txt", "kb")
	require.NoError(t, err)
	path, err := store.Save([]byte("second version"), "doc.txt", "kb")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second version", string(data))
}

func TestListSortedAndNamespaced(t *testing.T) {
	store := New(t.TempDir())

	for _, name := range []string{"b.txt", "a.txt", "c.md"} {
		_, err := store.Save([]byte("x"), name, "kb-one")
		require.NoError(t, err)
	}
	_, err := store.Save([]byte("x"), "other.txt", "kb-two")
	require.NoError(t, err)

	files, err := store.List("kb-one")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.md"}, files)
}

func TestListMissingKB(t *testing.T) {
	store := New(t.TempDir())
	files, err := store.List("never-created")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestListSkipsDirectories(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	_, err := store.Save([]byte("x"), "doc.txt", "kb")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "kb", "subdir"), 0o755))

	files, err := store.List("kb")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc.txt"}, files)
}

func TestDeleteReportsExistence(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Save([]byte("x"), "doc.txt", "kb")
	require.NoError(t, err)

	existed, err := store.Delete("doc.txt", "kb")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete("doc.txt", "kb")
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Empty(t, store.ResolvePath("doc.txt", "kb"))
}

func TestDeleteKBRemovesDirectory(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	_, err := store.Save([]byte("x"), "doc.txt", "kb")
	require.NoError(t, err)

	require.NoError(t, store.DeleteKB("kb"))
	_, err = os.Stat(filepath.Join(root, "kb"))
	assert.True(t, os.IsNotExist(err))

	// deleting again is a no-op
	require.NoError(t, store.DeleteKB("kb"))
}

func TestResolvePathAbsent(t *testing.T) {
	store := New(t.TempDir())
	assert.Empty(t, store.ResolvePath("ghost.txt", "kb"))
	assert.Zero(t, store.Size("no/such/file"))
}

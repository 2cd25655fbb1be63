package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")

	store, err := NewStore(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, store.Dir())
	assert.DirExists(t, dir)
}

func TestStore_SaveAndRead(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save(7, "abcdef0123456789ffff", ".PNG", []byte("png bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("pattern_7", "image_abcdef0123456789.png"), rel)

	data, err := store.Read(rel)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), data)

	again, err := store.Save(7, "abcdef0123456789ffff", "png", []byte("other"))
	require.NoError(t, err)
	assert.Equal(t, rel, again)
	data, _ = store.Read(rel)
	assert.Equal(t, []byte("png bytes"), data, "existing file should be kept")
}

func TestStore_NoTempFilesLeft(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(1, "aaaa", "jpg", []byte("x"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(store.Dir(), "pattern_1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "image_aaaa.jpg", entries[0].Name())
}

func TestStore_RejectsEscapingPaths(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	full, err := store.Path("../../etc/passwd")
	require.NoError(t, err, "cleaned path stays inside the root")
	assert.Contains(t, full, store.Dir())

	_, err = store.Path("")
	assert.ErrorIs(t, err, ErrOutsideStore)
}

func TestStore_RemovePattern(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	rel, err := store.Save(3, "bbbb", "webp", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, store.RemovePattern(3))

	_, err = store.Read(rel)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Remove(rel))
}

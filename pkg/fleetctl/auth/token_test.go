package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := &FileStore{Path: filepath.Join(t.TempDir(), "tokens.json")}

	_, ok, err := store.Get("production")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("production", "secret-token"))
	require.NoError(t, store.Set("staging", "other-token"))

	token, ok, err := store.Get("production")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "secret-token", token)

	require.NoError(t, store.Delete("production"))

	_, ok, err = store.Get("production")
	require.NoError(t, err)
	assert.False(t, ok)

	// Other contexts survive the delete.
	token, ok, err = store.Get("staging")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "other-token", token)
}

func TestFileStoreCorruptCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	store := &FileStore{Path: path}
	require.NoError(t, store.Set("a", "t"))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, _, err := store.Get("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse token cache")
}

func TestNewStoreSelectsBackend(t *testing.T) {
	store, err := NewStore("file", "/tmp/tokens.json")
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = NewStore("keychain", "")
	require.NoError(t, err)
	assert.IsType(t, KeychainStore{}, store)

	store, err = NewStore("", "")
	require.NoError(t, err)
	assert.IsType(t, KeychainStore{}, store)

	_, err = NewStore("vault", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown token storage backend")
}

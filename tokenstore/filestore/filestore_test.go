package filestore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-session-watcher/tokenstore"
	"github.com/jrsteele09/go-session-watcher/tokenstore/filestore"
	"github.com/jrsteele09/go-session-watcher/tokenstore/storetest"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) tokenstore.Store {
		s, err := filestore.Open(filepath.Join(t.TempDir(), "session.json"))
		require.NoError(t, err)
		return s
	})
}

func TestEncryptedFileStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) tokenstore.Store {
		s, err := filestore.Open(filepath.Join(t.TempDir(), "session.json"), filestore.WithPassphrase("s3cret"))
		require.NoError(t, err)
		return s
	})
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	s, err := filestore.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(tokenstore.KeyRefreshToken, "refresh-1"))

	reopened, err := filestore.Open(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get(tokenstore.KeyRefreshToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "refresh-1", v)
}

func TestFileStoreSeesWritesFromOtherHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	a, err := filestore.Open(path)
	require.NoError(t, err)
	b, err := filestore.Open(path)
	require.NoError(t, err)

	require.NoError(t, a.Set(tokenstore.KeyTokenTime, "42"))
	v, ok, err := b.Get(tokenstore.KeyTokenTime)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "42", v)

	require.NoError(t, b.Clear())
	_, ok, err = a.Get(tokenstore.KeyTokenTime)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEncryptedFileStoreHidesValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s, err := filestore.Open(path, filestore.WithPassphrase("s3cret"))
	require.NoError(t, err)
	require.NoError(t, s.Set(tokenstore.KeyAccessToken, "very-secret-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "very-secret-token")

	reopened, err := filestore.Open(path, filestore.WithPassphrase("s3cret"))
	require.NoError(t, err)
	v, ok, err := reopened.Get(tokenstore.KeyAccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "very-secret-token", v)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s, err := filestore.Open(path, filestore.WithPassphrase("right"))
	require.NoError(t, err)
	require.NoError(t, s.Set(tokenstore.KeyAccessToken, "a"))

	_, err = filestore.Open(path, filestore.WithPassphrase("wrong"))
	require.Error(t, err)

	_, err = filestore.Open(path)
	require.Error(t, err)
}

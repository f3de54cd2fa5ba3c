// Package storetest holds behaviour every tokenstore.Store must share.
package storetest

import (
	"testing"

	"github.com/jrsteele09/go-session-watcher/tokenstore"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh, empty store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) tokenstore.Store) {
	t.Helper()

	t.Run("MissingKey", func(t *testing.T) {
		s := newStore(t)
		v, ok, err := s.Get(tokenstore.KeyTokenTime)
		require.NoError(t, err)
		require.False(t, ok)
		require.Empty(t, v)
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(tokenstore.KeyAccessToken, "access-1"))

		v, ok, err := s.Get(tokenstore.KeyAccessToken)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "access-1", v)

		require.NoError(t, s.Set(tokenstore.KeyAccessToken, "access-2"))
		v, _, err = s.Get(tokenstore.KeyAccessToken)
		require.NoError(t, err)
		require.Equal(t, "access-2", v)

		require.NoError(t, s.Delete(tokenstore.KeyAccessToken))
		_, ok, err = s.Get(tokenstore.KeyAccessToken)
		require.NoError(t, err)
		require.False(t, ok)

		// Deleting a missing key is not an error.
		require.NoError(t, s.Delete(tokenstore.KeyAccessToken))
	})

	t.Run("SetManyThenClear", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SetMany(map[string]string{
			tokenstore.KeyAccessToken:  "a",
			tokenstore.KeyRefreshToken: "r",
			tokenstore.KeyTokenTime:    "1700000000000",
			"theme":                    "dark",
		}))

		for key, want := range map[string]string{
			tokenstore.KeyAccessToken:  "a",
			tokenstore.KeyRefreshToken: "r",
			tokenstore.KeyTokenTime:    "1700000000000",
			"theme":                    "dark",
		} {
			v, ok, err := s.Get(key)
			require.NoError(t, err)
			require.True(t, ok, key)
			require.Equal(t, want, v, key)
		}

		require.NoError(t, s.Clear())
		for _, key := range []string{tokenstore.KeyAccessToken, tokenstore.KeyRefreshToken, tokenstore.KeyTokenTime, "theme"} {
			_, ok, err := s.Get(key)
			require.NoError(t, err)
			require.False(t, ok, key)
		}

		// Clearing twice is fine.
		require.NoError(t, s.Clear())
	})

	t.Run("OtherWritersKeepSession", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SetMany(map[string]string{
			tokenstore.KeyAccessToken: "a",
			tokenstore.KeyTokenTime:   "1700000000000",
		}))
		require.NoError(t, s.Set("theme", "dark"))
		require.NoError(t, s.Delete("theme"))

		v, ok, err := s.Get(tokenstore.KeyTokenTime)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "1700000000000", v)
		_, ok, err = s.Get("theme")
		require.NoError(t, err)
		require.False(t, ok)
	})
}

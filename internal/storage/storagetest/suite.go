// Package storagetest holds the behavioural checks every storage backend must pass.
package storagetest

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/sqlvalley/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "progress/streak")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "progress/total_points", []byte("120")))

		got, err := s.Get(ctx, "progress/total_points")
		require.NoError(t, err)
		assert.Equal(t, []byte("120"), got)
	})

	t.Run("overwrite", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "progress/streak", []byte("1")))
		require.NoError(t, s.Set(ctx, "progress/streak", []byte("2")))

		got, err := s.Get(ctx, "progress/streak")
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), got)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "drafts/3", []byte(`"SELECT 1"`)))
		require.NoError(t, s.Delete(ctx, "drafts/3"))

		_, err := s.Get(ctx, "drafts/3")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "drafts/3"), storage.ErrNotFound)
	})

	t.Run("keys", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"progress/streak", "drafts/1", "drafts/12"} {
			require.NoError(t, s.Set(ctx, k, []byte("0")))
		}

		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"progress/streak", "drafts/1", "drafts/12"}, keys)
	})

	t.Run("clear", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "progress/streak", []byte("3")))
		require.NoError(t, s.Set(ctx, "drafts/1", []byte("x")))
		require.NoError(t, s.Clear(ctx))

		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)

		require.NoError(t, s.Set(ctx, "progress/streak", []byte("1")), "store usable after clear")
	})

	t.Run("invalid key", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"", "../escape", "Progress", "a//b", "a/"} {
			assert.ErrorIs(t, s.Set(ctx, k, []byte("x")), storage.ErrInvalidKey, "key %q", k)
		}
	})

	t.Run("values are copied", func(t *testing.T) {
		s := newStore(t)
		v := []byte("abc")
		require.NoError(t, s.Set(ctx, "progress/statistics", v))
		v[0] = 'z'

		got, err := s.Get(ctx, "progress/statistics")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), got)
	})
}

package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.Get(ctx, "tenant", "CZ01")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = s.GetByToken(ctx, "tenant", "tok")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "tenant", "CZ01", "tok", "1158218819"))

		got, ok, err := s.Get(ctx, "tenant", "CZ01")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "1158218819", got)
	})

	t.Run("unknown tenant and account", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "tenant", "CZ01", "tok", "5"))

		_, ok, err := s.Get(ctx, "other", "CZ01")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = s.Get(ctx, "tenant", "CZ02")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("overwrite replaces whole record", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "tenant", "CZ01", "old", "5"))
		require.NoError(t, s.Set(ctx, "tenant", "CZ01", "new", "9"))

		got, _, err := s.Get(ctx, "tenant", "CZ01")
		require.NoError(t, err)
		assert.Equal(t, "9", got)

		_, ok, err := s.GetByToken(ctx, "tenant", "old")
		require.NoError(t, err)
		assert.False(t, ok)

		got, ok, err = s.GetByToken(ctx, "tenant", "new")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "9", got)
	})

	t.Run("store does not enforce monotonicity", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "tenant", "CZ01", "tok", "9"))
		require.NoError(t, s.Set(ctx, "tenant", "CZ01", "tok", "3"))

		got, _, err := s.Get(ctx, "tenant", "CZ01")
		require.NoError(t, err)
		assert.Equal(t, "3", got)
	})

	t.Run("get by token scans tenant only", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "a", "CZ01", "tok-a", "1"))
		require.NoError(t, s.Set(ctx, "a", "CZ02", "tok-b", "2"))
		require.NoError(t, s.Set(ctx, "b", "CZ03", "tok-c", "3"))

		got, ok, err := s.GetByToken(ctx, "a", "tok-b")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "2", got)

		_, ok, err = s.GetByToken(ctx, "a", "tok-c")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = s.GetByToken(ctx, "missing", "tok-a")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty token matches nothing", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "tenant", "CZ01", "", "1"))

		_, ok, err := s.GetByToken(ctx, "tenant", "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("non numeric id", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "tenant", "CZ01", "tok", "abc-1"))

		got, _, err := s.Get(ctx, "tenant", "CZ01")
		require.NoError(t, err)
		assert.Equal(t, "abc-1", got)
	})
}

func TestFileStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewFileStore(t.TempDir() + "/checkpoints.json")
	})
}

func TestSQLiteStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := OpenSQLiteStore(context.Background(), t.TempDir()+"/checkpoints.db")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

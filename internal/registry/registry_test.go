package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledgersync/internal/syncer"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("empty registry", func(t *testing.T) {
		s := newStore(t)
		tenants, err := s.ListTenants(ctx)
		require.NoError(t, err)
		assert.Empty(t, tenants)

		_, err = s.ListTokens(ctx, "acme")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create tenant is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateTenant(ctx, "beta"))
		require.NoError(t, s.CreateTenant(ctx, "acme"))
		require.NoError(t, s.CreateTenant(ctx, "acme"))

		tenants, err := s.ListTenants(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"acme", "beta"}, tenants)

		tokens, err := s.ListTokens(ctx, "acme")
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})

	t.Run("blank tenant", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.CreateTenant(ctx, " "), ErrInvalid)
	})

	t.Run("token lifecycle", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateTenant(ctx, "acme"))

		first, err := s.CreateToken(ctx, "acme", Token{Value: "secret-1", Account: "CZ01", Wait: true})
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)
		assert.False(t, first.CreatedAt.IsZero())
		second, err := s.CreateToken(ctx, "acme", Token{Value: "secret-2"})
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		tokens, err := s.ListTokens(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, tokens, 2)
		byID := map[string]Token{tokens[0].ID: tokens[0], tokens[1].ID: tokens[1]}
		assert.Equal(t, "secret-1", byID[first.ID].Value)
		assert.Equal(t, "CZ01", byID[first.ID].Account)
		assert.True(t, byID[first.ID].Wait)
		assert.Equal(t, "secret-2", byID[second.ID].Value)

		require.NoError(t, s.DeleteToken(ctx, "acme", first.ID))
		assert.ErrorIs(t, s.DeleteToken(ctx, "acme", first.ID), ErrNotFound)

		tokens, err = s.ListTokens(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Equal(t, second.ID, tokens[0].ID)
	})

	t.Run("token needs registered tenant and value", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateToken(ctx, "ghost", Token{Value: "secret"})
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.CreateTenant(ctx, "acme"))
		_, err = s.CreateToken(ctx, "acme", Token{})
		assert.ErrorIs(t, err, ErrInvalid)

		assert.ErrorIs(t, s.DeleteToken(ctx, "ghost", "id"), ErrNotFound)
	})

	t.Run("delete tenant drops its tokens", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateTenant(ctx, "acme"))
		_, err := s.CreateToken(ctx, "acme", Token{Value: "secret"})
		require.NoError(t, err)

		require.NoError(t, s.DeleteTenant(ctx, "acme"))
		assert.ErrorIs(t, s.DeleteTenant(ctx, "acme"), ErrNotFound)

		require.NoError(t, s.CreateTenant(ctx, "acme"))
		tokens, err := s.ListTokens(ctx, "acme")
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})
}

func TestFileStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewFileStore(filepath.Join(t.TempDir(), "registry.json"))
	})
}

func TestSQLiteStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "registry.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

// Set LEDGERSYNC_TEST_REDIS_ADDR (e.g. localhost:6379) to run against a
// live server.
func TestRedisStoreContract(t *testing.T) {
	addr := os.Getenv("LEDGERSYNC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LEDGERSYNC_TEST_REDIS_ADDR not set")
	}

	runStoreContract(t, func(t *testing.T) Store {
		client := redis.NewClient(&redis.Options{Addr: addr})
		require.NoError(t, client.Ping(context.Background()).Err())

		prefix := "ledgersync-test:" + uuid.NewString()
		s := NewRedisStore(client, prefix)
		t.Cleanup(func() {
			ctx := context.Background()
			keys, _ := client.Keys(ctx, prefix+":*").Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
			s.Close()
		})
		return s
	})
}

func TestToken_JSONHidesValue(t *testing.T) {
	data, err := json.Marshal(Token{ID: "abc", Value: "secret", Account: "CZ01"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), `"id":"abc"`)
}

func TestFileStore_PersistsSecretsPrivately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	s := NewFileStore(path)
	ctx := context.Background()
	require.NoError(t, s.CreateTenant(ctx, "acme"))
	_, err := s.CreateToken(ctx, "acme", Token{Value: "secret"})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A fresh store over the same file sees the token.
	tokens, err := NewFileStore(path).ListTokens(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "secret", tokens[0].Value)
}

func TestSource_MergesStaticAndRegistered(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, store.CreateTenant(ctx, "acme"))
	require.NoError(t, store.CreateTenant(ctx, "beta"))
	_, err := store.CreateToken(ctx, "acme", Token{Value: "tok-1"})
	require.NoError(t, err)
	_, err = store.CreateToken(ctx, "beta", Token{Value: "tok-9", Account: "CZ9", Wait: true})
	require.NoError(t, err)

	static := []syncer.Pass{{Tenant: "acme", AccountNumber: "CZ1", Token: "tok-1"}}
	passes, err := NewSource(static, store).Passes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []syncer.Pass{
		{Tenant: "acme", AccountNumber: "CZ1", Token: "tok-1"},
		{Tenant: "beta", AccountNumber: "CZ9", Token: "tok-9", Wait: true},
	}, passes)
}

func TestSource_WithoutStore(t *testing.T) {
	static := []syncer.Pass{{Tenant: "acme", Token: "tok"}}
	passes, err := NewSource(static, nil).Passes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, static, passes)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, Options{Path: filepath.Join(dir, "registry.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, Options{Backend: "SQLite", Path: filepath.Join(dir, "registry.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Backend: BackendRedis})
	assert.Error(t, err)
	_, err = Open(ctx, Options{Backend: "etcd", Path: "x"})
	assert.Error(t, err)
}

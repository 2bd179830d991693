package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces registry keys.
const DefaultRedisPrefix = "ledgersync:registry"

// RedisStore keeps tenant names in a set and one hash of JSON tokens per
// tenant, keyed by token id.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// OpenRedisStore connects to addr and verifies the connection.
func OpenRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisStore(client, prefix), nil
}

func (s *RedisStore) tenantsKey() string {
	return s.prefix + ":tenants"
}

func (s *RedisStore) tokensKey(tenant string) string {
	return s.prefix + ":tokens:" + tenant
}

func (s *RedisStore) requireTenant(ctx context.Context, tenant string) error {
	ok, err := s.client.SIsMember(ctx, s.tenantsKey(), tenant).Result()
	if err != nil {
		return fmt.Errorf("reading tenants: %w", err)
	}
	if !ok {
		return fmt.Errorf("tenant %s: %w", tenant, ErrNotFound)
	}
	return nil
}

// CreateTenant implements Store.
func (s *RedisStore) CreateTenant(ctx context.Context, tenant string) error {
	if err := checkTenant(tenant); err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, s.tenantsKey(), tenant).Err(); err != nil {
		return fmt.Errorf("creating tenant %s: %w", tenant, err)
	}
	return nil
}

// DeleteTenant implements Store.
func (s *RedisStore) DeleteTenant(ctx context.Context, tenant string) error {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, s.tenantsKey(), tenant)
		pipe.Del(ctx, s.tokensKey(tenant))
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting tenant %s: %w", tenant, err)
	}
	if removed.Val() == 0 {
		return fmt.Errorf("tenant %s: %w", tenant, ErrNotFound)
	}
	return nil
}

// ListTenants implements Store.
func (s *RedisStore) ListTenants(ctx context.Context) ([]string, error) {
	tenants, err := s.client.SMembers(ctx, s.tenantsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	sort.Strings(tenants)
	return tenants, nil
}

// CreateToken implements Store.
func (s *RedisStore) CreateToken(ctx context.Context, tenant string, token Token) (Token, error) {
	token, err := newToken(tenant, token)
	if err != nil {
		return Token{}, err
	}
	if err := s.requireTenant(ctx, tenant); err != nil {
		return Token{}, err
	}

	data, err := json.Marshal(toStored(token))
	if err != nil {
		return Token{}, fmt.Errorf("encoding token: %w", err)
	}
	if err := s.client.HSet(ctx, s.tokensKey(tenant), token.ID, data).Err(); err != nil {
		return Token{}, fmt.Errorf("writing token: %w", err)
	}
	return token, nil
}

// DeleteToken implements Store.
func (s *RedisStore) DeleteToken(ctx context.Context, tenant, id string) error {
	if err := s.requireTenant(ctx, tenant); err != nil {
		return err
	}
	n, err := s.client.HDel(ctx, s.tokensKey(tenant), id).Result()
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("token %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListTokens implements Store.
func (s *RedisStore) ListTokens(ctx context.Context, tenant string) ([]Token, error) {
	if err := s.requireTenant(ctx, tenant); err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, s.tokensKey(tenant)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading tokens: %w", err)
	}

	tokens := make([]Token, 0, len(fields))
	for id, data := range fields {
		var st storedToken
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, fmt.Errorf("decoding token %s: %w", id, err)
		}
		tokens = append(tokens, st.token())
	}
	sortTokens(tokens)
	return tokens, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

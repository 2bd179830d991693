package checkpoint

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces checkpoint hashes.
const DefaultRedisPrefix = "ledgersync:checkpoint"

// RedisStore keeps one hash per tenant; fields are account numbers and
// values are JSON records.
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
		return nil, ioError("connecting to redis", err)
	}
	return NewRedisStore(client, prefix), nil
}

func (s *RedisStore) key(tenant string) string {
	return s.prefix + ":" + tenant
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, tenant, accountNumber string) (string, bool, error) {
	data, err := s.client.HGet(ctx, s.key(tenant), accountNumber).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ioError("reading checkpoint", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", false, ioError("decoding checkpoint", err)
	}
	return rec.IDTransferTo, true, nil
}

// GetByToken implements Store.
func (s *RedisStore) GetByToken(ctx context.Context, tenant, token string) (string, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(tenant)).Result()
	if err != nil {
		return "", false, ioError("reading checkpoints", err)
	}

	records := make(map[string]Record, len(fields))
	for account, data := range fields {
		var rec Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return "", false, ioError("decoding checkpoint", err)
		}
		records[account] = rec
	}

	rec, ok := findByToken(records, token)
	if !ok {
		return "", false, nil
	}
	return rec.IDTransferTo, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, tenant, accountNumber, token, idTransferTo string) error {
	data, err := json.Marshal(Record{IDTransferTo: idTransferTo, Token: token})
	if err != nil {
		return ioError("encoding checkpoint", err)
	}
	if err := s.client.HSet(ctx, s.key(tenant), accountNumber, data).Err(); err != nil {
		return ioError("writing checkpoint", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

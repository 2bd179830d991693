// Package registry keeps the tenants and provider tokens managed through the
// HTTP API. Registered tokens are synced alongside the tenants listed in the
// config file.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleared-dev/ledgersync/internal/syncer"
)

var (
	// ErrNotFound is returned for an unknown tenant or token.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned for a token without a value or a blank tenant.
	ErrInvalid = errors.New("invalid")
)

// Token is a provider API token registered for a tenant. Value is the
// secret and never leaves the process through JSON.
type Token struct {
	ID        string
	Value     string
	Account   string
	Wait      bool
	CreatedAt time.Time
}

type tokenJSON struct {
	ID        string    `json:"id"`
	Account   string    `json:"account,omitempty"`
	Wait      bool      `json:"wait"`
	CreatedAt time.Time `json:"createdAt"`
}

// MarshalJSON omits Value.
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenJSON{ID: t.ID, Account: t.Account, Wait: t.Wait, CreatedAt: t.CreatedAt})
}

// Pass returns the sync pass the token drives.
func (t Token) Pass(tenant string) syncer.Pass {
	return syncer.Pass{Tenant: tenant, AccountNumber: t.Account, Token: t.Value, Wait: t.Wait}
}

// storedToken is the persisted form, secret included.
type storedToken struct {
	ID        string    `json:"id"`
	Value     string    `json:"value"`
	Account   string    `json:"account,omitempty"`
	Wait      bool      `json:"wait,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s storedToken) token() Token {
	return Token{ID: s.ID, Value: s.Value, Account: s.Account, Wait: s.Wait, CreatedAt: s.CreatedAt}
}

func toStored(t Token) storedToken {
	return storedToken{ID: t.ID, Value: t.Value, Account: t.Account, Wait: t.Wait, CreatedAt: t.CreatedAt}
}

// Store persists tenants and their tokens. CreateTenant is idempotent.
// DeleteTenant removes the tenant's tokens too. Token operations on an
// unregistered tenant fail with ErrNotFound.
type Store interface {
	CreateTenant(ctx context.Context, tenant string) error
	DeleteTenant(ctx context.Context, tenant string) error
	ListTenants(ctx context.Context) ([]string, error)
	CreateToken(ctx context.Context, tenant string, token Token) (Token, error)
	DeleteToken(ctx context.Context, tenant, id string) error
	ListTokens(ctx context.Context, tenant string) ([]Token, error)
	Close() error
}

// Backends accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and configures a Store backend.
type Options struct {
	Backend string
	// Path is the JSON file (file backend) or database file (sqlite backend).
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open returns the Store selected by opts.Backend. An empty backend means
// the JSON file store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("registry path is required for the %s backend", BackendFile)
		}
		return NewFileStore(opts.Path), nil
	case BackendSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("registry path is required for the %s backend", BackendSQLite)
		}
		return OpenSQLiteStore(ctx, opts.Path)
	case BackendRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("redis address is required for the %s backend", BackendRedis)
		}
		return OpenRedisStore(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown registry backend %q", opts.Backend)
	}
}

// newToken validates t and fills in the generated fields.
func newToken(tenant string, t Token) (Token, error) {
	if strings.TrimSpace(tenant) == "" {
		return Token{}, fmt.Errorf("%w: tenant is required", ErrInvalid)
	}
	if strings.TrimSpace(t.Value) == "" {
		return Token{}, fmt.Errorf("%w: token value is required", ErrInvalid)
	}
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC().Truncate(time.Second)
	return t, nil
}

func checkTenant(tenant string) error {
	if strings.TrimSpace(tenant) == "" {
		return fmt.Errorf("%w: tenant is required", ErrInvalid)
	}
	return nil
}

func sortTokens(tokens []Token) {
	sort.Slice(tokens, func(i, j int) bool {
		if !tokens[i].CreatedAt.Equal(tokens[j].CreatedAt) {
			return tokens[i].CreatedAt.Before(tokens[j].CreatedAt)
		}
		return tokens[i].ID < tokens[j].ID
	})
}

// Source lists the passes to run: the static ones first, then one per
// registered token. A registered token repeating a static (tenant, token)
// pair is dropped.
type Source struct {
	static []syncer.Pass
	store  Store
}

// NewSource merges static passes with the tokens in store. store may be nil.
func NewSource(static []syncer.Pass, store Store) *Source {
	return &Source{static: static, store: store}
}

// Passes implements scheduler.PassSource.
func (s *Source) Passes(ctx context.Context) ([]syncer.Pass, error) {
	passes := append([]syncer.Pass(nil), s.static...)
	if s.store == nil {
		return passes, nil
	}

	seen := make(map[string]bool, len(passes))
	for _, p := range passes {
		seen[p.Tenant+"\x00"+p.Token] = true
	}

	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	for _, tenant := range tenants {
		tokens, err := s.store.ListTokens(ctx, tenant)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("listing tokens of %s: %w", tenant, err)
		}
		for _, t := range tokens {
			if seen[tenant+"\x00"+t.Value] {
				continue
			}
			seen[tenant+"\x00"+t.Value] = true
			passes = append(passes, t.Pass(tenant))
		}
	}
	return passes, nil
}

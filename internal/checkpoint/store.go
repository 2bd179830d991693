// Package checkpoint persists the last synchronized transfer id per tenant
// and account.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

// Store reads and writes checkpoints. Get and GetByToken report false when
// no checkpoint exists; any other failure is a CheckpointIO error.
// Set overwrites the whole record and does not enforce monotonicity.
type Store interface {
	Get(ctx context.Context, tenant, accountNumber string) (string, bool, error)
	GetByToken(ctx context.Context, tenant, token string) (string, bool, error)
	Set(ctx context.Context, tenant, accountNumber, token, idTransferTo string) error
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
			return nil, fmt.Errorf("checkpoint path is required for the %s backend", BackendFile)
		}
		return NewFileStore(opts.Path), nil
	case BackendSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("checkpoint path is required for the %s backend", BackendSQLite)
		}
		return OpenSQLiteStore(ctx, opts.Path)
	case BackendRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("redis address is required for the %s backend", BackendRedis)
		}
		return OpenRedisStore(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", opts.Backend)
	}
}

// Record is the stored value for one (tenant, account).
type Record struct {
	IDTransferTo string
	Token        string
}

type recordJSON struct {
	IDTransferTo json.RawMessage `json:"idTransferTo"`
	Token        string          `json:"token,omitempty"`
}

// MarshalJSON writes idTransferTo as a JSON number when it is a plain
// integer and as a string otherwise.
func (r Record) MarshalJSON() ([]byte, error) {
	var idValue []byte
	if isInteger(r.IDTransferTo) {
		idValue = []byte(r.IDTransferTo)
	} else {
		b, err := json.Marshal(r.IDTransferTo)
		if err != nil {
			return nil, err
		}
		idValue = b
	}
	return json.Marshal(recordJSON{IDTransferTo: idValue, Token: r.Token})
}

// UnmarshalJSON accepts idTransferTo as a number or a string.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Token = raw.Token
	r.IDTransferTo = ""

	v := bytes.TrimSpace(raw.IDTransferTo)
	switch {
	case len(v) == 0 || bytes.Equal(v, []byte("null")):
	case v[0] == '"':
		return json.Unmarshal(v, &r.IDTransferTo)
	default:
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("idTransferTo: %w", err)
		}
		r.IDTransferTo = n.String()
	}
	return nil
}

// isInteger reports whether s is a canonical non-negative integer literal.
func isInteger(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// findByToken returns the record of the first account (by name) whose
// token equals token. An empty token matches nothing.
func findByToken(records map[string]Record, token string) (Record, bool) {
	if token == "" {
		return Record{}, false
	}
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if rec := records[name]; rec.Token == token {
			return rec, true
		}
	}
	return Record{}, false
}

func ioError(op string, err error) error {
	return syncerr.New(syncerr.CheckpointIO, op, err)
}

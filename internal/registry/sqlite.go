package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tenants (
	name       TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tokens (
	id         TEXT PRIMARY KEY,
	tenant     TEXT NOT NULL REFERENCES tenants (name) ON DELETE CASCADE,
	value      TEXT NOT NULL,
	account    TEXT NOT NULL DEFAULT '',
	wait       INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tokens_tenant ON tokens (tenant);
`

// SQLiteStore keeps the registry in two SQLite tables.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path. It may
// share the file with the checkpoint store.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening registry database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging registry database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating registry database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) tenantExists(ctx context.Context, tenant string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants WHERE name = ?`, tenant).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying tenant: %w", err)
	}
	return n > 0, nil
}

// CreateTenant implements Store.
func (s *SQLiteStore) CreateTenant(ctx context.Context, tenant string) error {
	if err := checkTenant(tenant); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (name, created_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		tenant, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating tenant %s: %w", tenant, err)
	}
	return nil
}

// DeleteTenant implements Store.
func (s *SQLiteStore) DeleteTenant(ctx context.Context, tenant string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE name = ?`, tenant)
	if err != nil {
		return fmt.Errorf("deleting tenant %s: %w", tenant, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("tenant %s: %w", tenant, ErrNotFound)
	}
	return nil
}

// ListTenants implements Store.
func (s *SQLiteStore) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM tenants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	tenants := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		tenants = append(tenants, name)
	}
	return tenants, rows.Err()
}

// CreateToken implements Store.
func (s *SQLiteStore) CreateToken(ctx context.Context, tenant string, token Token) (Token, error) {
	token, err := newToken(tenant, token)
	if err != nil {
		return Token{}, err
	}
	ok, err := s.tenantExists(ctx, tenant)
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return Token{}, fmt.Errorf("tenant %s: %w", tenant, ErrNotFound)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tokens (id, tenant, value, account, wait, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		token.ID, tenant, token.Value, token.Account, token.Wait, token.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return Token{}, fmt.Errorf("creating token: %w", err)
	}
	return token, nil
}

// DeleteToken implements Store.
func (s *SQLiteStore) DeleteToken(ctx context.Context, tenant, id string) error {
	ok, err := s.tenantExists(ctx, tenant)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("tenant %s: %w", tenant, ErrNotFound)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE tenant = ? AND id = ?`, tenant, id)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("token %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListTokens implements Store.
func (s *SQLiteStore) ListTokens(ctx context.Context, tenant string) ([]Token, error) {
	ok, err := s.tenantExists(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenant, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, value, account, wait, created_at FROM tokens WHERE tenant = ?`, tenant)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	defer rows.Close()

	tokens := []Token{}
	for rows.Next() {
		var (
			t       Token
			created string
		)
		if err := rows.Scan(&t.ID, &t.Value, &t.Account, &t.Wait, &created); err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("token %s created_at: %w", t.ID, err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortTokens(tokens)
	return tokens, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

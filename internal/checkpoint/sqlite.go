package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	tenant         TEXT NOT NULL,
	account_number TEXT NOT NULL,
	id_transfer_to TEXT NOT NULL,
	token          TEXT NOT NULL DEFAULT '',
	updated_at     TEXT NOT NULL,
	PRIMARY KEY (tenant, account_number)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_token ON checkpoints (tenant, token);
`

// SQLiteStore keeps checkpoints in a SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ioError("creating database directory", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, ioError("opening checkpoint database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, ioError("pinging checkpoint database", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, ioError("migrating checkpoint database", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, tenant, accountNumber string) (string, bool, error) {
	var idTransferTo string
	err := s.db.QueryRowContext(ctx,
		`SELECT id_transfer_to FROM checkpoints WHERE tenant = ? AND account_number = ?`,
		tenant, accountNumber,
	).Scan(&idTransferTo)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ioError("querying checkpoint", err)
	}
	return idTransferTo, true, nil
}

// GetByToken implements Store.
func (s *SQLiteStore) GetByToken(ctx context.Context, tenant, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	var idTransferTo string
	err := s.db.QueryRowContext(ctx,
		`SELECT id_transfer_to FROM checkpoints
		 WHERE tenant = ? AND token = ?
		 ORDER BY account_number LIMIT 1`,
		tenant, token,
	).Scan(&idTransferTo)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ioError("querying checkpoint by token", err)
	}
	return idTransferTo, true, nil
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, tenant, accountNumber, token, idTransferTo string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (tenant, account_number, id_transfer_to, token, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (tenant, account_number) DO UPDATE SET
			id_transfer_to = excluded.id_transfer_to,
			token = excluded.token,
			updated_at = excluded.updated_at`,
		tenant, accountNumber, idTransferTo, token, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return ioError("writing checkpoint", fmt.Errorf("%s/%s: %w", tenant, accountNumber, err))
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

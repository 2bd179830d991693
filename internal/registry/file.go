package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// fileDocument is the on-disk layout: tenant -> tokens.
type fileDocument map[string][]storedToken

// FileStore keeps the registry in one JSON document, rewritten on every
// change. The file holds token secrets and is written with mode 0600.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created by the
// first change.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileDocument{}, nil
		}
		return nil, fmt.Errorf("reading registry file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fileDocument{}, nil
	}

	doc := fileDocument{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding registry file: %w", err)
	}
	return doc, nil
}

func (s *FileStore) save(doc fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry file: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating registry dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// update loads the document, applies fn and writes the result back unless
// fn fails.
func (s *FileStore) update(ctx context.Context, fn func(doc fileDocument) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

func (s *FileStore) read(ctx context.Context) (fileDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// CreateTenant implements Store.
func (s *FileStore) CreateTenant(ctx context.Context, tenant string) error {
	if err := checkTenant(tenant); err != nil {
		return err
	}
	return s.update(ctx, func(doc fileDocument) error {
		if _, ok := doc[tenant]; !ok {
			doc[tenant] = []storedToken{}
		}
		return nil
	})
}

// DeleteTenant implements Store.
func (s *FileStore) DeleteTenant(ctx context.Context, tenant string) error {
	return s.update(ctx, func(doc fileDocument) error {
		if _, ok := doc[tenant]; !ok {
			return fmt.Errorf("tenant %s: %w", tenant, ErrNotFound)
		}
		delete(doc, tenant)
		return nil
	})
}

// ListTenants implements Store.
func (s *FileStore) ListTenants(ctx context.Context) ([]string, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	tenants := make([]string, 0, len(doc))
	for tenant := range doc {
		tenants = append(tenants, tenant)
	}
	sort.Strings(tenants)
	return tenants, nil
}

// CreateToken implements Store.
func (s *FileStore) CreateToken(ctx context.Context, tenant string, token Token) (Token, error) {
	token, err := newToken(tenant, token)
	if err != nil {
		return Token{}, err
	}
	err = s.update(ctx, func(doc fileDocument) error {
		tokens, ok := doc[tenant]
		if !ok {
			return fmt.Errorf("tenant %s: %w", tenant, ErrNotFound)
		}
		doc[tenant] = append(tokens, toStored(token))
		return nil
	})
	if err != nil {
		return Token{}, err
	}
	return token, nil
}

// DeleteToken implements Store.
func (s *FileStore) DeleteToken(ctx context.Context, tenant, id string) error {
	return s.update(ctx, func(doc fileDocument) error {
		tokens, ok := doc[tenant]
		if !ok {
			return fmt.Errorf("tenant %s: %w", tenant, ErrNotFound)
		}
		for i, t := range tokens {
			if t.ID == id {
				doc[tenant] = append(tokens[:i], tokens[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("token %s: %w", id, ErrNotFound)
	})
}

// ListTokens implements Store.
func (s *FileStore) ListTokens(ctx context.Context, tenant string) ([]Token, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	stored, ok := doc[tenant]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenant, ErrNotFound)
	}
	tokens := make([]Token, 0, len(stored))
	for _, t := range stored {
		tokens = append(tokens, t.token())
	}
	sortTokens(tokens)
	return tokens, nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

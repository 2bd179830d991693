package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// fileDocument is the on-disk layout: tenant -> account -> record.
type fileDocument map[string]map[string]Record

// FileStore keeps all checkpoints in one JSON document. Every call reads the
// whole file and Set rewrites it. Calls are serialized within the process
// only; another process writing the same file can lose updates.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created by the
// first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() (fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileDocument{}, nil
		}
		return nil, ioError("reading checkpoint file", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fileDocument{}, nil
	}

	doc := fileDocument{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ioError("decoding checkpoint file", err)
	}
	return doc, nil
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, tenant, accountNumber string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	rec, ok := doc[tenant][accountNumber]
	if !ok {
		return "", false, nil
	}
	return rec.IDTransferTo, true, nil
}

// GetByToken implements Store.
func (s *FileStore) GetByToken(ctx context.Context, tenant, token string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	rec, ok := findByToken(doc[tenant], token)
	if !ok {
		return "", false, nil
	}
	return rec.IDTransferTo, true, nil
}

// Set implements Store. The file is replaced through a temporary file in
// the same directory.
func (s *FileStore) Set(ctx context.Context, tenant, accountNumber, token, idTransferTo string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if doc[tenant] == nil {
		doc[tenant] = map[string]Record{}
	}
	doc[tenant][accountNumber] = Record{IDTransferTo: idTransferTo, Token: token}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ioError("encoding checkpoint file", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.path, data); err != nil {
		return ioError("writing checkpoint file", err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

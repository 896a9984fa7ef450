package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"CaseCollector/internal/ports"
)

var (
	_ ports.DocumentStore = (*FileStore)(nil)
	_ ports.BatchSaver    = (*FileStore)(nil)
)

var collectionName = regexp.MustCompile(`^[a-z0-9_-]+$`)

// FileStore keeps each collection in <dir>/<collection>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(collection string) (string, error) {
	if !collectionName.MatchString(collection) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	return filepath.Join(s.dir, collection+".json"), nil
}

func (s *FileStore) Load(_ context.Context, collection string) ([]byte, error) {
	p, err := s.path(collection)
	if err != nil {
		return nil, &Error{Op: OpLoad, Collection: collection, Err: err}
	}
	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: OpLoad, Collection: collection, Err: err}
	}
	return raw, nil
}

// Save writes to a temporary file and renames it over the target.
func (s *FileStore) Save(_ context.Context, collection string, payload []byte) error {
	tmp, err := s.writeTemp(collection, payload)
	if err != nil {
		return &Error{Op: OpSave, Collection: collection, Err: err}
	}
	if err := os.Rename(tmp.name, tmp.target); err != nil {
		_ = os.Remove(tmp.name)
		return &Error{Op: OpSave, Collection: collection, Err: err}
	}
	return nil
}

// SaveBatch writes every payload to a temporary file before renaming any of them, so an
// encoding or disk-space failure leaves all collections untouched.
func (s *FileStore) SaveBatch(_ context.Context, payloads map[string][]byte) error {
	names := slices.Sorted(maps.Keys(payloads))
	temps := make([]tempFile, 0, len(names))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp.name)
		}
	}

	for _, name := range names {
		tmp, err := s.writeTemp(name, payloads[name])
		if err != nil {
			cleanup()
			return &Error{Op: OpSaveBatch, Collection: name, Err: err}
		}
		temps = append(temps, tmp)
	}
	for i, tmp := range temps {
		if err := os.Rename(tmp.name, tmp.target); err != nil {
			temps = temps[i:]
			cleanup()
			return &Error{Op: OpSaveBatch, Collection: names[i], Err: err}
		}
	}
	return nil
}

type tempFile struct {
	name   string
	target string
}

func (s *FileStore) writeTemp(collection string, payload []byte) (tempFile, error) {
	p, err := s.path(collection)
	if err != nil {
		return tempFile{}, err
	}
	f, err := os.CreateTemp(s.dir, collection+"-*.tmp")
	if err != nil {
		return tempFile{}, err
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return tempFile{}, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return tempFile{}, err
	}
	return tempFile{name: f.Name(), target: p}, nil
}

func (s *FileStore) Close() error { return nil }

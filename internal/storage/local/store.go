// Package local stores values as JSON files on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/sqlvalley/internal/storage"
)

const (
	dataDir  = "data"
	lockFile = ".lock"
	ext      = ".json"
)

// Store provides file storage safe across goroutines and processes. Each key
// maps to basePath/data/<key>.json; writes go through a temp file and rename.
type Store struct {
	basePath string
	mu       sync.RWMutex
	lock     *flock.Flock
}

// NewStore creates a new local store rooted at basePath
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(basePath, dataDir), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{
		basePath: basePath,
		lock:     flock.New(filepath.Join(basePath, lockFile)),
	}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.basePath, dataDir, filepath.FromSlash(key)+ext)
}

func (s *Store) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer s.lock.Unlock()

	return fn()
}

// Get reads the value stored under key
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Set writes value under key atomically
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	return s.withLock(func() error {
		return atomicWrite(s.path(key), value)
	})
}

// Delete removes key
func (s *Store) Delete(_ context.Context, key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	return s.withLock(func() error {
		if err := os.Remove(s.path(key)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("remove file: %w", err)
		}
		return nil
	})
}

// Keys lists every stored key
func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root := filepath.Join(s.basePath, dataDir)
	var keys []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		keys = append(keys, strings.TrimSuffix(filepath.ToSlash(rel), ext))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear swaps the data directory for an empty one in a single rename, then
// removes the old tree.
func (s *Store) Clear(_ context.Context) error {
	return s.withLock(func() error {
		root := filepath.Join(s.basePath, dataDir)
		trash := filepath.Join(s.basePath, ".trash-"+uuid.NewString())
		if err := os.Rename(root, trash); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("detach data directory: %w", err)
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return fmt.Errorf("recreate data directory: %w", err)
		}
		if err := os.RemoveAll(trash); err != nil {
			return fmt.Errorf("remove old data: %w", err)
		}
		return nil
	})
}

// Close releases the process lock file handle
func (s *Store) Close() error {
	return s.lock.Close()
}

var _ storage.Store = (*Store)(nil)

// atomicWrite writes data through a temp file in the target directory and
// renames it into place, so readers never see partial writes.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}

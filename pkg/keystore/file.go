// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package keystore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mpcparty/core/pkg/mpcerrors"
)

// FileStore implements Store as one file per key under a directory. Key
// ids are validated to reject path traversal before touching the
// filesystem.
type FileStore struct {
	directory string
	mu        sync.RWMutex
}

// NewFileStore creates directory (mode 0700) if absent and returns a
// FileStore rooted there.
func NewFileStore(directory string) (*FileStore, error) {
	if err := os.MkdirAll(directory, 0700); err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to create keystore directory", err)
	}
	return &FileStore{directory: directory}, nil
}

func validateKey(key string) error {
	if strings.Contains(key, "/") || strings.Contains(key, "\\") || strings.Contains(key, "..") {
		return mpcerrors.New(mpcerrors.Config, "invalid keystore key: "+key)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.directory, key+".blob")
}

func (s *FileStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to read keystore file", err)
	}
	return data, nil
}

func (s *FileStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.WriteFile(s.path(key), value, 0600); err != nil {
		return mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to write keystore file", err)
	}
	return nil
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to delete keystore file", err)
	}
	return nil
}

func (s *FileStore) ListKeys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to list keystore directory", err)
	}

	var keys []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".blob") {
			keys = append(keys, strings.TrimSuffix(entry.Name(), ".blob"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every *.blob file in the directory.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to list keystore directory for clear", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".blob") {
			continue
		}
		if err := os.Remove(filepath.Join(s.directory, entry.Name())); err != nil && !os.IsNotExist(err) {
			return mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to remove keystore file during clear", err)
		}
	}
	return nil
}

// Available reports whether the backing directory is still reachable.
func (s *FileStore) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := os.Stat(s.directory)
	return err == nil && info.IsDir()
}

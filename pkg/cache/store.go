// Package cache is the on-disk key/value store behind the session and
// snapshot caches. Logical keys are hashed into fixed-length file names.
package cache

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

const (
	xdgAppName = "taigo"
	dirMode    = 0700
	fileMode   = 0600
)

// Store maps logical keys to files under a single directory.
type Store struct {
	dir string
}

// DefaultDir returns the per-user cache directory of the application.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, xdgAppName), nil
}

// Open returns a Store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache directory is not set")
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the file name used for key.
func FileName(key string) string {
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, FileName(key))
}

// Put replaces the value stored under key. The write goes to a temporary
// file that is renamed over the old one, so readers never see half a value.
func (s *Store) Put(key string, value []byte) error {
	path := s.path(key)
	if err := atomic.WriteFile(path, bytes.NewReader(value)); err != nil {
		return fmt.Errorf("failed to write cache entry '%s': %w", key, err)
	}
	if err := os.Chmod(path, fileMode); err != nil {
		return fmt.Errorf("failed to restrict cache entry '%s': %w", key, err)
	}
	return nil
}

// Get returns the value stored under key. A missing entry is reported with
// ok == false and a nil error.
func (s *Store) Get(key string) (value []byte, ok bool, err error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry '%s': %w", key, err)
	}
	return data, true, nil
}

// Delete removes the entry for key. Deleting a missing entry is not an error.
func (s *Store) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache entry '%s': %w", key, err)
	}
	return nil
}

// Clear removes every entry of the store. Other files in the directory,
// such as logs, are left alone.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to list cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isEntryName(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete cache file %s: %w", e.Name(), err)
		}
	}
	return nil
}

func isEntryName(name string) bool {
	if len(name) != sha1.Size*2 {
		return false
	}
	_, err := hex.DecodeString(name)
	return err == nil
}

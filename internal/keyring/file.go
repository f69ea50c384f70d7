package keyring

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps secrets as individual files in a directory. It exists so the
// CLI can be exercised end to end without touching the OS keyring and must not
// be used for real credentials.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates dir (mode 0700) if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("keyring directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keyring directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// IsAvailable implements Store.
func (f *FileStore) IsAvailable() error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrKeyringUnavailable, f.dir)
	}
	return nil
}

// entryName maps a key to a file name. Secret keys embed the host URL, so
// they are hashed rather than escaped.
func entryName(key string) string {
	sum := sha256.Sum256([]byte(serviceName(key)))
	return "secret-" + hex.EncodeToString(sum[:])
}

func (f *FileStore) entryPath(key string) string {
	return filepath.Join(f.dir, entryName(key))
}

// Set implements Store.
func (f *FileStore) Set(key, secret string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if secret == "" {
		return ErrEmptySecret
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.entryPath(key)
	// Never follow a pre-existing entry, it may have been swapped for a symlink.
	_ = os.Remove(path)

	// #nosec G304 - path is built from a hashed key inside f.dir
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create secret file: %w", err)
	}
	if _, err := file.WriteString(secret); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write secret: %w", err)
	}
	return file.Close()
}

// Get implements Store.
func (f *FileStore) Get(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// #nosec G304 - path is built from a hashed key inside f.dir
	data, err := os.ReadFile(f.entryPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return string(data), nil
}

// Delete implements Store.
func (f *FileStore) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.entryPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}

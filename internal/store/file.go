package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SecureFileBackend stores each key as its own file with owner-only
// permissions, the closest a portable CLI gets to enclave-backed storage.
// It is the preferred backend in the default vault ranking.
type SecureFileBackend struct {
	mu  sync.Mutex
	dir string
}

// NewSecureFileBackend creates a file backend rooted at dir.
// The directory is created lazily on first write.
func NewSecureFileBackend(dir string) *SecureFileBackend {
	return &SecureFileBackend{dir: strings.TrimSpace(dir)}
}

func (b *SecureFileBackend) Name() string { return "secure-file" }

func (b *SecureFileBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path, err := b.pathFor(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("secure store: read %s: %w", key, err)
	}
	return string(data), nil
}

func (b *SecureFileBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	path, err := b.pathFor(key)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("secure store: create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, []byte(value), 0o600); err != nil {
		return fmt.Errorf("secure store: write %s: %w", key, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("secure store: rename %s: %w", key, err)
	}
	return nil
}

func (b *SecureFileBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	path, err := b.pathFor(key)
	if err != nil {
		return err
	}
	if err = os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("secure store: delete %s: %w", key, err)
	}
	return nil
}

func (b *SecureFileBackend) pathFor(key string) (string, error) {
	if b.dir == "" {
		return "", fmt.Errorf("secure store: directory not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, "/\\") {
		return "", fmt.Errorf("secure store: invalid key %q", key)
	}
	return filepath.Join(b.dir, key), nil
}

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

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DocumentBackend stores all keys inside a single plain JSON document.
// It is the fallback backend when the secure file store is unavailable,
// mirroring the plain persistent store of the mobile client. Fields other
// than the well-known keys are preserved across writes, so users may keep
// annotations (labels, notes) in the document.
type DocumentBackend struct {
	mu   sync.Mutex
	path string
}

// NewDocumentBackend creates a document backend persisting to path.
func NewDocumentBackend(path string) *DocumentBackend {
	return &DocumentBackend{path: strings.TrimSpace(path)}
}

func (b *DocumentBackend) Name() string { return "document" }

func (b *DocumentBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		return "", err
	}
	result := gjson.GetBytes(doc, escapeKey(key))
	if !result.Exists() {
		return "", ErrNotFound
	}
	return result.String(), nil
}

func (b *DocumentBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if len(doc) == 0 {
		doc = []byte("{}")
	}
	updated, err := sjson.SetBytes(doc, escapeKey(key), value)
	if err != nil {
		return fmt.Errorf("document store: set %s: %w", key, err)
	}
	return b.write(updated)
}

func (b *DocumentBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	updated, err := sjson.DeleteBytes(doc, escapeKey(key))
	if err != nil {
		return fmt.Errorf("document store: delete %s: %w", key, err)
	}
	return b.write(updated)
}

func (b *DocumentBackend) read() ([]byte, error) {
	if b.path == "" {
		return nil, fmt.Errorf("document store: path not configured")
	}
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("document store: read: %w", err)
	}
	return data, nil
}

func (b *DocumentBackend) write(doc []byte) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("document store: create dir: %w", err)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, doc, 0o600); err != nil {
		return fmt.Errorf("document store: write: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("document store: rename: %w", err)
	}
	return nil
}

// escapeKey guards gjson path syntax; stored keys contain no dots today but
// escaping keeps arbitrary keys addressable as flat document fields.
func escapeKey(key string) string {
	replacer := strings.NewReplacer(".", "\\.", "*", "\\*", "?", "\\?")
	return replacer.Replace(key)
}

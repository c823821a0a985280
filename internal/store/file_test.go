package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSecureFileBackendRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "credentials")
	b := NewSecureFileBackend(dir)

	if err := b.Set(ctx, KeyRefreshToken, "RT1"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	got, err := b.Get(ctx, KeyRefreshToken)
	if err != nil || got != "RT1" {
		t.Fatalf("Get = %q, err %v", got, err)
	}

	if err = b.Delete(ctx, KeyRefreshToken); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err = b.Get(ctx, KeyRefreshToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err = b.Delete(ctx, KeyRefreshToken); err != nil {
		t.Fatalf("repeated Delete returned error: %v", err)
	}
}

func TestSecureFileBackendPermissions(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "credentials")
	b := NewSecureFileBackend(dir)

	if err := b.Set(ctx, KeyAccessToken, "AT1"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, KeyAccessToken))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("credential file mode = %o, want 600", perm)
	}
}

func TestSecureFileBackendRejectsPathKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewSecureFileBackend(t.TempDir())

	for _, key := range []string{"", "../escape", "a/b", `a\b`} {
		if err := b.Set(ctx, key, "v"); err == nil {
			t.Errorf("Set accepted invalid key %q", key)
		}
	}
}

package store

import (
	"context"
	"errors"
	"testing"
)

// failingBackend rejects every operation, standing in for an unavailable
// storage tier.
type failingBackend struct{}

func (failingBackend) Name() string                                { return "failing" }
func (failingBackend) Get(context.Context, string) (string, error) { return "", errors.New("down") }
func (failingBackend) Set(context.Context, string, string) error   { return errors.New("down") }
func (failingBackend) Delete(context.Context, string) error        { return errors.New("down") }

func TestVaultRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	vault := NewVault(NewMemoryBackend())

	if err := vault.Set(ctx, KeyAccessToken, "AT1"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	got, err := vault.Get(ctx, KeyAccessToken)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != "AT1" {
		t.Fatalf("Get = %q, want %q", got, "AT1")
	}

	if err = vault.Delete(ctx, KeyAccessToken); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err = vault.Get(ctx, KeyAccessToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestVaultWritesAllBackends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary := NewMemoryBackend()
	fallback := NewMemoryBackend()
	vault := NewVault(primary, fallback)

	if err := vault.Set(ctx, KeyState, "state-1"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	for _, b := range []Backend{primary, fallback} {
		got, err := b.Get(ctx, KeyState)
		if err != nil {
			t.Fatalf("backend %s missing value: %v", b.Name(), err)
		}
		if got != "state-1" {
			t.Fatalf("backend %s value = %q", b.Name(), got)
		}
	}
}

func TestVaultPrefersHigherRankedBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary := NewMemoryBackend()
	fallback := NewMemoryBackend()
	vault := NewVault(primary, fallback)

	if err := primary.Set(ctx, KeyAccessToken, "primary-value"); err != nil {
		t.Fatal(err)
	}
	if err := fallback.Set(ctx, KeyAccessToken, "fallback-value"); err != nil {
		t.Fatal(err)
	}

	got, err := vault.Get(ctx, KeyAccessToken)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != "primary-value" {
		t.Fatalf("Get = %q, want primary backend value", got)
	}
}

func TestVaultFallsBackOnRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fallback := NewMemoryBackend()
	vault := NewVault(failingBackend{}, fallback)

	if err := fallback.Set(ctx, KeyRefreshToken, "RT1"); err != nil {
		t.Fatal(err)
	}

	got, err := vault.Get(ctx, KeyRefreshToken)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != "RT1" {
		t.Fatalf("Get = %q, want %q", got, "RT1")
	}
}

func TestVaultFailingFallbackDoesNotBlockWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary := NewMemoryBackend()
	vault := NewVault(primary, failingBackend{})

	if err := vault.Set(ctx, KeyIDToken, "IDT1"); err != nil {
		t.Fatalf("Set must succeed with healthy primary, got %v", err)
	}
	got, err := primary.Get(ctx, KeyIDToken)
	if err != nil || got != "IDT1" {
		t.Fatalf("primary value = %q, err %v", got, err)
	}
}

func TestVaultFailingPrimarySurfacesWriteError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fallback := NewMemoryBackend()
	vault := NewVault(failingBackend{}, fallback)

	if err := vault.Set(ctx, KeyIDToken, "IDT1"); err == nil {
		t.Fatal("expected primary write error")
	}
	// The redundant write still reached the fallback.
	if got, err := fallback.Get(ctx, KeyIDToken); err != nil || got != "IDT1" {
		t.Fatalf("fallback value = %q, err %v", got, err)
	}
}

func TestVaultDeleteAllIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	vault := NewVault(NewMemoryBackend())

	for _, key := range TokenKeys {
		if err := vault.Set(ctx, key, "v"); err != nil {
			t.Fatal(err)
		}
	}
	if err := vault.DeleteAll(ctx, TokenKeys...); err != nil {
		t.Fatalf("first DeleteAll returned error: %v", err)
	}
	if err := vault.DeleteAll(ctx, TokenKeys...); err != nil {
		t.Fatalf("second DeleteAll returned error: %v", err)
	}
	for _, key := range TokenKeys {
		if _, err := vault.Get(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Fatalf("key %s still present: %v", key, err)
		}
	}
}

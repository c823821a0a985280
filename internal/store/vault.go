package store

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

// Vault writes auth state redundantly to a ranked list of backends and reads
// it back preferring the highest-ranked backend holding the key.
//
// The vault does not serialize concurrent login flows; two simultaneous
// logins race on the PKCE keys and the last writer wins.
type Vault struct {
	backends []Backend
}

// NewVault creates a vault over the given backends, ranked in order.
// At least one backend is required.
func NewVault(backends ...Backend) *Vault {
	filtered := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b != nil {
			filtered = append(filtered, b)
		}
	}
	return &Vault{backends: filtered}
}

// Get returns the value for key from the first backend holding it.
// Backend failures other than a missing key are logged and skipped.
func (v *Vault) Get(ctx context.Context, key string) (string, error) {
	for _, b := range v.backends {
		value, err := b.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			log.WithField("backend", b.Name()).WithField("key", key).Warnf("credential read failed: %v", err)
		}
	}
	return "", ErrNotFound
}

// Set writes key to every backend. The primary backend's error is returned;
// failures on lower-ranked backends are logged and otherwise ignored so a
// broken fallback never blocks a login.
func (v *Vault) Set(ctx context.Context, key, value string) error {
	if len(v.backends) == 0 {
		return errors.New("store: no backends configured")
	}
	var primaryErr error
	for i, b := range v.backends {
		if err := b.Set(ctx, key, value); err != nil {
			if i == 0 {
				primaryErr = err
			} else {
				log.WithField("backend", b.Name()).WithField("key", key).Warnf("redundant credential write failed: %v", err)
			}
		}
	}
	return primaryErr
}

// Delete removes key from every backend. Missing keys are not errors, which
// makes repeated clears idempotent.
func (v *Vault) Delete(ctx context.Context, key string) error {
	var firstErr error
	for _, b := range v.backends {
		if err := b.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			if firstErr == nil {
				firstErr = err
			}
			log.WithField("backend", b.Name()).WithField("key", key).Warnf("credential delete failed: %v", err)
		}
	}
	return firstErr
}

// DeleteAll removes every listed key, continuing past individual failures.
func (v *Vault) DeleteAll(ctx context.Context, keys ...string) error {
	var firstErr error
	for _, key := range keys {
		if err := v.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Backends exposes the ranked backend list for status reporting.
func (v *Vault) Backends() []Backend {
	return v.backends
}

// Package store persists authentication state for the Vitalog CLI.
// State is a small set of well-known keys written redundantly to a ranked
// list of storage backends; reads prefer the first backend holding a key.
package store

import (
	"context"
	"errors"
)

// Well-known keys for persisted auth state.
const (
	KeyCodeVerifier = "auth_code_verifier"
	KeyState        = "auth_state"
	KeyAccessToken  = "auth_access_token"
	KeyIDToken      = "auth_id_token"
	KeyRefreshToken = "auth_refresh_token"
	KeyExpiresAt    = "auth_expires_at"
)

// TokenKeys lists the keys that make up a stored token set.
var TokenKeys = []string{KeyAccessToken, KeyIDToken, KeyRefreshToken, KeyExpiresAt}

// PKCEKeys lists the keys holding in-flight PKCE login state.
var PKCEKeys = []string{KeyCodeVerifier, KeyState}

// ErrNotFound reports that a key is absent from a backend.
var ErrNotFound = errors.New("store: key not found")

// Backend is a keyed credential storage backend.
// Implementations must treat Delete of a missing key as a no-op.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, overwriting any existing value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

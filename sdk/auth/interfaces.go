// Package auth exposes the login and logout flows of the Vitalog CLI as
// reusable building blocks. A Manager dispatches to registered provider
// Authenticators and persists the resulting credential summary.
package auth

import (
	"context"

	"github.com/vitalog-app/vitalog-cli/internal/config"
	"github.com/vitalog-app/vitalog-cli/internal/profile"
)

// LoginOptions captures generic knobs shared across authenticators.
type LoginOptions struct {
	// NoBrowser suppresses automatic browser launch; the authorization URL
	// is printed for the user to open manually.
	NoBrowser bool
	// CallbackPort overrides the configured OAuth callback port.
	CallbackPort int
	// Prompt, when set, lets the flow ask the user for manual input, such
	// as pasting a callback URL when the loopback redirect cannot arrive.
	Prompt func(prompt string) (string, error)
}

// Summary is a persistable description of the stored credentials.
type Summary interface {
	SaveToFile(path string) error
}

// Record is the outcome of a successful login.
type Record struct {
	// Provider identifies the authenticator that produced the record.
	Provider string
	// FileName is the file the credential summary should be saved under.
	FileName string
	// Profile is the authenticated user's identity projection.
	Profile *profile.Profile
	// Summary is the credential summary to persist alongside the vault.
	Summary Summary
}

// Authenticator manages the login and logout flows for a provider.
type Authenticator interface {
	Provider() string
	Login(ctx context.Context, cfg *config.Config, opts *LoginOptions) (*Record, error)
	Logout(ctx context.Context, cfg *config.Config) error
}

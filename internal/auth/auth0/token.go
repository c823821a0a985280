package auth0

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// TokenSet is the active credential bundle for an authenticated session.
// Exactly one token set exists at a time; it is overwritten on every refresh
// and deleted on logout or irrecoverable refresh failure.
type TokenSet struct {
	// AccessToken is the bearer credential for protected API calls.
	AccessToken string
	// RefreshToken obtains new access tokens without re-prompting the user.
	// May be empty when the offline_access scope was not granted.
	RefreshToken string
	// IDToken is the JWT carrying the user's identity claims.
	IDToken string
	// ExpiresAt is the instant the access token stops being valid.
	ExpiresAt time.Time
}

// Expired reports whether the access token must not be used at instant now.
// The boundary is inclusive: a token is invalid at exactly ExpiresAt.
func (ts *TokenSet) Expired(now time.Time) bool {
	if ts == nil || ts.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(ts.ExpiresAt)
}

// CredentialFile is the human-inspectable summary persisted alongside the
// vault, describing who is logged in and until when.
type CredentialFile struct {
	// Type identifies the authentication provider, always "auth0".
	Type string `json:"type"`
	// Email is the account email from the identity claims.
	Email string `json:"email,omitempty"`
	// Subject is the provider subject identifier for the account.
	Subject string `json:"subject,omitempty"`
	// Label is an optional human readable label.
	Label string `json:"label,omitempty"`
	// LastRefresh is the timestamp of the last token acquisition or refresh.
	LastRefresh string `json:"last_refresh"`
	// Expire is the timestamp when the current access token expires.
	Expire string `json:"expired"`
}

// SaveToFile serializes the credential summary as JSON at the given path.
func (cf *CredentialFile) SaveToFile(authFilePath string) error {
	log.Debugf("saving credential summary to %s", authFilePath)
	cf.Type = "auth0"
	if err := os.MkdirAll(filepath.Dir(authFilePath), 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(authFilePath)
	if err != nil {
		return fmt.Errorf("failed to create credential file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err = encoder.Encode(cf); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

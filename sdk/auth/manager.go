package auth

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vitalog-app/vitalog-cli/internal/config"
	"github.com/vitalog-app/vitalog-cli/internal/util"
)

// Manager aggregates authenticators and coordinates credential persistence.
type Manager struct {
	authenticators map[string]Authenticator
}

// NewManager constructs a manager with the provided authenticators.
func NewManager(authenticators ...Authenticator) *Manager {
	mgr := &Manager{
		authenticators: make(map[string]Authenticator),
	}
	for i := range authenticators {
		mgr.Register(authenticators[i])
	}
	return mgr
}

// Register adds or replaces an authenticator keyed by its provider identifier.
func (m *Manager) Register(a Authenticator) {
	if a == nil {
		return
	}
	m.authenticators[a.Provider()] = a
}

// Login executes the provider login flow and persists the resulting
// credential summary under the configured auth directory. The summary path
// is returned alongside the record.
func (m *Manager) Login(ctx context.Context, provider string, cfg *config.Config, opts *LoginOptions) (*Record, string, error) {
	a, ok := m.authenticators[provider]
	if !ok {
		return nil, "", fmt.Errorf("auth: authenticator %s not registered", provider)
	}

	record, err := a.Login(ctx, cfg, opts)
	if err != nil {
		return nil, "", err
	}
	if record == nil {
		return nil, "", fmt.Errorf("auth: authenticator %s returned nil record", provider)
	}

	if record.Summary == nil || record.FileName == "" {
		return record, "", nil
	}

	authDir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		return record, "", fmt.Errorf("auth: failed to resolve auth directory: %w", err)
	}
	savedPath := filepath.Join(authDir, record.FileName)
	if err = record.Summary.SaveToFile(savedPath); err != nil {
		return record, "", err
	}
	return record, savedPath, nil
}

// Logout executes the provider logout flow.
func (m *Manager) Logout(ctx context.Context, provider string, cfg *config.Config) error {
	a, ok := m.authenticators[provider]
	if !ok {
		return fmt.Errorf("auth: authenticator %s not registered", provider)
	}
	return a.Logout(ctx, cfg)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/vitalog-app/vitalog-cli/internal/config"
	"github.com/vitalog-app/vitalog-cli/internal/util"
)

// DoLogout revokes the stored tokens best effort, clears every local trace of
// the session, and removes the credential summary file.
func DoLogout(cfg *config.Config) {
	ctx := context.Background()
	vault, cleanup, err := buildVault(ctx, cfg)
	if err != nil {
		fmt.Printf("Failed to initialize credential storage: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	manager := newAuthManager(vault)
	if err = manager.Logout(ctx, "auth0", cfg); err != nil {
		fmt.Printf("Sign-out failed: %v\n", err)
		os.Exit(1)
	}

	if authDir, errDir := util.ResolveAuthDir(cfg.AuthDir); errDir == nil {
		summaryPath := filepath.Join(authDir, "auth.json")
		if errRemove := os.Remove(summaryPath); errRemove != nil && !os.IsNotExist(errRemove) {
			log.Warnf("failed to remove credential summary: %v", errRemove)
		}
	}

	fmt.Println("Signed out.")
}

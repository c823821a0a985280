package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vitalog-app/vitalog-cli/internal/auth/auth0"
	"github.com/vitalog-app/vitalog-cli/internal/config"
)

// DoStatus prints the local session state without contacting the provider.
func DoStatus(cfg *config.Config) {
	ctx := context.Background()
	vault, cleanup, err := buildVault(ctx, cfg)
	if err != nil {
		fmt.Printf("Failed to initialize credential storage: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	authSvc := auth0.NewAuth0Auth(cfg)
	session := auth0.NewSession(vault, authSvc, cfg.LenientState)

	fmt.Println("Credential backends:")
	for i, b := range vault.Backends() {
		rank := "fallback"
		if i == 0 {
			rank = "primary"
		}
		fmt.Printf("  %-12s (%s)\n", b.Name(), rank)
	}

	tokens, err := session.Tokens(ctx)
	if err != nil {
		fmt.Printf("Failed to read stored tokens: %v\n", err)
		os.Exit(1)
	}
	if tokens == nil {
		fmt.Println("Session: not signed in")
		return
	}

	now := time.Now()
	if tokens.Expired(now) {
		if tokens.RefreshToken != "" {
			fmt.Printf("Session: expired at %s (refreshable)\n", tokens.ExpiresAt.Format(time.RFC3339))
		} else {
			fmt.Printf("Session: expired at %s (sign-in required)\n", tokens.ExpiresAt.Format(time.RFC3339))
		}
		return
	}
	fmt.Printf("Session: valid until %s (%s from now)\n",
		tokens.ExpiresAt.Format(time.RFC3339),
		tokens.ExpiresAt.Sub(now).Round(time.Second))
}

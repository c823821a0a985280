package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/vitalog-app/vitalog-cli/internal/auth/auth0"
	"github.com/vitalog-app/vitalog-cli/internal/config"
	"github.com/vitalog-app/vitalog-cli/internal/profile"
)

// DoWhoami fetches and prints the authenticated user's identity, refreshing
// the access token first when it has expired.
func DoWhoami(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	vault, cleanup, err := buildVault(ctx, cfg)
	if err != nil {
		fmt.Printf("Failed to initialize credential storage: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	authSvc := auth0.NewAuth0Auth(cfg)
	session := auth0.NewSession(vault, authSvc, cfg.LenientState)

	accessToken, err := session.AccessToken(ctx)
	if err != nil {
		if errors.Is(err, auth0.ErrNoRefreshToken) || auth0.IsOAuthError(err) {
			fmt.Println("Not signed in. Run with -login to sign in.")
			os.Exit(1)
		}
		fmt.Printf("Failed to obtain an access token: %s\n", auth0.GetUserFriendlyMessage(err))
		os.Exit(1)
	}

	userInfo, err := authSvc.FetchUserInfo(ctx, accessToken)
	if err != nil {
		fmt.Printf("Failed to fetch identity: %v\n", err)
		os.Exit(1)
	}

	p := profile.FromUserInfo(userInfo)
	fmt.Printf("Signed in as %s\n", p.DisplayName)
	if p.Email != "" {
		fmt.Printf("  Email:   %s\n", p.Email)
	}
	fmt.Printf("  Subject: %s\n", p.Subject)
	if p.PictureURL != "" {
		fmt.Printf("  Picture: %s\n", p.PictureURL)
	}
}

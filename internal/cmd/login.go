package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vitalog-app/vitalog-cli/internal/auth/auth0"
	"github.com/vitalog-app/vitalog-cli/internal/config"
	sdkAuth "github.com/vitalog-app/vitalog-cli/sdk/auth"
)

// LoginOptions contains options for the login flow.
type LoginOptions struct {
	// NoBrowser indicates whether to skip opening the browser automatically.
	NoBrowser bool

	// CallbackPort overrides the local OAuth callback port when set (>0).
	CallbackPort int

	// Prompt allows the caller to provide interactive input when needed.
	Prompt func(prompt string) (string, error)
}

// DoLogin triggers the OAuth flow through the shared authentication manager
// and saves the credential summary to the configured auth directory.
func DoLogin(cfg *config.Config, options *LoginOptions) {
	if options == nil {
		options = &LoginOptions{}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}

	promptFn := options.Prompt
	if promptFn == nil {
		promptFn = stdinPrompt()
	}

	ctx := context.Background()
	vault, cleanup, err := buildVault(ctx, cfg)
	if err != nil {
		fmt.Printf("Failed to initialize credential storage: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	manager := newAuthManager(vault)

	authOpts := &sdkAuth.LoginOptions{
		NoBrowser:    options.NoBrowser,
		CallbackPort: options.CallbackPort,
		Prompt:       promptFn,
	}

	record, savedPath, err := manager.Login(ctx, "auth0", cfg, authOpts)
	if err != nil {
		if auth0.IsUserCancellation(err) {
			fmt.Println(auth0.GetUserFriendlyMessage(err))
			return
		}
		var authErr *auth0.AuthenticationError
		if errors.As(err, &authErr) {
			log.Error(auth0.GetUserFriendlyMessage(authErr))
			if authErr.Type == auth0.ErrPortInUse.Type {
				os.Exit(auth0.ErrPortInUse.Code)
			}
			return
		}
		fmt.Printf("Sign-in failed: %s\n", auth0.GetUserFriendlyMessage(err))
		log.Debugf("sign-in error detail: %v", err)
		return
	}

	if savedPath != "" {
		fmt.Printf("Credentials saved to %s\n", savedPath)
	}
	if record != nil && record.Profile != nil && record.Profile.Email != "" {
		fmt.Printf("Welcome, %s!\n", record.Profile.Email)
	}
}

// stdinPrompt reads a single line from standard input.
func stdinPrompt() func(prompt string) (string, error) {
	reader := bufio.NewReader(os.Stdin)
	return func(prompt string) (string, error) {
		fmt.Print(prompt)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}

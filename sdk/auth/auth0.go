package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vitalog-app/vitalog-cli/internal/auth/auth0"
	"github.com/vitalog-app/vitalog-cli/internal/browser"
	"github.com/vitalog-app/vitalog-cli/internal/config"
	"github.com/vitalog-app/vitalog-cli/internal/misc"
	"github.com/vitalog-app/vitalog-cli/internal/profile"
	"github.com/vitalog-app/vitalog-cli/internal/store"
	"github.com/vitalog-app/vitalog-cli/internal/util"
)

// manualPromptDelay is how long the loopback wait runs before offering the
// paste-the-URL fallback. Shortened in tests.
var manualPromptDelay = 15 * time.Second

// Auth0Authenticator implements the OAuth2/PKCE login flow against the
// configured Auth0 tenant, persisting auth state through the credential vault.
type Auth0Authenticator struct {
	vault *store.Vault
}

// NewAuth0Authenticator constructs an Auth0 authenticator over the given vault.
func NewAuth0Authenticator(vault *store.Vault) *Auth0Authenticator {
	return &Auth0Authenticator{vault: vault}
}

func (a *Auth0Authenticator) Provider() string {
	return "auth0"
}

// Login runs the full authorization-code flow: PKCE generation, state
// persistence, browser launch, callback capture, code exchange, token
// persistence, and identity fetch.
func (a *Auth0Authenticator) Login(ctx context.Context, cfg *config.Config, opts *LoginOptions) (*Record, error) {
	if cfg == nil {
		return nil, fmt.Errorf("auth: configuration is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &LoginOptions{}
	}

	callbackPort := cfg.Provider.CallbackPort
	if opts.CallbackPort > 0 {
		callbackPort = opts.CallbackPort
		cfg.Provider.CallbackPort = opts.CallbackPort
	}

	attemptID := uuid.NewString()[:8]
	logger := log.WithField("attempt", attemptID)
	logger.Debug("starting OAuth login attempt")

	pkceCodes, err := auth0.GeneratePKCECodes(cfg.AllowInsecureFallback)
	if err != nil {
		return nil, fmt.Errorf("pkce generation failed: %w", err)
	}

	state, err := misc.GenerateRandomState()
	if err != nil {
		return nil, fmt.Errorf("state generation failed: %w", err)
	}

	authSvc := auth0.NewAuth0Auth(cfg)
	session := auth0.NewSession(a.vault, authSvc, cfg.LenientState)

	// The verifier and state must be durable before the browser opens: the
	// callback can arrive while the launch call is still returning.
	if err = session.StoreLoginState(ctx, pkceCodes.CodeVerifier, state); err != nil {
		return nil, err
	}
	// The pair is single use: discard it when the flow ends, whether the
	// exchange ran, failed, or the attempt was abandoned before it.
	defer func() {
		if clearErr := session.ClearLoginState(context.Background()); clearErr != nil {
			log.Warnf("failed to clear login state: %v", clearErr)
		}
	}()

	oauthServer := auth0.NewCallbackServer(callbackPort)
	if err = oauthServer.Start(); err != nil {
		if strings.Contains(err.Error(), "already in use") {
			return nil, auth0.NewAuthenticationError(auth0.ErrPortInUse, err)
		}
		return nil, auth0.NewAuthenticationError(auth0.ErrServerStartFailed, err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if stopErr := oauthServer.Stop(stopCtx); stopErr != nil {
			log.Warnf("oauth callback server stop error: %v", stopErr)
		}
	}()

	authURL, err := authSvc.GenerateAuthURL(state, pkceCodes)
	if err != nil {
		return nil, fmt.Errorf("authorization url generation failed: %w", err)
	}

	if !opts.NoBrowser {
		fmt.Println("Opening browser for Vitalog sign-in")
		if !browser.IsAvailable() {
			log.Warn("no browser available; please open the URL manually")
			util.PrintSSHTunnelInstructions(callbackPort)
			fmt.Printf("Visit the following URL to continue signing in:\n%s\n", authURL)
		} else if err = browser.OpenURL(authURL); err != nil {
			log.Warnf("failed to open browser automatically: %v", err)
			util.PrintSSHTunnelInstructions(callbackPort)
			fmt.Printf("Visit the following URL to continue signing in:\n%s\n", authURL)
		}
	} else {
		util.PrintSSHTunnelInstructions(callbackPort)
		fmt.Printf("Visit the following URL to continue signing in:\n%s\n", authURL)
	}

	fmt.Println("Waiting for sign-in to complete in the browser...")

	result, err := a.waitForCallback(oauthServer, opts)
	if err != nil {
		return nil, err
	}

	if result.Error != "" {
		return nil, auth0.NewOAuthError(result.Error, result.ErrorDescription, http.StatusBadRequest)
	}

	verifier, err := session.TakeVerifier(ctx, result.State)
	if err != nil {
		return nil, err
	}

	logger.Debug("authorization code received; exchanging for tokens")

	tokens, err := authSvc.ExchangeCodeForTokens(ctx, result.Code, verifier)
	if err != nil {
		return nil, auth0.NewAuthenticationError(auth0.ErrCodeExchangeFailed, err)
	}

	if err = session.SaveTokens(ctx, tokens); err != nil {
		return nil, err
	}

	userInfo, err := authSvc.FetchUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("identity fetch failed: %w", err)
	}

	userProfile := profile.FromUserInfo(userInfo)
	if userProfile.Email == "" && tokens.IDToken != "" {
		if claims, errParse := auth0.ParseIDToken(tokens.IDToken); errParse == nil && claims != nil {
			userProfile.Email = claims.Email
		}
	}

	summary := &auth0.CredentialFile{
		Email:       userProfile.Email,
		Subject:     userProfile.Subject,
		Label:       userProfile.DisplayName,
		LastRefresh: time.Now().Format(time.RFC3339),
		Expire:      tokens.ExpiresAt.Format(time.RFC3339),
	}

	fmt.Printf("Signed in as %s\n", userProfile.DisplayName)

	return &Record{
		Provider: a.Provider(),
		FileName: "auth.json",
		Profile:  userProfile,
		Summary:  summary,
	}, nil
}

// waitForCallback waits for the loopback redirect, offering a manual
// paste-the-URL fallback after a grace period when a prompt is available.
func (a *Auth0Authenticator) waitForCallback(oauthServer *auth0.CallbackServer, opts *LoginOptions) (*auth0.CallbackResult, error) {
	callbackCh := make(chan *auth0.CallbackResult, 1)
	callbackErrCh := make(chan error, 1)

	go func() {
		result, errWait := oauthServer.WaitForCallback(5 * time.Minute)
		if errWait != nil {
			callbackErrCh <- errWait
			return
		}
		callbackCh <- result
	}()

	var manualPromptC <-chan time.Time
	if opts.Prompt != nil {
		manualPromptTimer := time.NewTimer(manualPromptDelay)
		manualPromptC = manualPromptTimer.C
		defer manualPromptTimer.Stop()
	}

	for {
		select {
		case result := <-callbackCh:
			return result, nil
		case err := <-callbackErrCh:
			if strings.Contains(err.Error(), "timeout") {
				return nil, auth0.NewAuthenticationError(auth0.ErrCallbackTimeout, err)
			}
			return nil, err
		case <-manualPromptC:
			manualPromptC = nil
			select {
			case result := <-callbackCh:
				return result, nil
			default:
			}
			input, errPrompt := opts.Prompt("Paste the callback URL (or press Enter to keep waiting): ")
			if errPrompt != nil {
				return nil, errPrompt
			}
			parsed, errParse := misc.ParseOAuthCallback(input)
			if errParse != nil {
				return nil, errParse
			}
			if parsed == nil {
				continue
			}
			return &auth0.CallbackResult{
				Code:             parsed.Code,
				State:            parsed.State,
				Error:            parsed.Error,
				ErrorDescription: parsed.ErrorDescription,
			}, nil
		}
	}
}

// Logout revokes the stored tokens best effort and clears all local auth
// state. Revocation failures are logged, never surfaced: logout always
// succeeds locally.
func (a *Auth0Authenticator) Logout(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("auth: configuration is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	authSvc := auth0.NewAuth0Auth(cfg)
	session := auth0.NewSession(a.vault, authSvc, cfg.LenientState)

	tokens, err := session.Tokens(ctx)
	if err != nil {
		log.Warnf("failed to load tokens for revocation: %v", err)
	}

	if tokens != nil {
		revokeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		g, gctx := errgroup.WithContext(revokeCtx)
		if tokens.RefreshToken != "" {
			refreshToken := tokens.RefreshToken
			g.Go(func() error {
				if errRevoke := authSvc.RevokeToken(gctx, refreshToken, "refresh_token"); errRevoke != nil {
					log.Warnf("refresh token revocation failed: %v", errRevoke)
				}
				return nil
			})
		}
		accessToken := tokens.AccessToken
		g.Go(func() error {
			if errRevoke := authSvc.RevokeToken(gctx, accessToken, "access_token"); errRevoke != nil {
				log.Warnf("access token revocation failed: %v", errRevoke)
			}
			return nil
		})
		_ = g.Wait()
	}

	if err = session.ClearAuthState(ctx); err != nil {
		return fmt.Errorf("failed to clear local auth state: %w", err)
	}

	if cfg.OpenLogoutPage {
		logoutURL := authSvc.LogoutURL()
		if errOpen := browser.OpenURL(logoutURL); errOpen != nil {
			log.Warnf("failed to open hosted logout page: %v", errOpen)
			fmt.Printf("Open this URL to clear the provider session:\n%s\n", logoutURL)
		}
	}

	return nil
}

package auth0

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vitalog-app/vitalog-cli/internal/store"
)

const (
	refreshMaxRetries        = 2
	defaultRefreshRetryDelay = 500 * time.Millisecond
)

// Session binds the Auth0 HTTP flow to the credential vault. It owns the
// in-flight PKCE state and the persisted token set, and drives token refresh
// when the access token has expired.
type Session struct {
	vault        *store.Vault
	auth         *Auth0Auth
	lenientState bool

	// retryDelay is the base backoff between refresh retries.
	retryDelay time.Duration
	now        func() time.Time
}

// NewSession creates a session over the given vault and Auth0 service.
func NewSession(vault *store.Vault, auth *Auth0Auth, lenientState bool) *Session {
	return &Session{
		vault:        vault,
		auth:         auth,
		lenientState: lenientState,
		retryDelay:   defaultRefreshRetryDelay,
		now:          time.Now,
	}
}

// StoreLoginState persists the PKCE verifier and CSRF state for an in-flight
// login. It must complete before the authorization URL is opened: the callback
// can arrive while the browser call is still returning.
func (s *Session) StoreLoginState(ctx context.Context, codeVerifier, state string) error {
	if err := s.vault.Set(ctx, store.KeyCodeVerifier, codeVerifier); err != nil {
		return fmt.Errorf("failed to store code verifier: %w", err)
	}
	if err := s.vault.Set(ctx, store.KeyState, state); err != nil {
		return fmt.Errorf("failed to store login state: %w", err)
	}
	return nil
}

// TakeVerifier validates the callback state against the stored state and
// returns the stored PKCE verifier. With strict matching (the default) a state
// mismatch fails the login; in lenient mode the mismatch is logged and the
// verifier is returned anyway. A missing verifier always fails: there is no
// login this callback could belong to.
func (s *Session) TakeVerifier(ctx context.Context, callbackState string) (string, error) {
	verifier, err := s.vault.Get(ctx, store.KeyCodeVerifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrMissingLoginState
		}
		return "", fmt.Errorf("failed to read code verifier: %w", err)
	}
	if verifier == "" {
		return "", ErrMissingLoginState
	}

	storedState, err := s.vault.Get(ctx, store.KeyState)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("failed to read login state: %w", err)
	}

	if storedState != callbackState {
		if !s.lenientState {
			return "", ErrInvalidState
		}
		log.Warn("OAuth state mismatch, proceeding because lenient-state is enabled")
	}

	return verifier, nil
}

// ClearLoginState removes the in-flight PKCE keys. The pair is single use:
// it is cleared after the code exchange whether the exchange succeeded or not.
func (s *Session) ClearLoginState(ctx context.Context) error {
	return s.vault.DeleteAll(ctx, store.PKCEKeys...)
}

// SaveTokens persists a token set, replacing whatever set was stored before.
// An empty reissued refresh token removes the stored one rather than leaving
// a stale credential behind.
func (s *Session) SaveTokens(ctx context.Context, tokens *TokenSet) error {
	if tokens == nil || tokens.AccessToken == "" {
		return fmt.Errorf("cannot save an empty token set")
	}
	if err := s.vault.Set(ctx, store.KeyAccessToken, tokens.AccessToken); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if err := s.vault.Set(ctx, store.KeyExpiresAt, strconv.FormatInt(tokens.ExpiresAt.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("failed to store token expiry: %w", err)
	}
	if tokens.IDToken != "" {
		if err := s.vault.Set(ctx, store.KeyIDToken, tokens.IDToken); err != nil {
			return fmt.Errorf("failed to store ID token: %w", err)
		}
	} else if err := s.vault.Delete(ctx, store.KeyIDToken); err != nil {
		return fmt.Errorf("failed to clear ID token: %w", err)
	}
	if tokens.RefreshToken != "" {
		if err := s.vault.Set(ctx, store.KeyRefreshToken, tokens.RefreshToken); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
	} else if err := s.vault.Delete(ctx, store.KeyRefreshToken); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	return nil
}

// Tokens loads the stored token set. It returns (nil, nil) when no token set
// is stored at all.
func (s *Session) Tokens(ctx context.Context) (*TokenSet, error) {
	accessToken, err := s.vault.Get(ctx, store.KeyAccessToken)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}
	if accessToken == "" {
		return nil, nil
	}

	tokens := &TokenSet{AccessToken: accessToken}
	if v, errGet := s.vault.Get(ctx, store.KeyIDToken); errGet == nil {
		tokens.IDToken = v
	}
	if v, errGet := s.vault.Get(ctx, store.KeyRefreshToken); errGet == nil {
		tokens.RefreshToken = v
	}
	if v, errGet := s.vault.Get(ctx, store.KeyExpiresAt); errGet == nil {
		millis, errParse := strconv.ParseInt(v, 10, 64)
		if errParse != nil {
			log.Warnf("stored token expiry %q is not a valid timestamp", v)
		} else {
			tokens.ExpiresAt = time.UnixMilli(millis)
		}
	}
	return tokens, nil
}

// ClearTokens removes the stored token set. Clearing an empty store succeeds.
func (s *Session) ClearTokens(ctx context.Context) error {
	return s.vault.DeleteAll(ctx, store.TokenKeys...)
}

// ClearAuthState removes both the token set and any in-flight login state.
func (s *Session) ClearAuthState(ctx context.Context) error {
	keys := append(append([]string{}, store.TokenKeys...), store.PKCEKeys...)
	return s.vault.DeleteAll(ctx, keys...)
}

// IsAuthenticated reports whether a valid session exists, refreshing the
// token set first when the stored access token has expired. Absent tokens
// answer false without touching the network.
func (s *Session) IsAuthenticated(ctx context.Context) (bool, error) {
	tokens, err := s.Tokens(ctx)
	if err != nil {
		return false, err
	}
	if tokens == nil {
		return false, nil
	}
	if !tokens.Expired(s.now()) {
		return true, nil
	}

	if _, err = s.RefreshTokens(ctx); err != nil {
		if errors.Is(err, ErrNoRefreshToken) || IsOAuthError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RefreshTokens redeems the stored refresh token for a fresh token set and
// persists it.
//
// Failure handling distinguishes rejection from unavailability. A provider
// 4xx means the refresh token is dead: the stored tokens are purged and the
// user must log in again. Network errors and provider 5xx are transient: the
// refresh is retried with backoff, and when retries run out the stored tokens
// are kept so a later attempt can still succeed.
func (s *Session) RefreshTokens(ctx context.Context) (*TokenSet, error) {
	refreshToken, err := s.vault.Get(ctx, store.KeyRefreshToken)
	if err != nil || refreshToken == "" {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to read refresh token: %w", err)
		}
		if errClear := s.ClearTokens(ctx); errClear != nil {
			log.Warnf("failed to clear tokens after missing refresh token: %v", errClear)
		}
		return nil, ErrNoRefreshToken
	}

	var lastErr error
	for attempt := 0; attempt <= refreshMaxRetries; attempt++ {
		if attempt > 0 {
			if err = s.sleepBeforeRetry(ctx, attempt); err != nil {
				return nil, err
			}
			log.WithField("attempt", attempt+1).Debug("retrying token refresh")
		}

		tokens, errRefresh := s.auth.RefreshTokens(ctx, refreshToken)
		if errRefresh == nil {
			// Auth0 only reissues the refresh token when rotation is
			// enabled; keep the current one otherwise.
			if tokens.RefreshToken == "" {
				tokens.RefreshToken = refreshToken
			}
			if errSave := s.SaveTokens(ctx, tokens); errSave != nil {
				return nil, errSave
			}
			return tokens, nil
		}

		var oauthErr *OAuthError
		if errors.As(errRefresh, &oauthErr) && oauthErr.StatusCode >= 400 && oauthErr.StatusCode < 500 {
			log.Warnf("refresh token rejected by provider: %v", errRefresh)
			if errClear := s.ClearTokens(ctx); errClear != nil {
				log.Warnf("failed to clear rejected tokens: %v", errClear)
			}
			return nil, errRefresh
		}

		lastErr = errRefresh
	}

	return nil, fmt.Errorf("token refresh failed after %d attempts: %w", refreshMaxRetries+1, lastErr)
}

// AccessToken returns a currently valid access token, refreshing first when
// the stored one has expired.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	tokens, err := s.Tokens(ctx)
	if err != nil {
		return "", err
	}
	if tokens == nil {
		return "", ErrNoRefreshToken
	}
	if !tokens.Expired(s.now()) {
		return tokens.AccessToken, nil
	}
	tokens, err = s.RefreshTokens(ctx)
	if err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

func (s *Session) sleepBeforeRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(attempt) * s.retryDelay
	delay += time.Duration(rand.Int63n(int64(s.retryDelay) / 2))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

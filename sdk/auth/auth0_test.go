package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vitalog-app/vitalog-cli/internal/auth/auth0"
	"github.com/vitalog-app/vitalog-cli/internal/config"
	"github.com/vitalog-app/vitalog-cli/internal/store"
)

func freeLoopbackPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving a loopback port: %v", err)
	}
	defer func() {
		_ = l.Close()
	}()
	return l.Addr().(*net.TCPAddr).Port
}

func loginTestConfig(serverURL string, port int) *config.Config {
	cfg := &config.Config{
		Provider: config.Provider{
			Domain:       "tenant.example.com",
			ClientID:     "client-123",
			TokenURL:     serverURL + "/oauth/token",
			UserinfoURL:  serverURL + "/userinfo",
			RevokeURL:    serverURL + "/oauth/revoke",
			CallbackPort: port,
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// deliverCallback waits until the login state reaches the vault, then hits the
// loopback callback endpoint the way the provider redirect would. The verifier
// and state are written before the callback server starts listening, so the
// state read below can only succeed once they are durable.
func deliverCallback(t *testing.T, vault *store.Vault, port int, query func(state string) url.Values) {
	t.Helper()
	ctx := context.Background()

	deadline := time.Now().Add(5 * time.Second)
	var state string
	for time.Now().Before(deadline) {
		if v, err := vault.Get(ctx, store.KeyState); err == nil && v != "" {
			state = v
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if state == "" {
		t.Error("login state never reached the vault")
		return
	}

	target := fmt.Sprintf("http://127.0.0.1:%d/auth/callback?%s", port, query(state).Encode())
	for time.Now().Before(deadline) {
		resp, err := http.Get(target)
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Errorf("callback was never accepted at %s", target)
}

func assertLoginStateCleared(t *testing.T, vault *store.Vault) {
	t.Helper()
	ctx := context.Background()
	for _, key := range store.PKCEKeys {
		if _, err := vault.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("%s still present after the login attempt ended (err=%v)", key, err)
		}
	}
}

func TestLoginPersistsTokensAndIdentity(t *testing.T) {
	t.Parallel()

	var gotTokenBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			if err := json.NewDecoder(r.Body).Decode(&gotTokenBody); err != nil {
				t.Errorf("failed to decode token request: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"AT1","refresh_token":"RT1","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"sub":"auth0|u1","email":"u@example.com","name":"User One"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	port := freeLoopbackPort(t)
	vault := store.NewVault(store.NewMemoryBackend())
	authenticator := NewAuth0Authenticator(vault)

	go deliverCallback(t, vault, port, func(state string) url.Values {
		return url.Values{"code": {"authcode-1"}, "state": {state}}
	})

	record, err := authenticator.Login(context.Background(), loginTestConfig(server.URL, port), &LoginOptions{NoBrowser: true})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if record.Provider != "auth0" || record.FileName != "auth.json" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Profile == nil || record.Profile.Subject != "auth0|u1" || record.Profile.Email != "u@example.com" {
		t.Fatalf("unexpected profile: %+v", record.Profile)
	}

	ctx := context.Background()
	if got, errGet := vault.Get(ctx, store.KeyAccessToken); errGet != nil || got != "AT1" {
		t.Fatalf("stored access token = %q, err %v", got, errGet)
	}
	if got, errGet := vault.Get(ctx, store.KeyRefreshToken); errGet != nil || got != "RT1" {
		t.Fatalf("stored refresh token = %q, err %v", got, errGet)
	}
	assertLoginStateCleared(t, vault)

	if gotTokenBody["code"] != "authcode-1" {
		t.Errorf("code = %q", gotTokenBody["code"])
	}
	if gotTokenBody["code_verifier"] == "" {
		t.Error("code_verifier missing from the exchange request")
	}
}

func TestLoginExchangeFailureDiscardsLoginState(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	}))
	defer server.Close()

	port := freeLoopbackPort(t)
	vault := store.NewVault(store.NewMemoryBackend())
	authenticator := NewAuth0Authenticator(vault)

	go deliverCallback(t, vault, port, func(state string) url.Values {
		return url.Values{"code": {"authcode-2"}, "state": {state}}
	})

	_, err := authenticator.Login(context.Background(), loginTestConfig(server.URL, port), &LoginOptions{NoBrowser: true})
	if err == nil {
		t.Fatal("expected error for rejected code exchange")
	}
	var authErr *auth0.AuthenticationError
	if !errors.As(err, &authErr) || authErr.Type != "code_exchange_failed" {
		t.Fatalf("error = %v, want code_exchange_failed", err)
	}
	assertLoginStateCleared(t, vault)
}

func TestLoginProviderDenialDiscardsLoginState(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	port := freeLoopbackPort(t)
	vault := store.NewVault(store.NewMemoryBackend())
	authenticator := NewAuth0Authenticator(vault)

	go deliverCallback(t, vault, port, func(state string) url.Values {
		return url.Values{
			"error":             {"access_denied"},
			"error_description": {"user cancelled the consent screen"},
			"state":             {state},
		}
	})

	_, err := authenticator.Login(context.Background(), loginTestConfig(server.URL, port), &LoginOptions{NoBrowser: true})
	if err == nil {
		t.Fatal("expected error for denied authorization")
	}
	if !auth0.IsUserCancellation(err) {
		t.Fatalf("error = %v, want user cancellation", err)
	}
	// The exchange never ran. The pair must still be gone.
	assertLoginStateCleared(t, vault)
}

func TestLoginStateMismatchDiscardsLoginState(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	port := freeLoopbackPort(t)
	vault := store.NewVault(store.NewMemoryBackend())
	authenticator := NewAuth0Authenticator(vault)

	go deliverCallback(t, vault, port, func(string) url.Values {
		return url.Values{"code": {"authcode-3"}, "state": {"forged-state"}}
	})

	_, err := authenticator.Login(context.Background(), loginTestConfig(server.URL, port), &LoginOptions{NoBrowser: true})
	if !errors.Is(err, auth0.ErrInvalidState) {
		t.Fatalf("error = %v, want invalid state", err)
	}
	assertLoginStateCleared(t, vault)
}

func TestLoginManualCallbackPaste(t *testing.T) {
	// Overrides manualPromptDelay, so it must not run alongside other logins.
	oldDelay := manualPromptDelay
	manualPromptDelay = 50 * time.Millisecond
	t.Cleanup(func() { manualPromptDelay = oldDelay })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"AT9","refresh_token":"RT9","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"sub":"auth0|u9","email":"nine@example.com"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	port := freeLoopbackPort(t)
	vault := store.NewVault(store.NewMemoryBackend())
	authenticator := NewAuth0Authenticator(vault)

	opts := &LoginOptions{
		NoBrowser: true,
		Prompt: func(string) (string, error) {
			state, err := vault.Get(context.Background(), store.KeyState)
			if err != nil {
				return "", fmt.Errorf("login state not stored before the prompt: %w", err)
			}
			return fmt.Sprintf("http://localhost:%d/auth/callback?code=authcode-9&state=%s", port, state), nil
		},
	}

	record, err := authenticator.Login(context.Background(), loginTestConfig(server.URL, port), opts)
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if record.Profile == nil || record.Profile.Subject != "auth0|u9" {
		t.Fatalf("unexpected profile: %+v", record.Profile)
	}
	if got, errGet := vault.Get(context.Background(), store.KeyAccessToken); errGet != nil || got != "AT9" {
		t.Fatalf("stored access token = %q, err %v", got, errGet)
	}
	assertLoginStateCleared(t, vault)
}

func TestLogoutRevokesAndClearsState(t *testing.T) {
	t.Parallel()

	var revocations atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/revoke" {
			revocations.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := context.Background()
	vault := store.NewVault(store.NewMemoryBackend())
	for key, value := range map[string]string{
		store.KeyAccessToken:  "AT1",
		store.KeyRefreshToken: "RT1",
		store.KeyExpiresAt:    fmt.Sprintf("%d", time.Now().Add(time.Hour).UnixMilli()),
	} {
		if err := vault.Set(ctx, key, value); err != nil {
			t.Fatalf("seeding %s: %v", key, err)
		}
	}

	authenticator := NewAuth0Authenticator(vault)
	if err := authenticator.Logout(ctx, loginTestConfig(server.URL, 0)); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	if got := revocations.Load(); got != 2 {
		t.Errorf("revocation calls = %d, want 2 (refresh and access token)", got)
	}
	for _, key := range store.TokenKeys {
		if _, err := vault.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("%s survived logout (err=%v)", key, err)
		}
	}
}

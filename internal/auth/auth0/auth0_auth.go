// Package auth0 implements the OAuth2 authorization-code flow with PKCE
// against an Auth0 tenant. It covers generating authorization URLs, exchanging
// authorization codes for tokens, refreshing and revoking tokens, and fetching
// the authenticated user's identity from the userinfo endpoint.
package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/vitalog-app/vitalog-cli/internal/config"
	"github.com/vitalog-app/vitalog-cli/internal/util"
)

// Endpoints holds the resolved URLs of the Auth0 tenant. Each endpoint can be
// overridden in the configuration for non-standard deployments.
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	UserinfoURL string
	RevokeURL   string
	LogoutURL   string
}

// ResolveEndpoints derives the tenant endpoint URLs from the provider
// configuration, honoring per-endpoint overrides.
func ResolveEndpoints(p *config.Provider) Endpoints {
	base := "https://" + strings.TrimSuffix(p.Domain, "/")
	pick := func(override, fallback string) string {
		if override != "" {
			return override
		}
		return fallback
	}
	return Endpoints{
		AuthURL:     pick(p.AuthURL, base+"/authorize"),
		TokenURL:    pick(p.TokenURL, base+"/oauth/token"),
		UserinfoURL: pick(p.UserinfoURL, base+"/userinfo"),
		RevokeURL:   pick(p.RevokeURL, base+"/oauth/revoke"),
		LogoutURL:   pick(p.LogoutURL, base+"/v2/logout"),
	}
}

// UserInfo is the identity payload returned by the userinfo endpoint.
type UserInfo struct {
	Sub      string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Picture  string `json:"picture"`
}

// Auth0Auth handles the HTTP side of the Auth0 OAuth2 flow.
type Auth0Auth struct {
	httpClient  *http.Client
	clientID    string
	audience    string
	scope       string
	redirectURI string
	endpoints   Endpoints
}

// NewAuth0Auth creates a new Auth0Auth service instance. The HTTP client
// honors the proxy settings from the provided configuration.
func NewAuth0Auth(cfg *config.Config) *Auth0Auth {
	return &Auth0Auth{
		httpClient:  util.SetProxy(cfg, &http.Client{Timeout: 30 * time.Second}),
		clientID:    cfg.Provider.ClientID,
		audience:    cfg.Provider.Audience,
		scope:       cfg.Provider.Scope(),
		redirectURI: fmt.Sprintf("http://localhost:%d/auth/callback", cfg.Provider.CallbackPort),
		endpoints:   ResolveEndpoints(&cfg.Provider),
	}
}

// RedirectURI returns the loopback redirect URI registered with the tenant.
func (a *Auth0Auth) RedirectURI() string {
	return a.redirectURI
}

// GenerateAuthURL creates the authorization URL with the PKCE challenge and
// CSRF state baked in.
func (a *Auth0Auth) GenerateAuthURL(state string, pkceCodes *PKCECodes) (string, error) {
	if pkceCodes == nil {
		return "", fmt.Errorf("PKCE codes are required")
	}

	params := url.Values{
		"client_id":             {a.clientID},
		"response_type":         {"code"},
		"redirect_uri":          {a.redirectURI},
		"scope":                 {a.scope},
		"state":                 {state},
		"code_challenge":        {pkceCodes.CodeChallenge},
		"code_challenge_method": {"S256"},
	}
	if a.audience != "" {
		params.Set("audience", a.audience)
	}

	return fmt.Sprintf("%s?%s", a.endpoints.AuthURL, params.Encode()), nil
}

// ExchangeCodeForTokens exchanges an authorization code for a token set.
// Auth0 accepts a JSON body on /oauth/token.
func (a *Auth0Auth) ExchangeCodeForTokens(ctx context.Context, code, codeVerifier string) (*TokenSet, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}
	if codeVerifier == "" {
		return nil, fmt.Errorf("code verifier is required for token exchange")
	}

	payload := map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     a.clientID,
		"code":          code,
		"redirect_uri":  a.redirectURI,
		"code_verifier": codeVerifier,
	}

	return a.requestTokens(ctx, payload)
}

// RefreshTokens obtains a fresh token set using a refresh token. The returned
// set carries whatever refresh token the tenant reissued, which may be empty
// when rotation is disabled.
func (a *Auth0Auth) RefreshTokens(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	payload := map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     a.clientID,
		"refresh_token": refreshToken,
	}

	return a.requestTokens(ctx, payload)
}

func (a *Auth0Auth) requestTokens(ctx context.Context, payload map[string]string) (*TokenSet, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoints.TokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newOAuthError(resp.StatusCode, respBody)
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		IDToken      string `json:"id_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err = json.Unmarshal(respBody, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response carried no access token")
	}

	return &TokenSet{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		IDToken:      tokenResp.IDToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

// RevokeToken invalidates a refresh or access token at the tenant. Revocation
// is best effort during logout: failures are reported but local credential
// removal proceeds regardless.
func (a *Auth0Auth) RevokeToken(ctx context.Context, token, tokenTypeHint string) error {
	if token == "" {
		return nil
	}

	payload := map[string]string{
		"client_id": a.clientID,
		"token":     token,
	}
	if tokenTypeHint != "" {
		payload["token_type_hint"] = tokenTypeHint
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode revocation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoints.RevokeURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revocation request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return newOAuthError(resp.StatusCode, respBody)
	}

	return nil
}

// FetchUserInfo retrieves the authenticated user's identity from the userinfo
// endpoint. Responses that are not valid JSON objects are rejected; Auth0
// gateways have been seen returning HTML error pages with a 200 status.
func (a *Auth0Auth) FetchUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	// oauth2.NewClient copies only the transport from the context client, so
	// the deadline has to be carried over or the call runs unbounded.
	client.Timeout = a.httpClient.Timeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoints.UserinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newOAuthError(resp.StatusCode, body)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '<' || !gjson.ValidBytes(trimmed) {
		log.Warnf("userinfo endpoint returned non-JSON payload (%d bytes)", len(body))
		return nil, fmt.Errorf("userinfo response is not valid JSON")
	}

	root := gjson.ParseBytes(trimmed)
	info := &UserInfo{
		Sub:      root.Get("sub").String(),
		Email:    root.Get("email").String(),
		Name:     root.Get("name").String(),
		Nickname: root.Get("nickname").String(),
		Picture:  root.Get("picture").String(),
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("userinfo response carried no subject")
	}

	return info, nil
}

// LogoutURL returns the hosted logout URL that clears the tenant session.
func (a *Auth0Auth) LogoutURL() string {
	params := url.Values{"client_id": {a.clientID}}
	return fmt.Sprintf("%s?%s", a.endpoints.LogoutURL, params.Encode())
}

// newOAuthError parses a failed provider response into an OAuthError,
// tolerating bodies that are not JSON.
func newOAuthError(statusCode int, body []byte) *OAuthError {
	oe := &OAuthError{
		StatusCode: statusCode,
		Body:       string(body),
	}
	if gjson.ValidBytes(body) {
		root := gjson.ParseBytes(body)
		oe.Code = root.Get("error").String()
		oe.Description = root.Get("error_description").String()
	}
	if oe.Code == "" {
		oe.Code = fmt.Sprintf("http_%d", statusCode)
	}
	return oe
}

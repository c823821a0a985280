// Package config provides configuration management for the Vitalog companion CLI.
// It handles loading and parsing YAML configuration files, and provides structured
// access to application settings including the identity provider, the credential
// directory, proxy configuration, and security knobs for the login flow.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCallbackPort is the loopback port used for the OAuth callback
// when the configuration does not override it. The redirect URI registered
// with the identity provider must use the same port.
const DefaultCallbackPort = 53123

// Provider describes the OAuth2 identity provider the CLI authenticates against.
// Endpoint URLs may be given explicitly; any left empty are derived from Domain
// using the Auth0 URL layout.
type Provider struct {
	// Domain is the provider tenant domain, e.g. "vitalog.eu.auth0.com".
	Domain string `yaml:"domain" json:"domain"`

	// ClientID is the OAuth2 client identifier registered for the CLI.
	ClientID string `yaml:"client-id" json:"client-id"`

	// Audience is the optional API audience requested with the authorization code.
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty"`

	// Scopes are the OAuth2 scopes requested at login. Defaults to
	// "openid profile email offline_access" when empty.
	Scopes []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`

	// CallbackPort is the loopback port for the OAuth redirect URI.
	CallbackPort int `yaml:"callback-port,omitempty" json:"callback-port,omitempty"`

	// AuthURL overrides the derived authorization endpoint.
	AuthURL string `yaml:"auth-url,omitempty" json:"auth-url,omitempty"`

	// TokenURL overrides the derived token endpoint.
	TokenURL string `yaml:"token-url,omitempty" json:"token-url,omitempty"`

	// UserinfoURL overrides the derived userinfo endpoint.
	UserinfoURL string `yaml:"userinfo-url,omitempty" json:"userinfo-url,omitempty"`

	// RevokeURL overrides the derived token revocation endpoint.
	RevokeURL string `yaml:"revoke-url,omitempty" json:"revoke-url,omitempty"`

	// LogoutURL overrides the derived hosted logout page URL.
	LogoutURL string `yaml:"logout-url,omitempty" json:"logout-url,omitempty"`
}

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Provider holds the identity provider settings.
	Provider Provider `yaml:"provider" json:"provider"`

	// AuthDir is the directory where credentials and auth state are persisted.
	AuthDir string `yaml:"auth-dir" json:"auth-dir"`

	// Debug enables verbose logging when true.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile redirects logs to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// ProxyURL is the URL of an optional proxy server for outbound requests.
	// Supports socks5://, http:// and https:// schemes.
	ProxyURL string `yaml:"proxy-url,omitempty" json:"proxy-url,omitempty"`

	// AllowInsecureFallback permits a time-seeded PKCE verifier when secure
	// randomness is unavailable. Off by default; a failed random read then
	// aborts the login attempt.
	AllowInsecureFallback bool `yaml:"allow-insecure-fallback,omitempty" json:"allow-insecure-fallback,omitempty"`

	// LenientState keeps the stored PKCE verifier usable when the callback
	// state does not match the stored state. Off by default; a mismatch then
	// fails the login. Enabling it logs every degraded exchange.
	LenientState bool `yaml:"lenient-state,omitempty" json:"lenient-state,omitempty"`

	// OpenLogoutPage opens the provider's hosted logout URL in the browser
	// after a local logout, clearing any provider session cookie.
	OpenLogoutPage bool `yaml:"open-logout-page,omitempty" json:"open-logout-page,omitempty"`
}

// LoadConfig reads and parses the configuration file at the given path.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadConfigOptional behaves like LoadConfig but tolerates a missing file when
// optional is true, returning a default-initialized configuration instead.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			cfg = &Config{}
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their default values.
func (c *Config) ApplyDefaults() {
	if len(c.Provider.Scopes) == 0 {
		c.Provider.Scopes = []string{"openid", "profile", "email", "offline_access"}
	}
	if c.Provider.CallbackPort <= 0 {
		c.Provider.CallbackPort = DefaultCallbackPort
	}
	if c.AuthDir == "" {
		c.AuthDir = "~/.vitalog"
	}
}

// Validate checks that the configuration carries everything a login needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider.ClientID) == "" {
		return fmt.Errorf("config: provider client-id is required")
	}
	if strings.TrimSpace(c.Provider.Domain) == "" && strings.TrimSpace(c.Provider.TokenURL) == "" {
		return fmt.Errorf("config: provider domain or explicit endpoint URLs are required")
	}
	return nil
}

// Scope returns the space-joined scope string for authorization requests.
func (p *Provider) Scope() string {
	return strings.Join(p.Scopes, " ")
}

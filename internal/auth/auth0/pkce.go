// Package auth0 implements the OAuth2 authorization-code flow with PKCE
// (Proof Key for Code Exchange, RFC 7636) against an Auth0-style identity
// provider. It covers authorization URL generation, the loopback callback
// server, token exchange and refresh, identity fetch, and revocation.
package auth0

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// PKCECodes holds a code verifier and its derived challenge for one login attempt.
// Pairs are single-use: they must be discarded after one token exchange attempt.
type PKCECodes struct {
	CodeVerifier  string
	CodeChallenge string
}

// GeneratePKCECodes generates a new PKCE pair. The verifier is 32 bytes of
// cryptographically secure randomness, base64url-encoded without padding; the
// challenge is the base64url-encoded SHA-256 digest of the verifier (S256).
//
// When secure randomness is unavailable the login fails unless
// allowInsecureFallback is set, in which case a loudly-logged time-seeded
// verifier is produced for offline/dev use.
func GeneratePKCECodes(allowInsecureFallback bool) (*PKCECodes, error) {
	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		if !allowInsecureFallback {
			return nil, fmt.Errorf("failed to generate code verifier: %w", err)
		}
		log.Warnf("secure randomness unavailable (%v); using time-seeded PKCE verifier because allow-insecure-fallback is set", err)
		codeVerifier = insecureFallbackVerifier()
	}

	return &PKCECodes{
		CodeVerifier:  codeVerifier,
		CodeChallenge: GenerateCodeChallenge(codeVerifier),
	}, nil
}

// generateCodeVerifier creates the high-entropy random string used to prove
// possession of the client that initiated the authorization request.
func generateCodeVerifier() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// GenerateCodeChallenge derives the S256 code challenge from a verifier.
// Pure and deterministic: the same verifier always yields the same challenge.
func GenerateCodeChallenge(codeVerifier string) string {
	hash := sha256.Sum256([]byte(codeVerifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// insecureFallbackVerifier derives a verifier from the clock and process id.
// Weak by construction; only reachable behind the allow-insecure-fallback flag.
func insecureFallbackVerifier() string {
	seed := fmt.Sprintf("%d-%d-%d", time.Now().UnixNano(), os.Getpid(), time.Now().Unix())
	hash := sha256.Sum256([]byte(seed))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

package auth0

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoRefreshToken reports a refresh attempt without a stored refresh token.
var ErrNoRefreshToken = errors.New("no refresh token available")

// OAuthError represents a provider-reported OAuth error. The raw response
// body is retained so callers can surface provider diagnostics.
type OAuthError struct {
	// Code is the OAuth error code (e.g. "access_denied", "invalid_grant").
	Code string `json:"error"`
	// Description is a human-readable description of the error.
	Description string `json:"error_description,omitempty"`
	// StatusCode is the HTTP status code associated with the error.
	StatusCode int `json:"-"`
	// Body is the raw provider response body, when the error came from an
	// HTTP exchange.
	Body string `json:"-"`
}

// Error returns a string representation of the OAuth error.
func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("oauth error: %s", e.Code)
}

// NewOAuthError creates an OAuth error with the given code, description, and status.
func NewOAuthError(code, description string, statusCode int) *OAuthError {
	return &OAuthError{Code: code, Description: description, StatusCode: statusCode}
}

// AuthenticationError represents a failure in the local authentication flow.
type AuthenticationError struct {
	// Type is the machine-readable error type.
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Code is the HTTP status code or exit code associated with the error.
	Code int `json:"code"`
	// Cause is the underlying error, when any.
	Cause error `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// Common authentication error types.
var (
	// ErrInvalidState reports a callback whose state does not match the stored state.
	ErrInvalidState = &AuthenticationError{
		Type:    "invalid_state",
		Message: "OAuth state parameter is invalid",
		Code:    http.StatusBadRequest,
	}

	// ErrMissingLoginState reports a callback with no stored PKCE verifier to redeem.
	ErrMissingLoginState = &AuthenticationError{
		Type:    "missing_login_state",
		Message: "No in-flight login state found for this callback",
		Code:    http.StatusBadRequest,
	}

	// ErrCodeExchangeFailed reports a failed authorization-code exchange.
	ErrCodeExchangeFailed = &AuthenticationError{
		Type:    "code_exchange_failed",
		Message: "Failed to exchange authorization code for tokens",
		Code:    http.StatusBadRequest,
	}

	// ErrServerStartFailed reports a callback server that could not start.
	ErrServerStartFailed = &AuthenticationError{
		Type:    "server_start_failed",
		Message: "Failed to start OAuth callback server",
		Code:    http.StatusInternalServerError,
	}

	// ErrPortInUse reports that the callback port is occupied.
	ErrPortInUse = &AuthenticationError{
		Type:    "port_in_use",
		Message: "OAuth callback port is already in use",
		Code:    13, // special exit code for port-in-use
	}

	// ErrCallbackTimeout reports that no callback arrived in time.
	ErrCallbackTimeout = &AuthenticationError{
		Type:    "callback_timeout",
		Message: "Timeout waiting for OAuth callback",
		Code:    http.StatusRequestTimeout,
	}
)

// NewAuthenticationError derives a concrete error from a base type with a cause.
func NewAuthenticationError(baseErr *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: baseErr.Message,
		Code:    baseErr.Code,
		Cause:   cause,
	}
}

// IsAuthenticationError checks if an error is an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authenticationError *AuthenticationError
	return errors.As(err, &authenticationError)
}

// IsOAuthError checks if an error is an OAuthError.
func IsOAuthError(err error) bool {
	var oAuthError *OAuthError
	return errors.As(err, &oAuthError)
}

// IsUserCancellation reports whether the error represents the user dismissing
// or denying the provider consent screen. Cancellation is a terminal non-error
// outcome for the caller: no retry, no error display beyond returning.
func IsUserCancellation(err error) bool {
	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		return false
	}
	return oauthErr.Code == "access_denied"
}

// GetUserFriendlyMessage returns a message suitable for terminal display.
func GetUserFriendlyMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoRefreshToken):
		return "Your session has ended. Please log in again."
	case IsAuthenticationError(err):
		var authErr *AuthenticationError
		errors.As(err, &authErr)
		switch authErr.Type {
		case "invalid_state":
			return "The login callback could not be verified. Please try again."
		case "missing_login_state":
			return "No login in progress was found for this callback. Please start the login again."
		case "port_in_use":
			return "The callback port is already in use. Close the application using it and try again."
		case "callback_timeout":
			return "Login timed out. Please try again."
		default:
			return "Login failed. Please try again."
		}
	case IsUserCancellation(err):
		return "Login was cancelled."
	case IsOAuthError(err):
		var oauthErr *OAuthError
		errors.As(err, &oauthErr)
		switch oauthErr.Code {
		case "invalid_request", "invalid_grant":
			return "The login request was rejected by the identity provider. Please try again."
		case "server_error":
			return "The identity provider reported an error. Please try again later."
		default:
			if oauthErr.Description != "" {
				return fmt.Sprintf("Login failed: %s", oauthErr.Description)
			}
			return fmt.Sprintf("Login failed: %s", oauthErr.Code)
		}
	default:
		return "An unexpected error occurred. Please try again."
	}
}

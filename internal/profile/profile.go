// Package profile projects provider identity claims into the application's
// user-profile shape. The projection is read-only with respect to the
// provider: domain fields the provider knows nothing about receive fixed
// first-time defaults that the application layer may overwrite later.
package profile

import (
	"strings"

	"github.com/google/uuid"

	"github.com/vitalog-app/vitalog-cli/internal/auth/auth0"
)

// First-time defaults for domain fields the identity provider cannot supply.
const (
	DefaultHeightCm      = 170.0
	DefaultWeightKg      = 70.0
	DefaultAge           = 30
	DefaultGoal          = "maintain"
	DefaultActivityLevel = "moderate"
)

// Profile is the application-side view of an authenticated user.
type Profile struct {
	// ID is a locally generated identifier for the profile record.
	ID string `json:"id"`
	// Subject is the provider subject identifier.
	Subject string `json:"subject"`
	// Email is the account email, when the provider shared it.
	Email string `json:"email,omitempty"`
	// DisplayName is the name shown in the UI.
	DisplayName string `json:"display_name"`
	// PictureURL points at the account avatar.
	PictureURL string `json:"picture_url,omitempty"`

	// Domain fields, defaulted for first-time users.
	HeightCm      float64 `json:"height_cm"`
	WeightKg      float64 `json:"weight_kg"`
	Age           int     `json:"age"`
	Goal          string  `json:"goal"`
	ActivityLevel string  `json:"activity_level"`
}

// FromUserInfo builds a first-time Profile from the provider identity.
// The display name falls back from name to nickname to the email local part.
func FromUserInfo(info *auth0.UserInfo) *Profile {
	if info == nil {
		return nil
	}
	return &Profile{
		ID:            uuid.NewString(),
		Subject:       info.Sub,
		Email:         info.Email,
		DisplayName:   displayName(info),
		PictureURL:    info.Picture,
		HeightCm:      DefaultHeightCm,
		WeightKg:      DefaultWeightKg,
		Age:           DefaultAge,
		Goal:          DefaultGoal,
		ActivityLevel: DefaultActivityLevel,
	}
}

func displayName(info *auth0.UserInfo) string {
	if info.Name != "" {
		return info.Name
	}
	if info.Nickname != "" {
		return info.Nickname
	}
	if info.Email != "" {
		if at := strings.IndexByte(info.Email, '@'); at > 0 {
			return info.Email[:at]
		}
		return info.Email
	}
	return "user"
}

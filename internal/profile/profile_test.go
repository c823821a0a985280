package profile

import (
	"testing"

	"github.com/vitalog-app/vitalog-cli/internal/auth/auth0"
)

func TestFromUserInfo(t *testing.T) {
	t.Parallel()

	info := &auth0.UserInfo{
		Sub:     "auth0|u1",
		Email:   "jane@example.com",
		Name:    "Jane Doe",
		Picture: "https://img.example.com/jane.png",
	}

	p := FromUserInfo(info)
	if p.Subject != "auth0|u1" || p.Email != "jane@example.com" {
		t.Fatalf("identity fields not mapped: %+v", p)
	}
	if p.DisplayName != "Jane Doe" {
		t.Errorf("display name = %q", p.DisplayName)
	}
	if p.ID == "" {
		t.Error("expected generated profile ID")
	}

	// First-time users get fixed defaults for the domain fields.
	if p.HeightCm != DefaultHeightCm || p.WeightKg != DefaultWeightKg || p.Age != DefaultAge {
		t.Errorf("body defaults not applied: %+v", p)
	}
	if p.Goal != DefaultGoal || p.ActivityLevel != DefaultActivityLevel {
		t.Errorf("goal defaults not applied: %+v", p)
	}
}

func TestFromUserInfoNil(t *testing.T) {
	t.Parallel()
	if p := FromUserInfo(nil); p != nil {
		t.Fatalf("expected nil, got %+v", p)
	}
}

func TestDisplayNameFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info auth0.UserInfo
		want string
	}{
		{"name wins", auth0.UserInfo{Name: "Jane", Nickname: "jd", Email: "j@example.com"}, "Jane"},
		{"nickname next", auth0.UserInfo{Nickname: "jd", Email: "j@example.com"}, "jd"},
		{"email local part", auth0.UserInfo{Email: "jane.doe@example.com"}, "jane.doe"},
		{"email without at", auth0.UserInfo{Email: "janedoe"}, "janedoe"},
		{"nothing", auth0.UserInfo{}, "user"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			info := tt.info
			if got := displayName(&info); got != tt.want {
				t.Fatalf("displayName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProfileIDsUnique(t *testing.T) {
	t.Parallel()

	info := &auth0.UserInfo{Sub: "auth0|u1"}
	a := FromUserInfo(info)
	b := FromUserInfo(info)
	if a.ID == b.ID {
		t.Fatalf("profile IDs should be unique, both %q", a.ID)
	}
}

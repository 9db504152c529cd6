// Package auth defines the authentication capability and routes it across
// redundant providers.
package auth

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrUserExists         = errors.New("user already exists")
)

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Language    string    `json:"language,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProfileUpdate lists the fields to change; nil fields are left as they are.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	Language    *string `json:"language,omitempty"`
}

// Provider is the authentication capability. Answers that are definitive
// (bad credentials, unknown session) must be marked resilience.Permanent so
// a dispatcher does not fail over on them.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (User, error)
	UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (User, error)
}

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrBlockedSession indicates that the session is blocked.
	ErrBlockedSession = errors.New("blocked session")
	// ErrMismatchedRefreshToken indicates mismatch between the given token and the session token.
	ErrMismatchedRefreshToken = errors.New("mismatched session token")
	// ErrInvalidUser indicates that the session is not related to the given domain.
	ErrInvalidUser = errors.New("incorrect session user")
	// ErrExpiredSession indicates that the expired session.
	ErrExpiredSession = errors.New("expired session")
	// ErrSessionNotFound indicates that the session is not found.
	ErrSessionNotFound = errors.New("Session not found")
	// ErrNotAuthenticated indicates that an operation needs a signed in identity.
	ErrNotAuthenticated = errors.New("User not authenticated")
)

// Session holds refresh session data for particular user.
type Session struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	RefreshToken string    `json:"refresh_token"`
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	IsBlocked    bool      `json:"is_blocked"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateSessionParams holds data nedeed for Session creation.
type CreateSessionParams struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	RefreshToken string    `json:"refresh_token"`
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	IsBlocked    bool      `json:"is_blocked"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Identity is the authenticated user context every client side data
// operation is scoped to.
type Identity struct {
	User                  UserWihtoutPassword `json:"user"`
	AccessToken           string              `json:"access_token"`
	AccessTokenExpiresAt  time.Time           `json:"access_token_expires_at"`
	RefreshToken          string              `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time           `json:"refresh_token_expires_at"`
}

// UserID returns the id of the identity owner.
func (i Identity) UserID() uuid.UUID {
	return i.User.ID
}

// file: model/token.go

package model

import "time"

// RefreshToken holds the data for a refresh token in the database.
type RefreshToken struct {
	Token     string    `json:"-"` // The opaque value is only ever sent as a cookie.
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the token is no longer usable at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

type TokenKind string

const (
	TokenKindVerify TokenKind = "verify"
	TokenKindReset  TokenKind = "reset"
)

// EphemeralToken is a single-use, short-lived token delivered by email.
type EphemeralToken struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	Kind      TokenKind `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *EphemeralToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

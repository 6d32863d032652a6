package service

import (
	"errors"
	"fmt"
	"go-auth-api/model"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidAccessToken covers every way an access token can fail: malformed,
// bad signature, wrong algorithm or issuer, expired.
var ErrInvalidAccessToken = errors.New("invalid access token")

// TokenCodec signs and verifies HS256 access tokens with an injected key.
type TokenCodec struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenCodec(secretKey []byte, issuer string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{key: secretKey, issuer: issuer, ttl: ttl, now: time.Now}
}

// TTL is the lifetime of newly signed tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

func (c *TokenCodec) Sign(userID string, role model.Role) (string, error) {
	now := c.now()
	claims := &model.AppClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}
	return tokenString, nil
}

// Verify returns the claims of a valid token. No claim is trusted before the
// signature has been checked.
func (c *TokenCodec) Verify(tokenString string) (*model.AppClaims, error) {
	claims := &model.AppClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	if claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

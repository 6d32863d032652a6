package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/repository"
	"time"
)

const refreshTokenBytes = 32

// RefreshTokenService manages opaque, store-backed refresh tokens.
type RefreshTokenService struct {
	repo repository.ITokenRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewRefreshTokenService(repo repository.ITokenRepository, ttl time.Duration) *RefreshTokenService {
	return &RefreshTokenService{repo: repo, ttl: ttl, now: time.Now}
}

// TTL is the lifetime of newly issued refresh tokens.
func (s *RefreshTokenService) TTL() time.Duration {
	return s.ttl
}

// Issue stores a new random token for userID and returns it.
func (s *RefreshTokenService) Issue(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	rt := &model.RefreshToken{
		Token:     hex.EncodeToString(buf),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.repo.Create(ctx, rt); err != nil {
		return "", err
	}
	return rt.Token, nil
}

// Validate returns the owner of a live token. An expired token is deleted on
// the spot and reported as not ok.
func (s *RefreshTokenService) Validate(ctx context.Context, token string) (string, bool, error) {
	rt, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	if rt.Expired(s.now()) {
		logger.Log.WithField("user_id", rt.UserID).Info("Refresh token expired, removing it")
		if _, err := s.repo.Delete(ctx, token); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return rt.UserID, true, nil
}

// Revoke deletes the token. Unknown tokens are not an error.
func (s *RefreshTokenService) Revoke(ctx context.Context, token string) error {
	_, err := s.repo.Delete(ctx, token)
	return err
}

func (s *RefreshTokenService) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/repository"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrTokenNotFound is returned by Resolve for absent, expired or
// wrong-kind tokens.
var ErrTokenNotFound = errors.New("token not found")

// EphemeralTokenService issues and resolves single-use verify and reset tokens.
type EphemeralTokenService struct {
	repo      repository.IEphemeralTokenRepository
	otpLength int
	now       func() time.Time
}

func NewEphemeralTokenService(repo repository.IEphemeralTokenRepository, otpLength int) *EphemeralTokenService {
	return &EphemeralTokenService{repo: repo, otpLength: otpLength, now: time.Now}
}

// issueAttempts bounds the redraws when a generated value is already held by
// another user's token.
const issueAttempts = 5

// Issue replaces any outstanding token of the same kind for userID with a new
// one valid for ttl.
func (s *EphemeralTokenService) Issue(ctx context.Context, userID string, kind model.TokenKind, ttl time.Duration) (string, error) {
	if kind != model.TokenKindVerify && kind != model.TokenKindReset {
		return "", fmt.Errorf("unknown token kind %q", kind)
	}

	removed, err := s.repo.DeleteByUserAndKind(ctx, userID, kind)
	if err != nil {
		return "", err
	}
	if removed > 0 {
		logger.Log.WithFields(logrus.Fields{
			"user_id": userID,
			"kind":    kind,
			"removed": removed,
		}).Info("Invalidated outstanding tokens before reissue")
	}

	for attempt := 1; ; attempt++ {
		value, err := s.generate(kind)
		if err != nil {
			return "", err
		}

		token := &model.EphemeralToken{
			Token:     value,
			UserID:    userID,
			Kind:      kind,
			ExpiresAt: s.now().Add(ttl),
		}
		err = s.repo.Create(ctx, token)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, repository.ErrDuplicateToken) || attempt == issueAttempts {
			return "", err
		}
	}
}

func (s *EphemeralTokenService) generate(kind model.TokenKind) (string, error) {
	if kind == model.TokenKindVerify {
		return generateOTP(s.otpLength)
	}
	return uuid.NewString(), nil
}

// Resolve returns the owner of a live token of the given kind. It does not
// consume the token; an expired token is deleted.
func (s *EphemeralTokenService) Resolve(ctx context.Context, token string, kind model.TokenKind) (*model.UserProfile, error) {
	t, user, err := s.repo.GetWithUser(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	if t.Expired(s.now()) {
		logger.Log.WithFields(logrus.Fields{"user_id": t.UserID, "kind": t.Kind}).Info("Token expired, removing it")
		if _, err := s.repo.Delete(ctx, token); err != nil {
			return nil, err
		}
		return nil, ErrTokenNotFound
	}
	if t.Kind != kind {
		return nil, ErrTokenNotFound
	}
	return user, nil
}

// Consume deletes the token and reports whether this call was the one that
// removed it.
func (s *EphemeralTokenService) Consume(ctx context.Context, token string) (bool, error) {
	return s.repo.Delete(ctx, token)
}

func (s *EphemeralTokenService) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

// generateOTP returns a uniformly random numeric code of the given length.
func generateOTP(length int) (string, error) {
	digits := make([]byte, length)
	ten := big.NewInt(10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

package service

import (
	"context"
	"go-auth-api/model"
	"go-auth-api/repository"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTP(t *testing.T) {
	for _, n := range []int{6, 8, 12} {
		otp, err := generateOTP(n)
		require.NoError(t, err)
		assert.Len(t, otp, n)
		assert.Regexp(t, `^[0-9]+$`, otp)
	}
}

func TestEphemeralTokenService_Issue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("verify token is a numeric code", func(t *testing.T) {
		repo := new(mockEphemeralRepo)
		svc := NewEphemeralTokenService(repo, 8)
		svc.now = func() time.Time { return now }

		repo.On("DeleteByUserAndKind", ctx, "u1", model.TokenKindVerify).Return(int64(1), nil).Once()
		repo.On("Create", ctx, mock.MatchedBy(func(tok *model.EphemeralToken) bool {
			return tok.UserID == "u1" && tok.Kind == model.TokenKindVerify && tok.ExpiresAt.Equal(now.Add(15*time.Minute))
		})).Return(nil).Once()

		tok, err := svc.Issue(ctx, "u1", model.TokenKindVerify, 15*time.Minute)
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9]{8}$`, tok)
		repo.AssertExpectations(t)
	})

	t.Run("reset token is a uuid", func(t *testing.T) {
		repo := new(mockEphemeralRepo)
		svc := NewEphemeralTokenService(repo, 8)

		repo.On("DeleteByUserAndKind", ctx, "u1", model.TokenKindReset).Return(int64(0), nil).Once()
		repo.On("Create", ctx, mock.Anything).Return(nil).Once()

		tok, err := svc.Issue(ctx, "u1", model.TokenKindReset, 15*time.Minute)
		require.NoError(t, err)
		_, err = uuid.Parse(tok)
		assert.NoError(t, err)
	})

	t.Run("colliding code is redrawn", func(t *testing.T) {
		repo := new(mockEphemeralRepo)
		svc := NewEphemeralTokenService(repo, 8)

		repo.On("DeleteByUserAndKind", ctx, "u1", model.TokenKindVerify).Return(int64(0), nil).Once()
		repo.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicateToken).Once()
		repo.On("Create", ctx, mock.Anything).Return(nil).Once()

		tok, err := svc.Issue(ctx, "u1", model.TokenKindVerify, 15*time.Minute)
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9]{8}$`, tok)
		repo.AssertNumberOfCalls(t, "Create", 2)
		repo.AssertNumberOfCalls(t, "DeleteByUserAndKind", 1)
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		repo := new(mockEphemeralRepo)
		svc := NewEphemeralTokenService(repo, 8)

		repo.On("DeleteByUserAndKind", ctx, "u1", model.TokenKindVerify).Return(int64(0), nil).Once()
		repo.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicateToken)

		_, err := svc.Issue(ctx, "u1", model.TokenKindVerify, 15*time.Minute)
		assert.ErrorIs(t, err, repository.ErrDuplicateToken)
		repo.AssertNumberOfCalls(t, "Create", issueAttempts)
	})

	t.Run("unknown kind", func(t *testing.T) {
		repo := new(mockEphemeralRepo)
		svc := NewEphemeralTokenService(repo, 8)

		_, err := svc.Issue(ctx, "u1", model.TokenKind("magic"), time.Minute)
		assert.Error(t, err)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestEphemeralTokenService_Resolve(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	profile := &model.UserProfile{ID: "u1", Email: "a@b.c"}

	t.Run("live token", func(t *testing.T) {
		repo := new(mockEphemeralRepo)
		svc := NewEphemeralTokenService(repo, 8)
		svc.now = func() time.Time { return now }
		tok := &model.EphemeralToken{Token: "12345678", UserID: "u1", Kind: model.TokenKindVerify, ExpiresAt: now.Add(time.Minute)}
		repo.On("GetWithUser", ctx, "12345678").Return(tok, profile, nil).Once()

		user, err := svc.Resolve(ctx, "12345678", model.TokenKindVerify)
		require.NoError(t, err)
		assert.Equal(t, profile, user)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("absent", func(t *testing.T) {
		repo := new(mockEphemeralRepo)
		svc := NewEphemeralTokenService(repo, 8)
		repo.On("GetWithUser", ctx, "missing").Return(nil, nil, repository.ErrNotFound).Once()

		_, err := svc.Resolve(ctx, "missing", model.TokenKindVerify)
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("expired token is removed", func(t *testing.T) {
		repo := new(mockEphemeralRepo)
		svc := NewEphemeralTokenService(repo, 8)
		svc.now = func() time.Time { return now }
		tok := &model.EphemeralToken{Token: "old", UserID: "u1", Kind: model.TokenKindReset, ExpiresAt: now.Add(-time.Second)}
		repo.On("GetWithUser", ctx, "old").Return(tok, profile, nil).Once()
		repo.On("Delete", ctx, "old").Return(true, nil).Once()

		_, err := svc.Resolve(ctx, "old", model.TokenKindReset)
		assert.ErrorIs(t, err, ErrTokenNotFound)
		repo.AssertExpectations(t)
	})

	t.Run("wrong kind", func(t *testing.T) {
		repo := new(mockEphemeralRepo)
		svc := NewEphemeralTokenService(repo, 8)
		svc.now = func() time.Time { return now }
		tok := &model.EphemeralToken{Token: "r", UserID: "u1", Kind: model.TokenKindReset, ExpiresAt: now.Add(time.Minute)}
		repo.On("GetWithUser", ctx, "r").Return(tok, profile, nil).Once()

		_, err := svc.Resolve(ctx, "r", model.TokenKindVerify)
		assert.ErrorIs(t, err, ErrTokenNotFound)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestEphemeralTokenService_ConsumeAtMostOnce(t *testing.T) {
	ctx := context.Background()
	repo := new(mockEphemeralRepo)
	svc := NewEphemeralTokenService(repo, 8)
	repo.On("Delete", ctx, "tok").Return(true, nil).Once()
	repo.On("Delete", ctx, "tok").Return(false, nil).Once()

	first, err := svc.Consume(ctx, "tok")
	require.NoError(t, err)
	second, err := svc.Consume(ctx, "tok")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

// file: repository/ephemeral_token_repository.go

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-auth-api/logger"
	"go-auth-api/model"
	"time"

	"github.com/sirupsen/logrus"
)

// IEphemeralTokenRepository stores single-use verification and reset tokens.
type IEphemeralTokenRepository interface {
	Create(ctx context.Context, token *model.EphemeralToken) error
	GetWithUser(ctx context.Context, token string) (*model.EphemeralToken, *model.UserProfile, error)
	Delete(ctx context.Context, token string) (bool, error)
	DeleteByUserAndKind(ctx context.Context, userID string, kind model.TokenKind) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type EphemeralTokenRepository struct {
	DB *sql.DB
}

func NewEphemeralTokenRepository(db *sql.DB) *EphemeralTokenRepository {
	return &EphemeralTokenRepository{DB: db}
}

func (r *EphemeralTokenRepository) Create(ctx context.Context, token *model.EphemeralToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    token.UserID,
		"kind":       token.Kind,
		"expires_at": token.ExpiresAt,
	})
	log.Info("Executing query to create a new token")

	query := `INSERT INTO tokens (token, user_id, kind, expires_at) VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query, token.Token, token.UserID, string(token.Kind), token.ExpiresAt).
		Scan(&token.CreatedAt, &token.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn("Token value collides with an outstanding token")
			return ErrDuplicateToken
		}
		log.WithError(err).Error("Failed to execute create token query")
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

// GetWithUser looks a token up together with the profile of its owner.
func (r *EphemeralTokenRepository) GetWithUser(ctx context.Context, token string) (*model.EphemeralToken, *model.UserProfile, error) {
	t := &model.EphemeralToken{}
	u := &model.UserProfile{}
	query := `
		SELECT t.token, t.user_id, t.kind, t.expires_at, t.created_at, t.updated_at,
		       u.id, u.name, u.email, u.role, u.verified, u.created_at, u.updated_at
		FROM tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token = $1`
	err := r.DB.QueryRowContext(ctx, query, token).Scan(
		&t.Token, &t.UserID, &t.Kind, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt,
		&u.ID, &u.Name, &u.Email, &u.Role, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute get token with user query")
		return nil, nil, fmt.Errorf("get token: %w", err)
	}
	return t, u, nil
}

// Delete removes the token and reports whether this call removed it. Callers
// rely on the boolean for at-most-once consumption.
func (r *EphemeralTokenRepository) Delete(ctx context.Context, token string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tokens WHERE token = $1`, token)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute delete token query")
		return false, fmt.Errorf("delete token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete token rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *EphemeralTokenRepository) DeleteByUserAndKind(ctx context.Context, userID string, kind model.TokenKind) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = $1 AND kind = $2`, userID, string(kind))
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("Failed to execute delete tokens by user query")
		return 0, fmt.Errorf("delete tokens by user: %w", err)
	}
	return res.RowsAffected()
}

func (r *EphemeralTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at <= $1`, now)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute delete expired tokens query")
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"go-auth-api/model"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)
	now := time.Now()
	expires := now.Add(30 * 24 * time.Hour)

	mock.ExpectQuery(`INSERT INTO refresh_tokens \(token, user_id, expires_at\)`).
		WithArgs("tok123", "u-1", expires).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	rt := &model.RefreshToken{Token: "tok123", UserID: "u-1", ExpiresAt: expires}
	require.NoError(t, repo.Create(context.Background(), rt))
	assert.Equal(t, now, rt.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_GetByToken(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTokenRepository(db)
		now := time.Now()

		mock.ExpectQuery(`FROM refresh_tokens WHERE token = \$1`).
			WithArgs("tok123").
			WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "expires_at", "created_at", "updated_at"}).
				AddRow("tok123", "u-1", now.Add(time.Hour), now, now))

		rt, err := repo.GetByToken(ctx, "tok123")
		require.NoError(t, err)
		assert.Equal(t, "u-1", rt.UserID)
		assert.False(t, rt.Expired(now))
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTokenRepository(db)

		mock.ExpectQuery(`FROM refresh_tokens WHERE token = \$1`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByToken(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTokenRepository(db)

		mock.ExpectQuery(`FROM refresh_tokens`).WillReturnError(errors.New("db err"))

		_, err := repo.GetByToken(ctx, "tok123")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestTokenRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("existing token", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTokenRepository(db)

		mock.ExpectExec(`DELETE FROM refresh_tokens WHERE token = \$1`).WithArgs("tok123").WillReturnResult(sqlmock.NewResult(0, 1))

		deleted, err := repo.Delete(ctx, "tok123")
		require.NoError(t, err)
		assert.True(t, deleted)
	})

	t.Run("unknown token is not an error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTokenRepository(db)

		mock.ExpectExec(`DELETE FROM refresh_tokens WHERE token = \$1`).WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))

		deleted, err := repo.Delete(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)
	now := time.Now()

	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at <= \$1`).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

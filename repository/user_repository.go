package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-auth-api/logger"
	"go-auth-api/model"

	"github.com/sirupsen/logrus"
)

// IUserRepository defines the contract for user credential storage.
type IUserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.UserProfile, error)
	SetVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// CreateUser inserts a new unverified user and fills in the generated columns.
// A clash on the email unique index is reported as ErrDuplicateEmail.
func (r *UserRepository) CreateUser(ctx context.Context, user *model.User) error {
	log := logger.Log.WithField("email", user.Email)
	log.Info("Executing query to create a new user")

	query := `INSERT INTO users (name, email, password) VALUES ($1, $2, $3)
		RETURNING id, role, verified, created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query, user.Name, user.Email, user.Password).
		Scan(&user.ID, &user.Role, &user.Verified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			log.Info("Email already registered")
			return ErrDuplicateEmail
		}
		log.WithError(err).Error("Failed to execute create user query")
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the full row, password hash included. It is only
// meant for the login and password-reset paths.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT id, name, email, password, role, verified, created_at, updated_at FROM users WHERE email = $1`
	err := r.DB.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Name, &user.Email, &user.Password, &user.Role, &user.Verified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute get user by email query")
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*model.UserProfile, error) {
	profile := &model.UserProfile{}
	query := `SELECT id, name, email, role, verified, created_at, updated_at FROM users WHERE id = $1`
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&profile.ID, &profile.Name, &profile.Email, &profile.Role, &profile.Verified, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).WithField("user_id", id).Error("Failed to execute get user by id query")
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return profile, nil
}

func (r *UserRepository) SetVerified(ctx context.Context, id string) error {
	log := logger.Log.WithField("user_id", id)
	log.Info("Executing query to mark user as verified")

	query := `UPDATE users SET verified = TRUE, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, log, query, id)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	log := logger.Log.WithField("user_id", id)
	log.Info("Executing query to update user password")

	query := `UPDATE users SET password = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, log, query, id, passwordHash)
}

// execOne runs an UPDATE that must touch exactly one user row.
func (r *UserRepository) execOne(ctx context.Context, log *logrus.Entry, query string, args ...interface{}) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Error("Failed to execute user update query")
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

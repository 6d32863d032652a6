package service

import (
	"context"
	"errors"
	"fmt"
	"go-auth-api/logger"
	"go-auth-api/metrics"
	"go-auth-api/model"
	"go-auth-api/repository"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUserExists           = errors.New("user already exists")
	ErrInvalidCredentials   = errors.New("invalid login credentials")
	ErrVerificationRequired = errors.New("email verification required")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrRefreshTokenRequired = errors.New("refresh token required")
	ErrUserNotFound         = errors.New("user not found")
)

// AuthConfig carries the settings the protocols need beyond their collaborators.
type AuthConfig struct {
	// EphemeralTTL is how long verification codes and reset links stay valid.
	EphemeralTTL time.Duration
	// AppURL is the frontend base URL reset links point to.
	AppURL string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"-"`
}

// AuthService implements the registration, verification, login, refresh and
// password reset protocols. It keeps no state between calls.
type AuthService struct {
	users     repository.IUserRepository
	hasher    *PasswordHasher
	codec     *TokenCodec
	refresh   *RefreshTokenService
	ephemeral *EphemeralTokenService
	notifier  Notifier
	cache     *ProfileCache
	cfg       AuthConfig
}

func NewAuthService(
	users repository.IUserRepository,
	hasher *PasswordHasher,
	codec *TokenCodec,
	refresh *RefreshTokenService,
	ephemeral *EphemeralTokenService,
	notifier Notifier,
	cache *ProfileCache,
	cfg AuthConfig,
) *AuthService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		codec:     codec,
		refresh:   refresh,
		ephemeral: ephemeral,
		notifier:  notifier,
		cache:     cache,
		cfg:       cfg,
	}
}

// RefreshTTL is the lifetime of refresh tokens handed out by Login.
func (s *AuthService) RefreshTTL() time.Duration {
	return s.refresh.TTL()
}

// Register creates an unverified user. It neither logs the user in nor sends
// a verification code; that happens on the first login attempt.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*model.UserProfile, error) {
	log := logger.Log.WithField("email", email)

	_, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		metrics.AuthRegistrationsTotal.WithLabelValues("conflict").Inc()
		return nil, ErrUserExists
	case !errors.Is(err, repository.ErrNotFound):
		metrics.AuthRegistrationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		metrics.AuthRegistrationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	user := &model.User{Name: name, Email: email, Password: digest}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			metrics.AuthRegistrationsTotal.WithLabelValues("conflict").Inc()
			return nil, ErrUserExists
		}
		metrics.AuthRegistrationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.AuthRegistrationsTotal.WithLabelValues("success").Inc()
	log.WithField("user_id", user.ID).Info("User registered")
	return user.Profile(), nil
}

// Login checks the password and, for a verified user, issues an access and a
// refresh token. An unverified user gets a fresh verification code instead
// and ErrVerificationRequired.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.EqualizeTiming(password)
			metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		metrics.AuthLoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	ok, err := s.hasher.Verify(user.Password, password)
	if err != nil {
		metrics.AuthLoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("verify password of user %s: %w", user.ID, err)
	}
	if !ok {
		metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	log := logger.Log.WithField("user_id", user.ID)

	if !user.Verified {
		code, err := s.ephemeral.Issue(ctx, user.ID, model.TokenKindVerify, s.cfg.EphemeralTTL)
		if err != nil {
			metrics.TokensIssuedTotal.WithLabelValues("verify", "error").Inc()
			metrics.AuthLoginsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.TokensIssuedTotal.WithLabelValues("verify", "success").Inc()

		if err := s.notifier.SendVerification(ctx, user.Email, user.Name, code); err != nil {
			log.WithError(err).Error("Failed to send verification email")
		}
		metrics.AuthLoginsTotal.WithLabelValues("verification_required").Inc()
		return nil, ErrVerificationRequired
	}

	accessToken, err := s.codec.Sign(user.ID, user.Role)
	if err != nil {
		metrics.AuthLoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	refreshToken, err := s.refresh.Issue(ctx, user.ID)
	if err != nil {
		metrics.TokensIssuedTotal.WithLabelValues("login", "error").Inc()
		metrics.AuthLoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.TokensIssuedTotal.WithLabelValues("login", "success").Inc()
	metrics.AuthLoginsTotal.WithLabelValues("success").Inc()
	log.Info("User logged in")
	return &LoginResult{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// VerifyEmail marks the owner of a live verification code as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.redeem(ctx, token, model.TokenKindVerify)
	if err != nil {
		return err
	}

	if err := s.users.SetVerified(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	s.cache.Invalidate(ctx, user.ID)

	logger.Log.WithField("user_id", user.ID).Info("Email verified")
	return nil
}

// ForgotPassword mails a password reset link to a registered address.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}

	token, err := s.ephemeral.Issue(ctx, user.ID, model.TokenKindReset, s.cfg.EphemeralTTL)
	if err != nil {
		metrics.TokensIssuedTotal.WithLabelValues("reset", "error").Inc()
		return err
	}
	metrics.TokensIssuedTotal.WithLabelValues("reset", "success").Inc()

	log := logger.Log.WithField("user_id", user.ID)
	if err := s.notifier.SendPasswordReset(ctx, user.Email, user.Name, s.resetLink(token)); err != nil {
		log.WithError(err).Error("Failed to send password reset email")
	}
	log.Info("Password reset requested")
	return nil
}

// ResetPassword replaces the password of the owner of a live reset token.
// Existing sessions stay valid.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.ephemeral.Resolve(ctx, token, model.TokenKindReset)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			metrics.TokensConsumedTotal.WithLabelValues(string(model.TokenKindReset), "invalid").Inc()
			return ErrInvalidToken
		}
		return err
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.consume(ctx, token, model.TokenKindReset); err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, digest); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	s.cache.Invalidate(ctx, user.ID)

	logger.Log.WithField("user_id", user.ID).Info("Password reset")
	return nil
}

// Refresh mints a new access token for the owner of a live refresh token. The
// refresh token itself is left in place.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrInvalidRefreshToken
	}

	userID, ok, err := s.refresh.Validate(ctx, refreshToken)
	if err != nil {
		metrics.TokensIssuedTotal.WithLabelValues("refresh", "error").Inc()
		return "", err
	}
	if !ok {
		metrics.TokensIssuedTotal.WithLabelValues("refresh", "invalid").Inc()
		return "", ErrInvalidRefreshToken
	}

	profile, err := s.profile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", err
	}

	accessToken, err := s.codec.Sign(profile.ID, profile.Role)
	if err != nil {
		metrics.TokensIssuedTotal.WithLabelValues("refresh", "error").Inc()
		return "", err
	}
	metrics.TokensIssuedTotal.WithLabelValues("refresh", "success").Inc()
	return accessToken, nil
}

// Logout revokes the refresh token. Revoking an unknown token succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrRefreshTokenRequired
	}
	return s.refresh.Revoke(ctx, refreshToken)
}

// Me returns the profile of the user identified by a verified access token.
// It always reads the store; a cached profile may outlive the account.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.UserProfile, error) {
	return s.lookup(ctx, userID)
}

// profile serves Refresh. A live refresh token implies the user row exists,
// so a cached profile is trusted there.
func (s *AuthService) profile(ctx context.Context, userID string) (*model.UserProfile, error) {
	if cached := s.cache.Get(ctx, userID); cached != nil {
		return cached, nil
	}
	return s.lookup(ctx, userID)
}

func (s *AuthService) lookup(ctx context.Context, userID string) (*model.UserProfile, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrUserNotFound
	}

	profile, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.cache.Set(ctx, profile)
	return profile, nil
}

// redeem resolves a token and consumes it in one step.
func (s *AuthService) redeem(ctx context.Context, token string, kind model.TokenKind) (*model.UserProfile, error) {
	user, err := s.ephemeral.Resolve(ctx, token, kind)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			metrics.TokensConsumedTotal.WithLabelValues(string(kind), "invalid").Inc()
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if err := s.consume(ctx, token, kind); err != nil {
		return nil, err
	}
	return user, nil
}

// consume deletes the token and fails with ErrInvalidToken when another
// request removed it first.
func (s *AuthService) consume(ctx context.Context, token string, kind model.TokenKind) error {
	removed, err := s.ephemeral.Consume(ctx, token)
	if err != nil {
		return err
	}
	if !removed {
		logger.Log.WithFields(logrus.Fields{"kind": kind}).Warn("Token was consumed concurrently")
		metrics.TokensConsumedTotal.WithLabelValues(string(kind), "race_lost").Inc()
		return ErrInvalidToken
	}
	metrics.TokensConsumedTotal.WithLabelValues(string(kind), "success").Inc()
	return nil
}

func (s *AuthService) resetLink(token string) string {
	return strings.TrimRight(s.cfg.AppURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

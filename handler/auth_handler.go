package handler

import (
	"context"
	"errors"
	"go-auth-api/common"
	"go-auth-api/model"
	"go-auth-api/service"
	"net/http"
	"time"
)

const refreshCookieName = "refreshToken"

// Authenticator is the protocol surface the auth endpoints drive.
type Authenticator interface {
	Register(ctx context.Context, name, email, password string) (*model.UserProfile, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID string) (*model.UserProfile, error)
	RefreshTTL() time.Duration
}

type AuthHandler struct {
	auth          Authenticator
	secureCookies bool
}

func NewAuthHandler(auth Authenticator, secureCookies bool) *AuthHandler {
	return &AuthHandler{auth: auth, secureCookies: secureCookies}
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates an unverified account. The verification code is sent on the first login attempt.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        user  body      model.RegisterRequest  true  "User registration info"
// @Success      201   {object}  common.Response
// @Failure      400   {object}  common.AppError
// @Failure      409   {object}  common.AppError
// @Failure      500   {object}  common.AppError
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if _, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		return mapAuthError(err, "Failed to register user. Please try again!")
	}

	common.WriteJSON(w, http.StatusCreated,
		common.NewResponse(http.StatusCreated, "Registration successful. Please login to continue!"))
	return nil
}

// Login godoc
// @Summary      Log in
// @Description  Returns an access token and sets the refresh token cookie. Unverified accounts receive a verification code by email and a 403.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        credentials  body      model.LoginRequest  true  "User credentials"
// @Success      200          {object}  common.Response
// @Failure      400          {object}  common.AppError
// @Failure      403          {object}  common.AppError
// @Failure      500          {object}  common.AppError
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(err, "Failed to login user. Please try again!")
	}

	h.setRefreshCookie(w, res.RefreshToken)
	resp := common.NewResponse(http.StatusOK, "Login successful.")
	resp.AccessToken = res.AccessToken
	common.WriteJSON(w, http.StatusOK, resp)
	return nil
}

// Refresh godoc
// @Summary      Refresh the access token
// @Description  Mints a new access token from the refresh token cookie. The refresh token is not rotated.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  common.Response
// @Failure      401  {object}  common.AppError
// @Failure      500  {object}  common.AppError
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) *common.AppError {
	accessToken, err := h.auth.Refresh(r.Context(), refreshCookie(r))
	if err != nil {
		return mapAuthError(err, "Failed to refresh. Please try again!")
	}

	resp := common.NewResponse(http.StatusOK, "Refresh successful.")
	resp.AccessToken = accessToken
	common.WriteJSON(w, http.StatusOK, resp)
	return nil
}

// Logout godoc
// @Summary      Log out
// @Description  Revokes the refresh token from the cookie and clears the cookie.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  common.Response
// @Failure      400  {object}  common.AppError
// @Failure      401  {object}  common.AppError
// @Failure      500  {object}  common.AppError
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	if err := h.auth.Logout(r.Context(), refreshCookie(r)); err != nil {
		return mapAuthError(err, "Failed to logout user. Please try again!")
	}

	h.clearRefreshCookie(w)
	common.WriteJSON(w, http.StatusOK, common.NewResponse(http.StatusOK, "Logout successful."))
	return nil
}

// Me godoc
// @Summary      Current user
// @Description  Returns the profile of the authenticated user.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  common.Response{data=model.UserProfile}
// @Failure      400  {object}  common.AppError
// @Failure      401  {object}  common.AppError
// @Failure      500  {object}  common.AppError
// @Router       /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, _ := UserIDFromContext(r.Context())

	profile, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		return mapAuthError(err, "Failed to get user data. Please try again!")
	}

	resp := common.NewResponse(http.StatusOK, "User data retrieved successfully.")
	resp.Data = profile
	common.WriteJSON(w, http.StatusOK, resp)
	return nil
}

// VerifyEmail godoc
// @Summary      Verify email address
// @Description  Redeems the verification code sent by email.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token  body      model.VerifyEmailRequest  true  "Verification code"
// @Success      200    {object}  common.Response
// @Failure      400    {object}  common.AppError
// @Failure      500    {object}  common.AppError
// @Router       /auth/verify [post]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.VerifyEmailRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.auth.VerifyEmail(r.Context(), req.Token); err != nil {
		return mapAuthError(err, "Failed to verify email. Please try again!")
	}

	common.WriteJSON(w, http.StatusOK, common.NewResponse(http.StatusOK, "Email verified successfully. Please login to continue!"))
	return nil
}

// ForgotPassword godoc
// @Summary      Request a password reset
// @Description  Emails a password reset link to a registered address.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        email  body      model.ForgotPasswordRequest  true  "Account email"
// @Success      200    {object}  common.Response
// @Failure      400    {object}  common.AppError
// @Failure      500    {object}  common.AppError
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.ForgotPasswordRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		return mapAuthError(err, "Failed to send password reset email. Please try again!")
	}

	common.WriteJSON(w, http.StatusOK, common.NewResponse(http.StatusOK, "Password reset link sent to your email."))
	return nil
}

// ResetPassword godoc
// @Summary      Reset password
// @Description  Sets a new password using the token from the reset link.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token     path      string                      true  "Reset token"
// @Param        password  body      model.ResetPasswordRequest  true  "New password"
// @Success      200       {object}  common.Response
// @Failure      400       {object}  common.AppError
// @Failure      500       {object}  common.AppError
// @Router       /auth/reset-password/{token} [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	token := r.PathValue("token")
	if token == "" {
		return common.NewAppError(http.StatusBadRequest, "Invalid input!", errors.New("missing reset token"))
	}

	var req model.ResetPasswordRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.auth.ResetPassword(r.Context(), token, req.Password); err != nil {
		return mapAuthError(err, "Failed to reset password. Please try again!")
	}

	common.WriteJSON(w, http.StatusOK, common.NewResponse(http.StatusOK, "Password reset successful. Please login to continue!"))
	return nil
}

func refreshCookie(r *http.Request) string {
	c, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.auth.RefreshTTL()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// mapAuthError turns protocol errors into client responses. Anything
// unrecognised is reported as a 500 with fallback as the message.
func mapAuthError(err error, fallback string) *common.AppError {
	switch {
	case errors.Is(err, service.ErrUserExists):
		return common.NewAppError(http.StatusConflict, "User already exists!", err)
	case errors.Is(err, service.ErrInvalidCredentials):
		return common.NewAppError(http.StatusBadRequest, "Invalid login credentials!", err)
	case errors.Is(err, service.ErrVerificationRequired):
		return common.NewAppError(http.StatusForbidden, "Email not verified! A verification code has been sent to your email.", err)
	case errors.Is(err, service.ErrInvalidToken):
		return common.NewAppError(http.StatusBadRequest, "Invalid or expired token!", err)
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return common.NewAppError(http.StatusUnauthorized, "Invalid refresh token!", err)
	case errors.Is(err, service.ErrRefreshTokenRequired):
		return common.NewAppError(http.StatusBadRequest, "Refresh token required!", err)
	case errors.Is(err, service.ErrUserNotFound):
		return common.NewAppError(http.StatusBadRequest, "User doesn't exist!", err)
	default:
		return common.NewAppError(http.StatusInternalServerError, fallback, err)
	}
}

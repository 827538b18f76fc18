package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/observer/chatwave/internal/auth"
	"github.com/observer/chatwave/internal/domain"
)

const refreshCookieName = "refresh_token"

// AuthService is the part of auth.Service the handlers use
type AuthService interface {
	Register(ctx context.Context, input auth.RegisterInput) (*domain.User, *auth.TokenPair, error)
	Login(ctx context.Context, input auth.LoginInput) (*domain.User, *auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.User, *auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID uuid.UUID) error
	Me(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	AccessTokenTTL() time.Duration
	RefreshTokenTTL() time.Duration
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auth          AuthService
	secureCookies bool
	logger        *slog.Logger
}

func NewAuthHandler(authService AuthService, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:          authService,
		secureCookies: secureCookies,
		logger:        logger.With("component", "auth_handler"),
	}
}

// Register godoc
//
//	@Summary		Register a new user
//	@Description	Create a new user account with username, email, name and password
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		auth.RegisterInput	true	"Registration details"
//	@Success		201		{object}	map[string]interface{}	"User created successfully"
//	@Failure		400		{object}	map[string]string	"Invalid input"
//	@Failure		409		{object}	map[string]string	"Username or email already exists"
//	@Router			/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input auth.RegisterInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, tokens, err := h.auth.Register(r.Context(), input)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeSession(w, http.StatusCreated, user, tokens)
}

// Login godoc
//
//	@Summary		Login
//	@Description	Authenticate user with email and password
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		auth.LoginInput	true	"Login credentials"
//	@Success		200		{object}	map[string]interface{}	"Login successful"
//	@Failure		400		{object}	map[string]string	"Invalid input"
//	@Failure		401		{object}	map[string]string	"Invalid credentials"
//	@Router			/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input auth.LoginInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, tokens, err := h.auth.Login(r.Context(), input)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeSession(w, http.StatusOK, user, tokens)
}

// Refresh godoc
//
//	@Summary		Refresh token
//	@Description	Rotate the refresh token from the cookie and issue a new access token
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	object{user=interface{},access_token=string,expires_at=string}
//	@Failure		401	{object}	map[string]string
//	@Router			/auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "refresh token required")
		return
	}

	user, tokens, err := h.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeSession(w, http.StatusOK, user, tokens)
}

// Logout godoc
//
//	@Summary		Logout
//	@Description	Invalidate refresh token and clear cookies
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		if err := h.auth.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("logout: revoke failed", "error", err)
		}
	}

	h.setCookie(w, refreshCookieName, "", -1)
	h.setCookie(w, auth.CookieName, "", -1)

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// LogoutAll godoc
//
//	@Summary		Logout everywhere
//	@Description	Revoke every refresh token the caller holds and clear cookies
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	map[string]string
//	@Failure		401	{object}	map[string]string
//	@Router			/auth/logout-all [post]
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.auth.LogoutAll(r.Context(), userID); err != nil {
		h.logger.Error("logout all: revoke failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.setCookie(w, refreshCookieName, "", -1)
	h.setCookie(w, auth.CookieName, "", -1)

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me godoc
//
//	@Summary		Get authenticated user
//	@Description	Get the profile of the currently authenticated user
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	domain.User
//	@Failure		401	{object}	map[string]string
//	@Router			/auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			h.logger.Error("me: load user", "error", err, "user_id", userID)
		}
		writeDomainError(w, err, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// writeSession sets both cookies and writes the session body. The access
// token also goes into the Token cookie so browsers can open the socket
// without a header.
func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, user *domain.User, tokens *auth.TokenPair) {
	h.setCookie(w, refreshCookieName, tokens.RefreshToken, int(h.auth.RefreshTokenTTL().Seconds()))
	h.setCookie(w, auth.CookieName, tokens.AccessToken, int(h.auth.AccessTokenTTL().Seconds()))

	writeJSON(w, status, map[string]interface{}{
		"user":         user.ToPublic(),
		"access_token": tokens.AccessToken,
		"expires_at":   tokens.ExpiresAt,
	})
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// authFailures maps service errors to the status and message clients see
var authFailures = []struct {
	err     error
	status  int
	message string
}{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid email or password"},
	{domain.ErrEmailTaken, http.StatusConflict, "email already registered"},
	{domain.ErrUsernameTaken, http.StatusConflict, "username already taken"},
	{domain.ErrTokenInvalid, http.StatusUnauthorized, "invalid token"},
	{domain.ErrTokenExpired, http.StatusUnauthorized, "token expired"},
	{domain.ErrTokenRevoked, http.StatusUnauthorized, "token revoked"},
}

func (h *AuthHandler) handleAuthError(w http.ResponseWriter, err error) {
	var inputErr *auth.InputError
	if errors.As(err, &inputErr) {
		writeError(w, http.StatusBadRequest, inputErr.Message)
		return
	}
	for _, f := range authFailures {
		if errors.Is(err, f.err) {
			writeError(w, f.status, f.message)
			return
		}
	}
	h.logger.Error("auth request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

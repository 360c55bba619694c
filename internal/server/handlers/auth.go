package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/bookclub/internal/crypto"
	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/server/storage"
	"github.com/iudanet/bookclub/internal/validation"
	"github.com/iudanet/bookclub/pkg/api"
)

// AuthHandler регистрирует читателей и выдает им сессии
type AuthHandler struct {
	responder
	accounts storage.AccountStorage
	tokens   *Tokens
	now      func() time.Time
}

// NewAuthHandler создает handler для /api/v1/auth
func NewAuthHandler(logger *slog.Logger, accounts storage.AccountStorage, tokens *Tokens) *AuthHandler {
	return &AuthHandler{
		responder: responder{logger: logger},
		accounts:  accounts,
		tokens:    tokens,
		now:       time.Now,
	}
}

// Register обрабатывает POST /api/v1/auth/register.
// Хеш ключа клиента хранится только запечатанным bcrypt.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateUsername(req.Username); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AuthKeyHash == "" || req.PublicSalt == "" {
		h.sendError(w, "auth_key_hash and public_salt are required", http.StatusBadRequest)
		return
	}

	// без имени в ленте показываем логин
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}
	if err := validation.ValidateDisplayName(req.DisplayName); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sealed, err := crypto.SealAuthKeyHash(req.AuthKeyHash)
	if err != nil {
		h.internal(ctx, w, "failed to seal auth key hash", err)
		return
	}

	user := &models.User{
		ID:          uuid.New().String(),
		Username:    req.Username,
		DisplayName: req.DisplayName,
		AuthKeyHash: sealed,
		PublicSalt:  req.PublicSalt,
		CreatedAt:   h.now(),
	}
	if err := h.accounts.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.sendError(w, "username already taken", http.StatusConflict)
			return
		}
		h.internal(ctx, w, "failed to create user", err)
		return
	}

	h.logger.InfoContext(ctx, "reader registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username))

	h.sendJSON(w, api.RegisterResponse{UserID: user.ID, Message: "User registered successfully"}, http.StatusCreated)
}

// GetSalt обрабатывает GET /api/v1/auth/salt/{username}
func (h *AuthHandler) GetSalt(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if err := validation.ValidateUsername(username); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.accounts.GetUserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.sendError(w, "user not found", http.StatusNotFound)
			return
		}
		h.internal(r.Context(), w, "failed to get user", err)
		return
	}

	h.sendJSON(w, api.SaltResponse{PublicSalt: user.PublicSalt}, http.StatusOK)
}

// Login обрабатывает POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateUsername(req.Username); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AuthKeyHash == "" {
		h.sendError(w, "auth_key_hash is required", http.StatusBadRequest)
		return
	}

	user, err := h.accounts.GetUserByUsername(ctx, req.Username)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		h.sendError(w, "invalid credentials", http.StatusUnauthorized)
		return
	case err != nil:
		h.internal(ctx, w, "failed to get user", err)
		return
	}

	if err := crypto.CheckAuthKeyHash(user.AuthKeyHash, req.AuthKeyHash); err != nil {
		h.logger.WarnContext(ctx, "login rejected", slog.String("username", req.Username))
		h.sendError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	session, err := h.tokens.Session(user.ID)
	if err != nil {
		h.internal(ctx, w, "failed to mint session", err)
		return
	}
	if err := h.accounts.OpenSession(ctx, session); err != nil {
		h.internal(ctx, w, "failed to open session", err)
		return
	}

	h.logger.InfoContext(ctx, "reader logged in", slog.String("user_id", user.ID))
	h.issue(ctx, w, user, session)
}

// Refresh обрабатывает POST /api/v1/auth/refresh.
// Refresh-токен приходит как bearer и обменивается ровно один раз.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	old, err := BearerToken(r)
	if err != nil {
		h.sendError(w, "refresh token is required", http.StatusUnauthorized)
		return
	}

	next, err := h.tokens.Session("")
	if err != nil {
		h.internal(ctx, w, "failed to mint session", err)
		return
	}

	user, err := h.accounts.RotateSession(ctx, old, next, h.now())
	switch {
	case errors.Is(err, storage.ErrTokenNotFound):
		h.sendError(w, "invalid refresh token", http.StatusUnauthorized)
		return
	case errors.Is(err, storage.ErrTokenExpired):
		h.sendError(w, "refresh token expired", http.StatusUnauthorized)
		return
	case err != nil:
		h.internal(ctx, w, "failed to rotate session", err)
		return
	}

	h.issue(ctx, w, user, next)
}

// Logout обрабатывает POST /api/v1/auth/logout.
// Закрывает все сессии читателя из access-токена.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	closed, err := h.accounts.CloseSessions(ctx, userID)
	if err != nil {
		h.internal(ctx, w, "failed to close sessions", err)
		return
	}

	h.logger.InfoContext(ctx, "reader logged out",
		slog.String("user_id", userID),
		slog.Int("sessions", closed))

	w.WriteHeader(http.StatusNoContent)
}

// issue отвечает парой токенов вместе с id и именем читателя
func (h *AuthHandler) issue(ctx context.Context, w http.ResponseWriter, user *models.User, session *models.RefreshToken) {
	access, expiresIn, err := h.tokens.Access(user)
	if err != nil {
		h.internal(ctx, w, "failed to sign access token", err)
		return
	}

	h.sendJSON(w, api.TokenResponse{
		AccessToken:  access,
		RefreshToken: session.Token,
		UserID:       user.ID,
		DisplayName:  user.DisplayName,
		ExpiresIn:    expiresIn,
	}, http.StatusOK)
}

func (h *AuthHandler) internal(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.ErrorContext(ctx, msg, slog.Any("error", err))
	h.sendError(w, "internal server error", http.StatusInternalServerError)
}

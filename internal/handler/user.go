package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/recipebook/recipebook/internal/auth"
	"github.com/recipebook/recipebook/internal/handler/dto"
	"github.com/recipebook/recipebook/internal/middleware"
	"github.com/recipebook/recipebook/internal/service"
)

// AuthCacheEvicter drops a cached auth context.
type AuthCacheEvicter interface {
	DeleteAuthContext(ctx context.Context, cacheKey string) error
}

// UserHandler handles account and token endpoints.
type UserHandler struct {
	svc    *service.UserService
	cache  AuthCacheEvicter
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler. cache may be nil.
func NewUserHandler(svc *service.UserService, cache AuthCacheEvicter, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		svc:    svc,
		cache:  cache,
		logger: logger,
	}
}

// Register handles POST /api/v1/users.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.svc.CreateUser(r.Context(), req.Email, req.Password, service.UserExtras{Name: req.Name})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_created", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, dto.ToUserResponse(user))
}

// IssueToken handles POST /api/v1/users/token.
func (h *UserHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	issued, err := h.svc.IssueToken(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("token_issued", "user_id", issued.User.ID)
	writeJSON(w, http.StatusOK, dto.TokenResponse{Token: issued.Token})
}

// RevokeToken handles DELETE /api/v1/users/token. The presented token is
// revoked and evicted from the auth cache.
func (h *UserHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		handleServiceError(w, h.logger, service.ErrUnauthenticated)
		return
	}

	if err := h.svc.RevokeToken(r.Context(), authCtx.TokenID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	if h.cache != nil {
		if token := middleware.TokenFromRequest(r); token != "" {
			if err := h.cache.DeleteAuthContext(r.Context(), auth.QuickHash(token)); err != nil {
				h.logger.Warn("auth cache eviction failed", "token_id", authCtx.TokenID, "error", err)
			}
		}
	}

	h.logger.Info("token_revoked", "user_id", authCtx.UserID, "token_id", authCtx.TokenID)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// ReplaceMe handles PUT /api/v1/users/me.
func (h *UserHandler) ReplaceMe(w http.ResponseWriter, r *http.Request) {
	var req dto.ReplaceUserRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	h.updateProfile(w, r, service.ProfileUpdate{Name: &req.Name, Password: &req.Password})
}

// UpdateMe handles PATCH /api/v1/users/me.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateUserRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	h.updateProfile(w, r, service.ProfileUpdate{Name: req.Name, Password: req.Password})
}

func (h *UserHandler) updateProfile(w http.ResponseWriter, r *http.Request, update service.ProfileUpdate) {
	userID := auth.UserIDFromContext(r.Context())

	user, err := h.svc.UpdateProfile(r.Context(), userID, update)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_updated", "user_id", userID, "password_changed", update.Password != nil)
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

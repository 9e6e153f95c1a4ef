package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/recipebook/recipebook/internal/auth"
	"github.com/recipebook/recipebook/internal/metrics"
	"github.com/recipebook/recipebook/internal/model"
	"github.com/recipebook/recipebook/internal/service"
)

// DefaultMinAuthDuration is the minimum time spent on auth to blunt timing attacks.
const DefaultMinAuthDuration = 200 * time.Millisecond

// Authenticator resolves a plaintext login token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.AuthContext, error)
}

// AuthCache caches resolved auth contexts keyed by token hash.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger        *slog.Logger
	Authenticator Authenticator
	// Cache is optional.
	Cache   AuthCache
	Metrics metrics.Recorder
	// MinDuration defaults to DefaultMinAuthDuration. Negative disables padding.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates API requests.
// It reads the token from the Authorization header, resolves it and
// injects the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	minDuration := cfg.MinDuration
	if minDuration == 0 {
		minDuration = DefaultMinAuthDuration
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			pad := func() {
				if elapsed := time.Since(startTime); elapsed < minDuration {
					time.Sleep(minDuration - elapsed)
				}
			}

			fail := func(reason string) {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				pad()
				writeAuthError(w)
			}

			token := TokenFromRequest(r)
			if token == "" {
				recorder.IncAuthFailure("missing_token")
				fail("missing_token")
				return
			}

			cacheKey := auth.QuickHash(token)
			var authCtx *model.AuthContext
			cacheHit := false
			if cfg.Cache != nil {
				authCtx, _ = cfg.Cache.GetAuthContext(r.Context(), cacheKey)
				cacheHit = authCtx != nil
			}

			if authCtx == nil {
				resolved, err := cfg.Authenticator.Authenticate(r.Context(), token)
				if err != nil {
					if !errors.Is(err, service.ErrUnauthenticated) {
						cfg.Logger.Error("auth lookup failed",
							slog.String("error", err.Error()),
							slog.String("request_id", GetRequestID(r.Context())),
						)
					}
					fail("invalid_token")
					return
				}
				authCtx = resolved

				if cfg.Cache != nil {
					_ = cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx)
				}
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("token_prefix", authCtx.TokenPrefix),
				slog.Int64("user_id", authCtx.UserID),
				slog.Bool("cache_hit", cacheHit),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			pad()
			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest extracts the login token from the Authorization header.
// Both "Token <key>" and "Bearer <key>" are accepted.
func TokenFromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok {
		return ""
	}
	if !strings.EqualFold(scheme, "Token") && !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireStaff rejects authenticated callers that are not staff.
// Must be applied after Auth middleware.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.AuthFromContext(r.Context())
		if authCtx == nil {
			writeAuthError(w)
			return
		}
		if !authCtx.IsStaff && !authCtx.IsSuperuser {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeAuthError writes a 401 response.
// The message is the same for every failure to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Token")
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing token")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"expertene/internal/contextutils"
	"expertene/internal/models"
	"expertene/internal/response"
	"expertene/internal/services"
)

// TokenCookie carries the access token for browser (web view) requests.
const TokenCookie = "expertene_token"

// TokenValidator verifies access tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*services.Claims, error)
}

// UserLoader loads the account behind a token.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// AuthMiddleware resolves the bearer token into a user on the context.
type AuthMiddleware struct {
	tokens  TokenValidator
	users   UserLoader
	builder *response.Builder
	logger  *zap.Logger
}

// NewAuthMiddleware creates the authentication middleware
func NewAuthMiddleware(tokens TokenValidator, users UserLoader, builder *response.Builder, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, builder: builder, logger: logger}
}

// ===============================
// MAIN AUTHENTICATION MIDDLEWARE
// ===============================

// Authenticate resolves the token when present. With required set, a
// missing or invalid token is a 401 and a suspended account a 403; without
// it the request continues anonymously.
func (am *AuthMiddleware) Authenticate(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestLogger := GetRequestLogger(ctx)

			user, err := am.authenticateRequest(r)
			if err == nil {
				tagUser(ctx, user.ID, user.Username)
				next.ServeHTTP(w, r.WithContext(contextutils.WithUser(ctx, user)))
				return
			}
			if !required {
				next.ServeHTTP(w, r)
				return
			}

			requestLogger.Debug("Authentication required but failed", zap.Error(err))
			if services.IsErrorType(err, services.ErrTypeUnauthorized) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="expertene"`)
			}
			am.builder.WriteError(w, r, err)
		})
	}
}

// RequireAuth requires authentication for the endpoint
func (am *AuthMiddleware) RequireAuth() func(http.Handler) http.Handler {
	return am.Authenticate(true)
}

// OptionalAuth provides optional authentication for the endpoint
func (am *AuthMiddleware) OptionalAuth() func(http.Handler) http.Handler {
	return am.Authenticate(false)
}

// RequireAdmin must run after RequireAuth.
func (am *AuthMiddleware) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := contextutils.GetUser(r.Context())
			if user == nil {
				am.builder.WriteUnauthorized(w, r, "authentication required")
				return
			}
			if !user.IsAdmin() {
				GetRequestLogger(r.Context()).Warn("Admin route denied", zap.Int64("user_id", user.ID))
				am.builder.WriteForbidden(w, r, "administrator role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ===============================
// AUTHENTICATION METHODS
// ===============================

func (am *AuthMiddleware) authenticateRequest(r *http.Request) (*models.User, error) {
	token := ExtractToken(r)
	if token == "" {
		return nil, services.NewUnauthorizedError("authentication required")
	}

	claims, err := am.tokens.ValidateToken(r.Context(), token)
	if err != nil {
		return nil, err
	}

	user, err := am.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if services.IsNotFoundError(err) {
			return nil, services.NewUnauthorizedError("account no longer exists")
		}
		return nil, err
	}
	if user.IsSuspended {
		return nil, services.NewForbiddenError("account suspended")
	}
	return user, nil
}

// ExtractToken reads the Authorization header, then the cookie. WebSocket
// upgrades may also pass ?access_token= since browsers cannot set headers
// on them.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

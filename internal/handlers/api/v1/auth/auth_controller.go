package auth

import (
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"expertene/internal/config"
	"expertene/internal/middleware"
	"expertene/internal/response"
	"expertene/internal/services"
	"expertene/internal/utils"
)

const (
	oauthStateCookie = "expertene_oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

// AuthController handles sign up, sign in, sign out and Google sign in.
type AuthController struct {
	auth            services.AuthService
	features        config.FeatureConfig
	logger          *zap.Logger
	responseBuilder *response.Builder
	now             func() time.Time
}

// NewAuthController creates a new auth controller
func NewAuthController(auth services.AuthService, features config.FeatureConfig, logger *zap.Logger, responseBuilder *response.Builder) *AuthController {
	return &AuthController{
		auth:            auth,
		features:        features,
		logger:          logger,
		responseBuilder: responseBuilder,
		now:             time.Now,
	}
}

// ===============================
// PASSWORD ACCOUNTS
// ===============================

// SignUp handles POST /api/v1/auth/signup
func (c *AuthController) SignUp(w http.ResponseWriter, r *http.Request) {
	var req services.SignUpRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	result, err := c.auth.SignUp(r.Context(), &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	middleware.GetRequestLogger(r.Context()).Info("User signed up",
		zap.Int64("user_id", result.User.ID),
		zap.String("username", result.User.Username),
	)
	c.setTokenCookie(w, r, result)
	c.responseBuilder.WriteCreated(w, r, result)
}

// SignIn handles POST /api/v1/auth/signin. The identifier may be an email
// address or a username.
func (c *AuthController) SignIn(w http.ResponseWriter, r *http.Request) {
	var req services.SignInRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	result, err := c.auth.SignIn(r.Context(), &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	middleware.GetRequestLogger(r.Context()).Info("User signed in",
		zap.Int64("user_id", result.User.ID),
		zap.String("method", "password"),
	)
	c.setTokenCookie(w, r, result)
	c.responseBuilder.WriteSuccess(w, r, result)
}

// SignOut handles POST /api/v1/auth/signout. The presented token is revoked
// and the cookie cleared; signing out twice is not an error.
func (c *AuthController) SignOut(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractToken(r)
	if token == "" {
		c.responseBuilder.WriteUnauthorized(w, r, "authentication required")
		return
	}
	if err := c.auth.SignOut(r.Context(), token); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.clearCookie(w, r, middleware.TokenCookie)
	c.responseBuilder.WriteNoContent(w, r)
}

// ===============================
// GOOGLE SIGN IN
// ===============================

// GoogleStart handles GET /api/v1/auth/google by redirecting to the
// consent screen with a fresh state value.
func (c *AuthController) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if !c.features.EnableGoogleAuth {
		c.responseBuilder.WriteNotFound(w, r, "google sign in is disabled")
		return
	}
	state, err := uuid.NewV4()
	if err != nil {
		c.responseBuilder.WriteError(w, r, services.NewInternalError("failed to start google sign in", err))
		return
	}
	url, err := c.auth.GoogleAuthURL(state.String())
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state.String(),
		Path:     "/api/v1/auth/google",
		Expires:  c.now().Add(oauthStateTTL),
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
	c.responseBuilder.WriteRedirect(w, r, url, http.StatusFound)
}

// GoogleCallback handles GET /api/v1/auth/google/callback. Browsers are
// sent back to the home page; API clients get the token envelope.
func (c *AuthController) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !c.features.EnableGoogleAuth {
		c.responseBuilder.WriteNotFound(w, r, "google sign in is disabled")
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		c.responseBuilder.WriteUnauthorized(w, r, "google sign in was cancelled")
		return
	}
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != q.Get("state") {
		middleware.GetRequestLogger(r.Context()).Warn("OAuth state mismatch")
		c.responseBuilder.WriteBadRequest(w, r, "invalid oauth state")
		return
	}
	c.clearCookie(w, r, oauthStateCookie)

	code := q.Get("code")
	if code == "" {
		c.responseBuilder.WriteBadRequest(w, r, "missing authorization code")
		return
	}
	result, err := c.auth.GoogleCallback(r.Context(), code)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	middleware.GetRequestLogger(r.Context()).Info("User signed in",
		zap.Int64("user_id", result.User.ID),
		zap.String("method", "google"),
	)
	c.setTokenCookie(w, r, result)
	if response.WantsHTML(r) {
		c.responseBuilder.WriteSeeOther(w, r, "/")
		return
	}
	c.responseBuilder.WriteSuccess(w, r, result)
}

// ===============================
// COOKIES
// ===============================

func (c *AuthController) setTokenCookie(w http.ResponseWriter, r *http.Request, result *services.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    result.AccessToken,
		Path:     "/",
		Expires:  result.ExpiresAt,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *AuthController) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	path := "/"
	if name == oauthStateCookie {
		path = "/api/v1/auth/google"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"expertene/internal/config"
	"expertene/internal/events"
	"expertene/internal/models"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:         "test-secret-at-least-32-characters-long",
		JWTIssuer:         "expertene-test",
		JWTExpiry:         time.Hour,
		BCryptCost:        bcrypt.MinCost,
		MinPasswordLength: 8,
	}
}

func newAuthService(f *fixture, features config.FeatureConfig) *authService {
	return NewAuthService(f.users, f.cache, f.bus, testAuthConfig(), features, f.logger).(*authService)
}

func openRegistration() config.FeatureConfig {
	return config.FeatureConfig{EnableRegistration: true, EnableGoogleAuth: true}
}

func signUp(t *testing.T, svc AuthService, username, email string) *AuthResult {
	t.Helper()
	res, err := svc.SignUp(context.Background(), &SignUpRequest{
		Email:           email,
		Username:        username,
		Password:        "correct-horse",
		ConfirmPassword: "correct-horse",
	})
	require.NoError(t, err)
	return res
}

func TestAuthService_SignUp(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f, openRegistration())

	res := signUp(t, svc, "ada", "Ada@Example.com")
	assert.Equal(t, "ada", res.User.Username)
	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.Equal(t, "ada", res.User.DisplayName)
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.Empty(t, res.User.PasswordHash)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.NotEmpty(t, res.AccessToken)

	stored, err := f.users.GetByUsername(context.Background(), "ada")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct-horse")))

	assert.Len(t, f.bus.ofType(events.TypeUserSignedUp), 1)
}

func TestAuthService_SignUpRejections(t *testing.T) {
	f := newFixture(&models.User{Username: "taken", Email: "taken@example.com"})
	svc := newAuthService(f, openRegistration())
	ctx := context.Background()

	tests := []struct {
		name string
		req  SignUpRequest
		kind string
		code string
	}{
		{
			name: "password mismatch",
			req:  SignUpRequest{Email: "a@example.com", Username: "alpha", Password: "longenough", ConfirmPassword: "different1"},
			kind: ErrTypeValidation,
		},
		{
			name: "bad username",
			req:  SignUpRequest{Email: "a@example.com", Username: "a!", Password: "longenough", ConfirmPassword: "longenough"},
			kind: ErrTypeValidation,
		},
		{
			name: "email taken",
			req:  SignUpRequest{Email: "TAKEN@example.com", Username: "alpha", Password: "longenough", ConfirmPassword: "longenough"},
			kind: ErrTypeConflict,
			code: "EMAIL_TAKEN",
		},
		{
			name: "username taken",
			req:  SignUpRequest{Email: "a@example.com", Username: "Taken", Password: "longenough", ConfirmPassword: "longenough"},
			kind: ErrTypeConflict,
			code: "USERNAME_TAKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := svc.SignUp(ctx, &req)
			require.Error(t, err)
			assert.True(t, IsErrorType(err, tt.kind), err.Error())
			if tt.code != "" {
				assert.Equal(t, tt.code, GetServiceError(err).Code)
			}
		})
	}
}

func TestAuthService_RegistrationDisabled(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f, config.FeatureConfig{})

	_, err := svc.SignUp(context.Background(), &SignUpRequest{
		Email: "a@example.com", Username: "alpha", Password: "longenough", ConfirmPassword: "longenough",
	})
	assert.True(t, IsErrorType(err, ErrTypeForbidden))
}

func TestAuthService_SignIn(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f, openRegistration())
	ctx := context.Background()
	signUp(t, svc, "ada", "ada@example.com")

	byEmail, err := svc.SignIn(ctx, &SignInRequest{Identifier: "ADA@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "ada", byEmail.User.Username)

	byUsername, err := svc.SignIn(ctx, &SignInRequest{Identifier: "ada", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, byEmail.User.ID, byUsername.User.ID)

	_, err = svc.SignIn(ctx, &SignInRequest{Identifier: "ada", Password: "wrong-horse"})
	assert.True(t, IsErrorType(err, ErrTypeUnauthorized))

	_, err = svc.SignIn(ctx, &SignInRequest{Identifier: "nobody", Password: "correct-horse"})
	assert.True(t, IsErrorType(err, ErrTypeUnauthorized))

	assert.Len(t, f.bus.ofType(events.TypeUserSignedIn), 2)
}

func TestAuthService_SignInEdgeCases(t *testing.T) {
	googleID := "g-1"
	f := newFixture(&models.User{Username: "oauthonly", Email: "oauth@example.com", GoogleID: &googleID})
	svc := newAuthService(f, openRegistration())
	ctx := context.Background()

	_, err := svc.SignIn(ctx, &SignInRequest{Identifier: "oauth@example.com", Password: "anything"})
	require.True(t, IsErrorType(err, ErrTypeUnauthorized))
	assert.Contains(t, err.Error(), "Google")

	res := signUp(t, svc, "mallory", "mallory@example.com")
	require.NoError(t, f.users.SetSuspended(ctx, res.User.ID, true))
	_, err = svc.SignIn(ctx, &SignInRequest{Identifier: "mallory", Password: "correct-horse"})
	assert.True(t, IsErrorType(err, ErrTypeForbidden))
}

func TestAuthService_TokenLifecycle(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f, openRegistration())
	ctx := context.Background()
	res := signUp(t, svc, "ada", "ada@example.com")

	claims, err := svc.ValidateToken(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, "ada", claims.Username)
	assert.Equal(t, "expertene-test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	require.NoError(t, svc.SignOut(ctx, res.AccessToken))
	_, err = svc.ValidateToken(ctx, res.AccessToken)
	assert.True(t, IsErrorType(err, ErrTypeUnauthorized))
	assert.Len(t, f.bus.ofType(events.TypeUserSignedOut), 1)

	// Other sessions of the same user remain valid.
	again, err := svc.SignIn(ctx, &SignInRequest{Identifier: "ada", Password: "correct-horse"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, again.AccessToken)
	assert.NoError(t, err)
}

func TestAuthService_RejectsForeignAndExpiredTokens(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f, openRegistration())
	ctx := context.Background()
	res := signUp(t, svc, "ada", "ada@example.com")

	otherCfg := testAuthConfig()
	otherCfg.JWTSecret = "a-completely-different-signing-secret"
	other := NewAuthService(f.users, f.cache, f.bus, otherCfg, openRegistration(), f.logger)
	_, err := other.ValidateToken(ctx, res.AccessToken)
	assert.True(t, IsErrorType(err, ErrTypeUnauthorized))

	_, err = svc.ValidateToken(ctx, "not.a.token")
	assert.True(t, IsErrorType(err, ErrTypeUnauthorized))

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(ctx, res.AccessToken)
	assert.True(t, IsErrorType(err, ErrTypeUnauthorized))

	err = svc.SignOut(ctx, res.AccessToken)
	assert.True(t, IsErrorType(err, ErrTypeUnauthorized))
}

// googleServer fakes the token and userinfo endpoints.
func googleServer(t *testing.T, profile googleProfile) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "google-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer google-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func withGoogle(svc *authService, srv *httptest.Server) {
	svc.oauth = &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/auth/google/callback",
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/auth",
			TokenURL: srv.URL + "/token",
		},
	}
	svc.userInfoURL = srv.URL + "/userinfo"
}

func TestAuthService_GoogleNotConfigured(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f, openRegistration())

	_, err := svc.GoogleAuthURL("state")
	assert.True(t, IsErrorType(err, ErrTypeUnavailable))
	_, err = svc.GoogleCallback(context.Background(), "code")
	assert.True(t, IsErrorType(err, ErrTypeUnavailable))
}

func TestAuthService_GoogleCreatesAccount(t *testing.T) {
	f := newFixture(&models.User{Username: "grace_hopper", Email: "someone@example.com"})
	svc := newAuthService(f, openRegistration())
	srv := googleServer(t, googleProfile{ID: "g-42", Email: "Grace.Hopper@example.com", Name: "Grace", Picture: "https://img.example.com/g.png"})
	withGoogle(svc, srv)

	url, err := svc.GoogleAuthURL("xyz")
	require.NoError(t, err)
	assert.Contains(t, url, "state=xyz")

	_, err = svc.GoogleCallback(context.Background(), "")
	assert.True(t, IsValidationError(err))

	res, err := svc.GoogleCallback(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "grace_hopper1", res.User.Username)
	assert.Equal(t, "grace.hopper@example.com", res.User.Email)
	assert.Equal(t, "Grace", res.User.DisplayName)
	require.NotNil(t, res.User.GoogleID)
	assert.Equal(t, "g-42", *res.User.GoogleID)

	// The second sign in finds the same account by Google id.
	again, err := svc.GoogleCallback(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)
	assert.Len(t, f.bus.ofType(events.TypeUserSignedUp), 1)
}

func TestAuthService_GoogleLinksExistingEmail(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f, openRegistration())
	existing := signUp(t, svc, "ada", "ada@example.com")
	withGoogle(svc, googleServer(t, googleProfile{ID: "g-7", Email: "ada@example.com"}))

	res, err := svc.GoogleCallback(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, existing.User.ID, res.User.ID)

	linked, err := f.users.GetByGoogleID(context.Background(), "g-7")
	require.NoError(t, err)
	assert.Equal(t, "ada", linked.Username)
}

func TestAuthService_GoogleRespectsRegistrationFlag(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f, config.FeatureConfig{EnableGoogleAuth: true})
	withGoogle(svc, googleServer(t, googleProfile{ID: "g-9", Email: "new@example.com"}))

	_, err := svc.GoogleCallback(context.Background(), "code")
	assert.True(t, IsErrorType(err, ErrTypeForbidden))
}

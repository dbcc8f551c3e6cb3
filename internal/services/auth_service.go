package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"expertene/internal/cache"
	"expertene/internal/config"
	"expertene/internal/events"
	"expertene/internal/models"
	"expertene/internal/repositories"
	"expertene/internal/validation"
)

const (
	revokedTokenPrefix = "auth:revoked:"
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
	tokenTypeBearer    = "Bearer"
)

var usernameStrip = regexp.MustCompile(`[^a-z0-9_]+`)

// googleProfile is the subset of the userinfo response we read.
type googleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// authService implements AuthService with HS256 access tokens
type authService struct {
	users       repositories.UserRepository
	cache       cache.Cache
	events      events.EventBus
	config      config.AuthConfig
	features    config.FeatureConfig
	oauth       *oauth2.Config
	userInfoURL string
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService creates the authentication service
func NewAuthService(
	users repositories.UserRepository,
	c cache.Cache,
	bus events.EventBus,
	cfg config.AuthConfig,
	features config.FeatureConfig,
	logger *zap.Logger,
) AuthService {
	if cfg.BCryptCost < bcrypt.MinCost {
		cfg.BCryptCost = bcrypt.DefaultCost
	}
	if cfg.JWTExpiry <= 0 {
		cfg.JWTExpiry = 24 * time.Hour
	}

	s := &authService{
		users:       users,
		cache:       c,
		events:      bus,
		config:      cfg,
		features:    features,
		userInfoURL: googleUserInfoURL,
		logger:      logger,
		now:         time.Now,
	}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		s.oauth = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return s
}

// ===============================
// PASSWORD ACCOUNTS
// ===============================

func (s *authService) SignUp(ctx context.Context, req *SignUpRequest) (*AuthResult, error) {
	if !s.features.EnableRegistration {
		return nil, NewForbiddenError("registration is disabled")
	}
	if err := validateRequest("invalid sign up request", req); err != nil {
		return nil, err
	}
	if minLen := s.config.MinPasswordLength; minLen > 0 && len(req.Password) < minLen {
		return nil, NewFieldValidationError("invalid sign up request", FieldError{
			Field:   "password",
			Message: fmt.Sprintf("password must be at least %d characters", minLen),
			Code:    "min",
		})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, NewConflictError("email already registered", "EMAIL_TAKEN")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fromRepository(err, "user")
	}
	if _, err := s.users.GetByUsername(ctx, req.Username); err == nil {
		return nil, NewConflictError("username already taken", "USERNAME_TAKEN")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fromRepository(err, "user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BCryptCost)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, NewInternalError("failed to process password", err)
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.Username
	}
	user := &models.User{
		Email:        email,
		Username:     req.Username,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Role:         models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("Failed to create user", zap.Error(err), zap.String("username", req.Username))
		return nil, fromRepository(err, "user")
	}

	s.logger.Info("User signed up",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return s.issue(ctx, user, events.TypeUserSignedUp, "password")
}

// SignIn accepts an email address or a username. Usernames are resolved
// through the get_email_by_username RPC.
func (s *authService) SignIn(ctx context.Context, req *SignInRequest) (*AuthResult, error) {
	if err := validateRequest("invalid sign in request", req); err != nil {
		return nil, err
	}

	identifier := strings.TrimSpace(req.Identifier)
	email := strings.ToLower(identifier)
	if !strings.Contains(identifier, "@") {
		resolved, err := s.users.EmailForUsername(ctx, identifier)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, NewUnauthorizedError("invalid credentials")
			}
			return nil, fromRepository(err, "user")
		}
		email = resolved
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, NewUnauthorizedError("invalid credentials")
		}
		return nil, fromRepository(err, "user")
	}
	if user.PasswordHash == "" {
		return nil, NewUnauthorizedError("this account signs in with Google")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Debug("Password mismatch", zap.Int64("user_id", user.ID))
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if user.IsSuspended {
		return nil, NewForbiddenError("account suspended")
	}

	return s.issue(ctx, user, events.TypeUserSignedIn, "password")
}

// SignOut revokes the token's jti until the token would have expired.
func (s *authService) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return NewUnauthorizedError("invalid token")
	}

	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(s.now()); remaining > ttl {
			ttl = remaining
		}
	}
	if err := s.cache.Set(ctx, revokedTokenPrefix+claims.ID, []byte("1"), ttl); err != nil {
		s.logger.Error("Failed to revoke token", zap.Error(err), zap.Int64("user_id", claims.UserID))
		return NewInternalError("failed to sign out", err)
	}

	if err := s.events.Publish(ctx, events.NewAuthStateEvent(events.TypeUserSignedOut, claims.UserID, claims.Username, "token")); err != nil {
		s.logger.Warn("Failed to publish sign out event", zap.Error(err))
	}
	return nil
}

func (s *authService) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, NewUnauthorizedError("invalid or expired token")
	}
	if s.cache.Exists(ctx, revokedTokenPrefix+claims.ID) {
		return nil, NewUnauthorizedError("token revoked")
	}
	return claims, nil
}

func (s *authService) parse(token string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.JWTIssuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.ID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (s *authService) sign(user *models.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.config.JWTExpiry)
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.JWTIssuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	return signed, expires, err
}

func (s *authService) issue(ctx context.Context, user *models.User, eventType, method string) (*AuthResult, error) {
	token, expires, err := s.sign(user)
	if err != nil {
		s.logger.Error("Failed to sign token", zap.Error(err), zap.Int64("user_id", user.ID))
		return nil, NewInternalError("failed to issue token", err)
	}

	if err := s.events.Publish(ctx, events.NewAuthStateEvent(eventType, user.ID, user.Username, method)); err != nil {
		s.logger.Warn("Failed to publish auth event", zap.Error(err), zap.String("type", eventType))
	}

	user.PasswordHash = ""
	return &AuthResult{
		User:        user,
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresAt:   expires,
	}, nil
}

// ===============================
// GOOGLE
// ===============================

func (s *authService) googleEnabled() bool {
	return s.oauth != nil && s.features.EnableGoogleAuth
}

func (s *authService) GoogleAuthURL(state string) (string, error) {
	if !s.googleEnabled() {
		return "", NewServiceUnavailableError("google sign in is not configured")
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// GoogleCallback exchanges the code, then finds the account by Google id,
// links it by email, or creates it.
func (s *authService) GoogleCallback(ctx context.Context, code string) (*AuthResult, error) {
	if !s.googleEnabled() {
		return nil, NewServiceUnavailableError("google sign in is not configured")
	}
	if code == "" {
		return nil, NewValidationError("authorization code not found", nil)
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("Google code exchange failed", zap.Error(err))
		return nil, NewUnauthorizedError("google sign in failed")
	}
	profile, err := s.fetchGoogleProfile(ctx, tok)
	if err != nil {
		return nil, err
	}

	user, err := s.resolveGoogleUser(ctx, profile)
	if err != nil {
		return nil, err
	}
	if user.IsSuspended {
		return nil, NewForbiddenError("account suspended")
	}
	return s.issue(ctx, user, events.TypeUserSignedIn, "google")
}

func (s *authService) fetchGoogleProfile(ctx context.Context, tok *oauth2.Token) (*googleProfile, error) {
	client := resty.NewWithClient(s.oauth.Client(ctx, tok))
	var profile googleProfile
	resp, err := client.R().SetContext(ctx).SetResult(&profile).Get(s.userInfoURL)
	if err != nil {
		return nil, NewUpstreamError(err)
	}
	if resp.IsError() {
		return nil, NewUpstreamError(fmt.Errorf("userinfo returned %d", resp.StatusCode()))
	}
	if profile.ID == "" || profile.Email == "" {
		return nil, NewUnauthorizedError("google account has no email")
	}
	return &profile, nil
}

func (s *authService) resolveGoogleUser(ctx context.Context, profile *googleProfile) (*models.User, error) {
	user, err := s.users.GetByGoogleID(ctx, profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fromRepository(err, "user")
	}

	email := strings.ToLower(profile.Email)
	user, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.users.LinkGoogle(ctx, user.ID, profile.ID); err != nil {
			return nil, fromRepository(err, "user")
		}
		user.GoogleID = &profile.ID
		return user, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fromRepository(err, "user")
	}

	if !s.features.EnableRegistration {
		return nil, NewForbiddenError("registration is disabled")
	}
	username, err := s.availableUsername(ctx, email)
	if err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(profile.Name)
	if displayName == "" {
		displayName = username
	}
	user = &models.User{
		Email:       email,
		Username:    username,
		GoogleID:    &profile.ID,
		DisplayName: displayName,
		Role:        models.RoleUser,
	}
	if profile.Picture != "" {
		user.AvatarURL = &profile.Picture
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fromRepository(err, "user")
	}
	if err := s.events.Publish(ctx, events.NewAuthStateEvent(events.TypeUserSignedUp, user.ID, user.Username, "google")); err != nil {
		s.logger.Warn("Failed to publish sign up event", zap.Error(err))
	}
	return user, nil
}

// availableUsername derives a username from the email local part, adding a
// numeric suffix until it is free.
func (s *authService) availableUsername(ctx context.Context, email string) (string, error) {
	base := strings.ToLower(strings.SplitN(email, "@", 2)[0])
	base = usernameStrip.ReplaceAllString(base, "_")
	if len(base) > 24 {
		base = base[:24]
	}
	for len(base) < 3 {
		base += "_"
	}

	candidate := base
	for i := 1; i <= 50; i++ {
		if validation.IsUsername(candidate) {
			_, err := s.users.GetByUsername(ctx, candidate)
			if errors.Is(err, repositories.ErrNotFound) {
				return candidate, nil
			}
			if err != nil {
				return "", fromRepository(err, "user")
			}
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return "", NewConflictError("could not derive a free username", "USERNAME_TAKEN")
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"expertene/internal/cache"
	"expertene/internal/editors"
	"expertene/internal/models"
	"expertene/internal/repositories"
)

const (
	userCacheTTL           = 15 * time.Minute
	defaultSuggestionLimit = 6
)

// userService implements UserService
type userService struct {
	users        repositories.UserRepository
	gamification repositories.GamificationRepository
	cache        cache.Cache
	logger       *zap.Logger
}

// NewUserService creates the user service
func NewUserService(
	users repositories.UserRepository,
	gamification repositories.GamificationRepository,
	c cache.Cache,
	logger *zap.Logger,
) UserService {
	return &userService{
		users:        users,
		gamification: gamification,
		cache:        c,
		logger:       logger,
	}
}

func userCacheKey(id int64) string { return fmt.Sprintf("user:%d", id) }

// GetByID retrieves a user by ID with caching
func (s *userService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if id <= 0 {
		return nil, NewValidationError("invalid user ID", nil)
	}

	if user, ok := cache.GetJSON[*models.User](ctx, s.cache, userCacheKey(id)); ok && user != nil {
		return user, nil
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepository(err, "user")
	}
	user.PasswordHash = ""

	if err := cache.SetJSON(ctx, s.cache, userCacheKey(id), user, userCacheTTL); err != nil {
		s.logger.Warn("Failed to cache user", zap.Error(err), zap.Int64("user_id", id))
	}
	return user, nil
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, NewValidationError("username is required", nil)
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fromRepository(err, "user")
	}
	user.PasswordHash = ""
	user.Email = ""
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*models.User, error) {
	if err := validateRequest("invalid profile", req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fromRepository(err, "user")
	}
	user.DisplayName = strings.TrimSpace(req.DisplayName)
	user.Bio = req.Bio
	user.AvatarURL = req.AvatarURL

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		s.logger.Error("Failed to update profile", zap.Error(err), zap.Int64("user_id", req.UserID))
		return nil, fromRepository(err, "user")
	}
	if err := s.cache.Delete(ctx, userCacheKey(user.ID)); err != nil {
		s.logger.Warn("Failed to invalidate user cache", zap.Error(err), zap.Int64("user_id", user.ID))
	}

	user.PasswordHash = ""
	return user, nil
}

// SuggestUsernames returns up to limit usernames starting with prefix.
// An empty prefix yields an empty list.
func (s *userService) SuggestUsernames(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}
	names, err := s.users.SuggestUsernames(ctx, prefix, limit)
	if err != nil {
		return nil, fromRepository(err, "users")
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// SuggestMentions looks up candidates for the @mention under the caret.
func (s *userService) SuggestMentions(ctx context.Context, text string, caret int) ([]string, error) {
	names, err := editors.SuggestMentions(ctx, s, text, caret)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *userService) GetStreak(ctx context.Context, userID int64) (*models.Streak, error) {
	streak, err := s.gamification.GetStreak(ctx, userID)
	if err != nil {
		if IsNotFoundError(fromRepository(err, "streak")) {
			return &models.Streak{UserID: userID}, nil
		}
		return nil, fromRepository(err, "streak")
	}
	return streak, nil
}

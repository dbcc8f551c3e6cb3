package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expertene/internal/models"
)

func userFixture() *fixture {
	return newFixture(
		&models.User{Username: "ada", Email: "ada@example.com", PasswordHash: "hash", DisplayName: "Ada"},
		&models.User{Username: "adam", Email: "adam@example.com"},
		&models.User{Username: "Adalyn", Email: "adalyn@example.com"},
		&models.User{Username: "bob", Email: "bob@example.com"},
		&models.User{Username: "adversary", Email: "adv@example.com", IsSuspended: true},
	)
}

func TestUserService_GetByID(t *testing.T) {
	f := userFixture()
	svc := NewUserService(f.users, f.gamification, f.cache, f.logger)
	ctx := context.Background()

	user, err := svc.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
	assert.Empty(t, user.PasswordHash)

	// Served from cache afterwards.
	assert.True(t, f.cache.Exists(ctx, userCacheKey(1)))

	_, err = svc.GetByID(ctx, 0)
	assert.True(t, IsValidationError(err))
	_, err = svc.GetByID(ctx, 99)
	assert.True(t, IsNotFoundError(err))
}

func TestUserService_GetByUsernameHidesPrivateFields(t *testing.T) {
	f := userFixture()
	svc := NewUserService(f.users, f.gamification, f.cache, f.logger)

	user, err := svc.GetByUsername(context.Background(), "@ada")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Empty(t, user.Email)
	assert.Empty(t, user.PasswordHash)

	_, err = svc.GetByUsername(context.Background(), " @ ")
	assert.True(t, IsValidationError(err))
}

func TestUserService_UpdateProfile(t *testing.T) {
	f := userFixture()
	svc := NewUserService(f.users, f.gamification, f.cache, f.logger)
	ctx := context.Background()

	_, err := svc.GetByID(ctx, 1)
	require.NoError(t, err)

	bio := "Writes about compilers."
	updated, err := svc.UpdateProfile(ctx, &UpdateProfileRequest{UserID: 1, DisplayName: "  Ada L. ", Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", updated.DisplayName)
	assert.False(t, f.cache.Exists(ctx, userCacheKey(1)))

	fresh, err := svc.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, fresh.Bio)
	assert.Equal(t, bio, *fresh.Bio)

	_, err = svc.UpdateProfile(ctx, &UpdateProfileRequest{UserID: 1, DisplayName: "   "})
	assert.True(t, IsValidationError(err))

	badURL := "not a url"
	_, err = svc.UpdateProfile(ctx, &UpdateProfileRequest{UserID: 1, DisplayName: "Ada", AvatarURL: &badURL})
	assert.True(t, IsValidationError(err))
}

func TestUserService_SuggestUsernames(t *testing.T) {
	f := userFixture()
	svc := NewUserService(f.users, f.gamification, f.cache, f.logger)
	ctx := context.Background()

	names, err := svc.SuggestUsernames(ctx, "AD", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"ada", "adam", "Adalyn"}, names)

	names, err = svc.SuggestUsernames(ctx, "ad", 2)
	require.NoError(t, err)
	assert.Len(t, names, 2)

	names, err = svc.SuggestUsernames(ctx, "  ", 5)
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}

func TestUserService_SuggestMentions(t *testing.T) {
	f := userFixture()
	svc := NewUserService(f.users, f.gamification, f.cache, f.logger)
	ctx := context.Background()

	text := "thanks @ad"
	names, err := svc.SuggestMentions(ctx, text, len(text))
	require.NoError(t, err)
	assert.Equal(t, []string{"ada", "adam", "Adalyn"}, names)

	names, err = svc.SuggestMentions(ctx, "no mention here", 5)
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)

	names, err = svc.SuggestMentions(ctx, "email@", 6)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestUserService_GetStreak(t *testing.T) {
	f := userFixture()
	svc := NewUserService(f.users, f.gamification, f.cache, f.logger)
	ctx := context.Background()

	streak, err := svc.GetStreak(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, &models.Streak{UserID: 1}, streak)

	_, err = f.gamification.UpdateStreak(ctx, 1)
	require.NoError(t, err)
	streak, err = svc.GetStreak(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, streak.Current)
}

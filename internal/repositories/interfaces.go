package repositories

import (
	"context"
	"time"

	"expertene/internal/models"
)

// DocumentRepository persists documents. Author-scoped methods match on
// id and author together and report ErrNotFound for foreign rows.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	Update(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id int64) (*models.Document, error)
	GetForAuthor(ctx context.Context, id, authorID int64) (*models.Document, error)
	GetByShareToken(ctx context.Context, token string) (*models.Document, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*models.Document, error)
	// SlugExists reports whether another document already holds slug.
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	SetShareToken(ctx context.Context, id, authorID int64, token string) error
	SetArchived(ctx context.Context, id int64, authorID *int64, archived bool) error
	Delete(ctx context.Context, id, authorID int64) error

	ListByAuthor(ctx context.Context, authorID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error)
	ListPublishedByAuthor(ctx context.Context, authorID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error)
	ListFeed(ctx context.Context, viewerID *int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error)
	ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]*models.Document, error)
	ListAll(ctx context.Context, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error)
	GetCounts(ctx context.Context, id int64) (models.EngagementCounts, error)
	AuthorTotals(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
}

// EngagementRepository writes likes, bookmarks, follows and views.
type EngagementRepository interface {
	Like(ctx context.Context, userID, documentID int64) error
	Unlike(ctx context.Context, userID, documentID int64) error
	Bookmark(ctx context.Context, userID, documentID int64) error
	Unbookmark(ctx context.Context, userID, documentID int64) error
	Follow(ctx context.Context, followerID, followingID int64) error
	Unfollow(ctx context.Context, followerID, followingID int64) error
	IsFollowing(ctx context.Context, followerID, followingID int64) (bool, error)
	ViewerState(ctx context.Context, documentID, userID int64) (models.ViewerState, error)
	IncrementViewCount(ctx context.Context, documentID int64, viewerID *int64) (int, error)
	ListBookmarked(ctx context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error)
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	LinkGoogle(ctx context.Context, userID int64, googleID string) error
	UpdateProfile(ctx context.Context, user *models.User) error
	EmailForUsername(ctx context.Context, username string) (string, error)
	SuggestUsernames(ctx context.Context, prefix string, limit int) ([]string, error)
	List(ctx context.Context, search string, params models.PaginationParams) (*models.PaginatedResponse[*models.User], error)
	SetRole(ctx context.Context, id int64, role string) error
	SetSuspended(ctx context.Context, id int64, suspended bool) error
}

// CommentRepository persists comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id int64) (*models.Comment, error)
	ListByDocument(ctx context.Context, documentID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Comment], error)
	Delete(ctx context.Context, id int64) error
}

// AnnouncementRepository persists announcements.
type AnnouncementRepository interface {
	Create(ctx context.Context, a *models.Announcement) error
	Update(ctx context.Context, a *models.Announcement) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*models.Announcement, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Announcement, error)
}

// GamificationRepository calls the streak and task RPC functions.
type GamificationRepository interface {
	UpdateStreak(ctx context.Context, userID int64) (*models.Streak, error)
	GetStreak(ctx context.Context, userID int64) (*models.Streak, error)
	UpdateTaskProgress(ctx context.Context, userID int64, task string, delta int) (int, error)
}

package services

import (
	"context"
	"io"

	"expertene/internal/blocks"
	"expertene/internal/engagement"
	"expertene/internal/models"
	"expertene/internal/platform"
)

// ===============================
// CORE SERVICE INTERFACES
// ===============================

// DocumentService assembles, persists and serves documents.
type DocumentService interface {
	CreateDocument(ctx context.Context, userID int64) (*models.Document, error)
	SaveDocument(ctx context.Context, req *SaveDocumentRequest) (*models.Document, error)
	LoadForEdit(ctx context.Context, id, userID int64) (*models.Document, error)
	GenerateSlug(ctx context.Context, title string) string

	GetDocument(ctx context.Context, id int64, viewerID *int64) (*DocumentView, error)
	GetPublishedBySlug(ctx context.Context, slug string, viewerID *int64) (*DocumentView, error)
	GetByShareToken(ctx context.Context, token string) (*DocumentView, error)
	IssueShareToken(ctx context.Context, id, userID int64) (string, error)

	ArchiveDocument(ctx context.Context, id, userID int64, archived bool) error
	DeleteDocument(ctx context.Context, id, userID int64) error
	ListMyDocuments(ctx context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error)
	ListByAuthor(ctx context.Context, username string, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error)
}

// EditorService holds server-side editing sessions.
type EditorService interface {
	Open(ctx context.Context, userID int64, documentID *int64) (*EditorSession, error)
	Get(ctx context.Context, sessionID string, userID int64) (*EditorSession, error)
	UpdateMeta(ctx context.Context, sessionID string, userID int64, meta *SessionMeta) (*EditorSession, error)
	AddBlock(ctx context.Context, sessionID string, userID int64, t blocks.Type, afterIndex int) (*EditorSession, error)
	UpdateBlock(ctx context.Context, sessionID string, userID int64, blockID string, content blocks.Content) (*EditorSession, error)
	ApplyField(ctx context.Context, sessionID string, userID int64, blockID, field string, value any) (*EditorSession, error)
	DeleteBlock(ctx context.Context, sessionID string, userID int64, blockID string) (*EditorSession, error)
	MoveBlock(ctx context.Context, sessionID string, userID int64, blockID string, dir blocks.Direction) (*EditorSession, error)
	SaveSession(ctx context.Context, sessionID string, userID int64, publish bool) (*models.Document, error)
	Close(ctx context.Context, sessionID string, userID int64) error
}

// EngagementService mutates likes, bookmarks, follows and views.
type EngagementService interface {
	Toggle(ctx context.Context, userID, documentID int64, kind engagement.Kind, active bool) error
	Follow(ctx context.Context, followerID, followingID int64) error
	Unfollow(ctx context.Context, followerID, followingID int64) error
	IsFollowing(ctx context.Context, followerID, followingID int64) (bool, error)
	RecordView(ctx context.Context, documentID int64, viewerID *int64) (int, error)
	GetCounts(ctx context.Context, documentID int64) (models.EngagementCounts, error)
	GetViewerState(ctx context.Context, documentID, userID int64) (models.ViewerState, error)
	ListBookmarks(ctx context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error)
}

// FeedService ranks documents and authors.
type FeedService interface {
	Feed(ctx context.Context, viewerID *int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error)
	Trending(ctx context.Context, limit int) ([]*models.TrendingDocument, error)
	Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
	Warm(ctx context.Context) error
}

// UserService manages profiles and the mention directory.
type UserService interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*models.User, error)
	SuggestUsernames(ctx context.Context, prefix string, limit int) ([]string, error)
	SuggestMentions(ctx context.Context, text string, caret int) ([]string, error)
	GetStreak(ctx context.Context, userID int64) (*models.Streak, error)
}

// AuthService issues and verifies access tokens.
type AuthService interface {
	SignUp(ctx context.Context, req *SignUpRequest) (*AuthResult, error)
	SignIn(ctx context.Context, req *SignInRequest) (*AuthResult, error)
	SignOut(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (*Claims, error)
	GoogleAuthURL(state string) (string, error)
	GoogleCallback(ctx context.Context, code string) (*AuthResult, error)
}

// CommentService manages replies on documents.
type CommentService interface {
	List(ctx context.Context, documentID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Comment], error)
	Create(ctx context.Context, req *CreateCommentRequest) (*models.Comment, error)
	Delete(ctx context.Context, commentID int64, actor *models.User) error
}

// AdminService holds moderation operations. Every method expects an admin actor.
type AdminService interface {
	ListUsers(ctx context.Context, actor *models.User, search string, params models.PaginationParams) (*models.PaginatedResponse[*models.User], error)
	SetRole(ctx context.Context, actor *models.User, userID int64, role string) error
	SetSuspended(ctx context.Context, actor *models.User, userID int64, suspended bool) error
	ListDocuments(ctx context.Context, actor *models.User, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error)
	SetDocumentArchived(ctx context.Context, actor *models.User, documentID int64, archived bool) error

	ListAnnouncements(ctx context.Context, activeOnly bool) ([]*models.Announcement, error)
	CreateAnnouncement(ctx context.Context, actor *models.User, req *AnnouncementRequest) (*models.Announcement, error)
	UpdateAnnouncement(ctx context.Context, actor *models.User, id int64, req *AnnouncementRequest) (*models.Announcement, error)
	DeleteAnnouncement(ctx context.Context, actor *models.User, id int64) error
}

// UploadService stores media while streaming cosmetic progress.
type UploadService interface {
	Upload(ctx context.Context, req *UploadRequest) (*platform.UploadResult, error)
}

// ===============================
// COLLABORATORS
// ===============================

// SlugGenerator produces slugs remotely.
type SlugGenerator interface {
	GenerateSlug(ctx context.Context, title string) (string, error)
}

// UploadRequest is one media upload.
type UploadRequest struct {
	UserID   int64
	UploadID string
	Filename string
	Size     int64
	Body     io.ReadSeeker
}

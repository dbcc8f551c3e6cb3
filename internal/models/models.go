package models

import (
	"time"

	"expertene/internal/blocks"
)

// ===============================
// CORE ENTITIES
// ===============================

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account. Email and PasswordHash never leave the service layer
// except through the owner's own profile.
type User struct {
	ID           int64   `json:"id" db:"id"`
	Email        string  `json:"email,omitempty" db:"email"`
	Username     string  `json:"username" db:"username"`
	PasswordHash string  `json:"-" db:"password_hash"`
	GoogleID     *string `json:"-" db:"google_id"`
	DisplayName  string  `json:"display_name" db:"display_name"`
	Bio          *string `json:"bio,omitempty" db:"bio"`
	AvatarURL    *string `json:"avatar_url,omitempty" db:"avatar_url"`
	Role         string  `json:"role" db:"role"`
	IsSuspended  bool    `json:"is_suspended" db:"is_suspended"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Joined
	FollowersCount int `json:"followers_count" db:"-"`
	FollowingCount int `json:"following_count" db:"-"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Document is an article: metadata plus its ordered block list.
type Document struct {
	ID            int64       `json:"id" db:"id"`
	AuthorID      int64       `json:"author_id" db:"author_id"`
	Title         string      `json:"title" db:"title"`
	Subtitle      *string     `json:"subtitle,omitempty" db:"subtitle"`
	CoverImageURL *string     `json:"cover_image_url,omitempty" db:"cover_image_url"`
	Tags          []string    `json:"tags" db:"tags"`
	IsPrivate     bool        `json:"is_private" db:"is_private"`
	IsPublished   bool        `json:"is_published" db:"is_published"`
	IsArchived    bool        `json:"is_archived" db:"is_archived"`
	ShareToken    *string     `json:"share_token,omitempty" db:"share_token"`
	ReadingTime   int         `json:"reading_time" db:"reading_time"`
	Slug          string      `json:"slug" db:"slug"`
	Blocks        blocks.List `json:"blocks" db:"content"`

	Counts EngagementCounts `json:"counts" db:"-"`

	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`

	// Joined
	AuthorUsername    string  `json:"author_username,omitempty" db:"username"`
	AuthorDisplayName string  `json:"author_display_name,omitempty" db:"display_name"`
	AuthorAvatarURL   *string `json:"author_avatar_url,omitempty" db:"avatar_url"`
}

// IsOwnedBy reports whether userID authored the document.
func (d *Document) IsOwnedBy(userID int64) bool {
	return d.AuthorID == userID
}

// IsPubliclyVisible reports whether the document may be read without a
// share token.
func (d *Document) IsPubliclyVisible() bool {
	return d.IsPublished && !d.IsPrivate && !d.IsArchived
}

// EngagementCounts are the platform-maintained counters of one document.
type EngagementCounts struct {
	Likes     int `json:"likes"`
	Bookmarks int `json:"bookmarks"`
	Views     int `json:"views"`
	Comments  int `json:"comments"`
}

// ViewerState is what the current user has done to a document.
type ViewerState struct {
	Liked         bool `json:"liked"`
	Bookmarked    bool `json:"bookmarked"`
	FollowsAuthor bool `json:"follows_author"`
}

// Comment is a reply on a document.
type Comment struct {
	ID         int64     `json:"id" db:"id"`
	DocumentID int64     `json:"document_id" db:"document_id"`
	AuthorID   int64     `json:"author_id" db:"author_id"`
	Body       string    `json:"body" db:"body"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`

	// Joined
	AuthorUsername  string  `json:"author_username" db:"username"`
	AuthorAvatarURL *string `json:"author_avatar_url,omitempty" db:"avatar_url"`
}

// IsOwnedBy reports whether userID wrote the comment.
func (c *Comment) IsOwnedBy(userID int64) bool {
	return c.AuthorID == userID
}

// Announcement is a site-wide notice managed by admins.
type Announcement struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedBy *int64    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Streak is a user's consecutive-day publishing activity.
type Streak struct {
	UserID  int64 `json:"user_id"`
	Current int   `json:"current_streak"`
	Longest int   `json:"longest_streak"`
}

// TrendingDocument is a document with its trending score.
type TrendingDocument struct {
	Document
	Score float64 `json:"score"`
}

// LeaderboardEntry ranks one author.
type LeaderboardEntry struct {
	UserID      int64   `json:"user_id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Published   int     `json:"published"`
	Likes       int     `json:"likes"`
	Bookmarks   int     `json:"bookmarks"`
	Views       int     `json:"views"`
	Score       float64 `json:"score"`
}

// ===============================
// PAGINATION
// ===============================

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Limit  int `json:"limit" validate:"min=0,max=100"`
	Offset int `json:"offset" validate:"min=0"`
}

// Normalize clamps the limit to 1..100, using def when unset.
func (p PaginationParams) Normalize(def int) PaginationParams {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse[T any] struct {
	Data       []T            `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// PaginationMeta contains pagination metadata
type PaginationMeta struct {
	CurrentPage  int   `json:"current_page"`
	TotalPages   int   `json:"total_pages"`
	TotalItems   int64 `json:"total_items"`
	ItemsPerPage int   `json:"items_per_page"`
	HasNext      bool  `json:"has_next"`
	HasPrev      bool  `json:"has_prev"`
}

// NewPaginatedResponse builds the envelope for one page of data.
func NewPaginatedResponse[T any](data []T, params PaginationParams, total int64) *PaginatedResponse[T] {
	if data == nil {
		data = []T{}
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 1
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	current := params.Offset/limit + 1
	return &PaginatedResponse[T]{
		Data: data,
		Pagination: PaginationMeta{
			CurrentPage:  current,
			TotalPages:   pages,
			TotalItems:   total,
			ItemsPerPage: limit,
			HasNext:      int64(params.Offset+len(data)) < total,
			HasPrev:      params.Offset > 0,
		},
	}
}

package services

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"expertene/internal/blocks"
	"expertene/internal/models"
)

// ===============================
// DOCUMENTS
// ===============================

// SaveDocumentRequest is the assembled editor state handed to SaveDocument.
// A nil ID inserts a new document.
type SaveDocumentRequest struct {
	ID            *int64      `json:"id,omitempty"`
	AuthorID      int64       `json:"-"`
	Title         string      `json:"title" validate:"notblank,max=300"`
	Subtitle      *string     `json:"subtitle,omitempty" validate:"omitempty,max=500"`
	CoverImageURL *string     `json:"cover_image_url,omitempty" validate:"omitempty,url"`
	Tags          []string    `json:"tags" validate:"max=10,dive,max=40"`
	IsPrivate     bool        `json:"is_private"`
	Publish       bool        `json:"publish"`
	Blocks        blocks.List `json:"blocks"`
}

// DocumentView is a readable document plus what the viewer has done to it.
type DocumentView struct {
	*models.Document
	Viewer *models.ViewerState `json:"viewer,omitempty"`
}

// ===============================
// EDITOR SESSIONS
// ===============================

// SessionMeta is the non-block part of an editing session.
type SessionMeta struct {
	Title         string   `json:"title" validate:"max=300"`
	Subtitle      *string  `json:"subtitle,omitempty" validate:"omitempty,max=500"`
	CoverImageURL *string  `json:"cover_image_url,omitempty" validate:"omitempty,url"`
	Tags          []string `json:"tags" validate:"max=10,dive,max=40"`
	IsPrivate     bool     `json:"is_private"`
}

// EditorSession is the server-held state of one document in edit.
type EditorSession struct {
	ID            string      `json:"id"`
	DocumentID    *int64      `json:"document_id,omitempty"`
	AuthorID      int64       `json:"author_id"`
	Meta          SessionMeta `json:"meta"`
	IsPublished   bool        `json:"is_published"`
	Blocks        blocks.List `json:"blocks"`
	ActiveBlockID string      `json:"active_block_id,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// ===============================
// USERS & AUTH
// ===============================

// UpdateProfileRequest changes the caller's own profile.
type UpdateProfileRequest struct {
	UserID      int64   `json:"-"`
	DisplayName string  `json:"display_name" validate:"notblank,max=80"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=500"`
	AvatarURL   *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// SignUpRequest creates a password account.
type SignUpRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Username        string `json:"username" validate:"required,username"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	DisplayName     string `json:"display_name" validate:"omitempty,max=80"`
}

// SignInRequest accepts an email address or a username as Identifier.
type SignInRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// AuthResult is returned on every successful sign in.
type AuthResult struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Claims are the access token claims.
type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// ===============================
// COMMENTS & ADMIN
// ===============================

// CreateCommentRequest adds a comment to a document.
type CreateCommentRequest struct {
	DocumentID int64  `json:"-"`
	AuthorID   int64  `json:"-"`
	Body       string `json:"body" validate:"notblank,max=5000"`
}

// AnnouncementRequest creates or updates an announcement.
type AnnouncementRequest struct {
	Title    string `json:"title" validate:"notblank,max=200"`
	Body     string `json:"body" validate:"notblank,max=5000"`
	IsActive bool   `json:"is_active"`
}

package events

import "time"

// Event type names.
const (
	TypeDocumentCreated   = "document.created"
	TypeDocumentSaved     = "document.saved"
	TypeDocumentPublished = "document.published"
	TypeDocumentArchived  = "document.archived"
	TypeDocumentDeleted   = "document.deleted"

	TypeEngagementChanged = "engagement.changed"
	TypeStreakUpdated     = "gamification.streak_updated"

	TypeUserSignedUp  = "auth.signed_up"
	TypeUserSignedIn  = "auth.signed_in"
	TypeUserSignedOut = "auth.signed_out"
	TypeUserSuspended = "user.suspended"

	TypeFileUploaded        = "file.uploaded"
	TypeAnnouncementChanged = "announcement.changed"
)

// DocumentCreatedEvent fires when a new draft is started.
type DocumentCreatedEvent struct {
	BaseEvent
	DocumentID int64 `json:"document_id"`
}

// NewDocumentCreatedEvent creates a new DocumentCreatedEvent
func NewDocumentCreatedEvent(documentID, authorID int64) *DocumentCreatedEvent {
	return &DocumentCreatedEvent{
		BaseEvent:  newBase(TypeDocumentCreated, authorID),
		DocumentID: documentID,
	}
}

// DocumentSavedEvent fires after every successful save, draft or not.
type DocumentSavedEvent struct {
	BaseEvent
	DocumentID  int64  `json:"document_id"`
	Slug        string `json:"slug"`
	ReadingTime int    `json:"reading_time"`
	BlockCount  int    `json:"block_count"`
	IsNew       bool   `json:"is_new"`
}

// NewDocumentSavedEvent creates a new DocumentSavedEvent
func NewDocumentSavedEvent(documentID, authorID int64, slug string, readingTime, blockCount int, isNew bool) *DocumentSavedEvent {
	return &DocumentSavedEvent{
		BaseEvent:   newBase(TypeDocumentSaved, authorID),
		DocumentID:  documentID,
		Slug:        slug,
		ReadingTime: readingTime,
		BlockCount:  blockCount,
		IsNew:       isNew,
	}
}

// DocumentPublishedEvent drives the analytics, task-progress and streak
// listeners.
type DocumentPublishedEvent struct {
	BaseEvent
	DocumentID  int64     `json:"document_id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"published_at"`
}

// NewDocumentPublishedEvent creates a new DocumentPublishedEvent
func NewDocumentPublishedEvent(documentID, authorID int64, title, slug string, tags []string, publishedAt time.Time) *DocumentPublishedEvent {
	return &DocumentPublishedEvent{
		BaseEvent:   newBase(TypeDocumentPublished, authorID),
		DocumentID:  documentID,
		Title:       title,
		Slug:        slug,
		Tags:        tags,
		PublishedAt: publishedAt,
	}
}

// DocumentArchivedEvent fires when an author or moderator archives a document.
type DocumentArchivedEvent struct {
	BaseEvent
	DocumentID int64 `json:"document_id"`
	Archived   bool  `json:"archived"`
	ByAdmin    bool  `json:"by_admin"`
}

// NewDocumentArchivedEvent creates a new DocumentArchivedEvent
func NewDocumentArchivedEvent(documentID, actorID int64, archived, byAdmin bool) *DocumentArchivedEvent {
	return &DocumentArchivedEvent{
		BaseEvent:  newBase(TypeDocumentArchived, actorID),
		DocumentID: documentID,
		Archived:   archived,
		ByAdmin:    byAdmin,
	}
}

// DocumentDeletedEvent fires when an author deletes a document.
type DocumentDeletedEvent struct {
	BaseEvent
	DocumentID int64 `json:"document_id"`
}

// NewDocumentDeletedEvent creates a new DocumentDeletedEvent
func NewDocumentDeletedEvent(documentID, authorID int64) *DocumentDeletedEvent {
	return &DocumentDeletedEvent{
		BaseEvent:  newBase(TypeDocumentDeleted, authorID),
		DocumentID: documentID,
	}
}

// EngagementChangedEvent mirrors a row change on likes, bookmarks, views,
// follows or comments.
type EngagementChangedEvent struct {
	BaseEvent
	Table      string `json:"table"`
	Action     string `json:"action"`
	DocumentID int64  `json:"document_id,omitempty"`
	TargetID   int64  `json:"target_id,omitempty"`
}

// NewEngagementChangedEvent creates a new EngagementChangedEvent
func NewEngagementChangedEvent(table, action string, documentID, actorID int64) *EngagementChangedEvent {
	return &EngagementChangedEvent{
		BaseEvent:  newBase(TypeEngagementChanged, actorID),
		Table:      table,
		Action:     action,
		DocumentID: documentID,
	}
}

// StreakUpdatedEvent is broadcast after the streak RPC returns. Any number
// of listeners may react; publishers never wait on them.
type StreakUpdatedEvent struct {
	BaseEvent
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent
func NewStreakUpdatedEvent(userID int64, current, longest int) *StreakUpdatedEvent {
	return &StreakUpdatedEvent{
		BaseEvent:     newBase(TypeStreakUpdated, userID),
		CurrentStreak: current,
		LongestStreak: longest,
	}
}

// AuthStateEvent covers sign up, sign in and sign out.
type AuthStateEvent struct {
	BaseEvent
	Username string `json:"username"`
	Method   string `json:"method"`
}

// NewAuthStateEvent creates a new AuthStateEvent
func NewAuthStateEvent(eventType string, userID int64, username, method string) *AuthStateEvent {
	return &AuthStateEvent{
		BaseEvent: newBase(eventType, userID),
		Username:  username,
		Method:    method,
	}
}

// UserSuspendedEvent fires when a moderator changes a user's status.
type UserSuspendedEvent struct {
	BaseEvent
	TargetUserID int64 `json:"target_user_id"`
	Suspended    bool  `json:"suspended"`
}

// NewUserSuspendedEvent creates a new UserSuspendedEvent
func NewUserSuspendedEvent(adminID, targetUserID int64, suspended bool) *UserSuspendedEvent {
	return &UserSuspendedEvent{
		BaseEvent:    newBase(TypeUserSuspended, adminID),
		TargetUserID: targetUserID,
		Suspended:    suspended,
	}
}

// FileUploadedEvent represents a completed object storage upload
type FileUploadedEvent struct {
	BaseEvent
	Kind     string `json:"kind"`
	FileSize int64  `json:"file_size"`
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// NewFileUploadedEvent creates a new FileUploadedEvent
func NewFileUploadedEvent(userID int64, kind string, fileSize int64, url, publicID string) *FileUploadedEvent {
	return &FileUploadedEvent{
		BaseEvent: newBase(TypeFileUploaded, userID),
		Kind:      kind,
		FileSize:  fileSize,
		URL:       url,
		PublicID:  publicID,
	}
}

// AnnouncementChangedEvent fires on announcement create, update and delete.
type AnnouncementChangedEvent struct {
	BaseEvent
	AnnouncementID int64  `json:"announcement_id"`
	Action         string `json:"action"`
}

// NewAnnouncementChangedEvent creates a new AnnouncementChangedEvent
func NewAnnouncementChangedEvent(adminID, announcementID int64, action string) *AnnouncementChangedEvent {
	return &AnnouncementChangedEvent{
		BaseEvent:      newBase(TypeAnnouncementChanged, adminID),
		AnnouncementID: announcementID,
		Action:         action,
	}
}

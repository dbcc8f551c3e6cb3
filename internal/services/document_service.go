package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"html"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"expertene/internal/blocks"
	"expertene/internal/config"
	"expertene/internal/events"
	"expertene/internal/models"
	"expertene/internal/platform"
	"expertene/internal/repositories"
)

// DefaultWordsPerMinute is the reading speed behind ReadingTime.
const DefaultWordsPerMinute = 200

const shareTokenBytes = 24

const maxSlugSuffix = 20

var (
	slugStrip      = regexp.MustCompile(`[^\w\s-]`)
	slugSeparators = regexp.MustCompile(`[\s_-]+`)
)

// ReadingTime estimates minutes to read the text blocks of list:
// max(1, ceil(words/200)) with markup stripped.
func ReadingTime(list blocks.List) int {
	return readingTime(list, DefaultWordsPerMinute)
}

func readingTime(list blocks.List, wpm int) int {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	words := 0
	for _, b := range list {
		if t, ok := b.Content.(blocks.TextContent); ok {
			words += CountWords(t.HTML)
		}
	}
	return max(1, int(math.Ceil(float64(words)/float64(wpm))))
}

// plainText strips all markup; tag boundaries become spaces.
var plainText = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)

// CountWords counts the words of an HTML fragment. A word is a
// whitespace-separated run holding at least one letter or digit.
func CountWords(fragment string) int {
	text := html.UnescapeString(plainText.Sanitize(fragment))
	n := 0
	for _, f := range strings.Fields(text) {
		if strings.IndexFunc(f, isWordRune) >= 0 {
			n++
		}
	}
	return n
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// Slugify derives a URL slug from title. A title with no usable characters
// yields "post-<unix millis>".
func Slugify(title string, now time.Time) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSeparators.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fmt.Sprintf("post-%d", now.UnixMilli())
	}
	return s
}

// normalizeTags trims, drops empties and removes duplicates keeping the
// first occurrence.
func normalizeTags(tags []string) []string {
	trimmed := lo.Map(tags, func(t string, _ int) string { return strings.TrimSpace(t) })
	return lo.Uniq(lo.Compact(trimmed))
}

func newShareToken() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// documentService implements DocumentService
type documentService struct {
	docs       repositories.DocumentRepository
	users      repositories.UserRepository
	engagement repositories.EngagementRepository
	slugs      SlugGenerator
	changes    platform.ChangeFeed
	events     events.EventBus
	config     config.EditorConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewDocumentService creates the document assembly service. slugs may be
// nil, in which case slugs are always derived locally.
func NewDocumentService(
	docs repositories.DocumentRepository,
	users repositories.UserRepository,
	engagement repositories.EngagementRepository,
	slugs SlugGenerator,
	changes platform.ChangeFeed,
	bus events.EventBus,
	cfg config.EditorConfig,
	logger *zap.Logger,
) DocumentService {
	return &documentService{
		docs:       docs,
		users:      users,
		engagement: engagement,
		slugs:      slugs,
		changes:    changes,
		events:     bus,
		config:     cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateDocument returns an unsaved draft seeded with the default block
// list. Nothing is persisted until SaveDocument.
func (s *documentService) CreateDocument(_ context.Context, userID int64) (*models.Document, error) {
	if userID <= 0 {
		return nil, NewUnauthorizedError("authentication required")
	}
	return &models.Document{
		AuthorID:    userID,
		Tags:        []string{},
		ReadingTime: 1,
		Blocks:      blocks.NewDocumentStore().Blocks(),
	}, nil
}

// GenerateSlug asks the edge function for a slug and falls back to Slugify
// on any failure.
func (s *documentService) GenerateSlug(ctx context.Context, title string) string {
	if s.slugs != nil {
		slug, err := s.slugs.GenerateSlug(ctx, title)
		if err == nil {
			return slug
		}
		s.logger.Debug("Slug function unavailable, deriving locally", zap.Error(err))
	}
	return Slugify(title, s.now())
}

// uniqueSlug returns base, or base with the first free numeric suffix
// ("-2", "-3", ...). After maxSlugSuffix tries a random suffix is used.
func (s *documentService) uniqueSlug(ctx context.Context, base string, selfID int64) string {
	candidate := base
	for n := 2; n <= maxSlugSuffix+1; n++ {
		taken, err := s.docs.SlugExists(ctx, candidate, selfID)
		if err != nil {
			s.logger.Warn("Slug lookup failed", zap.Error(err), zap.String("slug", candidate))
			return candidate
		}
		if !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return base + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (s *documentService) validateSave(req *SaveDocumentRequest) error {
	if req == nil {
		return NewValidationError("request is required", nil)
	}
	if strings.TrimSpace(req.Title) == "" {
		return NewFieldValidationError("please add a title", FieldError{Field: "title", Message: "is required", Code: "required"})
	}
	if err := validateRequest("invalid document", req); err != nil {
		return err
	}
	if limit := s.config.MaxBlocksPerDocument; limit > 0 && len(req.Blocks) > limit {
		return NewValidationError(fmt.Sprintf("a document may hold at most %d blocks", limit), nil)
	}
	if err := req.Blocks.Validate(); err != nil {
		return NewValidationError("invalid block content", err)
	}
	return nil
}

// SaveDocument validates, assembles and persists the editor state. Updates
// match on id and author together.
func (s *documentService) SaveDocument(ctx context.Context, req *SaveDocumentRequest) (*models.Document, error) {
	if err := s.validateSave(req); err != nil {
		return nil, err
	}
	if req.AuthorID <= 0 {
		return nil, NewUnauthorizedError("authentication required")
	}

	title := strings.TrimSpace(req.Title)
	list := req.Blocks
	if list == nil {
		list = blocks.List{}
	}

	var (
		doc          *models.Document
		isNew        = req.ID == nil
		wasPublished bool
	)
	if isNew {
		doc = &models.Document{AuthorID: req.AuthorID}
	} else {
		existing, err := s.docs.GetForAuthor(ctx, *req.ID, req.AuthorID)
		if err != nil {
			return nil, fromRepository(err, "document")
		}
		doc = existing
		wasPublished = existing.IsPublished
	}

	if isNew || doc.Slug == "" || doc.Title != title {
		doc.Slug = s.uniqueSlug(ctx, s.GenerateSlug(ctx, title), doc.ID)
	}
	doc.Title = title
	doc.Subtitle = req.Subtitle
	doc.CoverImageURL = req.CoverImageURL
	doc.Tags = normalizeTags(req.Tags)
	doc.IsPrivate = req.IsPrivate
	doc.IsPublished = req.Publish
	doc.Blocks = list
	doc.ReadingTime = readingTime(list, s.config.WordsPerMinute)
	if req.Publish && doc.PublishedAt == nil {
		now := s.now().UTC()
		doc.PublishedAt = &now
	}

	if isNew {
		if err := s.docs.Create(ctx, doc); err != nil {
			s.logger.Error("Failed to create document", zap.Error(err), zap.Int64("author_id", req.AuthorID))
			return nil, fromRepository(err, "document")
		}
	} else {
		if err := s.docs.Update(ctx, doc); err != nil {
			s.logger.Error("Failed to update document", zap.Error(err), zap.Int64("document_id", doc.ID))
			return nil, fromRepository(err, "document")
		}
		s.notifyChange(ctx, doc.ID, "UPDATE")
	}

	if err := s.events.Publish(ctx, events.NewDocumentSavedEvent(doc.ID, doc.AuthorID, doc.Slug, doc.ReadingTime, len(doc.Blocks), isNew)); err != nil {
		s.logger.Warn("Failed to publish document saved event", zap.Error(err))
	}
	if doc.IsPublished && !wasPublished {
		evt := events.NewDocumentPublishedEvent(doc.ID, doc.AuthorID, doc.Title, doc.Slug, doc.Tags, *doc.PublishedAt)
		if err := s.events.PublishAsync(ctx, evt); err != nil {
			s.logger.Warn("Failed to publish document published event", zap.Error(err))
		}
	}

	s.logger.Info("Document saved",
		zap.Int64("document_id", doc.ID),
		zap.Int64("author_id", doc.AuthorID),
		zap.Bool("is_new", isNew),
		zap.Bool("published", doc.IsPublished),
		zap.Int("blocks", len(doc.Blocks)),
	)
	return doc, nil
}

// LoadForEdit fetches a document for its author. Missing and foreign
// documents are both reported as not found.
func (s *documentService) LoadForEdit(ctx context.Context, id, userID int64) (*models.Document, error) {
	doc, err := s.docs.GetForAuthor(ctx, id, userID)
	if err != nil {
		return nil, fromRepository(err, "document")
	}
	if doc.Blocks == nil {
		doc.Blocks = blocks.List{}
	}
	return doc, nil
}

func (s *documentService) view(ctx context.Context, doc *models.Document, viewerID *int64) *DocumentView {
	v := &DocumentView{Document: doc}
	if viewerID == nil || s.engagement == nil {
		return v
	}
	state, err := s.engagement.ViewerState(ctx, doc.ID, *viewerID)
	if err != nil {
		s.logger.Warn("Failed to load viewer state", zap.Error(err), zap.Int64("document_id", doc.ID))
		return v
	}
	v.Viewer = &state
	return v
}

func (s *documentService) readable(doc *models.Document, viewerID *int64) bool {
	if doc.IsPubliclyVisible() {
		return true
	}
	return viewerID != nil && doc.IsOwnedBy(*viewerID)
}

func (s *documentService) GetDocument(ctx context.Context, id int64, viewerID *int64) (*DocumentView, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepository(err, "document")
	}
	if !s.readable(doc, viewerID) {
		return nil, NewNotFoundError("document not found")
	}
	return s.view(ctx, doc, viewerID), nil
}

func (s *documentService) GetPublishedBySlug(ctx context.Context, slug string, viewerID *int64) (*DocumentView, error) {
	doc, err := s.docs.GetPublishedBySlug(ctx, slug)
	if err != nil {
		return nil, fromRepository(err, "document")
	}
	return s.view(ctx, doc, viewerID), nil
}

// GetByShareToken opens a private document through its share link.
func (s *documentService) GetByShareToken(ctx context.Context, token string) (*DocumentView, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewNotFoundError("document not found")
	}
	doc, err := s.docs.GetByShareToken(ctx, token)
	if err != nil {
		return nil, fromRepository(err, "document")
	}
	if doc.IsArchived {
		return nil, NewNotFoundError("document not found")
	}
	return &DocumentView{Document: doc}, nil
}

// IssueShareToken replaces the document's share token with a fresh one.
func (s *documentService) IssueShareToken(ctx context.Context, id, userID int64) (string, error) {
	token, err := newShareToken()
	if err != nil {
		return "", NewInternalError("failed to generate share token", err)
	}
	if err := s.docs.SetShareToken(ctx, id, userID, token); err != nil {
		return "", fromRepository(err, "document")
	}
	s.logger.Info("Share token issued", zap.Int64("document_id", id), zap.Int64("user_id", userID))
	return token, nil
}

func (s *documentService) ArchiveDocument(ctx context.Context, id, userID int64, archived bool) error {
	if err := s.docs.SetArchived(ctx, id, &userID, archived); err != nil {
		return fromRepository(err, "document")
	}
	s.notifyChange(ctx, id, "UPDATE")
	if err := s.events.Publish(ctx, events.NewDocumentArchivedEvent(id, userID, archived, false)); err != nil {
		s.logger.Warn("Failed to publish document archived event", zap.Error(err))
	}
	return nil
}

func (s *documentService) DeleteDocument(ctx context.Context, id, userID int64) error {
	if err := s.docs.Delete(ctx, id, userID); err != nil {
		return fromRepository(err, "document")
	}
	s.notifyChange(ctx, id, "DELETE")
	if err := s.events.Publish(ctx, events.NewDocumentDeletedEvent(id, userID)); err != nil {
		s.logger.Warn("Failed to publish document deleted event", zap.Error(err))
	}
	s.logger.Info("Document deleted", zap.Int64("document_id", id), zap.Int64("user_id", userID))
	return nil
}

func (s *documentService) ListMyDocuments(ctx context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	page, err := s.docs.ListByAuthor(ctx, userID, params.Normalize(20))
	if err != nil {
		return nil, fromRepository(err, "documents")
	}
	return page, nil
}

// ListByAuthor lists a user's public documents by username.
func (s *documentService) ListByAuthor(ctx context.Context, username string, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fromRepository(err, "user")
	}
	page, err := s.docs.ListPublishedByAuthor(ctx, user.ID, params.Normalize(20))
	if err != nil {
		return nil, fromRepository(err, "documents")
	}
	return page, nil
}

func (s *documentService) notifyChange(ctx context.Context, id int64, event string) {
	if s.changes == nil {
		return
	}
	change := platform.Change{Table: "documents", Event: event, RowID: id}
	if err := s.changes.Publish(ctx, platform.DocumentChannel(id), change); err != nil {
		s.logger.Warn("Failed to publish document change", zap.Error(err), zap.Int64("document_id", id))
	}
}

package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"expertene/internal/config"
	"expertene/internal/events"
	"expertene/internal/models"
	"expertene/internal/platform"
	"expertene/internal/repositories"
)

// commentService implements CommentService
type commentService struct {
	comments repositories.CommentRepository
	docs     repositories.DocumentRepository
	changes  platform.ChangeFeed
	events   events.EventBus
	features config.FeatureConfig
	logger   *zap.Logger
}

// NewCommentService creates the comment service
func NewCommentService(
	comments repositories.CommentRepository,
	docs repositories.DocumentRepository,
	changes platform.ChangeFeed,
	bus events.EventBus,
	features config.FeatureConfig,
	logger *zap.Logger,
) CommentService {
	return &commentService{
		comments: comments,
		docs:     docs,
		changes:  changes,
		events:   bus,
		features: features,
		logger:   logger,
	}
}

func (s *commentService) List(ctx context.Context, documentID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Comment], error) {
	page, err := s.comments.ListByDocument(ctx, documentID, params.Normalize(50))
	if err != nil {
		return nil, fromRepository(err, "comments")
	}
	return page, nil
}

// Create adds a comment to a document the author can read.
func (s *commentService) Create(ctx context.Context, req *CreateCommentRequest) (*models.Comment, error) {
	if !s.features.EnableComments {
		return nil, NewForbiddenError("comments are disabled")
	}
	if req.AuthorID <= 0 {
		return nil, NewUnauthorizedError("authentication required")
	}
	if err := validateRequest("invalid comment", req); err != nil {
		return nil, err
	}

	doc, err := s.docs.GetByID(ctx, req.DocumentID)
	if err != nil {
		return nil, fromRepository(err, "document")
	}
	if !doc.IsPubliclyVisible() && !doc.IsOwnedBy(req.AuthorID) {
		return nil, NewNotFoundError("document not found")
	}

	comment := &models.Comment{
		DocumentID: req.DocumentID,
		AuthorID:   req.AuthorID,
		Body:       strings.TrimSpace(req.Body),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		s.logger.Error("Failed to create comment", zap.Error(err), zap.Int64("document_id", req.DocumentID))
		return nil, fromRepository(err, "comment")
	}

	s.notify(ctx, "INSERT", comment.DocumentID, req.AuthorID)
	return comment, nil
}

// Delete removes a comment. Only its author or an admin may do so.
func (s *commentService) Delete(ctx context.Context, commentID int64, actor *models.User) error {
	if actor == nil {
		return NewUnauthorizedError("authentication required")
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return fromRepository(err, "comment")
	}
	if !comment.IsOwnedBy(actor.ID) && !actor.IsAdmin() {
		return NewForbiddenError("you can only delete your own comments")
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		return fromRepository(err, "comment")
	}

	s.notify(ctx, "DELETE", comment.DocumentID, actor.ID)
	return nil
}

func (s *commentService) notify(ctx context.Context, action string, documentID, actorID int64) {
	if s.changes != nil {
		change := platform.Change{Table: "comments", Event: action, RowID: documentID}
		if err := s.changes.Publish(ctx, platform.DocumentChannel(documentID), change); err != nil {
			s.logger.Warn("Failed to publish change", zap.Error(err), zap.Int64("document_id", documentID))
		}
	}
	if err := s.events.Publish(ctx, events.NewEngagementChangedEvent("comments", action, documentID, actorID)); err != nil {
		s.logger.Warn("Failed to publish comment event", zap.Error(err))
	}
}

package services

import (
	"context"

	"go.uber.org/zap"

	"expertene/internal/engagement"
	"expertene/internal/events"
	"expertene/internal/models"
	"expertene/internal/platform"
	"expertene/internal/repositories"
)

// engagementService implements EngagementService
type engagementService struct {
	docs       repositories.DocumentRepository
	engagement repositories.EngagementRepository
	users      repositories.UserRepository
	changes    platform.ChangeFeed
	events     events.EventBus
	analytics  platform.AnalyticsSink
	logger     *zap.Logger
}

// NewEngagementService creates the engagement service
func NewEngagementService(
	docs repositories.DocumentRepository,
	engagementRepo repositories.EngagementRepository,
	users repositories.UserRepository,
	changes platform.ChangeFeed,
	bus events.EventBus,
	analytics platform.AnalyticsSink,
	logger *zap.Logger,
) EngagementService {
	return &engagementService{
		docs:       docs,
		engagement: engagementRepo,
		users:      users,
		changes:    changes,
		events:     bus,
		analytics:  analytics,
		logger:     logger,
	}
}

func (s *engagementService) visibleDocument(ctx context.Context, id, userID int64) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepository(err, "document")
	}
	if !doc.IsPubliclyVisible() && !doc.IsOwnedBy(userID) {
		return nil, NewNotFoundError("document not found")
	}
	return doc, nil
}

// Toggle sets the like or bookmark of userID on a document to active.
// Repeating the current state is a no-op at the storage layer.
func (s *engagementService) Toggle(ctx context.Context, userID, documentID int64, kind engagement.Kind, active bool) error {
	if _, err := s.visibleDocument(ctx, documentID, userID); err != nil {
		return err
	}

	var (
		err   error
		table string
	)
	switch kind {
	case engagement.KindLike:
		table = "likes"
		if active {
			err = s.engagement.Like(ctx, userID, documentID)
		} else {
			err = s.engagement.Unlike(ctx, userID, documentID)
		}
	case engagement.KindBookmark:
		table = "bookmarks"
		if active {
			err = s.engagement.Bookmark(ctx, userID, documentID)
		} else {
			err = s.engagement.Unbookmark(ctx, userID, documentID)
		}
	default:
		return NewValidationError("unknown engagement kind", nil)
	}
	if err != nil {
		s.logger.Error("Engagement mutation failed",
			zap.Error(err),
			zap.String("table", table),
			zap.Int64("document_id", documentID),
			zap.Int64("user_id", userID),
		)
		return fromRepository(err, table)
	}

	action := "INSERT"
	if !active {
		action = "DELETE"
	}
	s.notify(ctx, table, action, documentID, userID)
	return nil
}

func (s *engagementService) notify(ctx context.Context, table, action string, documentID, userID int64) {
	if s.changes != nil {
		change := platform.Change{Table: table, Event: action, RowID: documentID}
		if err := s.changes.Publish(ctx, platform.DocumentChannel(documentID), change); err != nil {
			s.logger.Warn("Failed to publish change", zap.Error(err), zap.Int64("document_id", documentID))
		}
	}
	if err := s.events.Publish(ctx, events.NewEngagementChangedEvent(table, action, documentID, userID)); err != nil {
		s.logger.Warn("Failed to publish engagement event", zap.Error(err))
	}
}

func (s *engagementService) Follow(ctx context.Context, followerID, followingID int64) error {
	if followerID == followingID {
		return NewValidationError("you cannot follow yourself", nil)
	}
	if _, err := s.users.GetByID(ctx, followingID); err != nil {
		return fromRepository(err, "user")
	}
	if err := s.engagement.Follow(ctx, followerID, followingID); err != nil {
		return fromRepository(err, "follow")
	}
	evt := events.NewEngagementChangedEvent("follows", "INSERT", 0, followerID)
	evt.TargetID = followingID
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("Failed to publish follow event", zap.Error(err))
	}
	return nil
}

func (s *engagementService) Unfollow(ctx context.Context, followerID, followingID int64) error {
	if err := s.engagement.Unfollow(ctx, followerID, followingID); err != nil {
		return fromRepository(err, "follow")
	}
	evt := events.NewEngagementChangedEvent("follows", "DELETE", 0, followerID)
	evt.TargetID = followingID
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("Failed to publish unfollow event", zap.Error(err))
	}
	return nil
}

func (s *engagementService) IsFollowing(ctx context.Context, followerID, followingID int64) (bool, error) {
	ok, err := s.engagement.IsFollowing(ctx, followerID, followingID)
	if err != nil {
		return false, fromRepository(err, "follow")
	}
	return ok, nil
}

// RecordView calls the increment_view_count RPC and returns the new count.
func (s *engagementService) RecordView(ctx context.Context, documentID int64, viewerID *int64) (int, error) {
	views, err := s.engagement.IncrementViewCount(ctx, documentID, viewerID)
	if err != nil {
		return 0, fromRepository(err, "document")
	}

	var actor int64
	if viewerID != nil {
		actor = *viewerID
	}
	s.notify(ctx, "views", "INSERT", documentID, actor)
	if s.analytics != nil {
		evt := platform.AnalyticsEvent{Name: "view", UserID: actor, DocumentID: documentID}
		if err := s.analytics.Track(ctx, evt); err != nil {
			s.logger.Debug("Failed to track view", zap.Error(err))
		}
	}
	return views, nil
}

// GetCounts re-fetches the authoritative counters.
func (s *engagementService) GetCounts(ctx context.Context, documentID int64) (models.EngagementCounts, error) {
	counts, err := s.docs.GetCounts(ctx, documentID)
	if err != nil {
		return models.EngagementCounts{}, fromRepository(err, "document")
	}
	return counts, nil
}

func (s *engagementService) GetViewerState(ctx context.Context, documentID, userID int64) (models.ViewerState, error) {
	state, err := s.engagement.ViewerState(ctx, documentID, userID)
	if err != nil {
		return models.ViewerState{}, fromRepository(err, "document")
	}
	return state, nil
}

func (s *engagementService) ListBookmarks(ctx context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	page, err := s.engagement.ListBookmarked(ctx, userID, params.Normalize(20))
	if err != nil {
		return nil, fromRepository(err, "bookmarks")
	}
	return page, nil
}

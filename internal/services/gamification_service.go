package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"expertene/internal/events"
	"expertene/internal/platform"
	"expertene/internal/repositories"
)

// TaskPublishArticle is the task advanced on every first publish.
const TaskPublishArticle = "publish_article"

// GamificationListener reacts to publish events: it tracks analytics,
// advances the publishing task and refreshes the author's streak. Every
// step is independent; a failure in one does not stop the others.
type GamificationListener struct {
	repo      repositories.GamificationRepository
	analytics platform.AnalyticsSink
	bus       events.EventBus
	logger    *zap.Logger
}

// NewGamificationListener creates the listener. analytics may be nil.
func NewGamificationListener(repo repositories.GamificationRepository, analytics platform.AnalyticsSink, bus events.EventBus, logger *zap.Logger) *GamificationListener {
	return &GamificationListener{repo: repo, analytics: analytics, bus: bus, logger: logger}
}

// Register subscribes the listener to the bus.
func (l *GamificationListener) Register() error {
	return l.bus.Subscribe(events.TypeDocumentPublished,
		events.NewTypedEventHandler("gamification.published", l.OnPublished))
}

// OnPublished handles one DocumentPublishedEvent.
func (l *GamificationListener) OnPublished(ctx context.Context, evt *events.DocumentPublishedEvent) error {
	userID := evt.GetUserID()
	if userID == nil {
		return errors.New("published event without author")
	}
	authorID := *userID
	var errs []error

	if l.analytics != nil {
		err := l.analytics.Track(ctx, platform.AnalyticsEvent{
			Name:       "published",
			UserID:     authorID,
			DocumentID: evt.DocumentID,
			Properties: map[string]any{"slug": evt.Slug, "tags": evt.Tags},
		})
		if err != nil {
			l.logger.Warn("Failed to track publish", zap.Error(err), zap.Int64("document_id", evt.DocumentID))
			errs = append(errs, err)
		}
	}

	if _, err := l.repo.UpdateTaskProgress(ctx, authorID, TaskPublishArticle, 1); err != nil {
		l.logger.Warn("Failed to update task progress", zap.Error(err), zap.Int64("user_id", authorID))
		errs = append(errs, err)
	}

	streak, err := l.repo.UpdateStreak(ctx, authorID)
	if err != nil {
		l.logger.Warn("Failed to update streak", zap.Error(err), zap.Int64("user_id", authorID))
		return errors.Join(append(errs, err)...)
	}
	if err := l.bus.Publish(ctx, events.NewStreakUpdatedEvent(authorID, streak.Current, streak.Longest)); err != nil {
		errs = append(errs, err)
	}

	l.logger.Debug("Streak updated",
		zap.Int64("user_id", authorID),
		zap.Int("current", streak.Current),
		zap.Int("longest", streak.Longest),
	)
	return errors.Join(errs...)
}

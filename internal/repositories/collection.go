package repositories

import (
	"fmt"

	"go.uber.org/zap"

	"expertene/internal/database"
)

// Collection holds all repository instances for dependency injection
type Collection struct {
	Document     DocumentRepository
	Engagement   EngagementRepository
	User         UserRepository
	Comment      CommentRepository
	Announcement AnnouncementRepository
	Gamification GamificationRepository
}

// NewCollection creates a repository collection over db
func NewCollection(db *database.Manager, logger *zap.Logger) (*Collection, error) {
	if db == nil {
		return nil, fmt.Errorf("database manager is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collection{
		Document:     NewDocumentRepository(db, logger),
		Engagement:   NewEngagementRepository(db, logger),
		User:         NewUserRepository(db, logger),
		Comment:      NewCommentRepository(db, logger),
		Announcement: NewAnnouncementRepository(db, logger),
		Gamification: NewGamificationRepository(db, logger),
	}

	logger.Info("Repository collection initialized")
	return c, nil
}

package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"expertene/internal/events"
	"expertene/internal/models"
	"expertene/internal/platform"
	"expertene/internal/repositories"
)

// adminService implements AdminService
type adminService struct {
	users         repositories.UserRepository
	docs          repositories.DocumentRepository
	announcements repositories.AnnouncementRepository
	changes       platform.ChangeFeed
	events        events.EventBus
	logger        *zap.Logger
}

// NewAdminService creates the moderation service
func NewAdminService(
	users repositories.UserRepository,
	docs repositories.DocumentRepository,
	announcements repositories.AnnouncementRepository,
	changes platform.ChangeFeed,
	bus events.EventBus,
	logger *zap.Logger,
) AdminService {
	return &adminService{
		users:         users,
		docs:          docs,
		announcements: announcements,
		changes:       changes,
		events:        bus,
		logger:        logger,
	}
}

func requireAdmin(actor *models.User) error {
	if actor == nil {
		return NewUnauthorizedError("authentication required")
	}
	if !actor.IsAdmin() {
		return NewForbiddenError("admin access required")
	}
	return nil
}

// ===============================
// USERS
// ===============================

func (s *adminService) ListUsers(ctx context.Context, actor *models.User, search string, params models.PaginationParams) (*models.PaginatedResponse[*models.User], error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	page, err := s.users.List(ctx, strings.TrimSpace(search), params.Normalize(25))
	if err != nil {
		return nil, fromRepository(err, "users")
	}
	return page, nil
}

func (s *adminService) SetRole(ctx context.Context, actor *models.User, userID int64, role string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return NewValidationError("role must be user or admin", nil)
	}
	if userID == actor.ID && role != models.RoleAdmin {
		return NewValidationError("you cannot remove your own admin role", nil)
	}
	if err := s.users.SetRole(ctx, userID, role); err != nil {
		return fromRepository(err, "user")
	}
	s.logger.Info("User role changed",
		zap.Int64("admin_id", actor.ID),
		zap.Int64("user_id", userID),
		zap.String("role", role),
	)
	return nil
}

func (s *adminService) SetSuspended(ctx context.Context, actor *models.User, userID int64, suspended bool) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if userID == actor.ID {
		return NewValidationError("you cannot suspend yourself", nil)
	}
	if err := s.users.SetSuspended(ctx, userID, suspended); err != nil {
		return fromRepository(err, "user")
	}
	if err := s.events.Publish(ctx, events.NewUserSuspendedEvent(actor.ID, userID, suspended)); err != nil {
		s.logger.Warn("Failed to publish suspension event", zap.Error(err))
	}
	return nil
}

// ===============================
// DOCUMENTS
// ===============================

func (s *adminService) ListDocuments(ctx context.Context, actor *models.User, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	page, err := s.docs.ListAll(ctx, params.Normalize(25))
	if err != nil {
		return nil, fromRepository(err, "documents")
	}
	return page, nil
}

// SetDocumentArchived archives any document regardless of author.
func (s *adminService) SetDocumentArchived(ctx context.Context, actor *models.User, documentID int64, archived bool) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.docs.SetArchived(ctx, documentID, nil, archived); err != nil {
		return fromRepository(err, "document")
	}

	if s.changes != nil {
		change := platform.Change{Table: "documents", Event: "UPDATE", RowID: documentID, Data: map[string]any{"is_archived": archived}}
		if err := s.changes.Publish(ctx, platform.DocumentChannel(documentID), change); err != nil {
			s.logger.Warn("Failed to publish change", zap.Error(err))
		}
	}
	if err := s.events.Publish(ctx, events.NewDocumentArchivedEvent(documentID, actor.ID, archived, true)); err != nil {
		s.logger.Warn("Failed to publish archive event", zap.Error(err))
	}
	return nil
}

// ===============================
// ANNOUNCEMENTS
// ===============================

func (s *adminService) ListAnnouncements(ctx context.Context, activeOnly bool) ([]*models.Announcement, error) {
	list, err := s.announcements.List(ctx, activeOnly)
	if err != nil {
		return nil, fromRepository(err, "announcements")
	}
	return list, nil
}

func (s *adminService) CreateAnnouncement(ctx context.Context, actor *models.User, req *AnnouncementRequest) (*models.Announcement, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateRequest("invalid announcement", req); err != nil {
		return nil, err
	}

	createdBy := actor.ID
	a := &models.Announcement{
		Title:     strings.TrimSpace(req.Title),
		Body:      strings.TrimSpace(req.Body),
		IsActive:  req.IsActive,
		CreatedBy: &createdBy,
	}
	if err := s.announcements.Create(ctx, a); err != nil {
		return nil, fromRepository(err, "announcement")
	}
	s.announce(ctx, actor.ID, a.ID, "create")
	return a, nil
}

func (s *adminService) UpdateAnnouncement(ctx context.Context, actor *models.User, id int64, req *AnnouncementRequest) (*models.Announcement, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateRequest("invalid announcement", req); err != nil {
		return nil, err
	}

	a, err := s.announcements.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepository(err, "announcement")
	}
	a.Title = strings.TrimSpace(req.Title)
	a.Body = strings.TrimSpace(req.Body)
	a.IsActive = req.IsActive
	if err := s.announcements.Update(ctx, a); err != nil {
		return nil, fromRepository(err, "announcement")
	}
	s.announce(ctx, actor.ID, a.ID, "update")
	return a, nil
}

func (s *adminService) DeleteAnnouncement(ctx context.Context, actor *models.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.announcements.Delete(ctx, id); err != nil {
		return fromRepository(err, "announcement")
	}
	s.announce(ctx, actor.ID, id, "delete")
	return nil
}

func (s *adminService) announce(ctx context.Context, adminID, id int64, action string) {
	if err := s.events.Publish(ctx, events.NewAnnouncementChangedEvent(adminID, id, action)); err != nil {
		s.logger.Warn("Failed to publish announcement event", zap.Error(err), zap.String("action", action))
	}
}

package repositories

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"expertene/internal/database"
	"expertene/internal/models"
)

type announcementRepository struct {
	*BaseRepository
}

// NewAnnouncementRepository creates a PostgreSQL announcement repository
func NewAnnouncementRepository(db *database.Manager, logger *zap.Logger) AnnouncementRepository {
	return &announcementRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const announcementSelect = `SELECT id, title, body, is_active, created_by, created_at, updated_at FROM announcements`

func scanAnnouncement(row rowScanner) (*models.Announcement, error) {
	var a models.Announcement
	if err := row.Scan(&a.ID, &a.Title, &a.Body, &a.IsActive, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *announcementRepository) Create(ctx context.Context, a *models.Announcement) error {
	err := r.QueryRowContext(ctx, `
		INSERT INTO announcements (title, body, is_active, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		a.Title, a.Body, a.IsActive, a.CreatedBy,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return translate(err, "create announcement")
}

func (r *announcementRepository) Update(ctx context.Context, a *models.Announcement) error {
	err := r.QueryRowContext(ctx, `
		UPDATE announcements SET title = $2, body = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Title, a.Body, a.IsActive,
	).Scan(&a.UpdatedAt)
	return translate(err, "update announcement")
}

func (r *announcementRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete announcement")
	}
	return requireAffected(res, "delete announcement")
}

func (r *announcementRepository) GetByID(ctx context.Context, id int64) (*models.Announcement, error) {
	a, err := scanAnnouncement(r.QueryRowContext(ctx, announcementSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "get announcement")
	}
	return a, nil
}

func (r *announcementRepository) List(ctx context.Context, activeOnly bool) ([]*models.Announcement, error) {
	query := announcementSelect
	if activeOnly {
		query += ` WHERE is_active`
	}
	rows, err := r.QueryContext(ctx, query+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, translate(err, "list announcements")
	}
	defer rows.Close()

	out := []*models.Announcement{}
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

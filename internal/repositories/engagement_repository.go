package repositories

import (
	"context"

	"go.uber.org/zap"

	"expertene/internal/database"
	"expertene/internal/models"
)

type engagementRepository struct {
	*BaseRepository
}

// NewEngagementRepository creates a PostgreSQL engagement repository.
// Counters on documents are maintained by triggers, never here.
func NewEngagementRepository(db *database.Manager, logger *zap.Logger) EngagementRepository {
	return &engagementRepository{BaseRepository: NewBaseRepository(db, logger)}
}

func (r *engagementRepository) exec(ctx context.Context, op, query string, args ...any) error {
	_, err := r.ExecContext(ctx, query, args...)
	return translate(err, op)
}

func (r *engagementRepository) Like(ctx context.Context, userID, documentID int64) error {
	return r.exec(ctx, "like document",
		`INSERT INTO likes (user_id, document_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, documentID)
}

func (r *engagementRepository) Unlike(ctx context.Context, userID, documentID int64) error {
	return r.exec(ctx, "unlike document",
		`DELETE FROM likes WHERE user_id = $1 AND document_id = $2`, userID, documentID)
}

func (r *engagementRepository) Bookmark(ctx context.Context, userID, documentID int64) error {
	return r.exec(ctx, "bookmark document",
		`INSERT INTO bookmarks (user_id, document_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, documentID)
}

func (r *engagementRepository) Unbookmark(ctx context.Context, userID, documentID int64) error {
	return r.exec(ctx, "remove bookmark",
		`DELETE FROM bookmarks WHERE user_id = $1 AND document_id = $2`, userID, documentID)
}

func (r *engagementRepository) Follow(ctx context.Context, followerID, followingID int64) error {
	return r.exec(ctx, "follow user",
		`INSERT INTO follows (follower_id, following_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, followerID, followingID)
}

func (r *engagementRepository) Unfollow(ctx context.Context, followerID, followingID int64) error {
	return r.exec(ctx, "unfollow user",
		`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`, followerID, followingID)
}

func (r *engagementRepository) IsFollowing(ctx context.Context, followerID, followingID int64) (bool, error) {
	var ok bool
	err := r.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2)`,
		followerID, followingID).Scan(&ok)
	return ok, translate(err, "check follow")
}

func (r *engagementRepository) ViewerState(ctx context.Context, documentID, userID int64) (models.ViewerState, error) {
	var s models.ViewerState
	query := `
		SELECT
			EXISTS (SELECT 1 FROM likes WHERE document_id = d.id AND user_id = $2),
			EXISTS (SELECT 1 FROM bookmarks WHERE document_id = d.id AND user_id = $2),
			EXISTS (SELECT 1 FROM follows WHERE following_id = d.author_id AND follower_id = $2)
		FROM documents d WHERE d.id = $1`
	err := r.QueryRowContext(ctx, query, documentID, userID).Scan(&s.Liked, &s.Bookmarked, &s.FollowsAuthor)
	return s, translate(err, "get viewer state")
}

// IncrementViewCount calls the increment_view_count RPC and returns the
// new total.
func (r *engagementRepository) IncrementViewCount(ctx context.Context, documentID int64, viewerID *int64) (int, error) {
	var total int
	err := r.QueryRowContext(ctx, `SELECT increment_view_count($1, $2)`, documentID, viewerID).Scan(&total)
	return total, translate(err, "increment view count")
}

func (r *engagementRepository) ListBookmarked(ctx context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	docs := &documentRepository{BaseRepository: r.BaseRepository}
	return docs.list(ctx,
		`d.id IN (SELECT document_id FROM bookmarks WHERE user_id = $1) AND NOT d.is_archived`,
		`d.updated_at DESC`, params, userID)
}

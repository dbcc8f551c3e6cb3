package repositories

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"expertene/internal/database"
	"expertene/internal/models"
)

type commentRepository struct {
	*BaseRepository
}

// NewCommentRepository creates a PostgreSQL comment repository
func NewCommentRepository(db *database.Manager, logger *zap.Logger) CommentRepository {
	return &commentRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const commentSelect = `
	SELECT c.id, c.document_id, c.author_id, c.body, c.created_at, c.updated_at,
		u.username, u.avatar_url
	FROM comments c INNER JOIN users u ON u.id = c.author_id`

func scanComment(row rowScanner) (*models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.DocumentID, &c.AuthorID, &c.Body, &c.CreatedAt, &c.UpdatedAt,
		&c.AuthorUsername, &c.AuthorAvatarURL)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := r.QueryRowContext(ctx, `
		INSERT INTO comments (document_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		comment.DocumentID, comment.AuthorID, comment.Body,
	).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		r.GetLogger().Error("Failed to create comment",
			zap.Error(err),
			zap.Int64("document_id", comment.DocumentID),
		)
		return translate(err, "create comment")
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	c, err := scanComment(r.QueryRowContext(ctx, commentSelect+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, translate(err, "get comment")
	}
	return c, nil
}

func (r *commentRepository) ListByDocument(ctx context.Context, documentID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Comment], error) {
	var total int64
	if err := r.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE document_id = $1`, documentID).Scan(&total); err != nil {
		return nil, translate(err, "count comments")
	}

	rows, err := r.QueryContext(ctx, commentSelect+`
		WHERE c.document_id = $1
		ORDER BY c.created_at ASC
		LIMIT $2 OFFSET $3`, documentID, params.Limit, params.Offset)
	if err != nil {
		return nil, translate(err, "list comments")
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return models.NewPaginatedResponse(comments, params, total), nil
}

func (r *commentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete comment")
	}
	return requireAffected(res, "delete comment")
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"expertene/internal/blocks"
	"expertene/internal/database"
	"expertene/internal/models"
)

type documentRepository struct {
	*BaseRepository
}

// NewDocumentRepository creates a PostgreSQL document repository
func NewDocumentRepository(db *database.Manager, logger *zap.Logger) DocumentRepository {
	return &documentRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const documentColumns = `
	d.id, d.author_id, d.title, d.subtitle, d.cover_image_url, d.tags,
	d.is_private, d.is_published, d.is_archived, d.share_token,
	d.reading_time, d.slug, d.likes_count, d.bookmarks_count, d.views_count,
	d.comments_count, d.published_at, d.created_at, d.updated_at,
	u.username, u.display_name, u.avatar_url`

const documentFrom = `FROM documents d INNER JOIN users u ON u.id = d.author_id`

// scanDocument reads documentColumns and, when withContent is set, a
// trailing content column.
func scanDocument(row rowScanner, withContent bool) (*models.Document, error) {
	var d models.Document
	var raw []byte
	dest := []any{
		&d.ID, &d.AuthorID, &d.Title, &d.Subtitle, &d.CoverImageURL, pq.Array(&d.Tags),
		&d.IsPrivate, &d.IsPublished, &d.IsArchived, &d.ShareToken,
		&d.ReadingTime, &d.Slug, &d.Counts.Likes, &d.Counts.Bookmarks, &d.Counts.Views,
		&d.Counts.Comments, &d.PublishedAt, &d.CreatedAt, &d.UpdatedAt,
		&d.AuthorUsername, &d.AuthorDisplayName, &d.AuthorAvatarURL,
	}
	if withContent {
		dest = append(dest, &raw)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if d.Tags == nil {
		d.Tags = []string{}
	}
	d.Blocks = blocks.List{}
	if withContent {
		list, err := blocks.DecodeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("document %d content: %w", d.ID, err)
		}
		d.Blocks = list
	}
	return &d, nil
}

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	content, err := blocks.EncodeDocument(doc.Blocks)
	if err != nil {
		return fmt.Errorf("failed to encode content: %w", err)
	}

	query := `
		INSERT INTO documents (
			author_id, title, subtitle, cover_image_url, tags, is_private,
			is_published, reading_time, slug, content, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err = r.QueryRowContext(ctx, query,
		doc.AuthorID, doc.Title, doc.Subtitle, doc.CoverImageURL, pq.Array(doc.Tags), doc.IsPrivate,
		doc.IsPublished, doc.ReadingTime, doc.Slug, content, doc.PublishedAt,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		r.GetLogger().Error("Failed to create document",
			zap.Error(err),
			zap.Int64("author_id", doc.AuthorID),
		)
		return translate(err, "create document")
	}
	return nil
}

func (r *documentRepository) Update(ctx context.Context, doc *models.Document) error {
	content, err := blocks.EncodeDocument(doc.Blocks)
	if err != nil {
		return fmt.Errorf("failed to encode content: %w", err)
	}

	query := `
		UPDATE documents SET
			title = $3, subtitle = $4, cover_image_url = $5, tags = $6,
			is_private = $7, is_published = $8, reading_time = $9, slug = $10,
			content = $11, published_at = $12, updated_at = NOW()
		WHERE id = $1 AND author_id = $2
		RETURNING updated_at`

	err = r.QueryRowContext(ctx, query,
		doc.ID, doc.AuthorID,
		doc.Title, doc.Subtitle, doc.CoverImageURL, pq.Array(doc.Tags),
		doc.IsPrivate, doc.IsPublished, doc.ReadingTime, doc.Slug,
		content, doc.PublishedAt,
	).Scan(&doc.UpdatedAt)
	return translate(err, "update document")
}

func (r *documentRepository) getOne(ctx context.Context, where string, args ...any) (*models.Document, error) {
	query := `SELECT ` + documentColumns + `, d.content ` + documentFrom + ` WHERE ` + where
	doc, err := scanDocument(r.QueryRowContext(ctx, query, args...), true)
	if err != nil {
		return nil, translate(err, "get document")
	}
	return doc, nil
}

func (r *documentRepository) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	return r.getOne(ctx, `d.id = $1`, id)
}

func (r *documentRepository) GetForAuthor(ctx context.Context, id, authorID int64) (*models.Document, error) {
	return r.getOne(ctx, `d.id = $1 AND d.author_id = $2`, id, authorID)
}

func (r *documentRepository) GetByShareToken(ctx context.Context, token string) (*models.Document, error) {
	return r.getOne(ctx, `d.share_token = $1 AND NOT d.is_archived`, token)
}

func (r *documentRepository) GetPublishedBySlug(ctx context.Context, slug string) (*models.Document, error) {
	return r.getOne(ctx,
		`d.slug = $1 AND d.is_published AND NOT d.is_private AND NOT d.is_archived
		 ORDER BY d.published_at DESC LIMIT 1`, slug)
}

func (r *documentRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE slug = $1 AND id <> $2)`,
		slug, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, translate(err, "check slug")
	}
	return exists, nil
}

func (r *documentRepository) SetShareToken(ctx context.Context, id, authorID int64, token string) error {
	res, err := r.ExecContext(ctx,
		`UPDATE documents SET share_token = $3, updated_at = NOW() WHERE id = $1 AND author_id = $2`,
		id, authorID, token)
	if err != nil {
		return translate(err, "set share token")
	}
	return requireAffected(res, "set share token")
}

func (r *documentRepository) SetArchived(ctx context.Context, id int64, authorID *int64, archived bool) error {
	query := `UPDATE documents SET is_archived = $2, updated_at = NOW() WHERE id = $1`
	args := []any{id, archived}
	if authorID != nil {
		query += ` AND author_id = $3`
		args = append(args, *authorID)
	}
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err, "archive document")
	}
	return requireAffected(res, "archive document")
}

func (r *documentRepository) Delete(ctx context.Context, id, authorID int64) error {
	res, err := r.ExecContext(ctx, `DELETE FROM documents WHERE id = $1 AND author_id = $2`, id, authorID)
	if err != nil {
		return translate(err, "delete document")
	}
	return requireAffected(res, "delete document")
}

func (r *documentRepository) list(ctx context.Context, where, order string, params models.PaginationParams, args ...any) (*models.PaginatedResponse[*models.Document], error) {
	var total int64
	countQuery := `SELECT COUNT(*) ` + documentFrom + ` WHERE ` + where
	if err := r.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, translate(err, "count documents")
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		documentColumns, documentFrom, where, order, n+1, n+2)
	rows, err := r.QueryContext(ctx, query, append(args, params.Limit, params.Offset)...)
	if err != nil {
		return nil, translate(err, "list documents")
	}
	defer rows.Close()

	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, err
	}
	return models.NewPaginatedResponse(docs, params, total), nil
}

func collectDocuments(rows *sql.Rows) ([]*models.Document, error) {
	var docs []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

func (r *documentRepository) ListByAuthor(ctx context.Context, authorID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	return r.list(ctx, `d.author_id = $1`, `d.updated_at DESC`, params, authorID)
}

// ListPublishedByAuthor lists one author's publicly visible documents.
func (r *documentRepository) ListPublishedByAuthor(ctx context.Context, authorID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	return r.list(ctx, `d.author_id = $1 AND d.is_published AND NOT d.is_private AND NOT d.is_archived`,
		`d.published_at DESC NULLS LAST`, params, authorID)
}

// ListFeed lists publicly visible documents, newest first, with authors
// the viewer follows ranked ahead of everyone else.
func (r *documentRepository) ListFeed(ctx context.Context, viewerID *int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	const visible = `d.is_published AND NOT d.is_private AND NOT d.is_archived`
	if viewerID == nil {
		return r.list(ctx, visible, `d.published_at DESC NULLS LAST`, params)
	}
	order := `EXISTS (SELECT 1 FROM follows f WHERE f.follower_id = $1 AND f.following_id = d.author_id) DESC,
		d.published_at DESC NULLS LAST`
	// The count query shares the args, so $1 has to appear in the filter.
	return r.list(ctx, visible+` AND $1::BIGINT IS NOT NULL`, order, params, *viewerID)
}

func (r *documentRepository) ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` ` + documentFrom + `
		WHERE d.is_published AND NOT d.is_private AND NOT d.is_archived AND d.published_at >= $1
		ORDER BY d.published_at DESC
		LIMIT $2`
	rows, err := r.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, translate(err, "list recent documents")
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (r *documentRepository) ListAll(ctx context.Context, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	return r.list(ctx, `TRUE`, `d.created_at DESC`, params)
}

func (r *documentRepository) GetCounts(ctx context.Context, id int64) (models.EngagementCounts, error) {
	var c models.EngagementCounts
	err := r.QueryRowContext(ctx,
		`SELECT likes_count, bookmarks_count, views_count, comments_count FROM documents WHERE id = $1`, id,
	).Scan(&c.Likes, &c.Bookmarks, &c.Views, &c.Comments)
	return c, translate(err, "get counts")
}

// AuthorTotals sums published-document counters per author. Scoring is
// left to the caller.
func (r *documentRepository) AuthorTotals(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	query := `
		SELECT u.id, u.username, u.display_name, u.avatar_url,
			COUNT(d.id), COALESCE(SUM(d.likes_count), 0),
			COALESCE(SUM(d.bookmarks_count), 0), COALESCE(SUM(d.views_count), 0)
		FROM users u
		INNER JOIN documents d ON d.author_id = u.id
			AND d.is_published AND NOT d.is_private AND NOT d.is_archived
		WHERE NOT u.is_suspended
		GROUP BY u.id
		ORDER BY COUNT(d.id) DESC
		LIMIT $1`
	rows, err := r.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, translate(err, "aggregate authors")
	}
	defer rows.Close()

	var out []*models.LeaderboardEntry
	for rows.Next() {
		e := &models.LeaderboardEntry{}
		if err := rows.Scan(&e.UserID, &e.Username, &e.DisplayName, &e.AvatarURL,
			&e.Published, &e.Likes, &e.Bookmarks, &e.Views); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

package repositories

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"expertene/internal/database"
	"expertene/internal/models"
)

type userRepository struct {
	*BaseRepository
}

// NewUserRepository creates a PostgreSQL user repository
func NewUserRepository(db *database.Manager, logger *zap.Logger) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const userColumns = `
	u.id, u.email, u.username, COALESCE(u.password_hash, ''), u.google_id,
	u.display_name, u.bio, u.avatar_url, u.role, u.is_suspended,
	u.created_at, u.updated_at,
	(SELECT COUNT(*) FROM follows WHERE following_id = u.id),
	(SELECT COUNT(*) FROM follows WHERE follower_id = u.id)`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.GoogleID,
		&u.DisplayName, &u.Bio, &u.AvatarURL, &u.Role, &u.IsSuspended,
		&u.CreatedAt, &u.UpdatedAt,
		&u.FollowersCount, &u.FollowingCount,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	var hash *string
	if user.PasswordHash != "" {
		hash = &user.PasswordHash
	}

	query := `
		INSERT INTO users (email, username, password_hash, google_id, display_name, avatar_url, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err := r.QueryRowContext(ctx, query,
		user.Email, user.Username, hash, user.GoogleID, user.DisplayName, user.AvatarURL, user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return translate(err, "create user")
	}

	r.GetLogger().Info("User created",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return nil
}

func (r *userRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	u, err := scanUser(r.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE `+where, arg))
	if err != nil {
		return nil, translate(err, "get user")
	}
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `u.id = $1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `LOWER(u.email) = LOWER($1)`, email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `LOWER(u.username) = LOWER($1)`, username)
}

func (r *userRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return r.getOne(ctx, `u.google_id = $1`, googleID)
}

func (r *userRepository) LinkGoogle(ctx context.Context, userID int64, googleID string) error {
	res, err := r.ExecContext(ctx,
		`UPDATE users SET google_id = $2, updated_at = NOW() WHERE id = $1`, userID, googleID)
	if err != nil {
		return translate(err, "link google account")
	}
	return requireAffected(res, "link google account")
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	err := r.QueryRowContext(ctx, `
		UPDATE users SET display_name = $2, bio = $3, avatar_url = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		user.ID, user.DisplayName, user.Bio, user.AvatarURL,
	).Scan(&user.UpdatedAt)
	return translate(err, "update profile")
}

// EmailForUsername resolves a username through the get_email_by_username RPC.
func (r *userRepository) EmailForUsername(ctx context.Context, username string) (string, error) {
	var email *string
	if err := r.QueryRowContext(ctx, `SELECT get_email_by_username($1)`, username).Scan(&email); err != nil {
		return "", translate(err, "resolve username")
	}
	if email == nil {
		return "", ErrNotFound
	}
	return *email, nil
}

// SuggestUsernames matches a case-insensitive username prefix.
func (r *userRepository) SuggestUsernames(ctx context.Context, prefix string, limit int) ([]string, error) {
	rows, err := r.QueryContext(ctx, `
		SELECT username FROM users
		WHERE LOWER(username) LIKE $1 AND NOT is_suspended
		ORDER BY LENGTH(username), username
		LIMIT $2`, likePrefix(prefix), limit)
	if err != nil {
		return nil, translate(err, "suggest usernames")
	}
	defer rows.Close()

	names := make([]string, 0, limit)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *userRepository) List(ctx context.Context, search string, params models.PaginationParams) (*models.PaginatedResponse[*models.User], error) {
	where := `TRUE`
	var args []any
	if search != "" {
		where = `(LOWER(u.username) LIKE $1 OR LOWER(u.email) LIKE $1)`
		args = append(args, likePrefix(search))
	}

	var total int64
	if err := r.QueryRowContext(ctx, `SELECT COUNT(*) FROM users u WHERE `+where, args...).Scan(&total); err != nil {
		return nil, translate(err, "count users")
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM users u WHERE %s ORDER BY u.created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, n+1, n+2)
	rows, err := r.QueryContext(ctx, query, append(args, params.Limit, params.Offset)...)
	if err != nil {
		return nil, translate(err, "list users")
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return models.NewPaginatedResponse(users, params, total), nil
}

func (r *userRepository) SetRole(ctx context.Context, id int64, role string) error {
	res, err := r.ExecContext(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
	if err != nil {
		return translate(err, "set role")
	}
	return requireAffected(res, "set role")
}

func (r *userRepository) SetSuspended(ctx context.Context, id int64, suspended bool) error {
	res, err := r.ExecContext(ctx, `UPDATE users SET is_suspended = $2, updated_at = NOW() WHERE id = $1`, id, suspended)
	if err != nil {
		return translate(err, "set suspended")
	}
	return requireAffected(res, "set suspended")
}

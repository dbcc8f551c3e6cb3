package repositories

import (
	"context"

	"go.uber.org/zap"

	"expertene/internal/database"
	"expertene/internal/models"
)

type gamificationRepository struct {
	*BaseRepository
}

// NewGamificationRepository creates a repository over the update_streak and
// update_task_progress RPC functions.
func NewGamificationRepository(db *database.Manager, logger *zap.Logger) GamificationRepository {
	return &gamificationRepository{BaseRepository: NewBaseRepository(db, logger)}
}

func (r *gamificationRepository) UpdateStreak(ctx context.Context, userID int64) (*models.Streak, error) {
	s := &models.Streak{UserID: userID}
	err := r.QueryRowContext(ctx, `SELECT current_streak, longest_streak FROM update_streak($1)`, userID).
		Scan(&s.Current, &s.Longest)
	if err != nil {
		return nil, translate(err, "update streak")
	}
	return s, nil
}

func (r *gamificationRepository) GetStreak(ctx context.Context, userID int64) (*models.Streak, error) {
	s := &models.Streak{UserID: userID}
	err := r.QueryRowContext(ctx,
		`SELECT current_streak, longest_streak FROM streaks WHERE user_id = $1`, userID).
		Scan(&s.Current, &s.Longest)
	if err != nil {
		return nil, translate(err, "get streak")
	}
	return s, nil
}

func (r *gamificationRepository) UpdateTaskProgress(ctx context.Context, userID int64, task string, delta int) (int, error) {
	var progress int
	err := r.QueryRowContext(ctx, `SELECT update_task_progress($1, $2, $3)`, userID, task, delta).Scan(&progress)
	return progress, translate(err, "update task progress")
}

package services

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"expertene/internal/cache"
	"expertene/internal/config"
	"expertene/internal/models"
	"expertene/internal/repositories"
)

const (
	trendingCacheKey    = "feed:trending"
	leaderboardCacheKey = "feed:leaderboard"
	trendingCandidates  = 500
)

// TrendingScore weighs engagement against age:
// (likes*3 + bookmarks*4 + comments*2 + views*0.1) / (ageHours+2)^1.5
func TrendingScore(c models.EngagementCounts, age time.Duration) float64 {
	hours := math.Max(age.Hours(), 0)
	weight := float64(c.Likes)*3 + float64(c.Bookmarks)*4 + float64(c.Comments)*2 + float64(c.Views)*0.1
	return weight / math.Pow(hours+2, 1.5)
}

// LeaderboardScore is published*10 + likes*2 + bookmarks*3 + views*0.05.
func LeaderboardScore(e *models.LeaderboardEntry) float64 {
	return float64(e.Published)*10 + float64(e.Likes)*2 + float64(e.Bookmarks)*3 + float64(e.Views)*0.05
}

// RankTrending scores docs at now and orders them best first.
func RankTrending(docs []*models.Document, now time.Time) []*models.TrendingDocument {
	out := make([]*models.TrendingDocument, 0, len(docs))
	for _, d := range docs {
		published := d.CreatedAt
		if d.PublishedAt != nil {
			published = *d.PublishedAt
		}
		out = append(out, &models.TrendingDocument{
			Document: *d,
			Score:    TrendingScore(d.Counts, now.Sub(published)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// RankAuthors scores and orders leaderboard entries best first.
func RankAuthors(entries []*models.LeaderboardEntry) []*models.LeaderboardEntry {
	for _, e := range entries {
		e.Score = LeaderboardScore(e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return entries
}

// feedService implements FeedService
type feedService struct {
	docs   repositories.DocumentRepository
	cache  cache.Cache
	config config.FeedConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewFeedService creates the feed service
func NewFeedService(docs repositories.DocumentRepository, c cache.Cache, cfg config.FeedConfig, logger *zap.Logger) FeedService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TrendingWindow <= 0 {
		cfg.TrendingWindow = 14 * 24 * time.Hour
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.LeaderboardLimit <= 0 {
		cfg.LeaderboardLimit = 50
	}
	return &feedService{docs: docs, cache: c, config: cfg, logger: logger, now: time.Now}
}

// Feed lists visible documents with followed authors first, newest first.
func (s *feedService) Feed(ctx context.Context, viewerID *int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	page, err := s.docs.ListFeed(ctx, viewerID, params.Normalize(s.config.PageSize))
	if err != nil {
		return nil, fromRepository(err, "feed")
	}
	return page, nil
}

func (s *feedService) computeTrending(ctx context.Context) ([]*models.TrendingDocument, error) {
	now := s.now()
	docs, err := s.docs.ListPublishedSince(ctx, now.Add(-s.config.TrendingWindow), trendingCandidates)
	if err != nil {
		return nil, fromRepository(err, "documents")
	}
	return RankTrending(docs, now), nil
}

func (s *feedService) computeLeaderboard(ctx context.Context) ([]*models.LeaderboardEntry, error) {
	entries, err := s.docs.AuthorTotals(ctx, s.config.LeaderboardLimit)
	if err != nil {
		return nil, fromRepository(err, "leaderboard")
	}
	return RankAuthors(entries), nil
}

func (s *feedService) Trending(ctx context.Context, limit int) ([]*models.TrendingDocument, error) {
	ranked, err := cache.Remember(ctx, s.cache, s.logger, trendingCacheKey, s.config.CacheTTL, s.computeTrending)
	if err != nil {
		return nil, err
	}
	return head(ranked, limit), nil
}

func (s *feedService) Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	ranked, err := cache.Remember(ctx, s.cache, s.logger, leaderboardCacheKey, s.config.CacheTTL, s.computeLeaderboard)
	if err != nil {
		return nil, err
	}
	return head(ranked, limit), nil
}

// Warm recomputes both rankings and overwrites the cached copies.
func (s *feedService) Warm(ctx context.Context) error {
	trending, err := s.computeTrending(ctx)
	if err != nil {
		return err
	}
	if err := cache.SetJSON(ctx, s.cache, trendingCacheKey, trending, s.config.CacheTTL); err != nil {
		return NewInternalError("failed to cache trending", err)
	}

	leaders, err := s.computeLeaderboard(ctx)
	if err != nil {
		return err
	}
	if err := cache.SetJSON(ctx, s.cache, leaderboardCacheKey, leaders, s.config.CacheTTL); err != nil {
		return NewInternalError("failed to cache leaderboard", err)
	}

	s.logger.Debug("Feed caches warmed",
		zap.Int("trending", len(trending)),
		zap.Int("authors", len(leaders)),
	)
	return nil
}

func head[T any](items []T, limit int) []T {
	if limit <= 0 || limit >= len(items) {
		return items
	}
	return items[:limit]
}

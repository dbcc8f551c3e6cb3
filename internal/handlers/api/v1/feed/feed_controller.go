package feed

import (
	"net/http"

	"go.uber.org/zap"

	"expertene/internal/contextutils"
	"expertene/internal/response"
	"expertene/internal/services"
	"expertene/internal/utils"
)

const (
	defaultRankLimit = 10
	maxRankLimit     = 50
)

// FeedController serves the home feed, rankings and public announcements.
type FeedController struct {
	feed             services.FeedService
	announcements    services.AdminService
	logger           *zap.Logger
	responseBuilder  *response.Builder
	paginationParser *response.PaginationParser
}

// NewFeedController creates a new feed controller
func NewFeedController(feed services.FeedService, announcements services.AdminService, logger *zap.Logger, responseBuilder *response.Builder) *FeedController {
	return &FeedController{
		feed:             feed,
		announcements:    announcements,
		logger:           logger,
		responseBuilder:  responseBuilder,
		paginationParser: response.NewPaginationParser(response.DefaultPaginationConfig()),
	}
}

// GetFeed handles GET /api/v1/feed. Signed-in viewers see followed
// authors first.
func (c *FeedController) GetFeed(w http.ResponseWriter, r *http.Request) {
	params, err := c.paginationParser.ParseFromRequest(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	page, err := c.feed.Feed(r.Context(), contextutils.GetUserIDPtr(r.Context()), params)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	response.WritePaginated(c.responseBuilder, w, r, page)
}

// GetTrending handles GET /api/v1/trending?limit=
func (c *FeedController) GetTrending(w http.ResponseWriter, r *http.Request) {
	limit, err := rankLimit(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	docs, err := c.feed.Trending(r.Context(), limit)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, docs)
}

// GetLeaderboard handles GET /api/v1/leaderboard?limit=
func (c *FeedController) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := rankLimit(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	entries, err := c.feed.Leaderboard(r.Context(), limit)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, entries)
}

// GetAnnouncements handles GET /api/v1/announcements
func (c *FeedController) GetAnnouncements(w http.ResponseWriter, r *http.Request) {
	list, err := c.announcements.ListAnnouncements(r.Context(), true)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, list)
}

func rankLimit(r *http.Request) (int, error) {
	limit, err := utils.QueryInt(r, "limit", defaultRankLimit)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		limit = defaultRankLimit
	}
	if limit > maxRankLimit {
		limit = maxRankLimit
	}
	return limit, nil
}

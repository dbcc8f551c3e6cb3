package users

import (
	"net/http"

	"go.uber.org/zap"

	"expertene/internal/contextutils"
	"expertene/internal/models"
	"expertene/internal/response"
	"expertene/internal/services"
	"expertene/internal/utils"
)

// suggestLimit is how many usernames the mention picker shows.
const suggestLimit = 6

// UserController handles profile, follow and mention endpoints.
type UserController struct {
	users            services.UserService
	documents        services.DocumentService
	engagement       services.EngagementService
	logger           *zap.Logger
	responseBuilder  *response.Builder
	paginationParser *response.PaginationParser
}

// NewUserController creates a new user controller
func NewUserController(
	users services.UserService,
	documents services.DocumentService,
	eng services.EngagementService,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *UserController {
	return &UserController{
		users:            users,
		documents:        documents,
		engagement:       eng,
		logger:           logger,
		responseBuilder:  responseBuilder,
		paginationParser: response.NewPaginationParser(response.DefaultPaginationConfig()),
	}
}

// ProfileResponse is a public profile as seen by the caller.
type ProfileResponse struct {
	*models.User
	Streak    *models.Streak `json:"streak,omitempty"`
	Following bool           `json:"following"`
	IsSelf    bool           `json:"is_self"`
}

type mentionRequest struct {
	Text  string `json:"text"`
	Caret int    `json:"caret"`
}

// ===============================
// PROFILES
// ===============================

// GetMe handles GET /api/v1/me
func (c *UserController) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	fresh, err := c.users.GetByID(r.Context(), user.ID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	streak, err := c.users.GetStreak(r.Context(), user.ID)
	if err != nil {
		c.logger.Warn("Failed to load streak", zap.Error(err), zap.Int64("user_id", user.ID))
	}
	c.responseBuilder.WriteSuccess(w, r, ProfileResponse{User: fresh, Streak: streak, IsSelf: true})
}

// UpdateMe handles PUT /api/v1/me
func (c *UserController) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	var req services.UpdateProfileRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	req.UserID = user.ID

	updated, err := c.users.UpdateProfile(r.Context(), &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, updated)
}

// GetProfile handles GET /api/v1/users/{username}. Email addresses are only
// shown to their owner.
func (c *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	username, err := utils.PathString(r, "username")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	ctx := r.Context()
	profile, err := c.users.GetByUsername(ctx, username)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	resp := ProfileResponse{User: profile}
	viewerID := contextutils.GetUserID(ctx)
	resp.IsSelf = viewerID == profile.ID
	if !resp.IsSelf {
		public := *profile
		public.Email = ""
		resp.User = &public
		if viewerID != 0 {
			if resp.Following, err = c.engagement.IsFollowing(ctx, viewerID, profile.ID); err != nil {
				c.responseBuilder.WriteError(w, r, err)
				return
			}
		}
	}
	if resp.Streak, err = c.users.GetStreak(ctx, profile.ID); err != nil {
		c.logger.Warn("Failed to load streak", zap.Error(err), zap.Int64("user_id", profile.ID))
	}
	c.responseBuilder.WriteSuccess(w, r, resp)
}

// GetStreak handles GET /api/v1/users/{username}/streak
func (c *UserController) GetStreak(w http.ResponseWriter, r *http.Request) {
	profile, ok := c.lookup(w, r)
	if !ok {
		return
	}
	streak, err := c.users.GetStreak(r.Context(), profile.ID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, streak)
}

// ListDocuments handles GET /api/v1/users/{username}/documents
func (c *UserController) ListDocuments(w http.ResponseWriter, r *http.Request) {
	username, err := utils.PathString(r, "username")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	params, err := c.paginationParser.ParseFromRequest(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	page, err := c.documents.ListByAuthor(r.Context(), username, params)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	response.WritePaginated(c.responseBuilder, w, r, page)
}

// ListBookmarks handles GET /api/v1/me/bookmarks
func (c *UserController) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	params, err := c.paginationParser.ParseFromRequest(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	page, err := c.engagement.ListBookmarks(r.Context(), user.ID, params)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	response.WritePaginated(c.responseBuilder, w, r, page)
}

// ===============================
// FOLLOWS
// ===============================

// Follow handles POST /api/v1/users/{username}/follow
func (c *UserController) Follow(w http.ResponseWriter, r *http.Request) {
	c.setFollow(w, r, true)
}

// Unfollow handles DELETE /api/v1/users/{username}/follow
func (c *UserController) Unfollow(w http.ResponseWriter, r *http.Request) {
	c.setFollow(w, r, false)
}

func (c *UserController) setFollow(w http.ResponseWriter, r *http.Request, follow bool) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	target, ok := c.lookup(w, r)
	if !ok {
		return
	}
	if follow {
		err = c.engagement.Follow(r.Context(), user.ID, target.ID)
	} else {
		err = c.engagement.Unfollow(r.Context(), user.ID, target.ID)
	}
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, map[string]any{"username": target.Username, "following": follow})
}

// ===============================
// MENTIONS
// ===============================

// SuggestUsernames handles GET /api/v1/users/suggest?prefix=
func (c *UserController) SuggestUsernames(w http.ResponseWriter, r *http.Request) {
	names, err := c.users.SuggestUsernames(r.Context(), r.URL.Query().Get("prefix"), suggestLimit)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, names)
}

// SuggestMentions handles POST /api/v1/users/mentions. The caret is a
// byte offset into text.
func (c *UserController) SuggestMentions(w http.ResponseWriter, r *http.Request) {
	var req mentionRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	names, err := c.users.SuggestMentions(r.Context(), req.Text, req.Caret)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, names)
}

func (c *UserController) lookup(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	username, err := utils.PathString(r, "username")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return nil, false
	}
	u, err := c.users.GetByUsername(r.Context(), username)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return nil, false
	}
	return u, true
}

package comments

import (
	"net/http"

	"go.uber.org/zap"

	"expertene/internal/middleware"
	"expertene/internal/response"
	"expertene/internal/services"
	"expertene/internal/utils"
)

// CommentController handles comment API endpoints
type CommentController struct {
	comments         services.CommentService
	logger           *zap.Logger
	responseBuilder  *response.Builder
	paginationParser *response.PaginationParser
}

// NewCommentController creates a new comment controller
func NewCommentController(comments services.CommentService, logger *zap.Logger, responseBuilder *response.Builder) *CommentController {
	return &CommentController{
		comments:         comments,
		logger:           logger,
		responseBuilder:  responseBuilder,
		paginationParser: response.NewPaginationParser(response.DefaultPaginationConfig()),
	}
}

// ListComments handles GET /api/v1/documents/{id}/comments
func (c *CommentController) ListComments(w http.ResponseWriter, r *http.Request) {
	documentID, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	params, err := c.paginationParser.ParseFromRequest(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	page, err := c.comments.List(r.Context(), documentID, params)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	response.WritePaginated(c.responseBuilder, w, r, page)
}

// CreateComment handles POST /api/v1/documents/{id}/comments
func (c *CommentController) CreateComment(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	documentID, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	var req services.CreateCommentRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		middleware.GetRequestLogger(r.Context()).Debug("Failed to decode create comment request", zap.Error(err))
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	req.DocumentID = documentID
	req.AuthorID = user.ID

	comment, err := c.comments.Create(r.Context(), &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteCreated(w, r, comment)
}

// DeleteComment handles DELETE /api/v1/comments/{id}. Authors and admins
// may delete.
func (c *CommentController) DeleteComment(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	commentID, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	if err := c.comments.Delete(r.Context(), commentID, user); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	middleware.GetRequestLogger(r.Context()).Info("Comment deleted",
		zap.Int64("comment_id", commentID),
		zap.Bool("by_admin", user.IsAdmin()),
	)
	c.responseBuilder.WriteNoContent(w, r)
}

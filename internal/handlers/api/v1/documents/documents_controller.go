package documents

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"expertene/internal/contextutils"
	"expertene/internal/engagement"
	"expertene/internal/middleware"
	"expertene/internal/response"
	"expertene/internal/services"
	"expertene/internal/utils"
)

// DocumentController serves document CRUD, sharing and engagement endpoints.
type DocumentController struct {
	documents        services.DocumentService
	engagement       services.EngagementService
	logger           *zap.Logger
	responseBuilder  *response.Builder
	paginationParser *response.PaginationParser
}

// NewDocumentController creates a new document controller
func NewDocumentController(
	documents services.DocumentService,
	eng services.EngagementService,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *DocumentController {
	return &DocumentController{
		documents:        documents,
		engagement:       eng,
		logger:           logger,
		responseBuilder:  responseBuilder,
		paginationParser: response.NewPaginationParser(response.DefaultPaginationConfig()),
	}
}

// ===============================
// AUTHORING
// ===============================

// NewDocument handles GET /api/v1/documents/new. The blank document is not
// persisted until it is first saved.
func (c *DocumentController) NewDocument(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	doc, err := c.documents.CreateDocument(r.Context(), user.ID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, doc)
}

// CreateDocument handles POST /api/v1/documents
func (c *DocumentController) CreateDocument(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	var req services.SaveDocumentRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	req.ID = nil
	req.AuthorID = user.ID

	doc, err := c.documents.SaveDocument(r.Context(), &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	middleware.GetRequestLogger(r.Context()).Info("Document created",
		zap.Int64("document_id", doc.ID),
		zap.Bool("published", doc.IsPublished),
	)
	c.responseBuilder.WriteCreated(w, r, doc)
}

// UpdateDocument handles PUT /api/v1/documents/{id}
func (c *DocumentController) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	id, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	var req services.SaveDocumentRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	req.ID = &id
	req.AuthorID = user.ID

	doc, err := c.documents.SaveDocument(r.Context(), &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, doc)
}

// LoadForEdit handles GET /api/v1/documents/{id}/edit
func (c *DocumentController) LoadForEdit(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	id, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	doc, err := c.documents.LoadForEdit(r.Context(), id, user.ID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, doc)
}

// PreviewSlug handles GET /api/v1/documents/slug-preview?title=
func (c *DocumentController) PreviewSlug(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	c.responseBuilder.WriteSuccess(w, r, map[string]string{
		"slug": c.documents.GenerateSlug(r.Context(), title),
	})
}

// archiveRequest toggles the archived flag.
type archiveRequest struct {
	Archived bool `json:"archived"`
}

// ArchiveDocument handles PUT /api/v1/documents/{id}/archive
func (c *DocumentController) ArchiveDocument(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	id, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	var req archiveRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	if err := c.documents.ArchiveDocument(r.Context(), id, user.ID, req.Archived); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, map[string]any{"id": id, "archived": req.Archived})
}

// DeleteDocument handles DELETE /api/v1/documents/{id}
func (c *DocumentController) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	id, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	if err := c.documents.DeleteDocument(r.Context(), id, user.ID); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	middleware.GetRequestLogger(r.Context()).Info("Document deleted", zap.Int64("document_id", id))
	c.responseBuilder.WriteNoContent(w, r)
}

// ListMyDocuments handles GET /api/v1/me/documents
func (c *DocumentController) ListMyDocuments(w http.ResponseWriter, r *http.Request) {
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
	page, err := c.documents.ListMyDocuments(r.Context(), user.ID, params)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	response.WritePaginated(c.responseBuilder, w, r, page)
}

// ===============================
// READING & SHARING
// ===============================

// GetDocument handles GET /api/v1/documents/{id}
func (c *DocumentController) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	view, err := c.documents.GetDocument(r.Context(), id, contextutils.GetUserIDPtr(r.Context()))
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, view)
}

// GetBySlug handles GET /api/v1/documents/slug/{slug}
func (c *DocumentController) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug, err := utils.PathString(r, "slug")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	view, err := c.documents.GetPublishedBySlug(r.Context(), strings.ToLower(slug), contextutils.GetUserIDPtr(r.Context()))
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, view)
}

// GetShared handles GET /api/v1/shared/{token}
func (c *DocumentController) GetShared(w http.ResponseWriter, r *http.Request) {
	token, err := utils.PathString(r, "token")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	view, err := c.documents.GetByShareToken(r.Context(), token)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, view)
}

// IssueShareToken handles POST /api/v1/documents/{id}/share
func (c *DocumentController) IssueShareToken(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	id, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	token, err := c.documents.IssueShareToken(r.Context(), id, user.ID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, map[string]string{
		"share_token": token,
		"path":        "/shared/" + token,
	})
}

// ===============================
// ENGAGEMENT
// ===============================

// GetCounts handles GET /api/v1/documents/{id}/counts
func (c *DocumentController) GetCounts(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	counts, err := c.engagement.GetCounts(r.Context(), id)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, counts)
}

// toggleRequest is the state the viewer is moving to.
type toggleRequest struct {
	Active bool `json:"active"`
}

// ToggleEngagement handles PUT /api/v1/documents/{id}/engagement/{kind}
// where kind is "like" or "bookmark". The response carries the fresh
// authoritative counts.
func (c *DocumentController) ToggleEngagement(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	id, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	rawKind, err := utils.PathString(r, "kind")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	kind, err := engagement.ParseKind(rawKind)
	if err != nil {
		c.responseBuilder.WriteError(w, r, services.NewValidationError(err.Error(), err))
		return
	}
	var req toggleRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	ctx := r.Context()
	if err := c.engagement.Toggle(ctx, user.ID, id, kind, req.Active); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	counts, err := c.engagement.GetCounts(ctx, id)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	state := engagement.State{Counts: counts}
	switch kind {
	case engagement.KindLike:
		state.Liked = req.Active
	case engagement.KindBookmark:
		state.Bookmarked = req.Active
	}
	c.responseBuilder.WriteSuccess(w, r, state)
}

// RecordView handles POST /api/v1/documents/{id}/views
func (c *DocumentController) RecordView(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	views, err := c.engagement.RecordView(r.Context(), id, contextutils.GetUserIDPtr(r.Context()))
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, map[string]int{"views": views})
}

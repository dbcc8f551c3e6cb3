package admin

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"expertene/internal/middleware"
	"expertene/internal/models"
	"expertene/internal/response"
	"expertene/internal/services"
	"expertene/internal/utils"
)

// AdminController handles moderation endpoints. Routes are mounted behind
// RequireAdmin; the service checks the role again.
type AdminController struct {
	admin            services.AdminService
	logger           *zap.Logger
	responseBuilder  *response.Builder
	paginationParser *response.PaginationParser
}

// NewAdminController creates a new admin controller
func NewAdminController(admin services.AdminService, logger *zap.Logger, responseBuilder *response.Builder) *AdminController {
	return &AdminController{
		admin:            admin,
		logger:           logger,
		responseBuilder:  responseBuilder,
		paginationParser: response.NewPaginationParser(response.DefaultPaginationConfig()),
	}
}

type roleRequest struct {
	Role string `json:"role"`
}

type suspensionRequest struct {
	Suspended bool `json:"suspended"`
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

// ===============================
// USERS
// ===============================

// ListUsers handles GET /api/v1/admin/users?search=
func (c *AdminController) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, params, ok := c.listPrelude(w, r)
	if !ok {
		return
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	page, err := c.admin.ListUsers(r.Context(), actor, search, params)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	response.WritePaginated(c.responseBuilder, w, r, page)
}

// SetRole handles PUT /api/v1/admin/users/{id}/role
func (c *AdminController) SetRole(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := c.targetPrelude(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	if err := c.admin.SetRole(r.Context(), actor, id, req.Role); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.audit(r, actor, "role_changed", zap.Int64("user_id", id), zap.String("role", req.Role))
	c.responseBuilder.WriteSuccess(w, r, map[string]any{"id": id, "role": req.Role})
}

// SetSuspended handles PUT /api/v1/admin/users/{id}/suspension
func (c *AdminController) SetSuspended(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := c.targetPrelude(w, r)
	if !ok {
		return
	}
	var req suspensionRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	if err := c.admin.SetSuspended(r.Context(), actor, id, req.Suspended); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.audit(r, actor, "suspension_changed", zap.Int64("user_id", id), zap.Bool("suspended", req.Suspended))
	c.responseBuilder.WriteSuccess(w, r, map[string]any{"id": id, "suspended": req.Suspended})
}

// ===============================
// DOCUMENTS
// ===============================

// ListDocuments handles GET /api/v1/admin/documents
func (c *AdminController) ListDocuments(w http.ResponseWriter, r *http.Request) {
	actor, params, ok := c.listPrelude(w, r)
	if !ok {
		return
	}
	page, err := c.admin.ListDocuments(r.Context(), actor, params)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	response.WritePaginated(c.responseBuilder, w, r, page)
}

// SetDocumentArchived handles PUT /api/v1/admin/documents/{id}/archive
func (c *AdminController) SetDocumentArchived(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := c.targetPrelude(w, r)
	if !ok {
		return
	}
	var req archiveRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	if err := c.admin.SetDocumentArchived(r.Context(), actor, id, req.Archived); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.audit(r, actor, "document_archive_changed", zap.Int64("document_id", id), zap.Bool("archived", req.Archived))
	c.responseBuilder.WriteSuccess(w, r, map[string]any{"id": id, "archived": req.Archived})
}

// ===============================
// ANNOUNCEMENTS
// ===============================

// ListAnnouncements handles GET /api/v1/admin/announcements, including
// inactive ones.
func (c *AdminController) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	list, err := c.admin.ListAnnouncements(r.Context(), false)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, list)
}

// CreateAnnouncement handles POST /api/v1/admin/announcements
func (c *AdminController) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	var req services.AnnouncementRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	a, err := c.admin.CreateAnnouncement(r.Context(), actor, &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteCreated(w, r, a)
}

// UpdateAnnouncement handles PUT /api/v1/admin/announcements/{id}
func (c *AdminController) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := c.targetPrelude(w, r)
	if !ok {
		return
	}
	var req services.AnnouncementRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	a, err := c.admin.UpdateAnnouncement(r.Context(), actor, id, &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, a)
}

// DeleteAnnouncement handles DELETE /api/v1/admin/announcements/{id}
func (c *AdminController) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := c.targetPrelude(w, r)
	if !ok {
		return
	}
	if err := c.admin.DeleteAnnouncement(r.Context(), actor, id); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteNoContent(w, r)
}

// ===============================
// HELPERS
// ===============================

func (c *AdminController) listPrelude(w http.ResponseWriter, r *http.Request) (*models.User, models.PaginationParams, bool) {
	actor, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return nil, models.PaginationParams{}, false
	}
	params, err := c.paginationParser.ParseFromRequest(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return nil, models.PaginationParams{}, false
	}
	return actor, params, true
}

func (c *AdminController) targetPrelude(w http.ResponseWriter, r *http.Request) (*models.User, int64, bool) {
	actor, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return nil, 0, false
	}
	id, err := utils.PathID(r, "id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return nil, 0, false
	}
	return actor, id, true
}

func (c *AdminController) audit(r *http.Request, actor *models.User, action string, fields ...zap.Field) {
	fields = append(fields, zap.String("action", action), zap.Int64("admin_id", actor.ID))
	middleware.GetRequestLogger(r.Context()).Info("Admin action", fields...)
}

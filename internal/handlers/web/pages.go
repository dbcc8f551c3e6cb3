package web

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"expertene/internal/contextutils"
	"expertene/internal/middleware"
	"expertene/internal/models"
	"expertene/internal/services"
	"expertene/internal/utils"
)

const (
	homeFeedSize  = 20
	trendingSize  = 5
	dashboardPath = "/dashboard"
)

type homeData struct {
	Feed     []*models.Document
	Trending []*models.TrendingDocument
}

type articleData struct {
	*services.DocumentView
	IsOwner  bool
	IsShared bool
}

type profileData struct {
	Profile   *models.User
	Streak    *models.Streak
	Documents []*models.Document
}

type dashboardData struct {
	Documents []*models.Document
	Total     int64
}

// Home handles GET /
func (h *WebHandler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	feed, err := h.feed.Feed(ctx, contextutils.GetUserIDPtr(ctx), models.PaginationParams{Limit: homeFeedSize})
	if err != nil {
		h.RenderErrorPage(w, r, err)
		return
	}
	trending, err := h.feed.Trending(ctx, trendingSize)
	if err != nil {
		middleware.GetRequestLogger(ctx).Warn("Trending unavailable on home page", zap.Error(err))
	}
	h.renderTemplate(w, r, http.StatusOK, "home", h.newPage(r, "Expertene", homeData{Feed: feed.Data, Trending: trending}))
}

// Article handles GET /a/{slug}
func (h *WebHandler) Article(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.documents.GetPublishedBySlug(ctx, mux.Vars(r)["slug"], contextutils.GetUserIDPtr(ctx))
	if err != nil {
		h.RenderErrorPage(w, r, err)
		return
	}
	h.renderTemplate(w, r, http.StatusOK, "article", h.newPage(r, view.Title, articleData{
		DocumentView: view,
		IsOwner:      view.IsOwnedBy(contextutils.GetUserID(ctx)),
	}))
}

// Shared handles GET /shared/{token}. Shared drafts are never indexed.
func (h *WebHandler) Shared(w http.ResponseWriter, r *http.Request) {
	view, err := h.documents.GetByShareToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		h.RenderErrorPage(w, r, err)
		return
	}
	w.Header().Set("X-Robots-Tag", "noindex")
	h.renderTemplate(w, r, http.StatusOK, "article", h.newPage(r, view.Title, articleData{
		DocumentView: view,
		IsOwner:      view.IsOwnedBy(contextutils.GetUserID(r.Context())),
		IsShared:     true,
	}))
}

// Profile handles GET /u/{username}
func (h *WebHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := mux.Vars(r)["username"]
	profile, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		h.RenderErrorPage(w, r, err)
		return
	}
	docs, err := h.documents.ListByAuthor(ctx, username, models.PaginationParams{Limit: homeFeedSize})
	if err != nil {
		h.RenderErrorPage(w, r, err)
		return
	}
	streak, err := h.users.GetStreak(ctx, profile.ID)
	if err != nil {
		middleware.GetRequestLogger(ctx).Warn("Streak unavailable on profile page", zap.Error(err))
	}

	public := *profile
	public.Email = ""
	h.renderTemplate(w, r, http.StatusOK, "profile", h.newPage(r, profile.DisplayName, profileData{
		Profile:   &public,
		Streak:    streak,
		Documents: docs.Data,
	}))
}

// Dashboard handles GET /dashboard, the author's own documents including
// drafts. Anonymous visitors are sent home.
func (h *WebHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	docs, err := h.documents.ListMyDocuments(r.Context(), user.ID, models.PaginationParams{Limit: 50})
	if err != nil {
		h.RenderErrorPage(w, r, err)
		return
	}
	h.renderTemplate(w, r, http.StatusOK, "dashboard", h.newPage(r, "Your documents", dashboardData{
		Documents: docs.Data,
		Total:     docs.Pagination.TotalItems,
	}))
}

// Edit handles GET /edit/{id} and GET /edit/new. Documents the caller cannot edit, including
// other authors' drafts, redirect to the dashboard.
func (h *WebHandler) Edit(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if mux.Vars(r)["id"] == "new" {
		doc, err := h.documents.CreateDocument(r.Context(), user.ID)
		if err != nil {
			h.RenderErrorPage(w, r, err)
			return
		}
		h.renderTemplate(w, r, http.StatusOK, "edit", h.newPage(r, "New document", doc))
		return
	}

	id, err := utils.PathID(r, "id")
	if err != nil {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	doc, err := h.documents.LoadForEdit(r.Context(), id, user.ID)
	if err != nil {
		if services.IsNotFoundError(err) || services.IsErrorType(err, services.ErrTypeForbidden) {
			middleware.GetRequestLogger(r.Context()).Info("Edit redirected to dashboard",
				zap.Int64("document_id", id),
				zap.Int64("user_id", user.ID),
			)
			http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
			return
		}
		h.RenderErrorPage(w, r, err)
		return
	}
	h.renderTemplate(w, r, http.StatusOK, "edit", h.newPage(r, "Editing "+doc.Title, doc))
}

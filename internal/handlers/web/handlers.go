// Package web serves the server-rendered read view: the home feed, article
// pages, shared drafts, profiles and the author dashboard.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"expertene/internal/blocks"
	"expertene/internal/middleware"
	"expertene/internal/render"
	"expertene/internal/services"
	"expertene/internal/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

// WebHandler holds dependencies for web handlers
type WebHandler struct {
	documents  services.DocumentService
	users      services.UserService
	feed       services.FeedService
	templates  *template.Template
	renderOpts render.Options
	logger     *zap.Logger
	now        func() time.Time
}

// NewWebHandler parses the embedded templates and returns the handler set.
func NewWebHandler(
	documents services.DocumentService,
	users services.UserService,
	feed services.FeedService,
	renderOpts render.Options,
	logger *zap.Logger,
) (*WebHandler, error) {
	h := &WebHandler{
		documents:  documents,
		users:      users,
		feed:       feed,
		renderOpts: renderOpts,
		logger:     logger,
		now:        time.Now,
	}

	funcMap := template.FuncMap{
		"title": func(s string) string {
			if s == "" {
				return s
			}
			runes := []rune(s)
			runes[0] = unicode.ToUpper(runes[0])
			return string(runes)
		},
		"formatTime": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
		"timeAgo": func(t time.Time) string {
			return utils.TimeAgo(t, h.now())
		},
		"truncate":    utils.TruncateContent,
		"initials":    utils.Initials,
		"avatarColor": utils.AvatarColor,
		"blocks": func(list blocks.List) template.HTML {
			return render.Blocks(list, h.renderOpts)
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"join": strings.Join,
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	h.templates = tmpl
	return h, nil
}

// page is the data every template receives.
type page struct {
	Title      string
	Viewer     any
	IsLoggedIn bool
	Data       any
}

func (h *WebHandler) newPage(r *http.Request, title string, data any) page {
	p := page{Title: title, Data: data}
	if u, err := utils.RequireUser(r); err == nil {
		p.Viewer = u
		p.IsLoggedIn = true
	}
	return p
}

// renderTemplate buffers the output so a template failure can still become
// a clean 500.
func (h *WebHandler) renderTemplate(w http.ResponseWriter, r *http.Request, status int, name string, data page) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		middleware.GetRequestLogger(r.Context()).Error("Failed to render template",
			zap.Error(err),
			zap.String("template", name),
		)
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

package router

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	_ "expertene/docs" // registers the Swagger spec

	"expertene/internal/config"
	"expertene/internal/handlers/api/v1/admin"
	"expertene/internal/handlers/api/v1/auth"
	"expertene/internal/handlers/api/v1/comments"
	"expertene/internal/handlers/api/v1/documents"
	"expertene/internal/handlers/api/v1/editor"
	"expertene/internal/handlers/api/v1/feed"
	"expertene/internal/handlers/api/v1/uploads"
	"expertene/internal/handlers/api/v1/users"
	"expertene/internal/handlers/web"
	"expertene/internal/middleware"
	"expertene/internal/monitoring"
	"expertene/internal/response"
	"expertene/internal/services"
	"expertene/internal/utils/appinfo"
)

const compressionLevel = 5

// HealthChecker reports dependency health for /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) *services.ServiceHealth
}

// Dependencies is everything the router mounts.
type Dependencies struct {
	Services  *services.ServiceCollection
	Health    HealthChecker
	Auth      *middleware.AuthMiddleware
	Builder   *response.Builder
	Web       *web.WebHandler
	Realtime  http.Handler
	Dashboard *monitoring.Dashboard
	Config    *config.Config
	Logger    *zap.Logger
}

// guards wraps handlers with the three access levels.
type guards struct {
	am *middleware.AuthMiddleware
}

func (g guards) public(h http.HandlerFunc) http.Handler {
	return g.am.OptionalAuth()(h)
}

func (g guards) authed(h http.HandlerFunc) http.Handler {
	return g.am.RequireAuth()(h)
}

func (g guards) admin(h http.HandlerFunc) http.Handler {
	return g.am.RequireAuth()(g.am.RequireAdmin()(h))
}

// SetupRouter configures all HTTP routes and returns the main handler
func SetupRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	r := mux.NewRouter()
	r.StrictSlash(false)

	r.Handle("/health", healthHandler(deps)).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		deps.Builder.WriteNotFound(w, req, "no such endpoint: "+req.Method+" "+req.URL.Path)
	})
	api.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		deps.Builder.WriteError(w, req, &services.ServiceError{
			Type:       services.ErrTypeValidation,
			Message:    "method not allowed",
			Code:       "METHOD_NOT_ALLOWED",
			StatusCode: http.StatusMethodNotAllowed,
		})
	})
	setupAPIv1Routes(api, deps)

	if cfg.Features.EnableSwagger {
		r.PathPrefix("/swagger/").Handler(middleware.SwaggerAuth(cfg.Security)(middleware.SwaggerHandler()))
		deps.Logger.Info("Swagger UI enabled", zap.String("path", "/swagger/index.html"))
	}

	if deps.Realtime != nil {
		r.Handle("/ws", deps.Auth.OptionalAuth()(deps.Realtime)).Methods(http.MethodGet)
	}

	setupWebRoutes(r, deps)

	handler := middleware.Chain(r,
		middleware.RequestID(deps.Logger),
		chimw.RealIP,
		middleware.StructuredLogging(middleware.DefaultLoggingConfig()),
		middleware.Recovery(&middleware.RecoveryConfig{
			StackTraceInResponse: cfg.Server.Environment == "development",
		}, deps.Builder, deps.Logger),
		middleware.SecurityHeaders(cfg.Security),
		middleware.CORS(cfg.Security),
		chimw.Compress(compressionLevel),
		middleware.Maintenance(cfg.Features, deps.Builder),
	)

	deps.Logger.Info("Router configured",
		zap.Bool("swagger", cfg.Features.EnableSwagger),
		zap.Bool("realtime", deps.Realtime != nil),
		zap.Bool("maintenance", cfg.Features.MaintenanceMode),
	)
	return handler
}

// ===============================
// API V1
// ===============================

func setupAPIv1Routes(api *mux.Router, deps Dependencies) {
	sc := deps.Services
	rb := deps.Builder
	log := deps.Logger
	g := guards{am: deps.Auth}

	docs := documents.NewDocumentController(sc.Documents, sc.Engagement, log, rb)
	ed := editor.NewEditorController(sc.Editor, log, rb)
	us := users.NewUserController(sc.Users, sc.Documents, sc.Engagement, log, rb)
	au := auth.NewAuthController(sc.Auth, deps.Config.Features, log, rb)
	cm := comments.NewCommentController(sc.Comments, log, rb)
	fd := feed.NewFeedController(sc.Feed, sc.Admin, log, rb)
	ad := admin.NewAdminController(sc.Admin, log, rb)
	up := uploads.NewUploadController(sc.Uploads, deps.Config.Cloudinary.MaxVideoSize, log, rb)

	// Auth
	api.Handle("/auth/signup", http.HandlerFunc(au.SignUp)).Methods(http.MethodPost)
	api.Handle("/auth/signin", http.HandlerFunc(au.SignIn)).Methods(http.MethodPost)
	api.Handle("/auth/signout", http.HandlerFunc(au.SignOut)).Methods(http.MethodPost)
	api.Handle("/auth/google", http.HandlerFunc(au.GoogleStart)).Methods(http.MethodGet)
	api.Handle("/auth/google/callback", http.HandlerFunc(au.GoogleCallback)).Methods(http.MethodGet)

	// Documents
	const id = "{id:[0-9]+}"
	api.Handle("/documents", g.authed(docs.CreateDocument)).Methods(http.MethodPost)
	api.Handle("/documents/new", g.authed(docs.NewDocument)).Methods(http.MethodGet)
	api.Handle("/documents/slug-preview", g.authed(docs.PreviewSlug)).Methods(http.MethodGet)
	api.Handle("/documents/slug/{slug}", g.public(docs.GetBySlug)).Methods(http.MethodGet)
	api.Handle("/documents/"+id, g.public(docs.GetDocument)).Methods(http.MethodGet)
	api.Handle("/documents/"+id, g.authed(docs.UpdateDocument)).Methods(http.MethodPut)
	api.Handle("/documents/"+id, g.authed(docs.DeleteDocument)).Methods(http.MethodDelete)
	api.Handle("/documents/"+id+"/edit", g.authed(docs.LoadForEdit)).Methods(http.MethodGet)
	api.Handle("/documents/"+id+"/share", g.authed(docs.IssueShareToken)).Methods(http.MethodPost)
	api.Handle("/documents/"+id+"/archive", g.authed(docs.ArchiveDocument)).Methods(http.MethodPut)
	api.Handle("/documents/"+id+"/counts", g.public(docs.GetCounts)).Methods(http.MethodGet)
	api.Handle("/documents/"+id+"/engagement/{kind}", g.authed(docs.ToggleEngagement)).Methods(http.MethodPut)
	api.Handle("/documents/"+id+"/views", g.public(docs.RecordView)).Methods(http.MethodPost)
	api.Handle("/documents/"+id+"/comments", g.public(cm.ListComments)).Methods(http.MethodGet)
	api.Handle("/documents/"+id+"/comments", g.authed(cm.CreateComment)).Methods(http.MethodPost)
	api.Handle("/comments/"+id, g.authed(cm.DeleteComment)).Methods(http.MethodDelete)
	api.Handle("/shared/{token}", g.public(docs.GetShared)).Methods(http.MethodGet)

	// Current user
	api.Handle("/me", g.authed(us.GetMe)).Methods(http.MethodGet)
	api.Handle("/me", g.authed(us.UpdateMe)).Methods(http.MethodPut)
	api.Handle("/me/documents", g.authed(docs.ListMyDocuments)).Methods(http.MethodGet)
	api.Handle("/me/bookmarks", g.authed(us.ListBookmarks)).Methods(http.MethodGet)

	// Users
	api.Handle("/users/suggest", g.public(us.SuggestUsernames)).Methods(http.MethodGet)
	api.Handle("/users/mentions", g.authed(us.SuggestMentions)).Methods(http.MethodPost)
	api.Handle("/users/{username}", g.public(us.GetProfile)).Methods(http.MethodGet)
	api.Handle("/users/{username}/streak", g.public(us.GetStreak)).Methods(http.MethodGet)
	api.Handle("/users/{username}/documents", g.public(us.ListDocuments)).Methods(http.MethodGet)
	api.Handle("/users/{username}/follow", g.authed(us.Follow)).Methods(http.MethodPost)
	api.Handle("/users/{username}/follow", g.authed(us.Unfollow)).Methods(http.MethodDelete)

	// Editor sessions
	const session = "/editor/sessions/{session}"
	const block = session + "/blocks/{block}"
	api.Handle("/editor/sessions", g.authed(ed.OpenSession)).Methods(http.MethodPost)
	api.Handle(session, g.authed(ed.GetSession)).Methods(http.MethodGet)
	api.Handle(session, g.authed(ed.CloseSession)).Methods(http.MethodDelete)
	api.Handle(session+"/meta", g.authed(ed.UpdateMeta)).Methods(http.MethodPut)
	api.Handle(session+"/save", g.authed(ed.SaveSession)).Methods(http.MethodPost)
	api.Handle(session+"/blocks", g.authed(ed.AddBlock)).Methods(http.MethodPost)
	api.Handle(block, g.authed(ed.ReplaceBlock)).Methods(http.MethodPut)
	api.Handle(block, g.authed(ed.DeleteBlock)).Methods(http.MethodDelete)
	api.Handle(block+"/fields", g.authed(ed.BlockFields)).Methods(http.MethodGet)
	api.Handle(block, g.authed(ed.ApplyField)).Methods(http.MethodPatch)
	api.Handle(block+"/move", g.authed(ed.MoveBlock)).Methods(http.MethodPost)

	// Feed
	api.Handle("/feed", g.public(fd.GetFeed)).Methods(http.MethodGet)
	api.Handle("/trending", g.public(fd.GetTrending)).Methods(http.MethodGet)
	api.Handle("/leaderboard", g.public(fd.GetLeaderboard)).Methods(http.MethodGet)
	api.Handle("/announcements", g.public(fd.GetAnnouncements)).Methods(http.MethodGet)

	// Uploads
	api.Handle("/uploads", g.authed(up.Upload)).Methods(http.MethodPost)

	// Admin
	api.Handle("/admin/users", g.admin(ad.ListUsers)).Methods(http.MethodGet)
	api.Handle("/admin/users/"+id+"/role", g.admin(ad.SetRole)).Methods(http.MethodPut)
	api.Handle("/admin/users/"+id+"/suspension", g.admin(ad.SetSuspended)).Methods(http.MethodPut)
	api.Handle("/admin/documents", g.admin(ad.ListDocuments)).Methods(http.MethodGet)
	api.Handle("/admin/documents/"+id+"/archive", g.admin(ad.SetDocumentArchived)).Methods(http.MethodPut)
	api.Handle("/admin/announcements", g.admin(ad.ListAnnouncements)).Methods(http.MethodGet)
	api.Handle("/admin/announcements", g.admin(ad.CreateAnnouncement)).Methods(http.MethodPost)
	api.Handle("/admin/announcements/"+id, g.admin(ad.UpdateAnnouncement)).Methods(http.MethodPut)
	api.Handle("/admin/announcements/"+id, g.admin(ad.DeleteAnnouncement)).Methods(http.MethodDelete)
	if deps.Dashboard != nil {
		api.Handle("/admin/status", g.admin(statusHandler(deps.Dashboard, rb))).Methods(http.MethodGet)
	}
}

// ===============================
// WEB VIEW
// ===============================

func setupWebRoutes(r *mux.Router, deps Dependencies) {
	if deps.Web == nil {
		return
	}
	g := guards{am: deps.Auth}
	h := deps.Web

	r.Handle("/", g.public(h.Home)).Methods(http.MethodGet)
	r.Handle("/a/{slug}", g.public(h.Article)).Methods(http.MethodGet)
	r.Handle("/shared/{token}", g.public(h.Shared)).Methods(http.MethodGet)
	r.Handle("/u/{username}", g.public(h.Profile)).Methods(http.MethodGet)
	r.Handle("/dashboard", g.public(h.Dashboard)).Methods(http.MethodGet)
	r.Handle("/edit/{id}", g.public(h.Edit)).Methods(http.MethodGet)

	r.NotFoundHandler = g.public(h.NotFound)
}

// ===============================
// OPERATIONS
// ===============================

func healthHandler(deps Dependencies) http.HandlerFunc {
	info := appinfo.Get()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		h := deps.Health.HealthCheck(ctx)
		deps.Builder.WriteHealthCheck(w, r, &response.HealthStatus{
			Status:       h.Status,
			Timestamp:    h.Timestamp.Unix(),
			Version:      info.Version,
			Environment:  deps.Config.Server.Environment,
			Uptime:       h.Uptime.Seconds(),
			Dependencies: h.Dependencies,
			Issues:       h.Issues,
		})
	}
}

func statusHandler(d *monitoring.Dashboard, rb *response.Builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rb.WriteSuccess(w, r, d.Snapshot(r.Context()))
	}
}

package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"expertene/internal/config"
	"expertene/internal/handlers/web"
	"expertene/internal/middleware"
	"expertene/internal/models"
	"expertene/internal/render"
	"expertene/internal/response"
	"expertene/internal/services"
)

type fakeHealth struct{ status string }

func (f fakeHealth) HealthCheck(context.Context) *services.ServiceHealth {
	return &services.ServiceHealth{
		Status:       f.status,
		Timestamp:    time.Now(),
		Uptime:       time.Minute,
		Dependencies: map[string]string{"database": f.status},
	}
}

type fakeTokens map[string]int64

func (f fakeTokens) ValidateToken(_ context.Context, token string) (*services.Claims, error) {
	if id, ok := f[token]; ok {
		return &services.Claims{UserID: id}, nil
	}
	return nil, services.NewUnauthorizedError("invalid or expired token")
}

type fakeUsers map[int64]*models.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, services.NewNotFoundError("user not found")
}

type fakeFeed struct {
	services.FeedService
	viewer *int64
}

func (f *fakeFeed) Feed(_ context.Context, viewerID *int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	f.viewer = viewerID
	return &models.PaginatedResponse[*models.Document]{
		Data:       []*models.Document{{ID: 7, Title: "Tables in depth", Slug: "tables-in-depth"}},
		Pagination: models.PaginationMeta{CurrentPage: 1, TotalPages: 1},
	}, nil
}

type harness struct {
	handler http.Handler
	feed    *fakeFeed
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Security: config.SecurityConfig{
			CORSAllowedOrigins: []string{"https://expertene.app"},
			CORSAllowedMethods: []string{"GET", "POST"},
			FrameOptions:       "DENY",
		},
		Cloudinary: config.CloudinaryConfig{MaxVideoSize: 1 << 20},
	}
	if mutate != nil {
		mutate(cfg)
	}

	logger := zap.NewNop()
	builder := response.NewBuilder(nil, logger)
	feed := &fakeFeed{}
	users := fakeUsers{
		1: {ID: 1, Username: "ada", Role: models.RoleUser},
		2: {ID: 2, Username: "root", Role: models.RoleAdmin},
	}
	am := middleware.NewAuthMiddleware(fakeTokens{"ada": 1, "root": 2}, users, builder, logger)

	wh, err := web.NewWebHandler(nil, nil, nil, render.DefaultOptions(), logger)
	require.NoError(t, err)

	h := SetupRouter(Dependencies{
		Services: &services.ServiceCollection{Feed: feed},
		Health:   fakeHealth{status: "healthy"},
		Auth:     am,
		Builder:  builder,
		Web:      wh,
		Config:   cfg,
		Logger:   logger,
	})
	return &harness{handler: h, feed: feed}
}

func (h *harness) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response.APIResponse {
	t.Helper()
	var resp response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "test", data["environment"])
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestAPIRouting(t *testing.T) {
	h := newHarness(t, nil)
	tests := []struct {
		name, method, path, token string
		status                    int
		errType                   string
	}{
		{"public feed", http.MethodGet, "/api/v1/feed", "", http.StatusOK, ""},
		{"unknown endpoint", http.MethodGet, "/api/v1/nothing-here", "", http.StatusNotFound, services.ErrTypeNotFound},
		{"wrong method", http.MethodDelete, "/api/v1/feed", "", http.StatusMethodNotAllowed, services.ErrTypeValidation},
		{"me requires auth", http.MethodGet, "/api/v1/me", "", http.StatusUnauthorized, services.ErrTypeUnauthorized},
		{"admin denied to users", http.MethodGet, "/api/v1/admin/users", "ada", http.StatusForbidden, services.ErrTypeForbidden},
		{"non-numeric id", http.MethodGet, "/api/v1/documents/abc", "", http.StatusNotFound, services.ErrTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(tt.method, tt.path, tt.token)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.errType == "" {
				return
			}
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.errType, resp.Error.Type)
		})
	}
}

func TestFeedSeesOptionalViewer(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/api/v1/feed", "ada")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, h.feed.viewer)
	assert.Equal(t, int64(1), *h.feed.viewer)

	h.do(http.MethodGet, "/api/v1/feed", "")
	assert.Nil(t, h.feed.viewer)
}

func TestWebNotFoundRendersHTML(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/no/such/page", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
}

func TestSwagger(t *testing.T) {
	off := newHarness(t, nil)
	rec := off.do(http.MethodGet, "/swagger/doc.json", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	on := newHarness(t, func(c *config.Config) { c.Features.EnableSwagger = true })
	rec = on.do(http.MethodGet, "/swagger/doc.json", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Expertene API")
}

func TestMaintenanceBlocksWrites(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Features.MaintenanceMode = true })

	rec := h.do(http.MethodPost, "/api/v1/documents", "ada")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "300", rec.Header().Get("Retry-After"))

	rec = h.do(http.MethodGet, "/api/v1/feed", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

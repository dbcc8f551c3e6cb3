package comments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"expertene/internal/contextutils"
	"expertene/internal/models"
	"expertene/internal/response"
	"expertene/internal/services"
)

// mockCommentService keeps comments in memory.
type mockCommentService struct {
	comments map[int64]*models.Comment
	nextID   int64
}

func newMockCommentService() *mockCommentService {
	return &mockCommentService{comments: map[int64]*models.Comment{}, nextID: 1}
}

func (m *mockCommentService) List(_ context.Context, documentID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Comment], error) {
	var out []*models.Comment
	for id := int64(1); id < m.nextID; id++ {
		if c, ok := m.comments[id]; ok && c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return models.NewPaginatedResponse(out, params.Normalize(20), int64(len(out))), nil
}

func (m *mockCommentService) Create(_ context.Context, req *services.CreateCommentRequest) (*models.Comment, error) {
	if strings.TrimSpace(req.Body) == "" {
		return nil, services.NewValidationError("comment body is required", nil)
	}
	c := &models.Comment{ID: m.nextID, DocumentID: req.DocumentID, AuthorID: req.AuthorID, Body: req.Body}
	m.comments[c.ID] = c
	m.nextID++
	return c, nil
}

func (m *mockCommentService) Delete(_ context.Context, commentID int64, actor *models.User) error {
	c, ok := m.comments[commentID]
	if !ok {
		return services.NewNotFoundError("comment not found")
	}
	if !c.IsOwnedBy(actor.ID) && !actor.IsAdmin() {
		return services.NewForbiddenError("you can only delete your own comments")
	}
	delete(m.comments, commentID)
	return nil
}

func request(method, body string, id string, user *models.User) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/comments", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": id})
	if user != nil {
		req = req.WithContext(contextutils.WithUser(req.Context(), user))
	}
	return req
}

func TestCommentController(t *testing.T) {
	svc := newMockCommentService()
	c := NewCommentController(svc, zap.NewNop(), response.NewBuilder(nil, zap.NewNop()))
	author := &models.User{ID: 3, Role: models.RoleUser}

	rec := httptest.NewRecorder()
	c.CreateComment(rec, request(http.MethodPost, `{"body":"Great read"}`, "10", author))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	c.CreateComment(rec, request(http.MethodPost, `{"body":"   "}`, "10", author))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	c.CreateComment(rec, request(http.MethodPost, `{"body":"anon"}`, "10", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	c.ListComments(rec, request(http.MethodGet, "", "10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Pagination.TotalItems)

	rec = httptest.NewRecorder()
	c.DeleteComment(rec, request(http.MethodDelete, "", "1", &models.User{ID: 4, Role: models.RoleUser}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	c.DeleteComment(rec, request(http.MethodDelete, "", "1", &models.User{ID: 99, Role: models.RoleAdmin}))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, svc.comments)
}

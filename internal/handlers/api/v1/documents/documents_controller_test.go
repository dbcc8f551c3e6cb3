package documents

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
	"expertene/internal/engagement"
	"expertene/internal/models"
	"expertene/internal/response"
	"expertene/internal/services"
)

type fakeDocuments struct {
	services.DocumentService

	saved    *services.SaveDocumentRequest
	docs     map[int64]*models.Document
	archived map[int64]bool
	viewerID *int64
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{docs: map[int64]*models.Document{}, archived: map[int64]bool{}}
}

func (f *fakeDocuments) SaveDocument(_ context.Context, req *services.SaveDocumentRequest) (*models.Document, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, services.NewValidationError("title is required", nil)
	}
	f.saved = req
	id := int64(len(f.docs) + 1)
	if req.ID != nil {
		existing, ok := f.docs[*req.ID]
		if !ok {
			return nil, services.NewNotFoundError("document not found")
		}
		if !existing.IsOwnedBy(req.AuthorID) {
			return nil, services.NewNotFoundError("document not found")
		}
		id = *req.ID
	}
	doc := &models.Document{ID: id, AuthorID: req.AuthorID, Title: req.Title, IsPublished: req.Publish, Blocks: req.Blocks}
	f.docs[id] = doc
	return doc, nil
}

func (f *fakeDocuments) GetDocument(_ context.Context, id int64, viewerID *int64) (*services.DocumentView, error) {
	f.viewerID = viewerID
	doc, ok := f.docs[id]
	if !ok {
		return nil, services.NewNotFoundError("document not found")
	}
	return &services.DocumentView{Document: doc}, nil
}

func (f *fakeDocuments) ArchiveDocument(_ context.Context, id, userID int64, archived bool) error {
	doc, ok := f.docs[id]
	if !ok || !doc.IsOwnedBy(userID) {
		return services.NewNotFoundError("document not found")
	}
	f.archived[id] = archived
	return nil
}

func (f *fakeDocuments) GenerateSlug(_ context.Context, title string) string {
	return strings.ReplaceAll(strings.ToLower(title), " ", "-")
}

type fakeEngagement struct {
	services.EngagementService

	counts  models.EngagementCounts
	toggled []engagement.Kind
	fail    error
}

func (f *fakeEngagement) Toggle(_ context.Context, _, _ int64, kind engagement.Kind, active bool) error {
	if f.fail != nil {
		return f.fail
	}
	f.toggled = append(f.toggled, kind)
	if kind == engagement.KindLike && active {
		f.counts.Likes++
	}
	return nil
}

func (f *fakeEngagement) GetCounts(context.Context, int64) (models.EngagementCounts, error) {
	return f.counts, nil
}

func newController(docs *fakeDocuments, eng *fakeEngagement) *DocumentController {
	return NewDocumentController(docs, eng, zap.NewNop(), response.NewBuilder(nil, zap.NewNop()))
}

func newRequest(method, target, body string, vars map[string]string, user *models.User) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	if user != nil {
		req = req.WithContext(contextutils.WithUser(req.Context(), user))
	}
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.APIResponse {
	t.Helper()
	var resp response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateDocument(t *testing.T) {
	author := &models.User{ID: 7, Username: "ada"}
	body := `{"title":"Hello","publish":true,"blocks":[{"id":"b1","type":"text","content":"<p>hi</p>"}]}`

	t.Run("creates for the caller", func(t *testing.T) {
		docs := newFakeDocuments()
		rec := httptest.NewRecorder()
		newController(docs, &fakeEngagement{}).CreateDocument(rec, newRequest(http.MethodPost, "/api/v1/documents", body, nil, author))

		assert.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, docs.saved)
		assert.Nil(t, docs.saved.ID)
		assert.Equal(t, int64(7), docs.saved.AuthorID)
		require.Len(t, docs.saved.Blocks, 1)
		assert.True(t, decodeEnvelope(t, rec).Success)
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newController(newFakeDocuments(), &fakeEngagement{}).CreateDocument(rec, newRequest(http.MethodPost, "/api/v1/documents", body, nil, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		docs := newFakeDocuments()
		rec := httptest.NewRecorder()
		newController(docs, &fakeEngagement{}).CreateDocument(rec, newRequest(http.MethodPost, "/api/v1/documents", `{"title":"x","author_id":1,"bogus":true}`, nil, author))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, docs.saved)
	})

	t.Run("unknown block type is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newController(newFakeDocuments(), &fakeEngagement{}).CreateDocument(rec, newRequest(http.MethodPost, "/api/v1/documents",
			`{"title":"x","blocks":[{"id":"b1","type":"gif","content":{}}]}`, nil, author))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("service validation surfaces as 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newController(newFakeDocuments(), &fakeEngagement{}).CreateDocument(rec, newRequest(http.MethodPost, "/api/v1/documents", `{"title":"  "}`, nil, author))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeEnvelope(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, services.ErrTypeValidation, resp.Error.Type)
	})
}

func TestUpdateDocument_ForeignDocumentIsNotFound(t *testing.T) {
	docs := newFakeDocuments()
	docs.docs[3] = &models.Document{ID: 3, AuthorID: 1, Title: "theirs"}

	rec := httptest.NewRecorder()
	newController(docs, &fakeEngagement{}).UpdateDocument(rec, newRequest(http.MethodPut, "/api/v1/documents/3",
		`{"title":"mine now"}`, map[string]string{"id": "3"}, &models.User{ID: 2}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "theirs", docs.docs[3].Title)
}

func TestGetDocument(t *testing.T) {
	docs := newFakeDocuments()
	docs.docs[5] = &models.Document{ID: 5, AuthorID: 1, Title: "Read me", IsPublished: true}
	c := newController(docs, &fakeEngagement{})

	t.Run("anonymous viewer", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c.GetDocument(rec, newRequest(http.MethodGet, "/api/v1/documents/5", "", map[string]string{"id": "5"}, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, docs.viewerID)
	})

	t.Run("signed in viewer is passed through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c.GetDocument(rec, newRequest(http.MethodGet, "/api/v1/documents/5", "", map[string]string{"id": "5"}, &models.User{ID: 9}))
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, docs.viewerID)
		assert.Equal(t, int64(9), *docs.viewerID)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c.GetDocument(rec, newRequest(http.MethodGet, "/api/v1/documents/abc", "", map[string]string{"id": "abc"}, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c.GetDocument(rec, newRequest(http.MethodGet, "/api/v1/documents/6", "", map[string]string{"id": "6"}, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestArchiveDocument(t *testing.T) {
	docs := newFakeDocuments()
	docs.docs[4] = &models.Document{ID: 4, AuthorID: 7}

	rec := httptest.NewRecorder()
	newController(docs, &fakeEngagement{}).ArchiveDocument(rec, newRequest(http.MethodPut, "/api/v1/documents/4/archive",
		`{"archived":true}`, map[string]string{"id": "4"}, &models.User{ID: 7}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, docs.archived[4])
}

func TestPreviewSlug(t *testing.T) {
	rec := httptest.NewRecorder()
	newController(newFakeDocuments(), &fakeEngagement{}).PreviewSlug(rec, newRequest(http.MethodGet, "/api/v1/documents/slug-preview?title=Hello+World", "", nil, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"slug": "hello-world"}, decodeEnvelope(t, rec).Data)
}

func TestToggleEngagement(t *testing.T) {
	user := &models.User{ID: 7}

	t.Run("like returns fresh counts", func(t *testing.T) {
		eng := &fakeEngagement{counts: models.EngagementCounts{Likes: 5}}
		rec := httptest.NewRecorder()
		newController(newFakeDocuments(), eng).ToggleEngagement(rec, newRequest(http.MethodPut, "/api/v1/documents/1/engagement/like",
			`{"active":true}`, map[string]string{"id": "1", "kind": "like"}, user))

		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeEnvelope(t, rec).Data.(map[string]any)
		assert.Equal(t, true, data["liked"])
		assert.Equal(t, float64(6), data["counts"].(map[string]any)["likes"])
	})

	t.Run("unknown kind", func(t *testing.T) {
		eng := &fakeEngagement{}
		rec := httptest.NewRecorder()
		newController(newFakeDocuments(), eng).ToggleEngagement(rec, newRequest(http.MethodPut, "/api/v1/documents/1/engagement/clap",
			`{"active":true}`, map[string]string{"id": "1", "kind": "clap"}, user))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, eng.toggled)
	})

	t.Run("remote failure is reported", func(t *testing.T) {
		eng := &fakeEngagement{fail: services.NewUpstreamError(assert.AnError)}
		rec := httptest.NewRecorder()
		newController(newFakeDocuments(), eng).ToggleEngagement(rec, newRequest(http.MethodPut, "/api/v1/documents/1/engagement/bookmark",
			`{"active":true}`, map[string]string{"id": "1", "kind": "bookmark"}, user))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

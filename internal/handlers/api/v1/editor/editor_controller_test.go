package editor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"expertene/internal/blocks"
	"expertene/internal/cache"
	"expertene/internal/config"
	"expertene/internal/contextutils"
	"expertene/internal/models"
	"expertene/internal/response"
	"expertene/internal/services"
)

type fakeDocuments struct {
	services.DocumentService
	saved *services.SaveDocumentRequest
}

func (f *fakeDocuments) CreateDocument(_ context.Context, userID int64) (*models.Document, error) {
	return &models.Document{AuthorID: userID, Tags: []string{}, Blocks: blocks.NewDocumentStore().Blocks()}, nil
}

func (f *fakeDocuments) LoadForEdit(context.Context, int64, int64) (*models.Document, error) {
	return nil, services.NewNotFoundError("document not found")
}

func (f *fakeDocuments) SaveDocument(_ context.Context, req *services.SaveDocumentRequest) (*models.Document, error) {
	f.saved = req
	return &models.Document{ID: 42, AuthorID: req.AuthorID, Title: req.Title, IsPublished: req.Publish, Blocks: req.Blocks, Tags: req.Tags}, nil
}

type harness struct {
	t    *testing.T
	c    *EditorController
	docs *fakeDocuments
	user *models.User
}

func newHarness(t *testing.T) *harness {
	docs := &fakeDocuments{}
	mem := cache.NewMemoryCache(cache.Config{DefaultTTL: time.Minute}, zap.NewNop())
	t.Cleanup(func() { _ = mem.Close() })
	svc := services.NewEditorService(docs, mem, config.EditorConfig{SessionTTL: time.Hour}, zap.NewNop())
	return &harness{
		t:    t,
		c:    NewEditorController(svc, zap.NewNop(), response.NewBuilder(nil, zap.NewNop())),
		docs: docs,
		user: &models.User{ID: 7, Username: "ada"},
	}
}

func (h *harness) do(handler http.HandlerFunc, method, body string, vars map[string]string) (int, map[string]any) {
	h.t.Helper()
	req := httptest.NewRequest(method, "/api/v1/editor/sessions", strings.NewReader(body))
	req = mux.SetURLVars(req, vars)
	req = req.WithContext(contextutils.WithUser(req.Context(), h.user))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code == http.StatusNoContent {
		return rec.Code, nil
	}
	var resp response.APIResponse
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data, _ := resp.Data.(map[string]any)
	return rec.Code, data
}

func blockList(data map[string]any) []map[string]any {
	raw, _ := data["blocks"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, b := range raw {
		out = append(out, b.(map[string]any))
	}
	return out
}

func TestEditorSessionFlow(t *testing.T) {
	h := newHarness(t)

	code, session := h.do(h.c.OpenSession, http.MethodPost, "", nil)
	require.Equal(t, http.StatusCreated, code)
	sessionID := session["id"].(string)
	vars := map[string]string{"session": sessionID}

	list := blockList(session)
	require.Len(t, list, 1)
	assert.Equal(t, "spacer", list[0]["type"])

	code, session = h.do(h.c.AddBlock, http.MethodPost, `{"type":"image"}`, vars)
	require.Equal(t, http.StatusOK, code)
	list = blockList(session)
	require.Len(t, list, 2)
	assert.Equal(t, "image", list[1]["type"])
	imageID := list[1]["id"].(string)

	code, session = h.do(h.c.ApplyField, http.MethodPatch, `{"field":"width","value":50}`,
		map[string]string{"session": sessionID, "block": imageID})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(50), blockList(session)[1]["content"].(map[string]any)["width"])

	code, session = h.do(h.c.MoveBlock, http.MethodPost, `{"direction":"up"}`,
		map[string]string{"session": sessionID, "block": imageID})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, imageID, blockList(session)[0]["id"])

	code, _ = h.do(h.c.UpdateMeta, http.MethodPut, `{"title":"Draft","tags":["go"]}`, vars)
	require.Equal(t, http.StatusOK, code)

	code, doc := h.do(h.c.SaveSession, http.MethodPost, `{"publish":true}`, vars)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(42), doc["id"])
	require.NotNil(t, h.docs.saved)
	assert.Equal(t, "Draft", h.docs.saved.Title)
	assert.True(t, h.docs.saved.Publish)
	assert.Len(t, h.docs.saved.Blocks, 2)

	code, session = h.do(h.c.GetSession, http.MethodGet, "", vars)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(42), session["document_id"])

	code, _ = h.do(h.c.CloseSession, http.MethodDelete, "", vars)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = h.do(h.c.GetSession, http.MethodGet, "", vars)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEditorController_ReplaceBlockKeepsType(t *testing.T) {
	h := newHarness(t)
	_, session := h.do(h.c.OpenSession, http.MethodPost, "", nil)
	sessionID := session["id"].(string)
	spacerID := blockList(session)[0]["id"].(string)
	vars := map[string]string{"session": sessionID, "block": spacerID}

	code, session := h.do(h.c.ReplaceBlock, http.MethodPut, `{"id":"x","type":"spacer","content":{"height":80}}`, vars)
	require.Equal(t, http.StatusOK, code)
	list := blockList(session)
	assert.Equal(t, spacerID, list[0]["id"])
	assert.Equal(t, float64(80), list[0]["content"].(map[string]any)["height"])

	code, session = h.do(h.c.ReplaceBlock, http.MethodPut, `{"id":"x","type":"code","content":{"code":"x"}}`, vars)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "spacer", blockList(session)[0]["type"])
}

func TestEditorController_Rejections(t *testing.T) {
	h := newHarness(t)
	_, session := h.do(h.c.OpenSession, http.MethodPost, "", nil)
	sessionID := session["id"].(string)
	blockID := blockList(session)[0]["id"].(string)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		vars    map[string]string
		status  int
	}{
		{"unknown block type", h.c.AddBlock, `{"type":"gif"}`, map[string]string{"session": sessionID}, http.StatusBadRequest},
		{"bad direction", h.c.MoveBlock, `{"direction":"sideways"}`, map[string]string{"session": sessionID, "block": blockID}, http.StatusBadRequest},
		{"unknown field", h.c.ApplyField, `{"field":"colour","value":"red"}`, map[string]string{"session": sessionID, "block": blockID}, http.StatusBadRequest},
		{"missing field name", h.c.ApplyField, `{"value":1}`, map[string]string{"session": sessionID, "block": blockID}, http.StatusBadRequest},
		{"unknown session", h.c.GetSession, "", map[string]string{"session": "nope"}, http.StatusNotFound},
		{"missing block fields", h.c.BlockFields, "", map[string]string{"session": sessionID, "block": "nope"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := h.do(tt.handler, http.MethodPost, tt.body, tt.vars)
			assert.Equal(t, tt.status, code)
		})
	}
}

func TestEditorController_SessionsArePrivate(t *testing.T) {
	h := newHarness(t)
	_, session := h.do(h.c.OpenSession, http.MethodPost, "", nil)
	sessionID := session["id"].(string)

	h.user = &models.User{ID: 8, Username: "mallory"}
	code, _ := h.do(h.c.AddBlock, http.MethodPost, `{"type":"text"}`, map[string]string{"session": sessionID})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEditorController_BlockFields(t *testing.T) {
	h := newHarness(t)
	_, session := h.do(h.c.OpenSession, http.MethodPost, "", nil)
	vars := map[string]string{"session": session["id"].(string), "block": blockList(session)[0]["id"].(string)}

	code, data := h.do(h.c.BlockFields, http.MethodGet, "", vars)
	require.Equal(t, http.StatusOK, code)
	fields := data["fields"].([]any)
	require.NotEmpty(t, fields)
	assert.Equal(t, "height", fields[0].(map[string]any)["name"])
}

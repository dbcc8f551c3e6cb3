package editor

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"expertene/internal/blocks"
	"expertene/internal/editors"
	"expertene/internal/middleware"
	"expertene/internal/response"
	"expertene/internal/services"
	"expertene/internal/utils"
)

// EditorController exposes server-held editing sessions. Every route acts
// on the caller's own session.
type EditorController struct {
	editor          services.EditorService
	logger          *zap.Logger
	responseBuilder *response.Builder
}

// NewEditorController creates a new editor controller
func NewEditorController(editor services.EditorService, logger *zap.Logger, responseBuilder *response.Builder) *EditorController {
	return &EditorController{editor: editor, logger: logger, responseBuilder: responseBuilder}
}

// ===============================
// REQUEST TYPES
// ===============================

type openSessionRequest struct {
	DocumentID *int64 `json:"document_id,omitempty"`
}

type addBlockRequest struct {
	Type       string `json:"type"`
	AfterIndex *int   `json:"after_index,omitempty"`
}

type applyFieldRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

type moveBlockRequest struct {
	Direction string `json:"direction"`
}

type saveSessionRequest struct {
	Publish bool `json:"publish"`
}

// blockFields is the editing surface of one block.
type blockFields struct {
	Block  blocks.Block    `json:"block"`
	Fields []editors.Field `json:"fields"`
}

// ===============================
// SESSION LIFECYCLE
// ===============================

// OpenSession handles POST /api/v1/editor/sessions
func (c *EditorController) OpenSession(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	var req openSessionRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(w, r, &req); err != nil {
			c.responseBuilder.WriteError(w, r, err)
			return
		}
	}
	session, err := c.editor.Open(r.Context(), user.ID, req.DocumentID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteCreated(w, r, session)
}

// GetSession handles GET /api/v1/editor/sessions/{session}
func (c *EditorController) GetSession(w http.ResponseWriter, r *http.Request) {
	c.withSession(w, r, func(userID int64, sessionID string) (any, error) {
		return c.editor.Get(r.Context(), sessionID, userID)
	})
}

// UpdateMeta handles PUT /api/v1/editor/sessions/{session}/meta
func (c *EditorController) UpdateMeta(w http.ResponseWriter, r *http.Request) {
	c.withSession(w, r, func(userID int64, sessionID string) (any, error) {
		var meta services.SessionMeta
		if err := utils.DecodeJSON(w, r, &meta); err != nil {
			return nil, err
		}
		return c.editor.UpdateMeta(r.Context(), sessionID, userID, &meta)
	})
}

// SaveSession handles POST /api/v1/editor/sessions/{session}/save
func (c *EditorController) SaveSession(w http.ResponseWriter, r *http.Request) {
	c.withSession(w, r, func(userID int64, sessionID string) (any, error) {
		var req saveSessionRequest
		if r.ContentLength != 0 {
			if err := utils.DecodeJSON(w, r, &req); err != nil {
				return nil, err
			}
		}
		doc, err := c.editor.SaveSession(r.Context(), sessionID, userID, req.Publish)
		if err != nil {
			return nil, err
		}
		middleware.GetRequestLogger(r.Context()).Info("Editor session saved",
			zap.String("session_id", sessionID),
			zap.Int64("document_id", doc.ID),
			zap.Bool("published", doc.IsPublished),
		)
		return doc, nil
	})
}

// CloseSession handles DELETE /api/v1/editor/sessions/{session}
func (c *EditorController) CloseSession(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	sessionID, err := utils.PathString(r, "session")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	if err := c.editor.Close(r.Context(), sessionID, user.ID); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteNoContent(w, r)
}

// ===============================
// BLOCK OPERATIONS
// ===============================

// AddBlock handles POST /api/v1/editor/sessions/{session}/blocks. Without
// after_index the block is appended.
func (c *EditorController) AddBlock(w http.ResponseWriter, r *http.Request) {
	c.withSession(w, r, func(userID int64, sessionID string) (any, error) {
		var req addBlockRequest
		if err := utils.DecodeJSON(w, r, &req); err != nil {
			return nil, err
		}
		t, err := blocks.ParseType(req.Type)
		if err != nil {
			return nil, services.NewFieldValidationError("invalid block type",
				services.FieldError{Field: "type", Message: err.Error(), Code: "oneof"})
		}
		var after int
		if req.AfterIndex != nil {
			after = *req.AfterIndex
		} else {
			session, err := c.editor.Get(r.Context(), sessionID, userID)
			if err != nil {
				return nil, err
			}
			after = len(session.Blocks) - 1
		}
		return c.editor.AddBlock(r.Context(), sessionID, userID, t, after)
	})
}

// BlockFields handles GET /api/v1/editor/sessions/{session}/blocks/{block}/fields
func (c *EditorController) BlockFields(w http.ResponseWriter, r *http.Request) {
	c.withSession(w, r, func(userID int64, sessionID string) (any, error) {
		blockID, err := utils.PathString(r, "block")
		if err != nil {
			return nil, err
		}
		session, err := c.editor.Get(r.Context(), sessionID, userID)
		if err != nil {
			return nil, err
		}
		b, ok := blocks.NewStore(session.Blocks).Get(blockID)
		if !ok {
			return nil, services.NewNotFoundError("block not found")
		}
		return blockFields{Block: b, Fields: editors.For(b).Fields()}, nil
	})
}

// ReplaceBlock handles PUT /api/v1/editor/sessions/{session}/blocks/{block}.
// The body is a whole block; its type selects the content shape.
func (c *EditorController) ReplaceBlock(w http.ResponseWriter, r *http.Request) {
	c.withSession(w, r, func(userID int64, sessionID string) (any, error) {
		blockID, err := utils.PathString(r, "block")
		if err != nil {
			return nil, err
		}
		var b blocks.Block
		if err := utils.DecodeJSON(w, r, &b); err != nil {
			return nil, err
		}
		return c.editor.UpdateBlock(r.Context(), sessionID, userID, blockID, b.Content)
	})
}

// ApplyField handles PATCH /api/v1/editor/sessions/{session}/blocks/{block}
func (c *EditorController) ApplyField(w http.ResponseWriter, r *http.Request) {
	c.withSession(w, r, func(userID int64, sessionID string) (any, error) {
		blockID, err := utils.PathString(r, "block")
		if err != nil {
			return nil, err
		}
		var req applyFieldRequest
		if err := utils.DecodeJSON(w, r, &req); err != nil {
			return nil, err
		}
		if req.Field == "" {
			return nil, services.NewFieldValidationError("field is required",
				services.FieldError{Field: "field", Message: "field is required", Code: "required"})
		}
		var value any
		if len(req.Value) > 0 {
			if err := json.Unmarshal(req.Value, &value); err != nil {
				return nil, services.NewValidationError("invalid field value", err)
			}
		}
		return c.editor.ApplyField(r.Context(), sessionID, userID, blockID, req.Field, value)
	})
}

// DeleteBlock handles DELETE /api/v1/editor/sessions/{session}/blocks/{block}
func (c *EditorController) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	c.withSession(w, r, func(userID int64, sessionID string) (any, error) {
		blockID, err := utils.PathString(r, "block")
		if err != nil {
			return nil, err
		}
		return c.editor.DeleteBlock(r.Context(), sessionID, userID, blockID)
	})
}

// MoveBlock handles POST /api/v1/editor/sessions/{session}/blocks/{block}/move
func (c *EditorController) MoveBlock(w http.ResponseWriter, r *http.Request) {
	c.withSession(w, r, func(userID int64, sessionID string) (any, error) {
		blockID, err := utils.PathString(r, "block")
		if err != nil {
			return nil, err
		}
		var req moveBlockRequest
		if err := utils.DecodeJSON(w, r, &req); err != nil {
			return nil, err
		}
		var dir blocks.Direction
		switch req.Direction {
		case "up":
			dir = blocks.Up
		case "down":
			dir = blocks.Down
		default:
			return nil, services.NewFieldValidationError("invalid direction",
				services.FieldError{Field: "direction", Message: "direction must be up or down", Code: "oneof"})
		}
		return c.editor.MoveBlock(r.Context(), sessionID, userID, blockID, dir)
	})
}

// withSession resolves the caller and the session id, then writes fn's
// result or error.
func (c *EditorController) withSession(w http.ResponseWriter, r *http.Request, fn func(userID int64, sessionID string) (any, error)) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	sessionID, err := utils.PathString(r, "session")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	result, err := fn(user.ID, sessionID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, result)
}

package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"expertene/internal/blocks"
	"expertene/internal/cache"
	"expertene/internal/config"
	"expertene/internal/editors"
	"expertene/internal/models"
)

const editorSessionPrefix = "editor:session:"

// editorService implements EditorService over the cache. Sessions are last
// write wins; concurrent tabs on one session overwrite each other.
type editorService struct {
	documents DocumentService
	cache     cache.Cache
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewEditorService creates the editing session service
func NewEditorService(documents DocumentService, c cache.Cache, cfg config.EditorConfig, logger *zap.Logger) EditorService {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &editorService{documents: documents, cache: c, ttl: ttl, logger: logger, now: time.Now}
}

func sessionKey(id string) string { return editorSessionPrefix + id }

// Open starts a session on an existing document, or on a fresh draft when
// documentID is nil.
func (s *editorService) Open(ctx context.Context, userID int64, documentID *int64) (*EditorSession, error) {
	var (
		doc *models.Document
		err error
	)
	if documentID == nil {
		doc, err = s.documents.CreateDocument(ctx, userID)
	} else {
		doc, err = s.documents.LoadForEdit(ctx, *documentID, userID)
	}
	if err != nil {
		return nil, err
	}

	session := &EditorSession{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		AuthorID:   userID,
		Meta: SessionMeta{
			Title:         doc.Title,
			Subtitle:      doc.Subtitle,
			CoverImageURL: doc.CoverImageURL,
			Tags:          doc.Tags,
			IsPrivate:     doc.IsPrivate,
		},
		IsPublished: doc.IsPublished,
		Blocks:      doc.Blocks,
	}
	if err := s.store(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Debug("Editor session opened",
		zap.String("session_id", session.ID),
		zap.Int64("user_id", userID),
		zap.Bool("new_document", documentID == nil),
	)
	return session, nil
}

func (s *editorService) store(ctx context.Context, session *EditorSession) error {
	session.UpdatedAt = s.now().UTC()
	if err := cache.SetJSON(ctx, s.cache, sessionKey(session.ID), session, s.ttl); err != nil {
		s.logger.Error("Failed to store editor session", zap.Error(err), zap.String("session_id", session.ID))
		return NewInternalError("failed to store editing session", err)
	}
	return nil
}

// Get returns the caller's session. Sessions of other users are reported
// as not found.
func (s *editorService) Get(ctx context.Context, sessionID string, userID int64) (*EditorSession, error) {
	session, ok := cache.GetJSON[*EditorSession](ctx, s.cache, sessionKey(sessionID))
	if !ok || session == nil || session.AuthorID != userID {
		return nil, NewNotFoundError("editing session not found")
	}
	if session.Blocks == nil {
		session.Blocks = blocks.List{}
	}
	return session, nil
}

func (s *editorService) mutate(ctx context.Context, sessionID string, userID int64, fn func(*EditorSession, blocks.Store) (blocks.Store, error)) (*EditorSession, error) {
	session, err := s.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	next, err := fn(session, blocks.NewStore(session.Blocks))
	if err != nil {
		return nil, err
	}
	session.Blocks = next.Blocks()
	if err := s.store(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *editorService) UpdateMeta(ctx context.Context, sessionID string, userID int64, meta *SessionMeta) (*EditorSession, error) {
	if meta == nil {
		return nil, NewValidationError("meta is required", nil)
	}
	if err := validateRequest("invalid document details", meta); err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, userID, func(session *EditorSession, st blocks.Store) (blocks.Store, error) {
		session.Meta = *meta
		return st, nil
	})
}

// AddBlock inserts a default block after afterIndex and makes it active.
func (s *editorService) AddBlock(ctx context.Context, sessionID string, userID int64, t blocks.Type, afterIndex int) (*EditorSession, error) {
	if _, err := blocks.ParseType(string(t)); err != nil {
		return nil, NewValidationError("unknown block type", err)
	}
	return s.mutate(ctx, sessionID, userID, func(session *EditorSession, st blocks.Store) (blocks.Store, error) {
		next, added := st.AddBlock(t, afterIndex)
		session.ActiveBlockID = added.ID
		return next, nil
	})
}

func (s *editorService) UpdateBlock(ctx context.Context, sessionID string, userID int64, blockID string, content blocks.Content) (*EditorSession, error) {
	if content == nil {
		return nil, NewValidationError("content is required", nil)
	}
	candidate := blocks.Block{ID: blockID, Type: content.Kind(), Content: content}
	if err := candidate.Validate(); err != nil {
		return nil, NewValidationError(err.Error(), err)
	}
	return s.mutate(ctx, sessionID, userID, func(_ *EditorSession, st blocks.Store) (blocks.Store, error) {
		return st.UpdateBlock(blockID, content), nil
	})
}

// ApplyField routes a single field change through the block's editor.
func (s *editorService) ApplyField(ctx context.Context, sessionID string, userID int64, blockID, field string, value any) (*EditorSession, error) {
	return s.mutate(ctx, sessionID, userID, func(session *EditorSession, st blocks.Store) (blocks.Store, error) {
		b, ok := st.Get(blockID)
		if !ok {
			return st, nil
		}
		content, err := editors.For(b).Apply(field, value)
		if err != nil {
			return st, NewValidationError(err.Error(), err)
		}
		session.ActiveBlockID = blockID
		return st.UpdateBlock(blockID, content), nil
	})
}

func (s *editorService) DeleteBlock(ctx context.Context, sessionID string, userID int64, blockID string) (*EditorSession, error) {
	return s.mutate(ctx, sessionID, userID, func(session *EditorSession, st blocks.Store) (blocks.Store, error) {
		if session.ActiveBlockID == blockID {
			session.ActiveBlockID = ""
		}
		return st.DeleteBlock(blockID), nil
	})
}

func (s *editorService) MoveBlock(ctx context.Context, sessionID string, userID int64, blockID string, dir blocks.Direction) (*EditorSession, error) {
	return s.mutate(ctx, sessionID, userID, func(_ *EditorSession, st blocks.Store) (blocks.Store, error) {
		return st.MoveBlock(blockID, dir), nil
	})
}

// SaveSession hands the session to document assembly. A first save binds
// the session to the new document id.
func (s *editorService) SaveSession(ctx context.Context, sessionID string, userID int64, publish bool) (*models.Document, error) {
	session, err := s.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	doc, err := s.documents.SaveDocument(ctx, &SaveDocumentRequest{
		ID:            session.DocumentID,
		AuthorID:      userID,
		Title:         session.Meta.Title,
		Subtitle:      session.Meta.Subtitle,
		CoverImageURL: session.Meta.CoverImageURL,
		Tags:          session.Meta.Tags,
		IsPrivate:     session.Meta.IsPrivate,
		Publish:       publish,
		Blocks:        session.Blocks,
	})
	if err != nil {
		return nil, err
	}

	id := doc.ID
	session.DocumentID = &id
	session.IsPublished = doc.IsPublished
	session.Meta.Tags = doc.Tags
	if err := s.store(ctx, session); err != nil {
		s.logger.Warn("Saved document but failed to refresh session", zap.Error(err), zap.Int64("document_id", id))
	}
	return doc, nil
}

func (s *editorService) Close(ctx context.Context, sessionID string, userID int64) error {
	if _, err := s.Get(ctx, sessionID, userID); err != nil {
		return err
	}
	return s.cache.Delete(ctx, sessionKey(sessionID))
}

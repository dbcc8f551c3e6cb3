package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"expertene/internal/config"
	"expertene/internal/editors"
	"expertene/internal/events"
	"expertene/internal/platform"
)

// Upload channel events.
const (
	UploadEventProgress = "progress"
	UploadEventComplete = "complete"
	UploadEventFailed   = "error"
)

// uploadService implements UploadService
type uploadService struct {
	storage  platform.ObjectStorage
	changes  platform.ChangeFeed
	events   events.EventBus
	features config.FeatureConfig
	interval time.Duration
	step     int
	logger   *zap.Logger
}

// NewUploadService creates the media upload service. storage may be nil
// when object storage is not configured.
func NewUploadService(
	storage platform.ObjectStorage,
	changes platform.ChangeFeed,
	bus events.EventBus,
	editorCfg config.EditorConfig,
	features config.FeatureConfig,
	logger *zap.Logger,
) UploadService {
	interval := editorCfg.ProgressInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &uploadService{
		storage:  storage,
		changes:  changes,
		events:   bus,
		features: features,
		interval: interval,
		step:     editorCfg.ProgressStep,
		logger:   logger,
	}
}

// Upload validates and stores one file. While the transfer runs, synthetic
// progress values are published on the upload's channel; the final value
// of 100 is only sent after storage confirms.
func (s *uploadService) Upload(ctx context.Context, req *UploadRequest) (*platform.UploadResult, error) {
	if !s.features.EnableFileUploads {
		return nil, NewForbiddenError("file uploads are disabled")
	}
	if s.storage == nil {
		return nil, NewServiceUnavailableError("object storage is not configured")
	}
	if req == nil || req.Body == nil {
		return nil, NewValidationError("file is required", nil)
	}
	if req.UploadID == "" {
		req.UploadID = uuid.NewString()
	}

	upload := platform.Upload{Filename: req.Filename, Size: req.Size, Body: req.Body}
	kind, err := s.storage.Validate(upload)
	if err != nil {
		return nil, uploadValidationError(err)
	}

	progress := editors.NewSyntheticProgress(s.step)
	tickCtx, stop := context.WithCancel(ctx)
	ticking := make(chan struct{})
	go func() {
		defer close(ticking)
		progress.Run(tickCtx, s.interval, func(v int) {
			s.publish(ctx, req.UploadID, UploadEventProgress, map[string]any{"progress": v})
		})
	}()

	result, err := s.storage.Upload(ctx, upload, kind)
	stop()
	<-ticking

	if err != nil {
		s.logger.Error("Upload failed",
			zap.Error(err),
			zap.Int64("user_id", req.UserID),
			zap.String("upload_id", req.UploadID),
		)
		s.publish(ctx, req.UploadID, UploadEventFailed, map[string]any{
			"progress": progress.Value(),
			"error":    "upload failed",
		})
		if errors.Is(err, platform.ErrStorageDisabled) {
			return nil, NewServiceUnavailableError("object storage is not configured")
		}
		return nil, NewUpstreamError(err)
	}

	s.publish(ctx, req.UploadID, UploadEventComplete, map[string]any{
		"progress":  progress.Complete(),
		"url":       result.URL,
		"public_id": result.PublicID,
		"kind":      string(kind),
	})

	if err := s.events.Publish(ctx, events.NewFileUploadedEvent(req.UserID, string(kind), req.Size, result.URL, result.PublicID)); err != nil {
		s.logger.Warn("Failed to publish upload event", zap.Error(err))
	}
	return result, nil
}

func (s *uploadService) publish(ctx context.Context, uploadID, event string, data map[string]any) {
	if s.changes == nil {
		return
	}
	change := platform.Change{Table: "uploads", Event: event, Data: data}
	if err := s.changes.Publish(ctx, platform.UploadChannel(uploadID), change); err != nil {
		s.logger.Debug("Failed to publish upload progress", zap.Error(err), zap.String("upload_id", uploadID))
	}
}

func uploadValidationError(err error) error {
	switch {
	case errors.Is(err, platform.ErrFileTooLarge):
		return NewFieldValidationError("invalid file", FieldError{Field: "file", Message: "file is too large", Code: "FILE_TOO_LARGE"})
	case errors.Is(err, platform.ErrInvalidContentType), errors.Is(err, platform.ErrInvalidExtension):
		return NewFieldValidationError("invalid file", FieldError{Field: "file", Message: "only images and videos can be uploaded", Code: "INVALID_FILE_TYPE"})
	}
	return NewValidationError("invalid file", err)
}

package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expertene/internal/config"
	"expertene/internal/events"
	"expertene/internal/platform"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeStorage struct {
	limits   platform.StorageLimits
	during   func()
	err      error
	uploaded []string
}

func (s *fakeStorage) Validate(u platform.Upload) (platform.MediaKind, error) {
	return platform.DetectKind(u, s.limits)
}

func (s *fakeStorage) Upload(_ context.Context, u platform.Upload, kind platform.MediaKind) (*platform.UploadResult, error) {
	if s.during != nil {
		s.during()
	}
	if s.err != nil {
		return nil, s.err
	}
	s.uploaded = append(s.uploaded, u.Filename)
	return &platform.UploadResult{
		URL:      "https://cdn.example.com/expertene/" + string(kind) + "/" + u.Filename,
		PublicID: "expertene/" + string(kind) + "/" + u.Filename,
		Format:   "png",
	}, nil
}

func (s *fakeStorage) Delete(context.Context, string) error { return nil }

func newUploadService(f *fixture, storage platform.ObjectStorage, enabled bool) UploadService {
	return NewUploadService(storage, f.feed, f.bus,
		config.EditorConfig{ProgressInterval: 2 * time.Millisecond, ProgressStep: 30},
		config.FeatureConfig{EnableFileUploads: enabled},
		f.logger,
	)
}

func pngUpload(id string, size int64) *UploadRequest {
	return &UploadRequest{
		UserID:   1,
		UploadID: id,
		Filename: "diagram.png",
		Size:     size,
		Body:     bytes.NewReader(pngHeader),
	}
}

func TestUploadService_ProgressThenComplete(t *testing.T) {
	f := newFixture()
	channel := platform.UploadChannel("up-1")
	storage := &fakeStorage{}
	storage.during = func() {
		assert.Eventually(t, func() bool { return len(f.feed.on(channel)) >= 4 }, time.Second, time.Millisecond)
	}
	svc := newUploadService(f, storage, true)

	res, err := svc.Upload(context.Background(), pngUpload("up-1", 1024))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/expertene/image/diagram.png", res.URL)

	changes := f.feed.on(channel)
	require.GreaterOrEqual(t, len(changes), 5)

	last := changes[len(changes)-1]
	assert.Equal(t, UploadEventComplete, last.Event)
	assert.Equal(t, 100, last.Data["progress"])
	assert.Equal(t, res.PublicID, last.Data["public_id"])
	assert.Equal(t, "image", last.Data["kind"])

	prev := 0
	for _, c := range changes[:len(changes)-1] {
		require.Equal(t, UploadEventProgress, c.Event)
		v := c.Data["progress"].(int)
		assert.LessOrEqual(t, v, 90, "synthetic progress stays below completion")
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}

	evts := f.bus.ofType(events.TypeFileUploaded)
	require.Len(t, evts, 1)
	assert.Equal(t, "image", evts[0].(*events.FileUploadedEvent).Kind)
}

func TestUploadService_ValidationErrors(t *testing.T) {
	f := newFixture()
	storage := &fakeStorage{limits: platform.StorageLimits{MaxImageSize: 100, Extensions: []string{"png", "jpg"}}}
	svc := newUploadService(f, storage, true)
	ctx := context.Background()

	_, err := svc.Upload(ctx, pngUpload("big", 101))
	require.True(t, IsValidationError(err))
	assert.Equal(t, "FILE_TOO_LARGE", GetServiceError(err).Fields[0].Code)

	_, err = svc.Upload(ctx, &UploadRequest{Filename: "notes.png", Size: 5, Body: bytes.NewReader([]byte("hello"))})
	require.True(t, IsValidationError(err))
	assert.Equal(t, "INVALID_FILE_TYPE", GetServiceError(err).Fields[0].Code)

	_, err = svc.Upload(ctx, &UploadRequest{Filename: "diagram.gif", Size: 10, Body: bytes.NewReader(pngHeader)})
	require.True(t, IsValidationError(err))
	assert.Equal(t, "INVALID_FILE_TYPE", GetServiceError(err).Fields[0].Code)

	_, err = svc.Upload(ctx, &UploadRequest{Filename: "empty.png"})
	assert.True(t, IsValidationError(err))

	assert.Empty(t, storage.uploaded)
	assert.Empty(t, f.feed.changes)
}

func TestUploadService_StorageFailure(t *testing.T) {
	f := newFixture()
	storage := &fakeStorage{err: errors.New("503 from upstream")}
	svc := newUploadService(f, storage, true)

	_, err := svc.Upload(context.Background(), pngUpload("up-2", 10))
	require.True(t, IsErrorType(err, ErrTypeUpstream))

	changes := f.feed.on(platform.UploadChannel("up-2"))
	require.NotEmpty(t, changes)
	last := changes[len(changes)-1]
	assert.Equal(t, UploadEventFailed, last.Event)
	assert.Less(t, last.Data["progress"].(int), 100)
	assert.Empty(t, f.bus.ofType(events.TypeFileUploaded))
}

func TestUploadService_Unavailable(t *testing.T) {
	f := newFixture()

	_, err := newUploadService(f, &fakeStorage{}, false).Upload(context.Background(), pngUpload("x", 10))
	assert.True(t, IsErrorType(err, ErrTypeForbidden))

	_, err = newUploadService(f, nil, true).Upload(context.Background(), pngUpload("x", 10))
	assert.True(t, IsErrorType(err, ErrTypeUnavailable))
}

func TestUploadService_AssignsUploadID(t *testing.T) {
	f := newFixture()
	svc := newUploadService(f, &fakeStorage{}, true)
	req := pngUpload("", 10)

	_, err := svc.Upload(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, req.UploadID)
	assert.NotEmpty(t, f.feed.on(platform.UploadChannel(req.UploadID)))
}

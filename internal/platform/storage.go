package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"expertene/internal/config"
)

// MediaKind is the category of an uploaded file.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

var (
	ErrFileTooLarge       = errors.New("file size exceeds limit")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrInvalidExtension   = errors.New("invalid file extension")
	ErrStorageDisabled    = errors.New("object storage is not configured")
	ErrUploadFailed       = errors.New("failed to upload file")
	ErrDeleteFailed       = errors.New("failed to delete file")
)

// Upload is a file ready to be stored.
type Upload struct {
	Filename string
	Size     int64
	Body     io.ReadSeeker
}

// UploadResult contains the stored object's public location.
type UploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Format   string `json:"format"`
	Size     int    `json:"size"`
}

// ObjectStorage stores media and returns public URLs.
type ObjectStorage interface {
	Validate(u Upload) (MediaKind, error)
	Upload(ctx context.Context, u Upload, kind MediaKind) (*UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}

// StorageLimits bounds what Validate accepts.
type StorageLimits struct {
	MaxImageSize int64
	MaxVideoSize int64
	Extensions   []string
}

var allowedTypes = map[string]MediaKind{
	"image/jpeg":      MediaImage,
	"image/png":       MediaImage,
	"image/gif":       MediaImage,
	"image/webp":      MediaImage,
	"video/mp4":       MediaVideo,
	"video/webm":      MediaVideo,
	"video/ogg":       MediaVideo,
	"application/ogg": MediaVideo,
}

// DetectKind sniffs the first 512 bytes of u and checks them against limits.
// The reader is rewound before returning.
func DetectKind(u Upload, limits StorageLimits) (MediaKind, error) {
	buf := make([]byte, 512)
	n, err := u.Body.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("unable to read file: %w", err)
	}
	if _, err := u.Body.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("unable to reset file position: %w", err)
	}

	contentType := http.DetectContentType(buf[:n])
	kind, ok := allowedTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(u.Filename)), ".")
	if len(limits.Extensions) > 0 && !slices.Contains(limits.Extensions, ext) {
		return "", fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
	}

	limit := limits.MaxImageSize
	if kind == MediaVideo {
		limit = limits.MaxVideoSize
	}
	if limit > 0 && u.Size > limit {
		return "", fmt.Errorf("%w: %d bytes exceeds %d bytes", ErrFileTooLarge, u.Size, limit)
	}
	return kind, nil
}

// CloudinaryStorage uploads into "{root}/{kind}" folders.
type CloudinaryStorage struct {
	client        *cloudinary.Cloudinary
	root          string
	limits        StorageLimits
	uploadTimeout time.Duration
	maxRetries    uint64
	logger        *zap.Logger
}

// NewCloudinaryStorage creates the Cloudinary-backed storage. It returns
// ErrStorageDisabled when credentials are missing.
func NewCloudinaryStorage(cfg config.CloudinaryConfig, logger *zap.Logger) (*CloudinaryStorage, error) {
	if !cfg.Enabled() {
		return nil, ErrStorageDisabled
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	root := cfg.RootFolder
	if root == "" {
		root = "expertene"
	}
	logger.Info("Cloudinary storage initialized", zap.String("root_folder", root))
	return &CloudinaryStorage{
		client: cld,
		root:   root,
		limits: StorageLimits{
			MaxImageSize: cfg.MaxImageSize,
			MaxVideoSize: cfg.MaxVideoSize,
			Extensions:   cfg.AllowedFormats,
		},
		uploadTimeout: 60 * time.Second,
		maxRetries:    3,
		logger:        logger,
	}, nil
}

// Folder returns the destination folder for kind.
func (c *CloudinaryStorage) Folder(kind MediaKind) string {
	return c.root + "/" + string(kind)
}

func (c *CloudinaryStorage) Validate(u Upload) (MediaKind, error) {
	return DetectKind(u, c.limits)
}

func (c *CloudinaryStorage) Upload(ctx context.Context, u Upload, kind MediaKind) (*UploadResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	useFilename, unique := true, true
	params := uploader.UploadParams{
		Folder:         c.Folder(kind),
		UseFilename:    &useFilename,
		UniqueFilename: &unique,
		ResourceType:   "auto",
	}

	var result *uploader.UploadResult
	operation := func() error {
		if _, err := u.Body.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		result, err = c.client.Upload.Upload(ctx, u.Body, params)
		if err == nil && result.Error.Message != "" {
			err = errors.New(result.Error.Message)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.uploadTimeout / 2
	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx),
		func(err error, d time.Duration) {
			c.logger.Warn("Upload attempt failed",
				zap.String("filename", u.Filename),
				zap.Error(err),
				zap.Duration("backoff", d))
		},
	)
	if err != nil {
		c.logger.Error("All upload attempts failed", zap.String("filename", u.Filename), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	c.logger.Info("File uploaded",
		zap.String("filename", u.Filename),
		zap.String("kind", string(kind)),
		zap.Duration("duration", time.Since(start)),
		zap.String("public_id", result.PublicID))

	return &UploadResult{
		URL:      result.SecureURL,
		PublicID: result.PublicID,
		Format:   result.Format,
		Size:     result.Bytes,
	}, nil
}

func (c *CloudinaryStorage) Delete(ctx context.Context, publicID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		c.logger.Error("Failed to delete file", zap.String("public_id", publicID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

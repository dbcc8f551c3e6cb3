package uploads

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"expertene/internal/middleware"
	"expertene/internal/response"
	"expertene/internal/services"
	"expertene/internal/utils"
)

// multipartOverhead is the allowance for form fields and part headers on
// top of the largest accepted file.
const multipartOverhead = 1 << 20

// UploadController accepts media for image and video blocks.
type UploadController struct {
	uploads         services.UploadService
	maxFileSize     int64
	logger          *zap.Logger
	responseBuilder *response.Builder
}

// NewUploadController creates a new upload controller. maxFileSize is the
// largest file of any kind the storage accepts.
func NewUploadController(uploads services.UploadService, maxFileSize int64, logger *zap.Logger, responseBuilder *response.Builder) *UploadController {
	return &UploadController{
		uploads:         uploads,
		maxFileSize:     maxFileSize,
		logger:          logger,
		responseBuilder: responseBuilder,
	}
}

// Upload handles POST /api/v1/uploads as multipart/form-data with a "file"
// part. An optional "upload_id" names the realtime channel uploads:{id}
// that receives progress frames.
func (c *UploadController) Upload(w http.ResponseWriter, r *http.Request) {
	user, err := utils.RequireUser(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	if c.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, c.maxFileSize+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.responseBuilder.WriteError(w, r, services.NewFieldValidationError("file is too large",
				services.FieldError{Field: "file", Message: "file exceeds the upload limit", Code: "max"}))
			return
		}
		c.responseBuilder.WriteError(w, r, services.NewValidationError("invalid multipart form", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		c.responseBuilder.WriteError(w, r, services.NewFieldValidationError("file is required",
			services.FieldError{Field: "file", Message: "file is required", Code: "required"}))
		return
	}
	defer file.Close()

	result, err := c.uploads.Upload(r.Context(), &services.UploadRequest{
		UserID:   user.ID,
		UploadID: r.FormValue("upload_id"),
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	middleware.GetRequestLogger(r.Context()).Info("Media uploaded",
		zap.Int64("user_id", user.ID),
		zap.String("public_id", result.PublicID),
		zap.Int64("size", header.Size),
	)
	c.responseBuilder.WriteCreated(w, r, result)
}

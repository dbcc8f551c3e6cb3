package response

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"expertene/internal/contextutils"
	"expertene/internal/services"
)

// ===============================
// RESPONSE CONFIGURATION
// ===============================

// Config holds configuration for the response system
type Config struct {
	PrettyJSON         bool   `json:"pretty_json"`
	IncludeRequestID   bool   `json:"include_request_id"`
	IncludeTimestamp   bool   `json:"include_timestamp"`
	APIVersion         string `json:"api_version"`
	MaskInternalErrors bool   `json:"mask_internal_errors"`
}

// DefaultConfig returns production response configuration
func DefaultConfig() *Config {
	return &Config{
		IncludeRequestID:   true,
		IncludeTimestamp:   true,
		APIVersion:         "v1",
		MaskInternalErrors: true,
	}
}

// ===============================
// RESPONSE TYPES
// ===============================

// APIResponse is the envelope of every JSON API response.
type APIResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *ErrorDetail  `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Timestamp int64         `json:"timestamp,omitempty"`
	Version   string        `json:"version,omitempty"`
}

// ErrorDetail represents error information in API responses
type ErrorDetail struct {
	Type    string                `json:"type"`
	Message string                `json:"message"`
	Code    string                `json:"code,omitempty"`
	Fields  []services.FieldError `json:"fields,omitempty"`
	Details map[string]any        `json:"details,omitempty"`
}

// ResponseMeta contains metadata about the response
type ResponseMeta struct {
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

// ===============================
// RESPONSE BUILDER
// ===============================

// Builder writes the JSON envelope and maps service errors onto statuses.
type Builder struct {
	config *Config
	logger *zap.Logger
}

// NewBuilder creates a new response builder
func NewBuilder(config *Config, logger *zap.Logger) *Builder {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{config: config, logger: logger}
}

// Success creates a successful API response
func (b *Builder) Success(ctx context.Context, data any) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		RequestID: b.getRequestID(ctx),
		Timestamp: b.getTimestamp(),
		Version:   b.config.APIVersion,
	}
}

// Error creates an error response from any error
func (b *Builder) Error(ctx context.Context, err error) *APIResponse {
	detail := b.convertError(err)
	b.logError(ctx, err, detail)
	return &APIResponse{
		Success:   false,
		Error:     detail,
		RequestID: b.getRequestID(ctx),
		Timestamp: b.getTimestamp(),
		Version:   b.config.APIVersion,
	}
}

// ===============================
// HTTP RESPONSE WRITERS
// ===============================

// WriteJSON writes a JSON response with appropriate headers
func (b *Builder) WriteJSON(w http.ResponseWriter, r *http.Request, resp *APIResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if statusCode >= 400 {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	if b.config.PrettyJSON {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(resp); err != nil {
		b.logger.Error("Failed to encode JSON response",
			zap.Error(err),
			zap.String("request_id", contextutils.GetRequestID(r.Context())),
		)
	}
}

// WriteSuccess writes a 200 response
func (b *Builder) WriteSuccess(w http.ResponseWriter, r *http.Request, data any) {
	b.WriteJSON(w, r, b.Success(r.Context(), data), http.StatusOK)
}

// WriteCreated writes a 201 response
func (b *Builder) WriteCreated(w http.ResponseWriter, r *http.Request, data any) {
	b.WriteJSON(w, r, b.Success(r.Context(), data), http.StatusCreated)
}

// WriteNoContent writes a bare 204
func (b *Builder) WriteNoContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError writes an error response with the status the error carries
func (b *Builder) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	b.WriteJSON(w, r, b.Error(r.Context(), err), services.GetServiceError(err).GetStatusCode())
}

// WriteBadRequest writes a 400 validation error
func (b *Builder) WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	b.WriteError(w, r, services.NewValidationError(message, nil))
}

// WriteUnauthorized writes a 401 with a bearer challenge
func (b *Builder) WriteUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="expertene"`)
	b.WriteError(w, r, services.NewUnauthorizedError(message))
}

// WriteForbidden writes a 403
func (b *Builder) WriteForbidden(w http.ResponseWriter, r *http.Request, message string) {
	b.WriteError(w, r, services.NewForbiddenError(message))
}

// WriteNotFound writes a 404
func (b *Builder) WriteNotFound(w http.ResponseWriter, r *http.Request, message string) {
	b.WriteError(w, r, services.NewNotFoundError(message))
}

// ===============================
// UTILITY METHODS
// ===============================

func (b *Builder) convertError(err error) *ErrorDetail {
	se := services.GetServiceError(err)
	detail := &ErrorDetail{
		Type:    se.Type,
		Message: se.Message,
		Code:    se.Code,
		Fields:  se.Fields,
		Details: se.Details,
	}
	if b.config.MaskInternalErrors && se.Type == services.ErrTypeInternal {
		detail.Message = "An internal error occurred"
		detail.Details = nil
	}
	return detail
}

func (b *Builder) getRequestID(ctx context.Context) string {
	if !b.config.IncludeRequestID {
		return ""
	}
	return contextutils.GetRequestID(ctx)
}

func (b *Builder) getTimestamp() int64 {
	if !b.config.IncludeTimestamp {
		return 0
	}
	return time.Now().Unix()
}

func (b *Builder) logError(ctx context.Context, err error, detail *ErrorDetail) {
	fields := []zap.Field{
		zap.String("request_id", contextutils.GetRequestID(ctx)),
		zap.String("error_type", detail.Type),
		zap.String("error_code", detail.Code),
	}
	switch detail.Type {
	case services.ErrTypeInternal, services.ErrTypeUpstream:
		b.logger.Error("Request failed", append(fields, zap.Error(err))...)
	case services.ErrTypeValidation, services.ErrTypeConflict:
		b.logger.Warn("Request rejected", append(fields, zap.String("error_message", detail.Message))...)
	default:
		b.logger.Info("Request completed with error", append(fields, zap.String("error_message", detail.Message))...)
	}
}

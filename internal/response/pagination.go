package response

import (
	"net/http"
	"net/url"
	"strconv"

	"expertene/internal/models"
	"expertene/internal/services"
)

// PaginationMeta is the pagination block carried in ResponseMeta.
type PaginationMeta = models.PaginationMeta

// ===============================
// PAGINATION PARSER
// ===============================

// PaginationConfig holds pagination configuration
type PaginationConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultPaginationConfig returns default pagination configuration
func DefaultPaginationConfig() *PaginationConfig {
	return &PaginationConfig{DefaultPageSize: 20, MaxPageSize: 100}
}

// PaginationParser reads limit/offset or page/page_size from a query.
type PaginationParser struct {
	config *PaginationConfig
}

// NewPaginationParser creates a new pagination parser
func NewPaginationParser(config *PaginationConfig) *PaginationParser {
	if config == nil {
		config = DefaultPaginationConfig()
	}
	return &PaginationParser{config: config}
}

// ParseFromQuery accepts either limit/offset or page/page_size. Explicit
// offsets win over pages.
func (p *PaginationParser) ParseFromQuery(query url.Values) (models.PaginationParams, error) {
	params := models.PaginationParams{Limit: p.config.DefaultPageSize}

	limit, err := intParam(query, "limit")
	if err != nil {
		return params, err
	}
	if limit == 0 {
		if limit, err = intParam(query, "page_size"); err != nil {
			return params, err
		}
	}
	if limit > 0 {
		params.Limit = min(limit, p.config.MaxPageSize)
	}

	offset, err := intParam(query, "offset")
	if err != nil {
		return params, err
	}
	if offset > 0 {
		params.Offset = offset
		return params, nil
	}

	page, err := intParam(query, "page")
	if err != nil {
		return params, err
	}
	if page > 1 {
		params.Offset = (page - 1) * params.Limit
	}
	return params, nil
}

// ParseFromRequest parses pagination parameters from the request query
func (p *PaginationParser) ParseFromRequest(r *http.Request) (models.PaginationParams, error) {
	return p.ParseFromQuery(r.URL.Query())
}

func intParam(query url.Values, name string) (int, error) {
	raw := query.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, services.NewFieldValidationError("invalid pagination parameter",
			services.FieldError{Field: name, Message: name + " must be a non-negative integer", Code: "numeric"})
	}
	return n, nil
}

// ===============================
// PAGINATED RESPONSES
// ===============================

// WritePaginated writes one page with its pagination metadata.
func WritePaginated[T any](b *Builder, w http.ResponseWriter, r *http.Request, page *models.PaginatedResponse[T]) {
	resp := b.Success(r.Context(), page.Data)
	meta := page.Pagination
	resp.Meta = &ResponseMeta{Pagination: &meta}
	b.WriteJSON(w, r, resp, http.StatusOK)
}

package web

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"expertene/internal/middleware"
	"expertene/internal/services"
)

type errorPage struct {
	StatusCode int
	Message    string
}

// RenderErrorPage renders the error template for err.
func (h *WebHandler) RenderErrorPage(w http.ResponseWriter, r *http.Request, err error) {
	se := services.GetServiceError(err)
	status := se.GetStatusCode()

	logger := middleware.GetRequestLogger(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("Web request failed", zap.Error(err), zap.Int("status", status))
	} else {
		logger.Debug("Web request rejected", zap.Error(err), zap.Int("status", status))
	}

	message := se.Message
	if se.Type == services.ErrTypeInternal {
		message = "Something went wrong on our side."
	}
	h.renderTemplate(w, r, status, "error", h.newPage(r, fmt.Sprintf("%d Error", status), errorPage{
		StatusCode: status,
		Message:    message,
	}))
}

// NotFound renders the 404 page.
func (h *WebHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.RenderErrorPage(w, r, services.NewNotFoundError("page not found: "+r.URL.Path))
}

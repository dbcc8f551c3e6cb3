package response

import (
	"net/http"
	"strings"
)

// ===============================
// REDIRECT HELPERS
// ===============================

// WriteRedirect redirects with code, falling back to 302 for non-redirect codes.
func (b *Builder) WriteRedirect(w http.ResponseWriter, r *http.Request, url string, code int) {
	if code < 300 || code > 399 {
		code = http.StatusFound
	}
	http.Redirect(w, r, url, code)
}

// WriteSeeOther writes a see other redirect (303)
func (b *Builder) WriteSeeOther(w http.ResponseWriter, r *http.Request, url string) {
	b.WriteRedirect(w, r, url, http.StatusSeeOther)
}

// ===============================
// HEALTH CHECK RESPONSES
// ===============================

// HealthStatus represents system health status
type HealthStatus struct {
	Status       string            `json:"status"`
	Timestamp    int64             `json:"timestamp"`
	Version      string            `json:"version,omitempty"`
	Environment  string            `json:"environment,omitempty"`
	Uptime       float64           `json:"uptime_seconds,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Issues       []string          `json:"issues,omitempty"`
}

// WriteHealthCheck answers 200 when healthy and 503 otherwise.
func (b *Builder) WriteHealthCheck(w http.ResponseWriter, r *http.Request, health *HealthStatus) {
	code := http.StatusOK
	if health.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	b.WriteJSON(w, r, b.Success(r.Context(), health), code)
}

// ===============================
// CONTENT NEGOTIATION
// ===============================

// WantsHTML reports whether the client prefers an HTML page over JSON.
func WantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"expertene/internal/contextutils"
)

const (
	HeaderXRequestID     = "X-Request-ID"
	HeaderXCorrelationID = "X-Correlation-ID"

	maxRequestIDLength = 128
)

// RequestID gives every request an id, echoed in X-Request-ID, and a
// request logger tagged with it. A caller-supplied id from either header is
// kept when it is short printable ASCII; anything else is replaced.
func RequestID(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := incomingRequestID(r)
			if id == "" {
				id = newRequestID(start)
			}
			w.Header().Set(HeaderXRequestID, id)

			ctx := contextutils.WithRequestID(r.Context(), id)
			ctx = withScope(ctx, &requestScope{
				start: start,
				logger: logger.With(
					zap.String("request_id", id),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func incomingRequestID(r *http.Request) string {
	for _, h := range []string{HeaderXRequestID, HeaderXCorrelationID} {
		if id := strings.TrimSpace(r.Header.Get(h)); validRequestID(id) {
			return id
		}
	}
	return ""
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}

func newRequestID(now time.Time) string {
	if id, err := uuid.NewV4(); err == nil {
		return id.String()
	}
	return "req_" + strconv.FormatInt(now.UnixNano(), 36)
}

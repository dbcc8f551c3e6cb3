package middleware

import (
	"fmt"
	"net/http"
	"runtime"
	"runtime/debug"

	"go.uber.org/zap"

	"expertene/internal/response"
	"expertene/internal/services"
)

// RecoveryConfig holds panic recovery configuration
type RecoveryConfig struct {
	// StackTraceInResponse exposes the stack in the error details. Never
	// enable outside development.
	StackTraceInResponse bool
}

// Recovery converts a handler panic into a 500 envelope and logs the stack.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recovery(config *RecoveryConfig, builder *response.Builder, logger *zap.Logger) func(http.Handler) http.Handler {
	if config == nil {
		config = &RecoveryConfig{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := string(debug.Stack())
				requestLogger := logger.With(zap.String("path", r.URL.Path))
				if s := scopeFrom(r.Context()); s != nil && s.logger != nil {
					requestLogger = s.logger
				}
				requestLogger.Error("Panic recovered",
					zap.String("event", "panic_recovered"),
					zap.Any("panic", rec),
					zap.String("panic_type", fmt.Sprintf("%T", rec)),
					zap.Int("goroutines", runtime.NumGoroutine()),
					zap.String("stack", stack),
				)

				err := services.NewInternalError("internal server error", fmt.Errorf("panic: %v", rec))
				if config.StackTraceInResponse {
					err.Message = fmt.Sprintf("panic: %v", rec)
					err.Details = map[string]any{"stack_trace": stack}
				}
				builder.WriteError(w, r, err)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

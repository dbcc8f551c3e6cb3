package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig holds configuration for structured logging middleware
type LoggingConfig struct {
	SlowRequestThreshold time.Duration
	VerySlowThreshold    time.Duration
	SkipPaths            []string
	SensitiveParams      []string
}

// DefaultLoggingConfig returns production logging configuration
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SlowRequestThreshold: time.Second,
		VerySlowThreshold:    5 * time.Second,
		SkipPaths:            []string{"/health", "/favicon.ico"},
		SensitiveParams:      []string{"access_token", "token", "code", "state"},
	}
}

// StructuredLogging logs one line per completed request at a level chosen
// from the status and duration.
func StructuredLogging(config *LoggingConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultLoggingConfig()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range config.SkipPaths {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			start := GetRequestStart(r.Context())
			rw := wrapResponseWriter(w)
			next.ServeHTTP(rw, r)
			duration := time.Since(start)

			logger := GetRequestLogger(r.Context())
			if ce := logger.Check(levelFor(rw.status, duration, config), "Request completed"); ce != nil {
				ce.Write(
					zap.Int("status", rw.status),
					zap.Duration("duration", duration),
					zap.Int64("response_size", rw.bytesWritten),
					zap.String("query", sanitizeQuery(r.URL.RawQuery, config.SensitiveParams)),
				)
			}
		})
	}
}

func levelFor(status int, duration time.Duration, config *LoggingConfig) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case duration > config.VerySlowThreshold:
		return zapcore.ErrorLevel
	case status >= 400, duration > config.SlowRequestThreshold:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func sanitizeQuery(raw string, sensitive []string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	for key := range values {
		for _, s := range sensitive {
			if strings.EqualFold(key, s) {
				values.Set(key, "[REDACTED]")
			}
		}
	}
	return values.Encode()
}

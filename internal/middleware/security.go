package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"expertene/internal/config"
	"expertene/internal/response"
	"expertene/internal/services"
)

// ===============================
// SECURITY HEADERS
// ===============================

// contentSecurityPolicy allows Cloudinary media and the two video embed
// hosts rendered by video blocks.
var contentSecurityPolicy = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self'",
	"style-src 'self' 'unsafe-inline'",
	"img-src 'self' data: https:",
	"media-src 'self' https:",
	"frame-src https://www.youtube.com https://player.vimeo.com",
	"connect-src 'self' ws: wss:",
	"object-src 'none'",
	"base-uri 'self'",
}, "; ")

// SecurityHeaders sets the response hardening headers. HSTS is only sent
// over TLS or behind a proxy that reports https.
func SecurityHeaders(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	hsts := fmt.Sprintf("max-age=%.0f; includeSubDomains", cfg.HSTSMaxAge.Seconds())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", cfg.FrameOptions)
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", contentSecurityPolicy)
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")

			secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
			if secure && cfg.HSTSMaxAge > 0 {
				h.Set("Strict-Transport-Security", hsts)
			}
			if cfg.ForceHTTPS && !secure {
				target := "https://" + r.Host + r.URL.RequestURI()
				http.Redirect(w, r, target, http.StatusPermanentRedirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ===============================
// CORS
// ===============================

// CORS answers preflights and decorates cross-origin responses for the
// configured origins. Disallowed origins get no CORS headers at all.
func CORS(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	methods := strings.Join(cfg.CORSAllowedMethods, ", ")
	headers := strings.Join(cfg.CORSAllowedHeaders, ", ")
	maxAge := fmt.Sprintf("%.0f", cfg.CORSMaxAge.Seconds())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")

			if !isOriginAllowed(origin, cfg.CORSAllowedOrigins) {
				GetRequestLogger(r.Context()).Warn("CORS violation: origin not allowed",
					zap.String("origin", origin),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Expose-Headers", HeaderXRequestID)
			if cfg.CORSAllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isOriginAllowed matches exact origins, "*" and "*.domain" patterns.
func isOriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		switch {
		case a == "*", a == origin:
			return true
		case strings.HasPrefix(a, "*."):
			if strings.HasSuffix(origin, a[1:]) {
				return true
			}
		}
	}
	return false
}

// ===============================
// MAINTENANCE MODE
// ===============================

// Maintenance rejects writes with 503 while maintenance mode is on. Reads,
// sign-in and admin traffic still pass.
func Maintenance(features config.FeatureConfig, builder *response.Builder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !features.MaintenanceMode {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if strings.HasPrefix(r.URL.Path, "/api/v1/auth/") || strings.HasPrefix(r.URL.Path, "/api/v1/admin/") {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "300")
			builder.WriteError(w, r, services.NewServiceUnavailableError("Expertene is in maintenance, please try again shortly"))
		})
	}
}

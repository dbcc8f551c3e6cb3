package middleware

import (
	"crypto/subtle"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"expertene/internal/config"
)

// SwaggerHandler serves the Swagger UI against /swagger/doc.json.
func SwaggerHandler() http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	)
}

// SwaggerAuth puts the docs behind basic auth when credentials are configured.
func SwaggerAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.SwaggerUsername == "" && cfg.SwaggerPassword == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(cfg.SwaggerUsername)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.SwaggerPassword)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="Expertene API docs"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

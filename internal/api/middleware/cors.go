package middleware

import (
	"net/http"

	"github.com/futig/interview-orchestrator/internal/config"
	"github.com/go-chi/cors"
)

// CORS lets the candidate page call the session API from the origins
// allowed in the configuration.
func CORS(cfg config.CORSConfig) func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}

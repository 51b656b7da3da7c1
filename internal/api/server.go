package api

import (
	"net/http"
	"time"

	"github.com/futig/interview-orchestrator/internal/api/docs"
	"github.com/futig/interview-orchestrator/internal/api/middleware"
	sessionapi "github.com/futig/interview-orchestrator/internal/api/session"
	"github.com/futig/interview-orchestrator/internal/config"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RouterConfig holds the router settings taken from the service configuration
type RouterConfig struct {
	// RequestTimeout must cover a full submission round trip
	RequestTimeout time.Duration
	DocsSpecPath   string
	CORS           config.CORSConfig
}

// SetupRouter creates and configures the HTTP router.
func SetupRouter(sessionHandler *sessionapi.Handler, cfg RouterConfig, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)                   // Recover from panics
	r.Use(chimiddleware.RequestID)                   // Add request ID
	r.Use(middleware.Logger(logger))                 // Log requests
	r.Use(middleware.CORS(cfg.CORS))                 // Handle CORS
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout)) // Default timeout

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Swagger documentation endpoints
	docs.RegisterRoutes(r, cfg.DocsSpecPath)

	sessionapi.RegisterRoutes(r, sessionHandler)

	return r
}

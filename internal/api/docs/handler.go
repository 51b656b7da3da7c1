package docs

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const specRoute = "/docs/openapi.yaml"

// RegisterRoutes serves the session API description read from specPath and
// a Swagger UI pointed at it.
func RegisterRoutes(r chi.Router, specPath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/index.html", http.StatusFound)
	})

	r.Get(specRoute, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		http.ServeFile(w, r, specPath)
	})

	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL(specRoute),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))
}

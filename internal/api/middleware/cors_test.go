package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/futig/interview-orchestrator/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	cfg := config.CORSConfig{
		AllowedOrigins: []string{"https://candidate.example.com"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
	}{
		{name: "allowed preflight", method: http.MethodOptions, origin: "https://candidate.example.com", wantOrigin: "https://candidate.example.com"},
		{name: "allowed request", method: http.MethodPost, origin: "https://candidate.example.com", wantOrigin: "https://candidate.example.com"},
		{name: "foreign origin", method: http.MethodOptions, origin: "https://evil.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/interview-session/s-1/submit", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

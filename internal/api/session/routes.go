package session

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers session routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/interview-session", func(r chi.Router) {
		r.Post("/", h.StartSession)
		r.Get("/{id}", h.GetSession)
		r.Delete("/{id}", h.DeleteSession)
		r.Post("/{id}/begin", h.BeginQuestion)
		r.Post("/{id}/submit", h.SubmitAnswer)
		r.Post("/{id}/exit", h.ExitSession)
		r.Put("/{id}/audio", h.SetAudio)
		r.Put("/{id}/video", h.SetVideo)
	})
}

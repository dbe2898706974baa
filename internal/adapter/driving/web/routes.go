package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all web GUI routes on r. Web routes serve HTML
// fragments under /app/* and share the API's session requirement.
func RegisterRoutes(r chi.Router, h *Handler, session func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(session)
		r.Get("/app/repos/{owner}/{repo}/branches/{branch}/badge", h.BadgeFragment)
	})
}

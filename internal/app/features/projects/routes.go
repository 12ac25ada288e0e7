// internal/app/features/projects/routes.go
package projects

import (
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /api/projects. Browsing is public; everything
// that writes needs a session.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/{id}", h.ServeProject)
	r.Get("/{id}/stats", h.ServeStats)
	r.Get("/{id}/comments", h.ServeComments)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/", h.HandleCreate)
		pr.Get("/mine", h.ServeMine)
		pr.Post("/{id}/donations", h.HandleDonate)
		pr.Post("/{id}/withdrawals", h.HandleWithdraw)
		pr.Post("/{id}/comments", h.HandleComment)
	})

	return r
}

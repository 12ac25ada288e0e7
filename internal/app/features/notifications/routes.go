// internal/app/features/notifications/routes.go
package notifications

import (
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the inbox, typically at /api/notifications.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.Get("/stream", h.ServeStream)
		pr.Post("/{id}/read", h.HandleMarkRead)
	})

	return r
}

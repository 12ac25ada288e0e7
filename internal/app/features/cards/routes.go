// internal/app/features/cards/routes.go
package cards

import (
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /api/cards behind RequireSignedIn. Review
// endpoints are for administrators; the service checks the capability too.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Post("/requests", h.HandleRequest)

	r.Group(func(ar chi.Router) {
		ar.Use(sm.RequireRole(string(models.RoleAdministrator)))
		ar.Get("/requests", h.ServeList)
		ar.Post("/requests/{id}/approve", h.HandleApprove)
		ar.Post("/requests/{id}/reject", h.HandleReject)
	})

	return r
}

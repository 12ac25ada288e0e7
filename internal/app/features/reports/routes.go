// internal/app/features/reports/routes.go
package reports

import (
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /api/reports behind RequireSignedIn.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.HandleCreate)

	r.Group(func(sr chi.Router) {
		sr.Use(sm.RequireRole(string(models.RoleModerator), string(models.RoleAdministrator)))
		sr.Get("/", h.ServeList)
		sr.Post("/{id}/resolve", h.HandleResolve)
	})

	return r
}

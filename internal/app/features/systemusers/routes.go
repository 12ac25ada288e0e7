// internal/app/features/systemusers/routes.go
package systemusers

import (
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the user directory, typically at /api/admin/users.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(string(models.RoleAdministrator)))

		pr.Get("/", h.ServeList)
		pr.Get("/{id}", h.ServeUser)
		pr.Post("/{id}/role", h.HandleSetRole)
	})

	return r
}

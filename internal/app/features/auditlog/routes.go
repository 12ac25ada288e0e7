// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the audit log, typically at /api/admin/audit.
// Only administrators can read it.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(string(models.RoleAdministrator)))

		pr.Get("/", h.ServeList)
	})

	return r
}

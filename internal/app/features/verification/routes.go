// internal/app/features/verification/routes.go
package verification

import (
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /api/verification behind RequireSignedIn.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.HandleSubmit)

	r.Group(func(sr chi.Router) {
		sr.Use(sm.RequireRole(string(models.RoleModerator), string(models.RoleAdministrator)))
		sr.Get("/", h.ServePending)
		sr.Get("/{id}/document", h.ServeDocument)
		sr.Post("/{id}/approve", h.HandleApprove)
		sr.Post("/{id}/reject", h.HandleReject)
	})

	return r
}

// internal/app/features/systemusers/users.go
package systemusers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	"github.com/crewfund/crew/internal/app/features/shared"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

type listResponse struct {
	Users []models.User `json:"users"`
}

type roleRequest struct {
	Role string `json:"role"`
}

// ServeList handles GET /api/admin/users?role=Moderador.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	var role models.Role
	if q := strings.TrimSpace(r.URL.Query().Get("role")); q != "" && q != "all" {
		if role, err = models.ParseRole(q); err != nil {
			uierrors.Render(w, r, h.Log, apperr.Invalid("unknown role %q", q))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	users, err := h.Moderation.ListUsers(ctx, uid, role)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	uierrors.JSON(w, http.StatusOK, listResponse{Users: users})
}

// ServeUser handles GET /api/admin/users/{id}.
func (h *Handler) ServeUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			err = apperr.NotFound("user")
		}
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, u)
}

// HandleSetRole handles POST /api/admin/users/{id}/role.
func (h *Handler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	var body roleRequest
	if err := uierrors.Decode(r, &body); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "user.set_role")
	defer cancel()

	u, err := h.Moderation.SetRole(ctx, uid, chi.URLParam(r, "id"), body.Role)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, u)
}

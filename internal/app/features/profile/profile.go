// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	"github.com/crewfund/crew/internal/app/features/shared"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/htmlsanitize"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/domain/models"
	"go.uber.org/zap"
)

// MaxDisplayName bounds the public name.
const MaxDisplayName = 80

type meResponse struct {
	*models.User
	ProjectsRemaining *int `json:"projects_remaining,omitempty"`
}

type updateRequest struct {
	DisplayName string `json:"display_name"`
}

// ServeMe handles GET /api/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.load(ctx, uid)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	resp := meResponse{User: u}
	if h.Projects != nil {
		if n, err := h.Projects.Remaining(ctx, uid); err == nil {
			resp.ProjectsRemaining = &n
		} else {
			h.Log.Warn("project quota lookup failed", zap.String("user_id", uid), zap.Error(err))
		}
	}
	uierrors.JSON(w, http.StatusOK, resp)
}

// HandleUpdate handles PATCH /api/me.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	var req updateRequest
	if err := uierrors.Decode(r, &req); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	name := htmlsanitize.StripTags(req.DisplayName)
	switch n := len([]rune(name)); {
	case n == 0:
		uierrors.Render(w, r, h.Log, apperr.Invalid("display name is required"))
		return
	case n > MaxDisplayName:
		uierrors.Render(w, r, h.Log, apperr.Invalid("display name must be at most %d characters", MaxDisplayName))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Users.UpdateDisplayName(ctx, uid, name); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			err = apperr.NotFound("user")
		}
		uierrors.Render(w, r, h.Log, err)
		return
	}
	u, err := h.load(ctx, uid)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, meResponse{User: u})
}

func (h *Handler) load(ctx context.Context, uid string) (*models.User, error) {
	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, userstore.ErrNotFound) {
		return nil, apperr.NotFound("user")
	}
	return u, err
}

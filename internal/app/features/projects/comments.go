// internal/app/features/projects/comments.go
package projects

import (
	"context"
	"net/http"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	"github.com/crewfund/crew/internal/app/features/shared"
	projectsvc "github.com/crewfund/crew/internal/app/services/projects"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

type commentRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type commentsResponse struct {
	Comments []models.Comment `json:"comments"`
}

// ServeComments handles GET /api/projects/{id}/comments.
func (h *Handler) ServeComments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	id := chi.URLParam(r, "id")
	if _, err := h.Projects.Get(ctx, id, viewerID(r)); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	cs, err := h.Projects.Comments(ctx, id, shared.Limit(r, projectsvc.DefaultCommentsLimit, projectsvc.DefaultCommentsLimit))
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if cs == nil {
		cs = []models.Comment{}
	}
	uierrors.JSON(w, http.StatusOK, commentsResponse{Comments: cs})
}

// HandleComment handles POST /api/projects/{id}/comments.
func (h *Handler) HandleComment(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	var req commentRequest
	if err := uierrors.Decode(r, &req); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	c, err := h.Projects.AddComment(ctx, chi.URLParam(r, "id"), uid, req.Rating, req.Comment)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, c)
}

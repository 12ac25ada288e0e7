// internal/app/features/projects/projects.go
package projects

import (
	"context"
	"net/http"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	"github.com/crewfund/crew/internal/app/features/shared"
	projectsvc "github.com/crewfund/crew/internal/app/services/projects"
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// projectView adds derived fields to a project.
type projectView struct {
	*models.Project
	RatingAvg float64 `json:"rating_avg"`
	GoalMet   bool    `json:"goal_met"`
	ImageURL  string  `json:"image_url,omitempty"`
}

type listResponse struct {
	Projects []projectView `json:"projects"`
}

type createRequest struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Tags        []string               `json:"tags,omitempty"`
	Tiers       []projectsvc.TierInput `json:"funding_tiers"`
	Image       []byte                 `json:"image,omitempty"` // base64
	ImageType   string                 `json:"image_type,omitempty"`
}

func (h *Handler) view(ctx context.Context, p *models.Project) projectView {
	v := projectView{Project: p, RatingAvg: p.RatingAvg(), GoalMet: p.GoalMet()}
	if p.ImageRef != "" && h.Blobs != nil {
		url, err := h.Blobs.URL(ctx, p.ImageRef)
		if err != nil {
			h.Log.Warn("project image url failed", zap.String("project_id", p.ID), zap.Error(err))
		}
		v.ImageURL = url
	}
	return v
}

func (h *Handler) list(ctx context.Context, ps []models.Project) listResponse {
	out := listResponse{Projects: make([]projectView, 0, len(ps))}
	for i := range ps {
		out.Projects = append(out.Projects, h.view(ctx, &ps[i]))
	}
	return out
}

// ServeList handles GET /api/projects?q=keyword&limit=N.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ps, err := h.Projects.Discover(ctx, query.Get(r, "q"), shared.Limit(r, projectsvc.DefaultDiscoverLimit, projectsvc.DefaultDiscoverLimit))
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, h.list(ctx, ps))
}

// ServeMine handles GET /api/projects/mine.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ps, err := h.Projects.ListByCreator(ctx, uid)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, h.list(ctx, ps))
}

// HandleCreate handles POST /api/projects.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	var req createRequest
	if err := uierrors.DecodeLimit(r, &req, int64(h.Projects.Config().MaxImageBytes)*2); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "publish")
	defer cancel()

	p, err := h.Projects.Publish(ctx, uid, projectsvc.Draft{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Tiers:       req.Tiers,
		Image:       req.Image,
		ImageType:   req.ImageType,
	})
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, h.view(ctx, p))
}

// ServeProject handles GET /api/projects/{id}.
func (h *Handler) ServeProject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Projects.Get(ctx, chi.URLParam(r, "id"), viewerID(r))
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, h.view(ctx, p))
}

// ServeStats handles GET /api/projects/{id}/stats?from=&to= (RFC 3339).
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	from, err := shared.Time(r, "from")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	to, err := shared.Time(r, "to")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	id := chi.URLParam(r, "id")
	if _, err := h.Projects.Get(ctx, id, viewerID(r)); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	st, err := h.Ledger.ProjectStats(ctx, id, from, to)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, st)
}

// viewerID is the signed-in user's id, or "" for anonymous browsing.
func viewerID(r *http.Request) string {
	if u, ok := auth.CurrentUser(r); ok {
		return u.ID
	}
	return ""
}

// internal/app/features/reports/handler.go
package reports

import (
	"context"
	"net/http"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	"github.com/crewfund/crew/internal/app/features/shared"
	"github.com/crewfund/crew/internal/app/services/moderation"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves content reports: filing by any signed-in user and review
// by moderators.
type Handler struct {
	Moderation *moderation.Service
	Log        *zap.Logger
}

func NewHandler(svc *moderation.Service, logger *zap.Logger) *Handler {
	return &Handler{Moderation: svc, Log: logger}
}

type createRequest struct {
	TargetType models.ReportTarget `json:"target_type"`
	TargetID   string              `json:"target_id"`
	Reason     string              `json:"reason"`
}

type resolveRequest struct {
	Action models.ModerationAction `json:"action"`
}

type listResponse struct {
	Reports []models.Report `json:"reports"`
}

// HandleCreate handles POST /api/reports.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	var body createRequest
	if err := uierrors.Decode(r, &body); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rep, err := h.Moderation.CreateReport(ctx, uid, body.TargetType, body.TargetID, body.Reason)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, rep)
}

// ServeList handles GET /api/reports?status=pending.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	status, err := shared.ReportStatus(r.URL.Query().Get("status"))
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	reps, err := h.Moderation.ListReports(ctx, uid, status)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if reps == nil {
		reps = []models.Report{}
	}
	uierrors.JSON(w, http.StatusOK, listResponse{Reports: reps})
}

// HandleResolve handles POST /api/reports/{id}/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	var body resolveRequest
	if err := uierrors.Decode(r, &body); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "report.resolve")
	defer cancel()

	rep, err := h.Moderation.ResolveReport(ctx, chi.URLParam(r, "id"), uid, body.Action)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, rep)
}

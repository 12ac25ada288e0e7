// internal/app/features/cards/handler.go
package cards

import (
	"context"
	"net/http"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	"github.com/crewfund/crew/internal/app/features/shared"
	cardsvc "github.com/crewfund/crew/internal/app/services/cards"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves virtual card requests and their review.
type Handler struct {
	Cards *cardsvc.Service
	Log   *zap.Logger
}

func NewHandler(svc *cardsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{Cards: svc, Log: logger}
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type listResponse struct {
	Requests []models.CardRequest `json:"requests"`
}

// HandleRequest handles POST /api/cards/requests.
func (h *Handler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "card.request")
	defer cancel()

	req, err := h.Cards.RequestCard(ctx, uid)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, req)
}

// ServeList handles GET /api/cards/requests?status=pending.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	status, err := shared.RequestStatus(query.Get(r, "status"))
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	reqs, err := h.Cards.ListRequests(ctx, uid, status)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if reqs == nil {
		reqs = []models.CardRequest{}
	}
	uierrors.JSON(w, http.StatusOK, listResponse{Requests: reqs})
}

// HandleApprove handles POST /api/cards/requests/{id}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "card.approve")
	defer cancel()

	req, err := h.Cards.ApproveCard(ctx, chi.URLParam(r, "id"), uid)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, req)
}

// HandleReject handles POST /api/cards/requests/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	var body rejectRequest
	if err := uierrors.Decode(r, &body); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "card.reject")
	defer cancel()

	req, err := h.Cards.RejectCard(ctx, chi.URLParam(r, "id"), uid, body.Reason)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, req)
}

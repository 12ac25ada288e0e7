// internal/app/features/projects/money.go
package projects

import (
	"net/http"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	"github.com/crewfund/crew/internal/app/features/shared"
	"github.com/crewfund/crew/internal/app/services/ledger"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/domain/money"
	"github.com/go-chi/chi/v5"
)

type donateRequest struct {
	Amount money.Cents `json:"amount"`
}

// HandleDonate handles POST /api/projects/{id}/donations.
func (h *Handler) HandleDonate(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	var req donateRequest
	if err := uierrors.Decode(r, &req); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, ledger.OpDonate)
	defer cancel()

	rcpt, err := h.Ledger.Donate(ctx, uid, chi.URLParam(r, "id"), req.Amount, shared.IdempotencyKey(r))
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, rcpt)
}

// HandleWithdraw handles POST /api/projects/{id}/withdrawals. Only the
// creator may withdraw, once, after the goal is met.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, ledger.OpWithdraw)
	defer cancel()

	rcpt, err := h.Ledger.WithdrawProjectFunds(ctx, uid, chi.URLParam(r, "id"), shared.IdempotencyKey(r))
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, rcpt)
}

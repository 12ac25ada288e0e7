// internal/app/features/wallet/handler.go
package wallet

import (
	"net/http"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	"github.com/crewfund/crew/internal/app/features/shared"
	"github.com/crewfund/crew/internal/app/services/ledger"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/crewfund/crew/internal/domain/money"
	"go.uber.org/zap"
)

const maxHistory = 500

// Handler serves the signed-in user's wallet.
type Handler struct {
	Ledger *ledger.Service
	Log    *zap.Logger
}

func NewHandler(l *ledger.Service, logger *zap.Logger) *Handler {
	return &Handler{Ledger: l, Log: logger}
}

type rechargeRequest struct {
	Amount money.Cents `json:"amount"`
	ledger.CardDetails
}

type historyResponse struct {
	Transactions []models.Transaction `json:"transactions"`
}

// HandleRecharge handles POST /api/wallet/recharge.
func (h *Handler) HandleRecharge(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	var req rechargeRequest
	if err := uierrors.Decode(r, &req); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, ledger.OpRecharge)
	defer cancel()

	rcpt, err := h.Ledger.RechargeBalance(ctx, uid, req.Amount, req.CardDetails, shared.IdempotencyKey(r))
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, rcpt)
}

// HandleReclaim handles POST /api/wallet/reclaim.
func (h *Handler) HandleReclaim(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, ledger.OpReclaim)
	defer cancel()

	rcpt, err := h.Ledger.ReclaimWithdrawable(ctx, uid, shared.IdempotencyKey(r))
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, rcpt)
}

// ServeTransactions handles GET /api/wallet/transactions?limit=N.
func (h *Handler) ServeTransactions(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "history")
	defer cancel()

	txs, err := h.Ledger.History(ctx, uid, shared.Limit(r, ledger.DefaultHistoryLimit, maxHistory))
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	uierrors.JSON(w, http.StatusOK, historyResponse{Transactions: txs})
}

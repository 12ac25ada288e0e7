// internal/app/features/wallet/routes.go
package wallet

import "github.com/go-chi/chi/v5"

// Routes is mounted under /api/wallet behind RequireSignedIn.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/recharge", h.HandleRecharge)
	r.Post("/reclaim", h.HandleReclaim)
	r.Get("/transactions", h.ServeTransactions)
	return r
}

// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// Routes serves the password sign-in endpoints; mounted under /auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.HandleLogin)
	r.Post("/register", h.HandleRegister)
	return r
}

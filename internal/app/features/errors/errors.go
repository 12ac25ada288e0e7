// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/crewfund/crew/internal/app/system/apperr"
	"go.uber.org/zap"
)

// Handler serves the router-level fallbacks. No store needed.
type Handler struct {
	Log *zap.Logger
}

// NewHandler constructs an errors Handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

// NotFound answers unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	Render(w, r, h.Log, apperr.ErrNotFound.WithMessage("no route for %s %s", r.Method, r.URL.Path))
}

// MethodNotAllowed answers known routes hit with the wrong verb.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusMethodNotAllowed, Body{
		Error:   "method_not_allowed",
		Message: r.Method + " is not supported here",
	})
}

// Forbidden answers GET /forbidden, where auth redirects browsers.
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	Render(w, r, h.Log, apperr.ErrPermissionDenied)
}

// Unauthorized answers GET /unauthorized.
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	Render(w, r, h.Log, apperr.ErrUnauthenticated)
}

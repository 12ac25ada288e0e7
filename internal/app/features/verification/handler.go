// internal/app/features/verification/handler.go
package verification

import (
	"context"
	"io"
	"net/http"
	"strings"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	"github.com/crewfund/crew/internal/app/features/shared"
	verifysvc "github.com/crewfund/crew/internal/app/services/verification"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves identity verification submissions and their review.
type Handler struct {
	Verification *verifysvc.Service
	Log          *zap.Logger
}

func NewHandler(svc *verifysvc.Service, logger *zap.Logger) *Handler {
	return &Handler{Verification: svc, Log: logger}
}

type listResponse struct {
	Requests []models.VerificationRequest `json:"requests"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// HandleSubmit handles POST /api/verification as multipart/form-data with
// fields ci_number and image.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	sub, err := readSubmission(w, r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "kyc.request")
	defer cancel()

	req, err := h.Verification.RequestVerification(ctx, uid, sub)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, req)
}

func readSubmission(w http.ResponseWriter, r *http.Request) (verifysvc.Submission, error) {
	var sub verifysvc.Submission
	r.Body = http.MaxBytesReader(w, r.Body, verifysvc.MaxImageBytes+64<<10)
	if err := r.ParseMultipartForm(verifysvc.MaxImageBytes); err != nil {
		return sub, apperr.Invalid("expected a multipart form with ci_number and image")
	}
	sub.CINumber = r.FormValue("ci_number")

	f, hdr, err := r.FormFile("image")
	if err != nil {
		return sub, apperr.Invalid("an identity document image is required")
	}
	defer f.Close()

	// One byte over the cap lets the service report the size error.
	b, err := io.ReadAll(io.LimitReader(f, verifysvc.MaxImageBytes+1))
	if err != nil {
		return sub, apperr.Invalid("could not read the uploaded image")
	}
	sub.Image = b
	sub.ImageType = hdr.Header.Get("Content-Type")
	if sub.ImageType == "" || strings.HasPrefix(sub.ImageType, "application/octet-stream") {
		sub.ImageType = http.DetectContentType(b)
	}
	return sub, nil
}

// ServePending handles GET /api/verification (staff).
func (h *Handler) ServePending(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	reqs, err := h.Verification.ListPending(ctx, uid)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if reqs == nil {
		reqs = []models.VerificationRequest{}
	}
	uierrors.JSON(w, http.StatusOK, listResponse{Requests: reqs})
}

// ServeDocument handles GET /api/verification/{id}/document (staff) and
// redirects to the stored identity image.
func (h *Handler) ServeDocument(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	url, err := h.Verification.DocumentURL(ctx, chi.URLParam(r, "id"), uid)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// HandleApprove handles POST /api/verification/{id}/approve (staff).
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	uid, err := shared.UserID(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "kyc.approve")
	defer cancel()

	req, err := h.Verification.ApproveIdentity(ctx, chi.URLParam(r, "id"), uid)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, req)
}

// HandleReject handles POST /api/verification/{id}/reject (staff).
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
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "kyc.reject")
	defer cancel()

	req, err := h.Verification.RejectIdentity(ctx, chi.URLParam(r, "id"), uid, body.Reason)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, req)
}

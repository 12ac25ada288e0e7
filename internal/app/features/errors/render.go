// internal/app/features/errors/render.go
package errors

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/crewfund/crew/internal/app/system/apperr"
	"go.uber.org/zap"
)

// maxBody caps JSON request bodies. Image uploads use multipart instead.
const maxBody = 1 << 20

// Body is the JSON shape of every error response.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

// Status maps an error kind to its HTTP status code.
func Status(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindPrecondition:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindPermission:
		return http.StatusForbidden
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// Render writes err as a JSON error response. Internal errors are logged
// with their cause and shown to the client without it.
func Render(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	ae := apperr.From(err)
	if ae == nil {
		// a nil *apperr.Error boxed in a non-nil error
		ae = apperr.ErrInternal
	}
	status := Status(ae.Kind)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", ae.Code),
			zap.Error(err))
	}
	if ae.Kind == apperr.KindRateLimited {
		w.Header().Set("Retry-After", "60")
	}
	msg := ae.Message
	if ae.Kind == apperr.KindInternal {
		msg = apperr.ErrInternal.Message
	}
	JSON(w, status, Body{Error: ae.Code, Message: msg, Retry: ae.Kind.Retryable()})
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode reads a JSON request body into dst. An empty body leaves dst
// untouched; malformed JSON or unknown fields are InvalidInput.
func Decode(r *http.Request, dst any) error {
	return DecodeLimit(r, dst, maxBody)
}

// DecodeLimit is Decode with a custom body cap, for bodies that embed images.
func DecodeLimit(r *http.Request, dst any, limit int64) error {
	if limit <= 0 {
		limit = maxBody
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return apperr.Invalid("malformed request body: %v", err)
	}
	return nil
}

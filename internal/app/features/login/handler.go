// internal/app/features/login/handler.go
package login

// Terminology: User Identifiers
//   - UserID / userID / user_id: the identity provider uid, also the wallet document id
//   - Email: what users type to sign in; matched case- and accent-insensitively

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	credentialstore "github.com/crewfund/crew/internal/app/store/credentials"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/auditlog"
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/app/system/htmlsanitize"
	"github.com/crewfund/crew/internal/app/system/ratelimit"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxDisplayName bounds the public name chosen at registration.
const maxDisplayName = 80

type Handler struct {
	Log          *zap.Logger
	SessionMgr   *auth.SessionManager
	Users        *userstore.Store
	Credentials  *credentialstore.Store
	LoginLimiter *ratelimit.LoginLimiter
	AuditLog     *auditlog.Logger
}

func NewHandler(
	sessionMgr *auth.SessionManager,
	users *userstore.Store,
	creds *credentialstore.Store,
	limiter *ratelimit.LoginLimiter,
	audit *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	if limiter == nil {
		limiter = ratelimit.NewLoginLimiter()
	}
	return &Handler{
		Log:          logger,
		SessionMgr:   sessionMgr,
		Users:        users,
		Credentials:  creds,
		LoginLimiter: limiter,
		AuditLog:     audit,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request / response bodies                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type sessionResponse struct {
	User    *models.User `json:"user"`
	Created bool         `json:"created,omitempty"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /auth/login                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := uierrors.Decode(r, &req); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		uierrors.Render(w, r, h.Log, apperr.Invalid("email and password are required"))
		return
	}

	if ok, reason := h.LoginLimiter.Check(r, email); !ok {
		h.AuditLog.LoginRateLimited(r.Context(), r, email, reason)
		uierrors.Render(w, r, h.Log, apperr.ErrRateLimitExceeded.WithMessage("%s", reason))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	userID, err := h.Credentials.Verify(ctx, email, req.Password)
	if errors.Is(err, credentialstore.ErrInvalidCredentials) {
		h.AuditLog.LoginFailed(ctx, r, "", email, "invalid_credentials")
		uierrors.Render(w, r, h.Log, apperr.ErrUnauthenticated.WithMessage("invalid email or password"))
		return
	}
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	// A credential without a profile means registration was cut short.
	u, _, err := h.Users.EnsureProfile(ctx, userID, email, "")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	if err := h.signIn(w, r, u); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	h.LoginLimiter.ResetEmail(ctx, email)
	h.AuditLog.LoginSuccess(ctx, r, u.ID, "password", email)

	uierrors.JSON(w, http.StatusOK, sessionResponse{User: u})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /auth/register                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := uierrors.Decode(r, &req); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		uierrors.Render(w, r, h.Log, apperr.Invalid("a valid email address is required"))
		return
	}
	name := htmlsanitize.StripTags(req.DisplayName)
	if len([]rune(name)) > maxDisplayName {
		uierrors.Render(w, r, h.Log, apperr.Invalid("display name must be at most %d characters", maxDisplayName))
		return
	}

	if ok, reason := h.LoginLimiter.Check(r, email); !ok {
		h.AuditLog.LoginRateLimited(r.Context(), r, email, reason)
		uierrors.Render(w, r, h.Log, apperr.ErrRateLimitExceeded.WithMessage("%s", reason))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	userID := uuid.NewString()
	switch err := h.Credentials.Create(ctx, email, userID, req.Password); {
	case errors.Is(err, credentialstore.ErrWeakPassword):
		uierrors.Render(w, r, h.Log, apperr.Invalid("%s", err.Error()))
		return
	case errors.Is(err, credentialstore.ErrEmailTaken):
		uierrors.Render(w, r, h.Log, apperr.ErrConflict.WithMessage("%s", err.Error()))
		return
	case err != nil:
		uierrors.Render(w, r, h.Log, err)
		return
	}

	u, created, err := h.Users.EnsureProfile(ctx, userID, email, name)
	if err != nil {
		h.Log.Error("register: profile creation failed", zap.String("user_id", userID), zap.Error(err))
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if err := h.signIn(w, r, u); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	h.AuditLog.Registered(ctx, r, u.ID, "password")

	uierrors.JSON(w, http.StatusCreated, sessionResponse{User: u, Created: created})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, u *models.User) error {
	err := h.SessionMgr.SignIn(w, r, &auth.SessionUser{
		ID:    u.ID,
		Name:  u.Name(),
		Email: u.Email,
		Role:  string(u.Role),
	})
	if err != nil {
		h.Log.Error("session save failed", zap.String("user_id", u.ID), zap.Error(err))
		return apperr.ErrInternal.Wrap(err)
	}
	return nil
}

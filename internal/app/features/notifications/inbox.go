// internal/app/features/notifications/inbox.go
package notifications

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

type listResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

// reader returns the caller's id and role. Unknown roles read as clients.
func reader(r *http.Request) (string, models.Role, error) {
	u, ok := auth.CurrentUser(r)
	if !ok || u.ID == "" {
		return "", "", apperr.ErrUnauthenticated
	}
	role, err := models.ParseRole(u.Role)
	if err != nil {
		role = models.RoleClient
	}
	return u.ID, role, nil
}

// ServeList handles GET /api/notifications. Personal notifications and the
// staff broadcasts for the caller's role are merged newest first.
// ?unread=true drops the ones already read.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	uid, role, err := reader(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	onlyUnread, _ := strconv.ParseBool(query.Get(r, "unread"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var personal, broadcast []models.Notification
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		personal, err = h.Inbox.ForUser(gctx, uid, onlyUnread)
		return err
	})
	g.Go(func() error {
		var err error
		broadcast, err = h.Inbox.ForAudience(gctx, role)
		return err
	})
	if err := g.Wait(); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	out := listResponse{Notifications: make([]models.Notification, 0, len(personal)+len(broadcast))}
	out.Notifications = append(out.Notifications, personal...)
	for _, n := range broadcast {
		if onlyUnread && n.Read {
			continue
		}
		out.Notifications = append(out.Notifications, n)
	}
	sort.SliceStable(out.Notifications, func(i, j int) bool {
		return out.Notifications[i].Timestamp.After(out.Notifications[j].Timestamp)
	})
	for _, n := range out.Notifications {
		if !n.Read {
			out.Unread++
		}
	}
	uierrors.JSON(w, http.StatusOK, out)
}

// HandleMarkRead handles POST /api/notifications/{id}/read.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	uid, role, err := reader(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Inbox.MarkRead(ctx, uid, role, chi.URLParam(r, "id")); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

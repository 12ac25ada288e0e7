// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strings"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	"github.com/crewfund/crew/internal/app/features/shared"
	"github.com/crewfund/crew/internal/app/store/audit"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"golang.org/x/sync/errgroup"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ServeList handles GET /api/admin/audit. Filters: category, event_type,
// user_id, actor_id, from, to (RFC 3339) and limit.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	filter := audit.QueryFilter{
		Category:  strings.TrimSpace(query.Get(r, "category")),
		EventType: strings.TrimSpace(query.Get(r, "event_type")),
		UserID:    strings.TrimSpace(query.Get(r, "user_id")),
		ActorID:   strings.TrimSpace(query.Get(r, "actor_id")),
		Limit:     shared.Limit(r, defaultLimit, maxLimit),
	}
	if filter.Category != "" && !categories[filter.Category] {
		uierrors.Render(w, r, h.Log, apperr.Invalid("unknown category %q", filter.Category))
		return
	}
	from, err := shared.Time(r, "from")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	to, err := shared.Time(r, "to")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if !from.IsZero() {
		filter.StartTime = &from
	}
	if !to.IsZero() {
		filter.EndTime = &to
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	var (
		events []audit.Event
		total  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = h.Events.Query(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = h.Events.CountByFilter(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		uierrors.Render(w, r, h.Log, apperr.From(err))
		return
	}

	out := listResponse{Events: make([]eventView, 0, len(events)), Total: total}
	for _, e := range events {
		out.Events = append(out.Events, toView(e))
	}
	uierrors.JSON(w, http.StatusOK, out)
}

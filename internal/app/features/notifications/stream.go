// internal/app/features/notifications/stream.go
package notifications

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	uierrors "github.com/crewfund/crew/internal/app/features/errors"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"go.uber.org/zap"
)

// keepAlive is how often an idle stream writes a comment line.
var keepAlive = 25 * time.Second

// ServeStream handles GET /api/notifications/stream as server-sent events.
// Each new notification visible to the caller is one "notification" event.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	uid, role, err := reader(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		uierrors.Render(w, r, h.Log, apperr.ErrUnavailable.WithMessage("streaming is not supported"))
		return
	}

	ctx := r.Context()
	feed, err := h.Inbox.Watch(ctx, uid, role)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	tick := time.NewTicker(keepAlive)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case n, open := <-feed:
			if !open {
				return
			}
			b, err := json.Marshal(n)
			if err != nil {
				h.Log.Warn("notification encode failed", zap.String("id", n.ID), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, b)
			flusher.Flush()
		}
	}
}

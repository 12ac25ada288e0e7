// internal/app/features/notifications/handler.go
package notifications

import (
	"github.com/crewfund/crew/internal/app/services/notify"
	"go.uber.org/zap"
)

// Handler serves a signed-in user's notification inbox.
type Handler struct {
	Inbox *notify.Inbox
	Log   *zap.Logger
}

func NewHandler(inbox *notify.Inbox, logger *zap.Logger) *Handler {
	return &Handler{Inbox: inbox, Log: logger}
}

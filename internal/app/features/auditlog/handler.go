// internal/app/features/auditlog/handler.go
package auditlog

import (
	"github.com/crewfund/crew/internal/app/store/audit"
	"go.uber.org/zap"
)

type Handler struct {
	Events *audit.Store
	Log    *zap.Logger
}

// NewHandler constructs the audit log feature handler.
func NewHandler(events *audit.Store, logger *zap.Logger) *Handler {
	return &Handler{Events: events, Log: logger}
}

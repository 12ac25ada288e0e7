// internal/app/features/systemusers/handler.go
package systemusers

import (
	"github.com/crewfund/crew/internal/app/services/moderation"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"go.uber.org/zap"
)

// Handler serves the administrator's user directory and role changes.
type Handler struct {
	Moderation *moderation.Service
	Users      *userstore.Store
	Log        *zap.Logger
}

func NewHandler(svc *moderation.Service, users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Moderation: svc, Users: users, Log: logger}
}

// internal/app/features/profile/handler.go
package profile

import (
	"github.com/crewfund/crew/internal/app/services/projects"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"go.uber.org/zap"
)

// Handler owns the signed-in user's own profile endpoints.
type Handler struct {
	Users    *userstore.Store
	Projects *projects.Service
	Log      *zap.Logger
}

// NewHandler constructs a Handler. proj may be nil, in which case the
// weekly publishing quota is omitted.
func NewHandler(users *userstore.Store, proj *projects.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    users,
		Projects: proj,
		Log:      logger,
	}
}

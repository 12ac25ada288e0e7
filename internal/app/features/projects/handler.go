// internal/app/features/projects/handler.go
package projects

import (
	"github.com/crewfund/crew/internal/app/services/ledger"
	projectsvc "github.com/crewfund/crew/internal/app/services/projects"
	"github.com/crewfund/crew/internal/app/system/blob"
	"go.uber.org/zap"
)

// Handler serves project browsing, publishing, donations and comments.
type Handler struct {
	Projects *projectsvc.Service
	Ledger   *ledger.Service
	Blobs    blob.Store // resolves image URLs; may be nil
	Log      *zap.Logger
}

func NewHandler(proj *projectsvc.Service, l *ledger.Service, blobs blob.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Projects: proj,
		Ledger:   l,
		Blobs:    blobs,
		Log:      logger,
	}
}

// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/crewfund/crew/internal/app/store/audit"
)

// eventView is the JSON shape of one audit event.
type eventView struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"event_type"`
	UserID        string            `json:"user_id,omitempty"`
	ActorID       string            `json:"actor_id,omitempty"`
	IP            string            `json:"ip,omitempty"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

type listResponse struct {
	Events []eventView `json:"events"`
	Total  int64       `json:"total"`
}

func toView(e audit.Event) eventView {
	return eventView{
		ID:            e.ID,
		Timestamp:     e.Timestamp,
		Category:      e.Category,
		EventType:     e.EventType,
		UserID:        e.UserID,
		ActorID:       e.ActorID,
		IP:            e.IP,
		Success:       e.Success,
		FailureReason: e.FailureReason,
		Details:       e.Details,
	}
}

var categories = map[string]bool{
	audit.CategoryAuth:   true,
	audit.CategoryAdmin:  true,
	audit.CategoryLedger: true,
}

package shared

import (
	"strings"

	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/domain/models"
)

// RequestStatus parses a ?status filter for card and identity requests.
// Stored values and English aliases are accepted; "" and "all" mean no filter.
func RequestStatus(s string) (models.RequestStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return "", nil
	case "pending", "pendiente":
		return models.RequestPending, nil
	case "approved", "aprobada":
		return models.RequestApproved, nil
	case "rejected", "rechazada":
		return models.RequestRejected, nil
	}
	return "", apperr.Invalid("unknown status %q", s)
}

// ReportStatus parses a ?status filter for reports.
func ReportStatus(s string) (models.ReportStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return "", nil
	case "pending", "pendiente":
		return models.ReportPending, nil
	case "resolved", "resuelto":
		return models.ReportResolved, nil
	case "rejected", "rechazado":
		return models.ReportRejected, nil
	}
	return "", apperr.Invalid("unknown status %q", s)
}

// internal/app/system/authz/capabilities.go
package authz

import (
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/domain/models"
)

// Capability is a staff-only permission.
type Capability string

const (
	CapApproveCards   Capability = "cards.approve"
	CapReviewIdentity Capability = "identity.review"
	CapModerate       Capability = "reports.moderate"
	CapManageRoles    Capability = "users.manage_roles"
	CapViewUsers      Capability = "users.view"
	CapViewLedger     Capability = "ledger.view_all"
)

var grants = map[models.Role]map[Capability]bool{
	models.RoleModerator: {
		CapReviewIdentity: true,
		CapModerate:       true,
	},
	models.RoleAdministrator: {
		CapApproveCards:   true,
		CapReviewIdentity: true,
		CapModerate:       true,
		CapManageRoles:    true,
		CapViewUsers:      true,
		CapViewLedger:     true,
	},
}

// Can reports whether role grants c.
func Can(role models.Role, c Capability) bool {
	return grants[role][c]
}

// Require returns apperr.ErrPermissionDenied unless role grants c.
func Require(role models.Role, c Capability) error {
	if Can(role, c) {
		return nil
	}
	return apperr.ErrPermissionDenied.WithMessage("your role (%s) is not allowed to %s", role, describe(c))
}

func describe(c Capability) string {
	switch c {
	case CapApproveCards:
		return "review card requests"
	case CapReviewIdentity:
		return "review identity verifications"
	case CapModerate:
		return "resolve reports"
	case CapManageRoles:
		return "change user roles"
	case CapViewUsers:
		return "list users"
	case CapViewLedger:
		return "view the full ledger"
	}
	return string(c)
}

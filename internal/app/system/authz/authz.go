// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/domain/models"
)

// UserCtx returns the signed-in user's role, name, id and a found flag.
// A request without a user, or whose session carries an unknown role,
// yields ok=false.
func UserCtx(r *http.Request) (role models.Role, name string, userID string, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok || user.ID == "" {
		return "", "", "", false
	}
	role, err := models.ParseRole(string(user.Role))
	if err != nil {
		// Unknown role in session: fail closed.
		return "", "", "", false
	}
	return role, user.Name, user.ID, true
}

// IsAdmin reports whether the current request's user is an administrator.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleAdministrator
}

// IsStaff reports whether the current request's user is a moderator or administrator.
func IsStaff(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role.IsStaff()
}

// Allowed reports whether the current request's user holds capability c.
func Allowed(r *http.Request, c Capability) bool {
	role, _, _, ok := UserCtx(r)
	return ok && Can(role, c)
}

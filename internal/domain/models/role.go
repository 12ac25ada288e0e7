// internal/domain/models/role.go
package models

import (
	"fmt"
	"strings"
)

// Role is a user's privilege level. The zero value is not a valid role.
type Role string

const (
	RoleClient        Role = "Cliente"
	RoleModerator     Role = "Moderador"
	RoleAdministrator Role = "Administrador"
)

// Roles lists every valid role, lowest privilege first.
var Roles = []Role{RoleClient, RoleModerator, RoleAdministrator}

// ParseRole accepts the stored value or an English alias, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cliente", "client":
		return RoleClient, nil
	case "moderador", "moderator", "mod":
		return RoleModerator, nil
	case "administrador", "administrator", "admin":
		return RoleAdministrator, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// IsStaff reports whether r is Moderator or Administrator.
func (r Role) IsStaff() bool {
	return r == RoleModerator || r == RoleAdministrator
}

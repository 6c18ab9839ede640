package enums

import "strings"

// UserRole distinguishes drivers from the people who dispatch them.
type UserRole string

const (
	UserRoleDriver  UserRole = "driver"
	UserRoleManager UserRole = "manager"
	UserRoleAdmin   UserRole = "admin"
)

var userRoles = []UserRole{UserRoleDriver, UserRoleManager, UserRoleAdmin}

func (r UserRole) IsValid() bool { return member(userRoles, r) }

// CanDispatch reports whether the role may open windows or reassign routes.
func (r UserRole) CanDispatch() bool {
	return r == UserRoleManager || r == UserRoleAdmin
}

// ParseUserRole is case-insensitive; gateways disagree on casing.
func ParseUserRole(value string) (UserRole, error) {
	return parse(userRoles, "user role", strings.ToLower(value))
}

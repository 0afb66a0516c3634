package auth

import (
	"errors"
	"slices"
)

// Role is an authorisation tier.
type Role string

const (
	// RoleViewer can read everything but change nothing.
	RoleViewer Role = "viewer"

	// RoleEditor manages projects and runs allocations.
	RoleEditor Role = "editor"

	// RoleAdmin additionally reaches system endpoints.
	RoleAdmin Role = "admin"
)

// ValidRoles lists every role, lowest tier first.
var ValidRoles = []Role{RoleViewer, RoleEditor, RoleAdmin}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	return slices.Contains(ValidRoles, r)
}

var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrEmptySecret  = errors.New("auth: empty signing secret")
)

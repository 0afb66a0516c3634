package auth

import "slices"

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermCatalogRead   Permission = "catalog:read"
	PermProjectRead   Permission = "project:read"
	PermProjectWrite  Permission = "project:write"
	PermAllocationRun Permission = "allocation:run"
	PermSystemAdmin   Permission = "system:admin"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermCatalogRead,
		PermProjectRead,
	},
	RoleEditor: {
		PermCatalogRead,
		PermProjectRead,
		PermProjectWrite,
		PermAllocationRun,
	},
	RoleAdmin: {
		PermCatalogRead,
		PermProjectRead,
		PermProjectWrite,
		PermAllocationRun,
		PermSystemAdmin,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	return slices.Clone(perms)
}

package domain

import "time"

// Role is a named group of privileges embedded into access tokens by name.
type Role struct {
	ID          string
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleUpdate describes a partial role change.
type RoleUpdate struct {
	Name        *string
	Description *string
}

// UserRole assigns a role to a user.
type UserRole struct {
	UserID     string
	RoleID     string
	AssignedAt time.Time
}

// RoleNames projects roles onto their names in the given order.
func RoleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names
}

// HasRole reports whether name is present in roles.
func HasRole(roles []string, name string) bool {
	for _, role := range roles {
		if role == name {
			return true
		}
	}
	return false
}

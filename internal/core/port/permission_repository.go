package port

import (
	"context"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

// PermissionRepository stores per-scope access levels of roles.
type PermissionRepository interface {
	ScopeExists(ctx context.Context, scope string) (bool, error)
	ListScopes(ctx context.Context) ([]string, error)
	// ListByUser returns the permissions of every role assigned to the user within scope.
	ListByUser(ctx context.Context, userID, scope string) ([]domain.Permission, error)
	// ListByRoleName returns the permission of the named role within scope, if any.
	ListByRoleName(ctx context.Context, roleName, scope string) ([]domain.Permission, error)
	ListByRole(ctx context.Context, roleID string) ([]domain.Permission, error)
	// Upsert creates or replaces the access level of a role within a scope and returns the stored row.
	Upsert(ctx context.Context, permission domain.Permission) (domain.Permission, error)
}

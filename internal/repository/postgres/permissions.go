package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/repository"
)

const (
	scopesTable      = "auth.scopes"
	permissionsTable = "auth.permissions"
)

var permissionColumns = []string{"p.id", "p.role_id", "s.name", "p.access_level", "p.created_at", "p.updated_at"}

// PermissionRepository implements port.PermissionRepository over PostgreSQL.
type PermissionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.PermissionRepository = (*PermissionRepository)(nil)

// NewPermissionRepository constructs a permission repository instance.
func NewPermissionRepository(exec pgExecutor) *PermissionRepository {
	return &PermissionRepository{exec: exec, builder: newBuilder()}
}

// WithTx returns a repository configured to execute within the provided transaction.
func (r *PermissionRepository) WithTx(tx pgx.Tx) *PermissionRepository {
	if tx == nil {
		return r
	}
	return &PermissionRepository{exec: tx, builder: r.builder}
}

// ScopeExists reports whether a scope with the given name is registered.
func (r *PermissionRepository) ScopeExists(ctx context.Context, scope string) (bool, error) {
	if _, err := r.scopeID(ctx, scope); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListScopes returns every registered scope name in alphabetical order.
func (r *PermissionRepository) ListScopes(ctx context.Context) ([]string, error) {
	stmt, args, err := r.builder.Select("name").
		From(scopesTable).
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list scopes sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	defer rows.Close()

	scopes := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scopes: %w", err)
	}
	return scopes, nil
}

// ListByUser returns the permissions granted within scope by every role assigned to the user.
func (r *PermissionRepository) ListByUser(ctx context.Context, userID, scope string) ([]domain.Permission, error) {
	stmt, args, err := r.selectPermissions().
		Join(userRolesTable + " ur ON ur.role_id = p.role_id").
		Where(squirrel.Eq{"s.name": scope}).
		Where(squirrel.Eq{"ur.user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build permissions by user sql: %w", err)
	}
	return r.queryPermissions(ctx, stmt, args)
}

// ListByRoleName returns the permission the named role holds within scope.
func (r *PermissionRepository) ListByRoleName(ctx context.Context, roleName, scope string) ([]domain.Permission, error) {
	stmt, args, err := r.selectPermissions().
		Join(rolesTable + " r ON r.id = p.role_id").
		Where(squirrel.Eq{"s.name": scope}).
		Where(squirrel.Eq{"r.name": roleName}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build permissions by role name sql: %w", err)
	}
	return r.queryPermissions(ctx, stmt, args)
}

// ListByRole returns every scope permission of a role ordered by scope name.
func (r *PermissionRepository) ListByRole(ctx context.Context, roleID string) ([]domain.Permission, error) {
	stmt, args, err := r.selectPermissions().
		Where(squirrel.Eq{"p.role_id": roleID}).
		OrderBy("s.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build permissions by role sql: %w", err)
	}
	return r.queryPermissions(ctx, stmt, args)
}

// Upsert stores the access level of a role within a scope, replacing an existing grant.
// An unknown scope yields repository.ErrNotFound.
func (r *PermissionRepository) Upsert(ctx context.Context, permission domain.Permission) (domain.Permission, error) {
	scopeID, err := r.scopeID(ctx, permission.Scope)
	if err != nil {
		return domain.Permission{}, err
	}

	stmt, args, err := r.builder.Insert(permissionsTable).
		Columns("id", "scope_id", "role_id", "access_level", "created_at", "updated_at").
		Values(permission.ID, scopeID, permission.RoleID, int16(permission.Level), permission.CreatedAt, permission.UpdatedAt).
		Suffix("ON CONFLICT (scope_id, role_id) DO UPDATE SET access_level = EXCLUDED.access_level, updated_at = EXCLUDED.updated_at RETURNING id, created_at").
		ToSql()
	if err != nil {
		return domain.Permission{}, fmt.Errorf("build upsert permission sql: %w", err)
	}

	var createdAt time.Time
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&permission.ID, &createdAt); err != nil {
		return domain.Permission{}, fmt.Errorf("upsert permission: %w", mapError(err))
	}
	permission.CreatedAt = createdAt
	return permission, nil
}

func (r *PermissionRepository) scopeID(ctx context.Context, scope string) (string, error) {
	stmt, args, err := r.builder.Select("id").
		From(scopesTable).
		Where(squirrel.Eq{"name": scope}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build select scope sql: %w", err)
	}

	var id string
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("scan scope: %w", err)
	}
	return id, nil
}

func (r *PermissionRepository) selectPermissions() squirrel.SelectBuilder {
	return r.builder.Select(permissionColumns...).
		From(permissionsTable + " p").
		Join(scopesTable + " s ON s.id = p.scope_id")
}

func (r *PermissionRepository) queryPermissions(ctx context.Context, stmt string, args []any) ([]domain.Permission, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	permissions := make([]domain.Permission, 0)
	for rows.Next() {
		var (
			permission domain.Permission
			level      int16
		)
		if err := rows.Scan(&permission.ID, &permission.RoleID, &permission.Scope, &level, &permission.CreatedAt, &permission.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		permission.Level = domain.AccessLevel(level)
		permissions = append(permissions, permission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return permissions, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/repository"
)

// DefaultAnonymousRole holds the permissions of callers without an access token.
const DefaultAnonymousRole = "incognito"

// ScopePermissions is the effective access a principal holds within one scope.
type ScopePermissions struct {
	Scope string
	Level domain.AccessLevel
}

// Read reports whether the read bit is granted.
func (p ScopePermissions) Read() bool { return p.Level.Has(domain.AccessRead) }

// Write reports whether the write bit is granted.
func (p ScopePermissions) Write() bool { return p.Level.Has(domain.AccessWrite) }

// Admin reports whether the admin bit is granted.
func (p ScopePermissions) Admin() bool { return p.Level.Has(domain.AccessAdmin) }

// PermissionService resolves per-scope access levels from the roles of a principal. Lookups read
// role assignments from the database, so they reflect role changes before the next refresh.
type PermissionService struct {
	permissions   port.PermissionRepository
	roles         port.RoleRepository
	anonymousRole string
	logger        *zap.Logger
	now           func() time.Time
}

// NewPermissionService constructs a PermissionService. An empty anonymousRole falls back to
// DefaultAnonymousRole.
func NewPermissionService(permissions port.PermissionRepository, roles port.RoleRepository, anonymousRole string, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if anonymousRole = strings.TrimSpace(anonymousRole); anonymousRole == "" {
		anonymousRole = DefaultAnonymousRole
	}
	return &PermissionService{
		permissions:   permissions,
		roles:         roles,
		anonymousRole: anonymousRole,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// UserPermissions ORs the access levels of every role the user holds within scope. An empty userID
// resolves the anonymous role instead.
func (s *PermissionService) UserPermissions(ctx context.Context, scope, userID string) (ScopePermissions, error) {
	scope, err := s.checkScope(ctx, scope)
	if err != nil {
		return ScopePermissions{}, err
	}

	var permissions []domain.Permission
	if userID = strings.TrimSpace(userID); userID != "" {
		permissions, err = s.permissions.ListByUser(ctx, userID, scope)
	} else {
		permissions, err = s.permissions.ListByRoleName(ctx, s.anonymousRole, scope)
	}
	if err != nil {
		return ScopePermissions{}, fmt.Errorf("list permissions: %w", err)
	}

	return ScopePermissions{Scope: scope, Level: domain.MergeAccessLevels(permissions)}, nil
}

// ListScopes returns the registered scope names.
func (s *PermissionService) ListScopes(ctx context.Context) ([]string, error) {
	scopes, err := s.permissions.ListScopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	return scopes, nil
}

// RolePermissions returns every scope grant of a role.
func (s *PermissionService) RolePermissions(ctx context.Context, roleID string) ([]domain.Permission, error) {
	role, err := s.roles.GetByID(ctx, strings.TrimSpace(roleID))
	if err != nil {
		return nil, mapRoleError(roleID, err)
	}

	permissions, err := s.permissions.ListByRole(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}
	return permissions, nil
}

// GrantPermission sets the access level of a role within scope, replacing any previous grant.
func (s *PermissionService) GrantPermission(ctx context.Context, roleID, scope string, level domain.AccessLevel) (domain.Permission, error) {
	if !level.Valid() {
		return domain.Permission{}, fmt.Errorf("%w: access level %d", domain.ErrInvalidInput, level)
	}

	scope, err := s.checkScope(ctx, scope)
	if err != nil {
		return domain.Permission{}, err
	}

	role, err := s.roles.GetByID(ctx, strings.TrimSpace(roleID))
	if err != nil {
		return domain.Permission{}, mapRoleError(roleID, err)
	}

	now := s.now()
	permission, err := s.permissions.Upsert(ctx, domain.Permission{
		ID:        uuid.NewString(),
		RoleID:    role.ID,
		Scope:     scope,
		Level:     level,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Permission{}, fmt.Errorf("scope %q: %w", scope, domain.ErrUnknownScope)
		}
		return domain.Permission{}, fmt.Errorf("grant permission: %w", err)
	}

	s.logger.Info("permission granted",
		zap.String("role", role.Name),
		zap.String("scope", scope),
		zap.Int16("access_level", int16(level)),
	)
	return permission, nil
}

func (s *PermissionService) checkScope(ctx context.Context, scope string) (string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "", fmt.Errorf("%w: scope is required", domain.ErrInvalidInput)
	}

	exists, err := s.permissions.ScopeExists(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("lookup scope: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("scope %q: %w", scope, domain.ErrUnknownScope)
	}
	return scope, nil
}

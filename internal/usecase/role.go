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

const maxRoleNameLength = 200

// CreateRoleInput captures the payload for creating a role.
type CreateRoleInput struct {
	Name        string
	Description *string
}

// RoleService manages roles and their assignment to principals. Role changes reach access tokens
// on the principal's next refresh.
type RoleService struct {
	roles  port.RoleRepository
	users  port.UserRepository
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(roles port.RoleRepository, users port.UserRepository, events port.EventPublisher, logger *zap.Logger) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{
		roles:  roles,
		users:  users,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListRoles returns all roles.
func (s *RoleService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// GetRole returns a role by id.
func (s *RoleService) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	role, err := s.roles.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, mapRoleError(id, err)
	}
	return role, nil
}

// CreateRole provisions a new role with a unique name.
func (s *RoleService) CreateRole(ctx context.Context, input CreateRoleInput) (domain.Role, error) {
	name, err := normalizeRoleName(input.Name)
	if err != nil {
		return domain.Role{}, err
	}

	if existing, err := s.roles.GetByName(ctx, name); err == nil && existing != nil {
		return domain.Role{}, fmt.Errorf("role %q: %w", name, domain.ErrConflict)
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Role{}, fmt.Errorf("lookup role by name: %w", err)
	}

	now := s.now()
	role := domain.Role{
		ID:          uuid.NewString(),
		Name:        name,
		Description: trimOptional(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Role{}, fmt.Errorf("role %q: %w", name, domain.ErrConflict)
		}
		return domain.Role{}, fmt.Errorf("create role: %w", err)
	}

	s.logger.Info("role created", zap.String("role_id", role.ID), zap.String("role", role.Name))
	return role, nil
}

// UpdateRole renames a role or changes its description.
func (s *RoleService) UpdateRole(ctx context.Context, id string, update domain.RoleUpdate) (domain.Role, error) {
	if update.Name == nil && update.Description == nil {
		return domain.Role{}, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}

	role, err := s.roles.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Role{}, mapRoleError(id, err)
	}

	if update.Name != nil {
		name, err := normalizeRoleName(*update.Name)
		if err != nil {
			return domain.Role{}, err
		}
		if name != role.Name {
			if existing, err := s.roles.GetByName(ctx, name); err == nil && existing != nil {
				return domain.Role{}, fmt.Errorf("role %q: %w", name, domain.ErrConflict)
			} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return domain.Role{}, fmt.Errorf("lookup role by name: %w", err)
			}
		}
		role.Name = name
	}
	if update.Description != nil {
		role.Description = trimOptional(update.Description)
	}
	role.UpdatedAt = s.now()

	if err := s.roles.Update(ctx, *role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Role{}, fmt.Errorf("role %q: %w", role.Name, domain.ErrConflict)
		}
		return domain.Role{}, mapRoleError(id, err)
	}
	return *role, nil
}

// DeleteRole removes a role together with its assignments.
func (s *RoleService) DeleteRole(ctx context.Context, id string) error {
	if err := s.roles.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return mapRoleError(id, err)
	}
	s.logger.Info("role deleted", zap.String("role_id", id))
	return nil
}

// ListUserRoles returns the roles currently assigned to a principal.
func (s *RoleService) ListUserRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	roles, err := s.roles.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	return roles, nil
}

// AssignRoles attaches roles to a principal. Already assigned roles are ignored.
func (s *RoleService) AssignRoles(ctx context.Context, actorID, userID string, roleIDs []string) ([]domain.Role, error) {
	roles, err := s.resolveRoles(ctx, userID, roleIDs)
	if err != nil {
		return nil, err
	}

	if err := s.roles.AssignToUser(ctx, userID, domainRoleIDs(roles)); err != nil {
		return nil, fmt.Errorf("assign roles: %w", err)
	}

	if s.events != nil {
		event := domain.RolesAssignedEvent{
			EventID:    uuid.NewString(),
			UserID:     userID,
			RolesAdded: toAssignments(roles),
			AssignedBy: actorID,
			AssignedAt: s.now(),
		}
		if err := s.events.PublishRolesAssigned(ctx, event); err != nil {
			s.logger.Warn("publish roles assigned event failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return s.roles.ListByUser(ctx, userID)
}

// RemoveRoles detaches roles from a principal.
func (s *RoleService) RemoveRoles(ctx context.Context, actorID, userID string, roleIDs []string) ([]domain.Role, error) {
	roles, err := s.resolveRoles(ctx, userID, roleIDs)
	if err != nil {
		return nil, err
	}

	if err := s.roles.RemoveFromUser(ctx, userID, domainRoleIDs(roles)); err != nil {
		return nil, fmt.Errorf("remove roles: %w", err)
	}

	if s.events != nil {
		event := domain.RolesRevokedEvent{
			EventID:      uuid.NewString(),
			UserID:       userID,
			RolesRemoved: toAssignments(roles),
			RevokedBy:    actorID,
			RevokedAt:    s.now(),
		}
		if err := s.events.PublishRolesRevoked(ctx, event); err != nil {
			s.logger.Warn("publish roles revoked event failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return s.roles.ListByUser(ctx, userID)
}

func (s *RoleService) resolveRoles(ctx context.Context, userID string, roleIDs []string) ([]domain.Role, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(roleIDs))
	roles := make([]domain.Role, 0, len(roleIDs))
	for _, id := range roleIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		role, err := s.roles.GetByID(ctx, id)
		if err != nil {
			return nil, mapRoleError(id, err)
		}
		roles = append(roles, *role)
	}

	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: at least one role id is required", domain.ErrInvalidInput)
	}
	return roles, nil
}

func (s *RoleService) ensureUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("user %s: %w", userID, domain.ErrMissingEntity)
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	return nil
}

func normalizeRoleName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: role name is required", domain.ErrInvalidInput)
	}
	if len(name) > maxRoleNameLength {
		return "", fmt.Errorf("%w: role name is too long", domain.ErrInvalidInput)
	}
	return name, nil
}

func mapRoleError(id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("role %s: %w", id, domain.ErrMissingEntity)
	}
	return fmt.Errorf("role %s: %w", id, err)
}

func domainRoleIDs(roles []domain.Role) []string {
	ids := make([]string, 0, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ID)
	}
	return ids
}

func toAssignments(roles []domain.Role) []domain.RoleAssignment {
	assignments := make([]domain.RoleAssignment, 0, len(roles))
	for _, role := range roles {
		assignments = append(assignments, domain.RoleAssignment{RoleID: role.ID, RoleName: role.Name})
	}
	return assignments
}

package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

func newRoleEnv(t *testing.T) (*RoleService, *roleRepoStub, *eventRecorder) {
	t.Helper()

	users := newUserRepoStub(domain.User{ID: "u1", Login: "alice", Email: "alice@example.com"})
	roles := newRoleRepoStub(
		domain.Role{ID: "role-user", Name: "user"},
		domain.Role{ID: "role-admin", Name: "admin"},
	)
	events := &eventRecorder{}
	return NewRoleService(roles, users, events, zaptest.NewLogger(t)), roles, events
}

func TestRoleService_CRUD(t *testing.T) {
	service, _, _ := newRoleEnv(t)
	ctx := context.Background()
	description := " can edit "

	created, err := service.CreateRole(ctx, CreateRoleInput{Name: " editor ", Description: &description})
	require.NoError(t, err)
	require.Equal(t, "editor", created.Name)
	require.Equal(t, "can edit", *created.Description)

	_, err = service.CreateRole(ctx, CreateRoleInput{Name: "editor"})
	require.ErrorIs(t, err, domain.ErrConflict)

	fetched, err := service.GetRole(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Name, fetched.Name)

	rename := "writer"
	updated, err := service.UpdateRole(ctx, created.ID, domain.RoleUpdate{Name: &rename})
	require.NoError(t, err)
	require.Equal(t, "writer", updated.Name)

	taken := "admin"
	_, err = service.UpdateRole(ctx, created.ID, domain.RoleUpdate{Name: &taken})
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = service.UpdateRole(ctx, created.ID, domain.RoleUpdate{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	roles, err := service.ListRoles(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "user", "writer"}, domain.RoleNames(roles))

	require.NoError(t, service.DeleteRole(ctx, created.ID))
	_, err = service.GetRole(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrMissingEntity)
	require.ErrorIs(t, service.DeleteRole(ctx, created.ID), domain.ErrMissingEntity)
}

func TestRoleService_CreateValidation(t *testing.T) {
	service, _, _ := newRoleEnv(t)

	_, err := service.CreateRole(context.Background(), CreateRoleInput{Name: "   "})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRoleService_AssignAndRemove(t *testing.T) {
	service, _, events := newRoleEnv(t)
	ctx := context.Background()

	assigned, err := service.AssignRoles(ctx, "admin-1", "u1", []string{"role-user", "role-admin", "role-user"})
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "user"}, domain.RoleNames(assigned))

	require.Len(t, events.assigned, 1)
	require.Equal(t, "admin-1", events.assigned[0].AssignedBy)
	require.Len(t, events.assigned[0].RolesAdded, 2)

	remaining, err := service.RemoveRoles(ctx, "admin-1", "u1", []string{"role-admin"})
	require.NoError(t, err)
	require.Equal(t, []string{"user"}, domain.RoleNames(remaining))

	require.Len(t, events.revoked, 1)
	require.Equal(t, []domain.RoleAssignment{{RoleID: "role-admin", RoleName: "admin"}}, events.revoked[0].RolesRemoved)

	listed, err := service.ListUserRoles(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"user"}, domain.RoleNames(listed))
}

func TestRoleService_AssignErrors(t *testing.T) {
	service, _, events := newRoleEnv(t)
	ctx := context.Background()

	_, err := service.AssignRoles(ctx, "admin-1", "ghost", []string{"role-user"})
	require.ErrorIs(t, err, domain.ErrMissingEntity)

	_, err = service.AssignRoles(ctx, "admin-1", "u1", []string{"role-missing"})
	require.ErrorIs(t, err, domain.ErrMissingEntity)

	_, err = service.AssignRoles(ctx, "admin-1", "u1", []string{" "})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = service.ListUserRoles(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	require.Empty(t, events.assigned)
}

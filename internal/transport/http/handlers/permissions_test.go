package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/transport/http/middleware"
	"github.com/arklim/auth-session-service/internal/usecase"
)

type fakePermissions struct {
	levels    map[string]domain.AccessLevel // user id ("" for anonymous) -> level in "films"
	lastUser  string
	lastLevel domain.AccessLevel
}

func (f *fakePermissions) UserPermissions(_ context.Context, scope, userID string) (usecase.ScopePermissions, error) {
	if scope != "films" {
		return usecase.ScopePermissions{}, domain.ErrUnknownScope
	}
	f.lastUser = userID
	return usecase.ScopePermissions{Scope: scope, Level: f.levels[userID]}, nil
}

func (f *fakePermissions) ListScopes(context.Context) ([]string, error) {
	return []string{"films"}, nil
}

func (f *fakePermissions) RolePermissions(_ context.Context, roleID string) ([]domain.Permission, error) {
	if roleID != "role-user" {
		return nil, domain.ErrMissingEntity
	}
	return []domain.Permission{{ID: "p1", RoleID: roleID, Scope: "films", Level: domain.AccessRead}}, nil
}

func (f *fakePermissions) GrantPermission(_ context.Context, roleID, scope string, level domain.AccessLevel) (domain.Permission, error) {
	f.lastLevel = level
	return domain.Permission{ID: "p2", RoleID: roleID, Scope: scope, Level: level}, nil
}

func newPermissionRouter(perms *fakePermissions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator := fakeValidator{access: map[string]*domain.AccessToken{
		"user-token": {JTI: "a1", Fresh: true, Subject: domain.AccessSubject{UserID: "user-1", UserRoles: []string{"user"}}},
	}}

	handler := NewPermissionHandler(perms)
	r := gin.New()
	r.Use(middleware.EnrichContext())
	r.GET("/permissions", middleware.OptionalAuth(validator), handler.UserPermissions)
	r.GET("/permissions/scopes", handler.ListScopes)
	r.GET("/roles/:id/permissions", handler.RolePermissions)
	r.PUT("/roles/:id/permissions/:scope", handler.GrantPermission)
	return r
}

func TestUserPermissionsForAnonymousAndAuthenticatedCallers(t *testing.T) {
	perms := &fakePermissions{levels: map[string]domain.AccessLevel{
		"":       domain.AccessRead,
		"user-1": domain.AccessRead | domain.AccessWrite,
	}}
	r := newPermissionRouter(perms)

	rr := doRequest(r, http.MethodGet, "/permissions?scope=films", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decode[PermissionsResponse](t, rr)
	if !body.Read || body.Write || body.Admin || perms.lastUser != "" {
		t.Fatalf("unexpected anonymous permissions: %+v (user %q)", body, perms.lastUser)
	}

	rr = doRequest(r, http.MethodGet, "/permissions?scope=films", "user-token", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body = decode[PermissionsResponse](t, rr)
	if !body.Read || !body.Write || body.Admin || perms.lastUser != "user-1" {
		t.Fatalf("unexpected user permissions: %+v (user %q)", body, perms.lastUser)
	}

	if rr := doRequest(r, http.MethodGet, "/permissions?scope=films", "forged", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: expected 401, got %d", rr.Code)
	}
}

func TestUserPermissionsScopeErrors(t *testing.T) {
	r := newPermissionRouter(&fakePermissions{})

	if rr := doRequest(r, http.MethodGet, "/permissions", "", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing scope: expected 400, got %d", rr.Code)
	}
	rr := doRequest(r, http.MethodGet, "/permissions?scope=music", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown scope: expected 400, got %d", rr.Code)
	}
	if body := decode[ErrorResponse](t, rr); body.Error != "unknown permission scope" {
		t.Fatalf("unexpected error message %q", body.Error)
	}
}

func TestRolePermissionGrants(t *testing.T) {
	perms := &fakePermissions{}
	r := newPermissionRouter(perms)

	rr := doRequest(r, http.MethodGet, "/roles/role-user/permissions", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	list := decode[RolePermissionsResponse](t, rr)
	if len(list.Permissions) != 1 || !list.Permissions[0].Read || list.Permissions[0].AccessLevel != 2 {
		t.Fatalf("unexpected role permissions: %+v", list)
	}

	if rr := doRequest(r, http.MethodGet, "/roles/role-missing/permissions", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("missing role: expected 404, got %d", rr.Code)
	}

	rr = doRequest(r, http.MethodPut, "/roles/role-user/permissions/films", "", `{"read":true,"write":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if perms.lastLevel != domain.AccessRead|domain.AccessWrite {
		t.Fatalf("expected read|write level, got %d", perms.lastLevel)
	}
	granted := decode[PermissionPayload](t, rr)
	if granted.AccessLevel != 6 || granted.Admin {
		t.Fatalf("unexpected grant payload: %+v", granted)
	}
}

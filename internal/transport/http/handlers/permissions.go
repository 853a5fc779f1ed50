package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/transport/http/middleware"
	"github.com/arklim/auth-session-service/internal/usecase"
)

// PermissionResolver answers per-scope permission queries and manages role grants.
type PermissionResolver interface {
	UserPermissions(ctx context.Context, scope, userID string) (usecase.ScopePermissions, error)
	ListScopes(ctx context.Context) ([]string, error)
	RolePermissions(ctx context.Context, roleID string) ([]domain.Permission, error)
	GrantPermission(ctx context.Context, roleID, scope string, level domain.AccessLevel) (domain.Permission, error)
}

var permissionErrorCases = []ErrorCase{
	{Err: domain.ErrUnknownScope, Status: http.StatusBadRequest, Message: "unknown permission scope"},
	{Err: domain.ErrMissingEntity, Status: http.StatusNotFound, Message: "role not found"},
}

type PermissionHandler struct {
	permissions PermissionResolver
}

func NewPermissionHandler(permissions PermissionResolver) *PermissionHandler {
	return &PermissionHandler{permissions: permissions}
}

// UserPermissions godoc
// @Summary Get the caller's permissions within a scope
// @Description Works with or without an access token; anonymous callers get the permissions of the anonymous role.
// @Tags Permissions
// @Produce json
// @Param Authorization header string false "Bearer access token"
// @Param scope query string true "Permission scope"
// @Success 200 {object} PermissionsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/permissions [get]
func (h *PermissionHandler) UserPermissions(c *gin.Context) {
	scope := c.Query("scope")
	if scope == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "scope query parameter is required"))
		return
	}

	userID, _ := middleware.GetAuthenticatedUserID(c)
	perms, err := h.permissions.UserPermissions(c.Request.Context(), scope, userID)
	if err != nil {
		respondError(c, err, "failed to resolve permissions", permissionErrorCases...)
		return
	}

	c.JSON(http.StatusOK, PermissionsResponse{
		Scope: perms.Scope,
		Read:  perms.Read(),
		Write: perms.Write(),
		Admin: perms.Admin(),
	})
}

// ListScopes godoc
// @Summary List permission scopes
// @Tags Permissions
// @Produce json
// @Success 200 {object} ScopeListResponse
// @Router /api/v1/permissions/scopes [get]
func (h *PermissionHandler) ListScopes(c *gin.Context) {
	scopes, err := h.permissions.ListScopes(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to list scopes")
		return
	}
	c.JSON(http.StatusOK, ScopeListResponse{Scopes: scopes})
}

// RolePermissions godoc
// @Summary List the scope grants of a role
// @Tags Permissions
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role ID"
// @Success 200 {object} RolePermissionsResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id}/permissions [get]
func (h *PermissionHandler) RolePermissions(c *gin.Context) {
	roleID := c.Param("id")
	permissions, err := h.permissions.RolePermissions(c.Request.Context(), roleID)
	if err != nil {
		respondError(c, err, "failed to list role permissions", permissionErrorCases...)
		return
	}

	payloads := make([]PermissionPayload, 0, len(permissions))
	for _, permission := range permissions {
		payloads = append(payloads, newPermissionPayload(permission))
	}
	c.JSON(http.StatusOK, RolePermissionsResponse{RoleID: roleID, Permissions: payloads})
}

// GrantPermission godoc
// @Summary Set the privileges of a role within a scope
// @Tags Permissions
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role ID"
// @Param scope path string true "Permission scope"
// @Param request body PermissionGrantRequest true "Privileges"
// @Success 200 {object} PermissionPayload
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id}/permissions/{scope} [put]
func (h *PermissionHandler) GrantPermission(c *gin.Context) {
	var req PermissionGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	level := domain.NewAccessLevel(req.Read, req.Write, req.Admin)
	permission, err := h.permissions.GrantPermission(c.Request.Context(), c.Param("id"), c.Param("scope"), level)
	if err != nil {
		respondError(c, err, "failed to grant permission", permissionErrorCases...)
		return
	}
	c.JSON(http.StatusOK, newPermissionPayload(permission))
}

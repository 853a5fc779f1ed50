package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/transport/http/middleware"
	"github.com/arklim/auth-session-service/internal/usecase"
)

// RoleManager is the role administration surface.
type RoleManager interface {
	ListRoles(ctx context.Context) ([]domain.Role, error)
	GetRole(ctx context.Context, id string) (*domain.Role, error)
	CreateRole(ctx context.Context, input usecase.CreateRoleInput) (domain.Role, error)
	UpdateRole(ctx context.Context, id string, update domain.RoleUpdate) (domain.Role, error)
	DeleteRole(ctx context.Context, id string) error
	ListUserRoles(ctx context.Context, userID string) ([]domain.Role, error)
	AssignRoles(ctx context.Context, actorID, userID string, roleIDs []string) ([]domain.Role, error)
	RemoveRoles(ctx context.Context, actorID, userID string, roleIDs []string) ([]domain.Role, error)
}

var roleErrorCases = []ErrorCase{
	{Err: domain.ErrMissingEntity, Status: http.StatusNotFound, Message: "role not found"},
	{Err: domain.ErrConflict, Status: http.StatusConflict, Message: "role already exists"},
}

type RoleHandler struct {
	roles     RoleManager
	adminRole string
}

func NewRoleHandler(roles RoleManager, adminRole string) *RoleHandler {
	return &RoleHandler{roles: roles, adminRole: adminRole}
}

// ListRoles godoc
// @Summary List roles
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} RoleListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to list roles")
		return
	}
	c.JSON(http.StatusOK, RoleListResponse{Roles: newRolePayloads(roles)})
}

// GetRole godoc
// @Summary Get a role
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role ID"
// @Success 200 {object} RolePayload
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id} [get]
func (h *RoleHandler) GetRole(c *gin.Context) {
	role, err := h.roles.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to load role", roleErrorCases...)
		return
	}
	c.JSON(http.StatusOK, newRolePayload(*role))
}

// CreateRole godoc
// @Summary Create a new role
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body RoleCreateRequest true "Role create request"
// @Success 201 {object} RolePayload
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req RoleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.CreateRole(c.Request.Context(), usecase.CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err, "failed to create role", roleErrorCases...)
		return
	}
	c.JSON(http.StatusCreated, newRolePayload(role))
}

// UpdateRole godoc
// @Summary Update a role
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role ID"
// @Param request body RoleUpdateRequest true "Role update request"
// @Success 200 {object} RolePayload
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/roles/{id} [patch]
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	var req RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.UpdateRole(c.Request.Context(), c.Param("id"), domain.RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err, "failed to update role", roleErrorCases...)
		return
	}
	c.JSON(http.StatusOK, newRolePayload(role))
}

// DeleteRole godoc
// @Summary Delete a role
// @Tags Roles
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id} [delete]
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	if err := h.roles.DeleteRole(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "failed to delete role", roleErrorCases...)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListUserRoles godoc
// @Summary List roles of a user
// @Description Any principal may read its own roles. Reading another user's roles requires the admin role.
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "User ID"
// @Success 200 {object} UserRolesResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id}/roles [get]
func (h *RoleHandler) ListUserRoles(c *gin.Context) {
	access, ok := middleware.GetAccessToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	userID := c.Param("id")
	if userID != access.Subject.UserID && !domain.HasRole(access.Subject.UserRoles, h.adminRole) {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "insufficient permissions"))
		return
	}

	roles, err := h.roles.ListUserRoles(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to list user roles",
			ErrorCase{Err: domain.ErrMissingEntity, Status: http.StatusNotFound, Message: "user not found"})
		return
	}
	c.JSON(http.StatusOK, UserRolesResponse{UserID: userID, Roles: newRolePayloads(roles)})
}

// AssignRoles godoc
// @Summary Assign roles to a user
// @Description Takes effect on the user's next token refresh.
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "User ID"
// @Param request body RoleAssignmentRequest true "Role ids"
// @Success 200 {object} UserRolesResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id}/roles [post]
func (h *RoleHandler) AssignRoles(c *gin.Context) {
	h.changeUserRoles(c, h.roles.AssignRoles, "failed to assign roles")
}

// RemoveRoles godoc
// @Summary Remove roles from a user
// @Description Takes effect on the user's next token refresh.
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "User ID"
// @Param request body RoleAssignmentRequest true "Role ids"
// @Success 200 {object} UserRolesResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id}/roles [delete]
func (h *RoleHandler) RemoveRoles(c *gin.Context) {
	h.changeUserRoles(c, h.roles.RemoveRoles, "failed to remove roles")
}

type roleChange func(ctx context.Context, actorID, userID string, roleIDs []string) ([]domain.Role, error)

func (h *RoleHandler) changeUserRoles(c *gin.Context, change roleChange, fallback string) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req RoleAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "role_ids must list at least one role"))
		return
	}

	userID := c.Param("id")
	roles, err := change(c.Request.Context(), actorID, userID, req.RoleIDs)
	if err != nil {
		respondError(c, err, fallback)
		return
	}
	c.JSON(http.StatusOK, UserRolesResponse{UserID: userID, Roles: newRolePayloads(roles)})
}

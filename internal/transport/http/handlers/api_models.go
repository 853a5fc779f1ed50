package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

const tokenTypeBearer = "Bearer"

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: c.GetString("trace_id"),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// SignUpRequest defines the account registration payload.
type SignUpRequest struct {
	Login     string  `json:"login" binding:"required"`
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// UserResponse describes a principal returned by the API. The password hash never leaves the service.
type UserResponse struct {
	ID        string    `json:"id"`
	Login     string    `json:"login"`
	Email     string    `json:"email"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenPairResponse is returned by login and OAuth completion.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// AccessTokenResponse is returned by refresh; the refresh token is not rotated.
type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// LogoutDevicesRequest lists the user agents to log out, or ["all"].
type LogoutDevicesRequest struct {
	UserAgents []string `json:"user_agents" binding:"required,min=1,dive,required"`
}

// LogoutDevicesResponse reports how many refresh sessions were revoked.
type LogoutDevicesResponse struct {
	Revoked int `json:"revoked"`
}

// HistoryEntryPayload is one successful login.
type HistoryEntryPayload struct {
	ID         string            `json:"id"`
	UserAgent  string            `json:"user_agent"`
	DeviceType domain.DeviceType `json:"device_type"`
	CreatedAt  time.Time         `json:"created_at"`
}

// HistoryResponse is one page of login history, newest first.
type HistoryResponse struct {
	Entries     []HistoryEntryPayload `json:"entries"`
	SearchAfter string                `json:"search_after,omitempty"`
}

// AuthDataUpdateRequest changes login and/or password; omitted fields stay untouched.
type AuthDataUpdateRequest struct {
	Login    *string `json:"login"`
	Password *string `json:"password"`
}

// RoleCreateRequest defines the role creation payload.
type RoleCreateRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// RoleUpdateRequest defines a partial role update.
type RoleUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// RolePayload describes a role.
type RolePayload struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleListResponse wraps a list of roles.
type RoleListResponse struct {
	Roles []RolePayload `json:"roles"`
}

// RoleAssignmentRequest lists role ids to assign or remove.
type RoleAssignmentRequest struct {
	RoleIDs []string `json:"role_ids" binding:"required,min=1,dive,required"`
}

// UserRolesResponse lists the roles of a principal.
type UserRolesResponse struct {
	UserID string        `json:"user_id"`
	Roles  []RolePayload `json:"roles"`
}

// PermissionsResponse describes the effective access of the caller within a scope.
type PermissionsResponse struct {
	Scope string `json:"scope"`
	Read  bool   `json:"read"`
	Write bool   `json:"write"`
	Admin bool   `json:"admin"`
}

// ScopeListResponse lists the registered permission scopes.
type ScopeListResponse struct {
	Scopes []string `json:"scopes"`
}

// PermissionGrantRequest sets the privileges of a role within a scope.
type PermissionGrantRequest struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
	Admin bool `json:"admin"`
}

// PermissionPayload describes the grant of a role within a scope.
type PermissionPayload struct {
	ID          string `json:"id,omitempty"`
	RoleID      string `json:"role_id"`
	Scope       string `json:"scope"`
	AccessLevel int    `json:"access_level"`
	Read        bool   `json:"read"`
	Write       bool   `json:"write"`
	Admin       bool   `json:"admin"`
}

// RolePermissionsResponse lists the scope grants of a role.
type RolePermissionsResponse struct {
	RoleID      string              `json:"role_id"`
	Permissions []PermissionPayload `json:"permissions"`
}

// OAuthProvidersResponse lists the enabled OAuth providers.
type OAuthProvidersResponse struct {
	Providers []string `json:"providers"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse reports readiness per dependency.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func newUserResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Login:     user.Login,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		CreatedAt: user.CreatedAt,
	}
}

func newTokenPairResponse(pair domain.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    tokenTypeBearer,
	}
}

func newRolePayload(role domain.Role) RolePayload {
	return RolePayload{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

func newRolePayloads(roles []domain.Role) []RolePayload {
	payloads := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		payloads = append(payloads, newRolePayload(role))
	}
	return payloads
}

func newPermissionPayload(permission domain.Permission) PermissionPayload {
	return PermissionPayload{
		ID:          permission.ID,
		RoleID:      permission.RoleID,
		Scope:       permission.Scope,
		AccessLevel: int(permission.Level),
		Read:        permission.Level.Has(domain.AccessRead),
		Write:       permission.Level.Has(domain.AccessWrite),
		Admin:       permission.Level.Has(domain.AccessAdmin),
	}
}

func newHistoryResponse(page domain.AuthHistoryPage) HistoryResponse {
	entries := make([]HistoryEntryPayload, 0, len(page.Entries))
	for _, entry := range page.Entries {
		entries = append(entries, HistoryEntryPayload{
			ID:         entry.ID,
			UserAgent:  entry.UserAgent,
			DeviceType: entry.DeviceType,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return HistoryResponse{Entries: entries, SearchAfter: page.SearchAfter}
}

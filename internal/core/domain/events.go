package domain

import "time"

// UserSignedUpEvent represents the payload for auth.user.signed_up messages.
type UserSignedUpEvent struct {
	EventID      string
	UserID       string
	Login        string
	Email        string
	Method       string
	SignedUpAt   time.Time
	DefaultRoles []string
}

// RoleAssignment captures individual role changes associated with an event.
type RoleAssignment struct {
	RoleID   string
	RoleName string
}

// RolesAssignedEvent represents the payload for auth.user.roles.assigned messages.
type RolesAssignedEvent struct {
	EventID    string
	UserID     string
	RolesAdded []RoleAssignment
	AssignedBy string
	AssignedAt time.Time
}

// RolesRevokedEvent represents the payload for auth.user.roles.revoked messages.
type RolesRevokedEvent struct {
	EventID      string
	UserID       string
	RolesRemoved []RoleAssignment
	RevokedBy    string
	RevokedAt    time.Time
}

// SessionRevokedEvent represents the payload for auth.session.revoked messages.
type SessionRevokedEvent struct {
	EventID       string
	UserID        string
	UserAgents    []string
	Reason        string
	TokensRevoked int
	RevokedAt     time.Time
}

// Revocation reasons attached to session events.
const (
	RevokeReasonLogout        = "logout"
	RevokeReasonDeviceLogout  = "device_logout"
	RevokeReasonAllDevices    = "all_devices_logout"
	RevokeReasonCredentialsUp = "auth_data_updated"
)

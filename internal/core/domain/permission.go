package domain

import "time"

// AccessLevel is a bitmask of privileges a role holds within a scope.
type AccessLevel int16

const (
	AccessRead  AccessLevel = 2
	AccessWrite AccessLevel = 4
	AccessAdmin AccessLevel = 8

	// AccessFull grants every privilege.
	AccessFull = AccessRead | AccessWrite | AccessAdmin
)

// NewAccessLevel composes a mask from individual privileges.
func NewAccessLevel(read, write, admin bool) AccessLevel {
	var level AccessLevel
	if read {
		level |= AccessRead
	}
	if write {
		level |= AccessWrite
	}
	if admin {
		level |= AccessAdmin
	}
	return level
}

// Has reports whether every bit of mask is set.
func (l AccessLevel) Has(mask AccessLevel) bool { return l&mask == mask }

// Valid reports whether the level only carries known bits.
func (l AccessLevel) Valid() bool { return l >= 0 && l&^AccessFull == 0 }

// Permission binds an access level to a role within a scope.
type Permission struct {
	ID        string
	RoleID    string
	Scope     string
	Level     AccessLevel
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MergeAccessLevels ORs the levels of every permission, as a principal holds the union of its roles.
func MergeAccessLevels(permissions []Permission) AccessLevel {
	var level AccessLevel
	for _, permission := range permissions {
		level |= permission.Level
	}
	return level
}

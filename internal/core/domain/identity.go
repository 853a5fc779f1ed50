package domain

import "time"

// User mirrors the persisted representation in the users table.
type User struct {
	ID           string
	Login        string
	Email        string
	PasswordHash string
	FirstName    *string
	LastName     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser carries the sign-up payload before the password is hashed.
type NewUser struct {
	Login     string
	Email     string
	Password  string
	FirstName *string
	LastName  *string
}

// AuthDataUpdate describes a partial change of login credentials. Nil fields are left untouched.
type AuthDataUpdate struct {
	Login    *string
	Password *string
}

// IsEmpty reports whether the update carries no changes.
func (u AuthDataUpdate) IsEmpty() bool {
	return u.Login == nil && u.Password == nil
}

// SocialAccount links a local principal with an identity at an external OAuth provider.
type SocialAccount struct {
	ID        string
	UserID    string
	Provider  string
	SocialID  string
	Email     string
	CreatedAt time.Time
}

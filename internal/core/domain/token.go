package domain

import "time"

// TokenType distinguishes access and refresh credentials inside the signed payload.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// AccessSubject is the identity embedded in the sub claim of an access token.
type AccessSubject struct {
	UserID     string   `json:"user_id"`
	UserRoles  []string `json:"user_roles"`
	UserAgent  string   `json:"user_agent"`
	Email      string   `json:"email"`
	RefreshJTI string   `json:"refresh_jti"`
}

// RefreshSubject is the identity embedded in the sub claim of a refresh token.
type RefreshSubject struct {
	UserID    string `json:"user_id"`
	UserAgent string `json:"user_agent"`
}

// AccessToken is the decoded, signature-checked form of an access credential.
type AccessToken struct {
	JTI       string
	Subject   AccessSubject
	Fresh     bool
	IssuedAt  time.Time
	ExpiresAt *time.Time
}

// RefreshToken is the decoded, signature-checked form of a refresh credential.
type RefreshToken struct {
	JTI       string
	Subject   RefreshSubject
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedToken carries an encoded credential together with its identifier and expiry.
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt *time.Time
}

// TokenPair is returned by login, OAuth completion and (with an empty refresh token) refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

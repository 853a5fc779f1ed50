package port

import (
	"time"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

// PasswordPolicyValidator enforces password strength requirements.
type PasswordPolicyValidator interface {
	Validate(password string, userInputs ...string) error
}

// Argon2Params captures tunable parameters for the Argon2id hashing algorithm.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// TokenCodec mints and decodes signed session credentials. Decoding never consults revocation state.
type TokenCodec interface {
	IssueAccess(subject domain.AccessSubject, fresh bool, ttl *time.Duration) (domain.IssuedToken, error)
	IssueRefresh(subject domain.RefreshSubject) (domain.IssuedToken, error)
	DecodeAccess(token string) (*domain.AccessToken, error)
	DecodeRefresh(token string) (*domain.RefreshToken, error)
	// DecodeRefreshUnverifiedExpiry checks the signature and type but accepts expired tokens.
	DecodeRefreshUnverifiedExpiry(token string) (*domain.RefreshToken, error)
}

// DeviceClassifier maps a user agent string onto a device class.
type DeviceClassifier interface {
	Classify(userAgent string) domain.DeviceType
}

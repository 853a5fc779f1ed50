package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailure is the parent of every credential-related rejection.
	ErrAuthenticationFailure = errors.New("authentication failure")
	// ErrIncorrectPassword indicates the supplied password does not match the stored hash.
	ErrIncorrectPassword = fmt.Errorf("incorrect password: %w", ErrAuthenticationFailure)
	// ErrMissingEntity indicates the requested principal, role or record does not exist.
	ErrMissingEntity = errors.New("entity not found")
	// ErrConflict indicates a uniqueness violation such as a duplicate login or e-mail.
	ErrConflict = errors.New("entity already exists")
	// ErrRateLimited indicates the admission controller rejected the request.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrTokenExpired indicates the credential carries an exp claim in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrMalformedToken covers bad signatures, unexpected shapes and token type mismatches.
	ErrMalformedToken = errors.New("malformed token")
	// ErrTokenRevoked indicates the credential (or the refresh session it is bound to) was revoked.
	ErrTokenRevoked = fmt.Errorf("token revoked: %w", ErrAuthenticationFailure)
	// ErrRevocationStoreUnavailable indicates revocation state could not be read or written.
	ErrRevocationStoreUnavailable = errors.New("revocation store unavailable")
	// ErrStoreUnavailable indicates a key-value store call failed.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrPermissionDenied indicates the principal lacks the required role.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrFreshTokenRequired indicates the operation needs an access token minted by a credential login.
	ErrFreshTokenRequired = errors.New("fresh token required")
	// ErrInvalidInput indicates request parameters failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrWeakPassword indicates the password failed the strength policy.
	ErrWeakPassword = fmt.Errorf("weak password: %w", ErrInvalidInput)
	// ErrUnsupportedProvider indicates the OAuth provider name is unknown.
	ErrUnsupportedProvider = fmt.Errorf("unsupported oauth provider: %w", ErrInvalidInput)
	// ErrInvalidOAuthState indicates the OAuth state parameter is unknown or already used.
	ErrInvalidOAuthState = fmt.Errorf("invalid oauth state: %w", ErrAuthenticationFailure)
	// ErrUnknownScope indicates the permission scope is not registered.
	ErrUnknownScope = fmt.Errorf("unknown permission scope: %w", ErrInvalidInput)
)

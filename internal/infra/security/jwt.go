package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
)

// ErrSecretMissing indicates the codec was built without a signing secret.
var ErrSecretMissing = errors.New("jwt: secret key is required")

// baseClaims carries the registered claims shared by both token classes. It implements jwt.Claims
// itself because sub is a structured object rather than the string jwt.RegisteredClaims expects.
type baseClaims struct {
	ID        string           `json:"jti"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	NotBefore *jwt.NumericDate `json:"nbf,omitempty"`
	ExpiresAt *jwt.NumericDate `json:"exp,omitempty"`
	Type      domain.TokenType `json:"type"`
}

func (c baseClaims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c baseClaims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c baseClaims) GetNotBefore() (*jwt.NumericDate, error)      { return c.NotBefore, nil }
func (c baseClaims) GetIssuer() (string, error)                   { return "", nil }
func (c baseClaims) GetSubject() (string, error)                  { return "", nil }
func (c baseClaims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

// AccessClaims is the signed payload of an access token.
type AccessClaims struct {
	Subject domain.AccessSubject `json:"sub"`
	Fresh   bool                 `json:"fresh"`
	baseClaims
}

// RefreshClaims is the signed payload of a refresh token.
type RefreshClaims struct {
	Subject domain.RefreshSubject `json:"sub"`
	baseClaims
}

// TokenCodec mints and decodes HS256 signed session tokens. It holds no mutable state.
type TokenCodec struct {
	secret     []byte
	refreshTTL time.Duration
	now        func() time.Time
}

var _ port.TokenCodec = (*TokenCodec)(nil)

// TokenCodecOption customises the codec.
type TokenCodecOption func(*TokenCodec)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) TokenCodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec builds a codec signing with secret. refreshTTL bounds every refresh token.
func NewTokenCodec(secret string, refreshTTL time.Duration, opts ...TokenCodecOption) (*TokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretMissing
	}
	if refreshTTL <= 0 {
		return nil, fmt.Errorf("jwt: refresh ttl must be positive, got %s", refreshTTL)
	}

	codec := &TokenCodec{secret: []byte(secret), refreshTTL: refreshTTL, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(codec)
		}
	}
	return codec, nil
}

// IssueAccess mints an access token. A nil ttl omits the exp claim entirely.
func (c *TokenCodec) IssueAccess(subject domain.AccessSubject, fresh bool, ttl *time.Duration) (domain.IssuedToken, error) {
	if strings.TrimSpace(subject.UserID) == "" {
		return domain.IssuedToken{}, fmt.Errorf("jwt: user id is required")
	}
	subject.UserRoles = normalizeRoles(subject.UserRoles)

	base := c.newBase(domain.TokenTypeAccess, ttl)
	claims := &AccessClaims{Subject: subject, Fresh: fresh, baseClaims: base}
	return c.sign(claims, base)
}

// IssueRefresh mints a refresh token expiring after the configured refresh lifetime.
func (c *TokenCodec) IssueRefresh(subject domain.RefreshSubject) (domain.IssuedToken, error) {
	if strings.TrimSpace(subject.UserID) == "" {
		return domain.IssuedToken{}, fmt.Errorf("jwt: user id is required")
	}

	ttl := c.refreshTTL
	base := c.newBase(domain.TokenTypeRefresh, &ttl)
	claims := &RefreshClaims{Subject: subject, baseClaims: base}
	return c.sign(claims, base)
}

// DecodeAccess verifies signature, expiry and token type of an access token.
func (c *TokenCodec) DecodeAccess(token string) (*domain.AccessToken, error) {
	claims := &AccessClaims{}
	if err := c.parse(token, claims, domain.TokenTypeAccess, true); err != nil {
		return nil, err
	}

	decoded := &domain.AccessToken{
		JTI:      claims.ID,
		Subject:  claims.Subject,
		Fresh:    claims.Fresh,
		IssuedAt: claims.IssuedAt.Time,
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		decoded.ExpiresAt = &exp
	}
	return decoded, nil
}

// DecodeRefresh verifies signature, expiry and token type of a refresh token.
func (c *TokenCodec) DecodeRefresh(token string) (*domain.RefreshToken, error) {
	return c.decodeRefresh(token, true)
}

// DecodeRefreshUnverifiedExpiry verifies signature and type but accepts expired refresh tokens.
// It is used when revoking stored sessions that may have lapsed in the meantime.
func (c *TokenCodec) DecodeRefreshUnverifiedExpiry(token string) (*domain.RefreshToken, error) {
	return c.decodeRefresh(token, false)
}

func (c *TokenCodec) decodeRefresh(token string, validateExpiry bool) (*domain.RefreshToken, error) {
	claims := &RefreshClaims{}
	if err := c.parse(token, claims, domain.TokenTypeRefresh, validateExpiry); err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: refresh token without exp", domain.ErrMalformedToken)
	}

	return &domain.RefreshToken{
		JTI:       claims.ID,
		Subject:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

type typedClaims interface {
	jwt.Claims
	tokenType() domain.TokenType
	tokenID() string
	issuedAt() *jwt.NumericDate
}

func (c baseClaims) tokenType() domain.TokenType { return c.Type }
func (c baseClaims) tokenID() string             { return c.ID }
func (c baseClaims) issuedAt() *jwt.NumericDate  { return c.IssuedAt }

func (c *TokenCodec) parse(token string, claims typedClaims, want domain.TokenType, validateExpiry bool) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty token", domain.ErrMalformedToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if !validateExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	keyFunc := func(*jwt.Token) (any, error) { return c.secret, nil }
	_, err := jwt.ParseWithClaims(token, claims, keyFunc, opts...)
	if err != nil {
		// Claims are decoded before validation, so the class is known even for an expired token.
		if errors.Is(err, jwt.ErrTokenExpired) && c.signatureValid(token) {
			if claims.tokenType() != want {
				return fmt.Errorf("%w: expected %s token, got %q", domain.ErrMalformedToken, want, claims.tokenType())
			}
			return domain.ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}

	if claims.tokenType() != want {
		return fmt.Errorf("%w: expected %s token, got %q", domain.ErrMalformedToken, want, claims.tokenType())
	}
	if claims.tokenID() == "" || claims.issuedAt() == nil {
		return fmt.Errorf("%w: missing jti or iat", domain.ErrMalformedToken)
	}
	return nil
}

// signatureValid reports whether an expired token was still signed by us, so forged tokens
// never surface as merely expired.
func (c *TokenCodec) signatureValid(token string) bool {
	_, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return err == nil
}

func (c *TokenCodec) newBase(kind domain.TokenType, ttl *time.Duration) baseClaims {
	// NumericDate has second precision; truncating keeps iat/exp identical after a round trip.
	now := c.now().UTC().Truncate(time.Second)
	base := baseClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Type:      kind,
	}
	if ttl != nil {
		base.ExpiresAt = jwt.NewNumericDate(now.Add(*ttl))
	}
	return base
}

func (c *TokenCodec) sign(claims jwt.Claims, base baseClaims) (domain.IssuedToken, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	issued := domain.IssuedToken{Token: signed, JTI: base.ID}
	if base.ExpiresAt != nil {
		exp := base.ExpiresAt.Time
		issued.ExpiresAt = &exp
	}
	return issued, nil
}

func normalizeRoles(input []string) []string {
	seen := make(map[string]struct{}, len(input))
	result := make([]string, 0, len(input))
	for _, role := range input {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, exists := seen[role]; exists {
			continue
		}
		seen[role] = struct{}{}
		result = append(result, role)
	}
	return result
}

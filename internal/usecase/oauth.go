package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/repository"
)

const defaultOAuthStateTTL = 10 * time.Minute

// OAuthService drives the authorization code flow against external providers and opens local
// sessions for the resulting principals.
type OAuthService struct {
	providers map[string]port.OAuthProvider
	states    port.OAuthStateStore
	socials   port.SocialAccountRepository
	users     port.UserRepository
	accounts  *AccountService
	sessions  *SessionManager
	metrics   port.AuthMetrics
	stateTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewOAuthService constructs an OAuthService for the supplied providers.
func NewOAuthService(
	providers []port.OAuthProvider,
	states port.OAuthStateStore,
	socials port.SocialAccountRepository,
	users port.UserRepository,
	accounts *AccountService,
	sessions *SessionManager,
	stateTTL time.Duration,
	logger *zap.Logger,
) *OAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stateTTL <= 0 {
		stateTTL = defaultOAuthStateTTL
	}

	registry := make(map[string]port.OAuthProvider, len(providers))
	for _, provider := range providers {
		if provider != nil {
			registry[provider.Name()] = provider
		}
	}

	return &OAuthService{
		providers: registry,
		states:    states,
		socials:   socials,
		users:     users,
		accounts:  accounts,
		sessions:  sessions,
		metrics:   port.NopAuthMetrics{},
		stateTTL:  stateTTL,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics installs domain counters.
func (s *OAuthService) WithMetrics(metrics port.AuthMetrics) *OAuthService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// Providers lists the configured provider names.
func (s *OAuthService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

// AuthorizeURL issues a one-time state and returns the provider consent URL.
func (s *OAuthService) AuthorizeURL(ctx context.Context, providerName string) (string, error) {
	provider, err := s.provider(providerName)
	if err != nil {
		return "", err
	}

	state, err := newState()
	if err != nil {
		return "", err
	}
	if err := s.states.SaveState(ctx, state, provider.Name(), s.stateTTL); err != nil {
		return "", err
	}
	return provider.AuthCodeURL(state), nil
}

// Complete exchanges the authorization code, resolves or provisions the local principal and
// opens a session on the calling device.
func (s *OAuthService) Complete(ctx context.Context, providerName, code, state, userAgent string) (domain.TokenPair, error) {
	provider, err := s.provider(providerName)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if strings.TrimSpace(code) == "" {
		return domain.TokenPair{}, fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}

	boundProvider, ok, err := s.states.ConsumeState(ctx, state)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !ok || boundProvider != provider.Name() {
		s.metrics.ObserveLogin(LoginMethodOAuth, "bad_state")
		return domain.TokenPair{}, domain.ErrInvalidOAuthState
	}

	token, identity, err := provider.Exchange(ctx, code)
	if err != nil {
		s.metrics.ObserveLogin(LoginMethodOAuth, "exchange_failed")
		return domain.TokenPair{}, fmt.Errorf("%w: %s code exchange: %w", domain.ErrAuthenticationFailure, provider.Name(), err)
	}
	if identity.SocialID == "" {
		return domain.TokenPair{}, fmt.Errorf("%w: %s returned no account id", domain.ErrAuthenticationFailure, provider.Name())
	}

	user, err := s.resolveUser(ctx, provider.Name(), identity)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.states.SaveProviderToken(ctx, provider.Name(), user.ID, token); err != nil {
		s.logger.Warn("cache provider token failed", zap.String("provider", provider.Name()), zap.Error(err))
	}

	pair, err := s.sessions.OpenSession(ctx, user, userAgent)
	if err != nil {
		return domain.TokenPair{}, err
	}
	s.metrics.ObserveLogin(LoginMethodOAuth, "success")
	return pair, nil
}

// resolveUser finds the principal linked to the external identity, falls back to an account with
// the same e-mail and finally provisions a new one. The link is created in the latter two cases.
func (s *OAuthService) resolveUser(ctx context.Context, provider string, identity port.OAuthIdentity) (domain.User, error) {
	account, err := s.socials.GetByProviderID(ctx, provider, identity.SocialID)
	switch {
	case err == nil:
		user, err := s.users.GetByID(ctx, account.UserID)
		if err != nil {
			return domain.User{}, fmt.Errorf("load linked user: %w", err)
		}
		return *user, nil
	case !errors.Is(err, repository.ErrNotFound):
		return domain.User{}, fmt.Errorf("lookup social account: %w", err)
	}

	var user domain.User
	existing, err := s.lookupByEmail(ctx, identity.Email)
	if err != nil {
		return domain.User{}, err
	}
	if existing != nil {
		user = *existing
	} else {
		email := identity.Email
		if email == "" {
			return domain.User{}, fmt.Errorf("%w: %s did not share an e-mail address", domain.ErrInvalidInput, provider)
		}
		user, err = s.accounts.ProvisionExternalUser(ctx, fmt.Sprintf("%s_%s", provider, identity.SocialID), email, provider)
		if err != nil {
			return domain.User{}, err
		}
	}

	link := domain.SocialAccount{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Provider:  provider,
		SocialID:  identity.SocialID,
		Email:     identity.Email,
		CreatedAt: s.now(),
	}
	if err := s.socials.Create(ctx, link); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return domain.User{}, fmt.Errorf("link social account: %w", err)
	}
	return user, nil
}

func (s *OAuthService) lookupByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, nil
}

func (s *OAuthService) provider(name string) (port.OAuthProvider, error) {
	provider, ok := s.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, name)
	}
	return provider, nil
}

func newState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

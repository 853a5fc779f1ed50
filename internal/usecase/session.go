package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/infra/idgen"
	"github.com/arklim/auth-session-service/internal/repository"
)

const (
	tracerName = "github.com/arklim/auth-session-service/internal/usecase"

	// LoginMethodPassword and LoginMethodOAuth label how a session was established.
	LoginMethodPassword = "password"
	LoginMethodOAuth    = "oauth"
)

// SessionConfig carries token lifetimes and the role that receives non-expiring access tokens.
type SessionConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	AdminRole  string
}

// SessionDependencies groups the collaborators of SessionManager.
type SessionDependencies struct {
	Users       port.UserRepository
	Roles       port.RoleRepository
	History     port.AuthHistoryRepository
	Sessions    port.RefreshSessionRegistry
	Revocations port.RevocationRegistry
	Codec       port.TokenCodec
	Hasher      port.PasswordHasher
	Devices     port.DeviceClassifier
	Events      port.EventPublisher
}

// SessionManager owns the token lifecycle: login, refresh, logout and device logout,
// plus validation of presented credentials against the revocation registry.
type SessionManager struct {
	cfg         SessionConfig
	users       port.UserRepository
	roles       port.RoleRepository
	history     port.AuthHistoryRepository
	sessions    port.RefreshSessionRegistry
	revocations port.RevocationRegistry
	codec       port.TokenCodec
	hasher      port.PasswordHasher
	devices     port.DeviceClassifier
	events      port.EventPublisher
	metrics     port.AuthMetrics
	logger      *zap.Logger
	tracer      trace.Tracer
	warn        rate.Sometimes
	now         func() time.Time
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(cfg SessionConfig, deps SessionDependencies, logger *zap.Logger) (*SessionManager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive")
	}
	if deps.Users == nil || deps.Roles == nil || deps.Sessions == nil || deps.Revocations == nil || deps.Codec == nil {
		return nil, fmt.Errorf("session manager dependencies are incomplete")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SessionManager{
		cfg:         cfg,
		users:       deps.Users,
		roles:       deps.Roles,
		history:     deps.History,
		sessions:    deps.Sessions,
		revocations: deps.Revocations,
		codec:       deps.Codec,
		hasher:      deps.Hasher,
		devices:     deps.Devices,
		events:      deps.Events,
		metrics:     port.NopAuthMetrics{},
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		warn:        rate.Sometimes{Interval: 10 * time.Second},
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the internal clock for deterministic tests.
func (m *SessionManager) WithClock(clock func() time.Time) {
	if clock != nil {
		m.now = clock
	}
}

// WithMetrics installs domain counters.
func (m *SessionManager) WithMetrics(metrics port.AuthMetrics) *SessionManager {
	if metrics != nil {
		m.metrics = metrics
	}
	return m
}

// Login verifies credentials and opens a session for the device identified by userAgent.
func (m *SessionManager) Login(ctx context.Context, login, password, userAgent string) (domain.TokenPair, error) {
	ctx, span := m.tracer.Start(ctx, "SessionManager.Login")
	defer span.End()

	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return domain.TokenPair{}, fmt.Errorf("%w: login and password are required", domain.ErrInvalidInput)
	}
	if m.hasher == nil {
		return domain.TokenPair{}, fmt.Errorf("password hasher not configured")
	}

	user, err := m.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.metrics.ObserveLogin(LoginMethodPassword, "unknown_user")
			return domain.TokenPair{}, fmt.Errorf("user %q: %w", login, domain.ErrMissingEntity)
		}
		return domain.TokenPair{}, recordSpanError(span, fmt.Errorf("lookup user: %w", err))
	}

	ok, err := m.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return domain.TokenPair{}, recordSpanError(span, fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		m.metrics.ObserveLogin(LoginMethodPassword, "bad_password")
		return domain.TokenPair{}, domain.ErrIncorrectPassword
	}

	pair, err := m.OpenSession(ctx, *user, userAgent)
	if err != nil {
		return domain.TokenPair{}, recordSpanError(span, err)
	}

	m.metrics.ObserveLogin(LoginMethodPassword, "success")
	span.SetAttributes(attribute.String("user.id", user.ID))
	return pair, nil
}

// OpenSession records the login in history and mints a token pair for an already
// authenticated principal. The refresh session of the device is overwritten.
func (m *SessionManager) OpenSession(ctx context.Context, user domain.User, userAgent string) (domain.TokenPair, error) {
	if m.history != nil {
		entry := domain.AuthHistoryEntry{
			ID:         idgen.NewAt(m.now()),
			UserID:     user.ID,
			UserAgent:  userAgent,
			DeviceType: m.classify(userAgent),
			CreatedAt:  m.now(),
		}
		if err := m.history.Create(ctx, entry); err != nil {
			return domain.TokenPair{}, fmt.Errorf("record auth history: %w", err)
		}
	}

	roles, err := m.roleNames(ctx, user.ID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, err := m.codec.IssueRefresh(domain.RefreshSubject{UserID: user.ID, UserAgent: userAgent})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := m.sessions.Put(ctx, user.ID, userAgent, refresh.Token); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh session: %w", err)
	}

	access, err := m.issueAccess(user, roles, userAgent, refresh.JTI, true)
	if err != nil {
		return domain.TokenPair{}, err
	}

	m.logger.Info("session opened",
		zap.String("user_id", user.ID),
		zap.String("device", string(m.classify(userAgent))),
	)
	return domain.TokenPair{AccessToken: access.Token, RefreshToken: refresh.Token}, nil
}

// Refresh mints a new non-fresh access token for a validated refresh token using the principal's
// current roles. It always carries the regular access expiry, admins included. The refresh token
// itself is not rotated.
func (m *SessionManager) Refresh(ctx context.Context, refresh *domain.RefreshToken) (string, error) {
	ctx, span := m.tracer.Start(ctx, "SessionManager.Refresh")
	defer span.End()

	if refresh == nil || refresh.JTI == "" {
		return "", fmt.Errorf("%w: refresh token is required", domain.ErrMalformedToken)
	}

	user, err := m.users.GetByID(ctx, refresh.Subject.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.metrics.ObserveRefresh("unknown_user")
			return "", fmt.Errorf("user %s: %w", refresh.Subject.UserID, domain.ErrMissingEntity)
		}
		return "", recordSpanError(span, fmt.Errorf("lookup user: %w", err))
	}

	roles, err := m.roleNames(ctx, user.ID)
	if err != nil {
		return "", recordSpanError(span, err)
	}

	access, err := m.issueAccess(*user, roles, refresh.Subject.UserAgent, refresh.JTI, false)
	if err != nil {
		return "", recordSpanError(span, err)
	}

	m.metrics.ObserveRefresh("success")
	return access.Token, nil
}

// Logout revokes the presented access token and the refresh token it was minted from. Each
// tombstone lives for the full lifetime of its token class; a non-expiring access token gets a
// permanent tombstone.
func (m *SessionManager) Logout(ctx context.Context, access *domain.AccessToken) error {
	ctx, span := m.tracer.Start(ctx, "SessionManager.Logout")
	defer span.End()

	if access == nil || access.JTI == "" {
		return fmt.Errorf("%w: access token is required", domain.ErrMalformedToken)
	}

	accessTTL := m.cfg.AccessTTL
	if access.ExpiresAt == nil {
		accessTTL = 0
	}
	if err := m.revocations.Revoke(ctx, access.JTI, accessTTL); err != nil {
		return recordSpanError(span, fmt.Errorf("%w: revoke access token: %w", domain.ErrRevocationStoreUnavailable, err))
	}

	revoked := 1
	if refreshJTI := access.Subject.RefreshJTI; refreshJTI != "" {
		if err := m.revocations.Revoke(ctx, refreshJTI, m.cfg.RefreshTTL); err != nil {
			return recordSpanError(span, fmt.Errorf("%w: revoke refresh token: %w", domain.ErrRevocationStoreUnavailable, err))
		}
		revoked++
	}

	m.metrics.ObserveRevocations(domain.RevokeReasonLogout, revoked)
	m.publishRevoked(ctx, access.Subject.UserID, []string{access.Subject.UserAgent}, domain.RevokeReasonLogout, revoked)
	return nil
}

// LogoutDevices revokes and deletes the refresh sessions of the listed user agents, or every
// session of the principal when userAgents is ["all"]. Devices without a live session are skipped.
// A failure on one device does not stop the others; the joined failures are returned and match
// domain.ErrRevocationStoreUnavailable. The number of revoked sessions is returned in both cases.
func (m *SessionManager) LogoutDevices(ctx context.Context, userID string, userAgents []string) (int, error) {
	ctx, span := m.tracer.Start(ctx, "SessionManager.LogoutDevices")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if len(userAgents) == 0 {
		return 0, fmt.Errorf("%w: at least one user agent is required", domain.ErrInvalidInput)
	}

	var (
		errs    []error
		revoked int
		reason  = domain.RevokeReasonDeviceLogout
	)

	terminate := func(session domain.RefreshSession) {
		if err := m.terminate(ctx, session); err != nil {
			errs = append(errs, err)
			return
		}
		revoked++
	}

	if domain.IsAllDevices(userAgents) {
		reason = domain.RevokeReasonAllDevices
		for session, err := range m.sessions.FindAll(ctx, userID) {
			if err != nil {
				errs = append(errs, err)
				break
			}
			terminate(session)
		}
	} else {
		for _, userAgent := range userAgents {
			session, err := m.sessions.Get(ctx, userID, userAgent)
			if err != nil {
				if errors.Is(err, domain.ErrMissingEntity) {
					continue
				}
				errs = append(errs, err)
				continue
			}
			terminate(*session)
		}
	}

	if revoked > 0 {
		m.metrics.ObserveRevocations(reason, revoked)
		m.publishRevoked(ctx, userID, userAgents, reason, revoked)
	}

	if len(errs) > 0 {
		err := fmt.Errorf("%w: %w", domain.ErrRevocationStoreUnavailable, errors.Join(errs...))
		return revoked, recordSpanError(span, err)
	}
	return revoked, nil
}

// terminate revokes the refresh token held by session, then drops the registry record. The record
// is kept when revocation fails so a retry can still find it.
func (m *SessionManager) terminate(ctx context.Context, session domain.RefreshSession) error {
	refresh, err := m.codec.DecodeRefreshUnverifiedExpiry(session.Token)
	if err != nil {
		m.logger.Warn("dropping undecodable refresh session", zap.String("key", session.Key), zap.Error(err))
		if delErr := m.sessions.Delete(ctx, session.Key); delErr != nil {
			return fmt.Errorf("delete session %s: %w", session.Key, delErr)
		}
		return nil
	}

	if err := m.revocations.Revoke(ctx, refresh.JTI, m.cfg.RefreshTTL); err != nil {
		return fmt.Errorf("revoke session %s: %w", session.Key, err)
	}
	if err := m.sessions.Delete(ctx, session.Key); err != nil {
		return fmt.Errorf("delete session %s: %w", session.Key, err)
	}
	return nil
}

// ValidateAccess decodes an access token and checks both its own jti and the refresh_jti it was
// minted from against the revocation registry.
func (m *SessionManager) ValidateAccess(ctx context.Context, token string) (*domain.AccessToken, error) {
	access, err := m.codec.DecodeAccess(token)
	if err != nil {
		return nil, err
	}

	if err := m.ensureNotRevoked(ctx, access.JTI); err != nil {
		return nil, err
	}
	if access.Subject.RefreshJTI != "" {
		if err := m.ensureNotRevoked(ctx, access.Subject.RefreshJTI); err != nil {
			return nil, err
		}
	}
	return access, nil
}

// ValidateRefresh decodes a refresh token and checks its jti against the revocation registry.
func (m *SessionManager) ValidateRefresh(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refresh, err := m.codec.DecodeRefresh(token)
	if err != nil {
		return nil, err
	}
	if err := m.ensureNotRevoked(ctx, refresh.JTI); err != nil {
		return nil, err
	}
	return refresh, nil
}

func (m *SessionManager) ensureNotRevoked(ctx context.Context, jti string) error {
	revoked, err := m.revocations.IsRevoked(ctx, jti)
	if err != nil {
		m.warn.Do(func() {
			m.logger.Warn("revocation lookup failed, denying token", zap.Error(err))
		})
		return fmt.Errorf("%w: %w", domain.ErrRevocationStoreUnavailable, err)
	}
	if revoked {
		return domain.ErrTokenRevoked
	}
	return nil
}

// issueAccess mints an access token. Only a fresh token issued to an admin at login is non-expiring.
func (m *SessionManager) issueAccess(user domain.User, roles []string, userAgent, refreshJTI string, fresh bool) (domain.IssuedToken, error) {
	var ttl *time.Duration
	if !fresh || m.cfg.AdminRole == "" || !domain.HasRole(roles, m.cfg.AdminRole) {
		accessTTL := m.cfg.AccessTTL
		ttl = &accessTTL
	}

	subject := domain.AccessSubject{
		UserID:     user.ID,
		UserRoles:  roles,
		UserAgent:  userAgent,
		Email:      user.Email,
		RefreshJTI: refreshJTI,
	}
	access, err := m.codec.IssueAccess(subject, fresh, ttl)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("issue access token: %w", err)
	}
	if ttl == nil {
		m.logger.Info("issued non-expiring access token", zap.String("user_id", user.ID), zap.String("jti", access.JTI))
	}
	return access, nil
}

func (m *SessionManager) roleNames(ctx context.Context, userID string) ([]string, error) {
	roles, err := m.roles.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	return domain.RoleNames(roles), nil
}

func (m *SessionManager) classify(userAgent string) domain.DeviceType {
	if m.devices == nil {
		return domain.DeviceTypeOther
	}
	return m.devices.Classify(userAgent)
}

func (m *SessionManager) publishRevoked(ctx context.Context, userID string, userAgents []string, reason string, count int) {
	if m.events == nil {
		return
	}

	event := domain.SessionRevokedEvent{
		EventID:       uuid.NewString(),
		UserID:        userID,
		UserAgents:    userAgents,
		Reason:        reason,
		TokensRevoked: count,
		RevokedAt:     m.now(),
	}
	if err := m.events.PublishSessionRevoked(ctx, event); err != nil {
		m.logger.Warn("publish session revoked event failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func recordSpanError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

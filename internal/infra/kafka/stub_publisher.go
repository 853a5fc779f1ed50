package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. It is selected when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

var _ port.EventPublisher = (*StubPublisher)(nil)

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(ctx context.Context, eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}
	if requestID := logger.RequestIDFromContext(ctx); requestID != "" {
		base = append(base, zap.String("request_id", requestID))
	}
	p.logger.Info("stub event published", append(base, fields...)...)
}

func (p *StubPublisher) PublishUserSignedUp(ctx context.Context, event domain.UserSignedUpEvent) error {
	p.logEvent(ctx, EventUserSignedUp, event.UserID, event.SignedUpAt,
		zap.String("login", event.Login),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("method", event.Method),
		zap.Strings("default_roles", event.DefaultRoles),
	)
	return nil
}

func (p *StubPublisher) PublishRolesAssigned(ctx context.Context, event domain.RolesAssignedEvent) error {
	p.logEvent(ctx, EventRolesAssigned, event.UserID, event.AssignedAt,
		zap.Any("roles_added", toRoleChanges(event.RolesAdded)),
		zap.String("assigned_by", event.AssignedBy),
	)
	return nil
}

func (p *StubPublisher) PublishRolesRevoked(ctx context.Context, event domain.RolesRevokedEvent) error {
	p.logEvent(ctx, EventRolesRevoked, event.UserID, event.RevokedAt,
		zap.Any("roles_removed", toRoleChanges(event.RolesRemoved)),
		zap.String("revoked_by", event.RevokedBy),
	)
	return nil
}

func (p *StubPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	p.logEvent(ctx, EventSessionRevoked, event.UserID, event.RevokedAt,
		zap.Int("user_agents", len(event.UserAgents)),
		zap.String("reason", event.Reason),
		zap.Int("tokens_revoked", event.TokensRevoked),
	)
	return nil
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types double as topic names once the configured prefix is applied.
const (
	EventUserSignedUp   = "auth.user.signed_up"
	EventRolesAssigned  = "auth.user.roles.assigned"
	EventRolesRevoked   = "auth.user.roles.revoked"
	EventSessionRevoked = "auth.session.revoked"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

var _ port.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type roleChange struct {
	RoleID   string `json:"role_id"`
	RoleName string `json:"role_name"`
}

func toRoleChanges(assignments []domain.RoleAssignment) []roleChange {
	roles := make([]roleChange, 0, len(assignments))
	for _, assignment := range assignments {
		roles = append(roles, roleChange{RoleID: assignment.RoleID, RoleName: assignment.RoleName})
	}
	return roles
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}
	// Keying by principal keeps each user's events ordered within a partition.
	if userID != "" {
		message.Key = sarama.StringEncoder(userID)
	}

	select {
	case p.producer.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserSignedUp publishes auth.user.signed_up events.
func (p *EventPublisher) PublishUserSignedUp(ctx context.Context, event domain.UserSignedUpEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		Login        string    `json:"login"`
		Email        string    `json:"email"`
		Method       string    `json:"method"`
		SignedUpAt   time.Time `json:"signed_up_at"`
		DefaultRoles []string  `json:"default_roles"`
	}{
		UserID:       event.UserID,
		Login:        event.Login,
		Email:        event.Email,
		Method:       event.Method,
		SignedUpAt:   event.SignedUpAt.UTC(),
		DefaultRoles: event.DefaultRoles,
	}

	return p.publish(ctx, event.EventID, EventUserSignedUp, event.UserID, event.SignedUpAt, payload)
}

// PublishRolesAssigned publishes auth.user.roles.assigned events.
func (p *EventPublisher) PublishRolesAssigned(ctx context.Context, event domain.RolesAssignedEvent) error {
	payload := struct {
		UserID     string       `json:"user_id"`
		RolesAdded []roleChange `json:"roles_added"`
		AssignedBy string       `json:"assigned_by"`
		AssignedAt time.Time    `json:"assigned_at"`
	}{
		UserID:     event.UserID,
		RolesAdded: toRoleChanges(event.RolesAdded),
		AssignedBy: event.AssignedBy,
		AssignedAt: event.AssignedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventRolesAssigned, event.UserID, event.AssignedAt, payload)
}

// PublishRolesRevoked publishes auth.user.roles.revoked events.
func (p *EventPublisher) PublishRolesRevoked(ctx context.Context, event domain.RolesRevokedEvent) error {
	payload := struct {
		UserID       string       `json:"user_id"`
		RolesRemoved []roleChange `json:"roles_removed"`
		RevokedBy    string       `json:"revoked_by"`
		RevokedAt    time.Time    `json:"revoked_at"`
	}{
		UserID:       event.UserID,
		RolesRemoved: toRoleChanges(event.RolesRemoved),
		RevokedBy:    event.RevokedBy,
		RevokedAt:    event.RevokedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventRolesRevoked, event.UserID, event.RevokedAt, payload)
}

// PublishSessionRevoked publishes auth.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		UserID        string    `json:"user_id"`
		UserAgents    []string  `json:"user_agents"`
		Reason        string    `json:"reason"`
		TokensRevoked int       `json:"tokens_revoked"`
		RevokedAt     time.Time `json:"revoked_at"`
	}{
		UserID:        event.UserID,
		UserAgents:    event.UserAgents,
		Reason:        event.Reason,
		TokensRevoked: event.TokensRevoked,
		RevokedAt:     event.RevokedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventSessionRevoked, event.UserID, event.RevokedAt, payload)
}

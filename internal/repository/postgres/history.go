package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
)

const historyTable = "auth.auth_history"

// AuthHistoryRepository stores successful logins. Entry ids are ULIDs, so ordering by id is
// ordering by time and the id doubles as the keyset cursor.
type AuthHistoryRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.AuthHistoryRepository = (*AuthHistoryRepository)(nil)

// NewAuthHistoryRepository constructs a PostgreSQL-backed history repository.
func NewAuthHistoryRepository(exec pgExecutor) *AuthHistoryRepository {
	return &AuthHistoryRepository{exec: exec, builder: newBuilder()}
}

// Create appends a history entry.
func (r *AuthHistoryRepository) Create(ctx context.Context, entry domain.AuthHistoryEntry) error {
	stmt, args, err := r.builder.Insert(historyTable).
		Columns("id", "user_id", "user_agent", "device_type", "created_at").
		Values(entry.ID, entry.UserID, entry.UserAgent, string(entry.DeviceType), entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert auth history sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert auth history: %w", mapError(err))
	}
	return nil
}

// ListByUser returns up to limit entries strictly older than searchAfter, newest first.
func (r *AuthHistoryRepository) ListByUser(ctx context.Context, userID string, limit int, searchAfter string) ([]domain.AuthHistoryEntry, error) {
	query := r.builder.Select("id", "user_id", "user_agent", "device_type", "created_at").
		From(historyTable).
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("id DESC").
		Limit(uint64(limit))
	if searchAfter != "" {
		query = query.Where(squirrel.Lt{"id": searchAfter})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list auth history sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query auth history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuthHistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry      domain.AuthHistoryEntry
			deviceType string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.UserAgent, &deviceType, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan auth history: %w", err)
		}
		entry.DeviceType = domain.DeviceType(deviceType)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auth history: %w", err)
	}
	return entries, nil
}

package port

import (
	"context"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

// RoleRepository handles role CRUD and user role assignments.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context) ([]domain.Role, error)
	Update(ctx context.Context, role domain.Role) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]domain.Role, error)
	AssignToUser(ctx context.Context, userID string, roleIDs []string) error
	RemoveFromUser(ctx context.Context, userID string, roleIDs []string) error
}

package port

import (
	"context"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

// Admitter decides whether a request identified by key may proceed.
type Admitter interface {
	Admit(ctx context.Context, key string) (domain.AdmissionDecision, error)
}

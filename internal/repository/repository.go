package repository

import (
	"context"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
)

// MaxRecent caps how many query logs one Recent call returns.
const MaxRecent = 100

// QueryLogRepository persists served recommendation requests.
type QueryLogRepository interface {
	// Save stores one query log.
	Save(ctx context.Context, log *domain.QueryLog) error

	// Recent returns up to limit logs, newest first.
	Recent(ctx context.Context, limit int) ([]domain.QueryLog, error)
}

// ClampLimit bounds limit to 1..MaxRecent, defaulting to 20.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > MaxRecent:
		return MaxRecent
	default:
		return limit
	}
}

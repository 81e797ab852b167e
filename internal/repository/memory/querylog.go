// Package memory keeps recent query logs in a fixed-size ring.
package memory

import (
	"context"
	"sync"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/repository"
)

// QueryLogRepository retains the last capacity logs.
type QueryLogRepository struct {
	mu    sync.RWMutex
	ring  []domain.QueryLog
	next  int
	count int
}

var _ repository.QueryLogRepository = (*QueryLogRepository)(nil)

// NewQueryLogRepository returns a ring holding capacity logs.
func NewQueryLogRepository(capacity int) *QueryLogRepository {
	if capacity < 1 {
		capacity = 1
	}
	return &QueryLogRepository{ring: make([]domain.QueryLog, capacity)}
}

// Save stores a copy of l, overwriting the oldest log when full.
func (r *QueryLogRepository) Save(_ context.Context, l *domain.QueryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *l
	cp.ProductIDs = append([]string(nil), l.ProductIDs...)
	r.ring[r.next] = cp
	r.next = (r.next + 1) % len(r.ring)
	if r.count < len(r.ring) {
		r.count++
	}
	return nil
}

// Recent returns up to limit logs in reverse insertion order.
func (r *QueryLogRepository) Recent(_ context.Context, limit int) ([]domain.QueryLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := min(repository.ClampLimit(limit), r.count)
	out := make([]domain.QueryLog, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.ring)) % len(r.ring)
		l := r.ring[idx]
		l.ProductIDs = append([]string(nil), l.ProductIDs...)
		out = append(out, l)
	}
	return out, nil
}

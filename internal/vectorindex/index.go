// Package vectorindex defines nearest-neighbour lookup over product
// embeddings. Backends live in the subpackages.
package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
)

// ErrDimensionMismatch is returned when a query vector does not match the
// index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index returns the topK matches closest to a vector, best first.
type Index interface {
	Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error)
	Ping(ctx context.Context) error
}

// CheckDimensions validates vector against an index dimension. A zero
// dimension accepts any length.
func CheckDimensions(vector []float32, dims int) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty query vector", ErrDimensionMismatch)
	}
	if dims > 0 && len(vector) != dims {
		return fmt.Errorf("%w: index has %d dimensions, query has %d", ErrDimensionMismatch, dims, len(vector))
	}
	return nil
}

// Unavailable is the index used when the configured backend could not be
// initialized. Queries and pings fail with a connection-kind error.
type Unavailable struct {
	Reason string
}

// Query always fails.
func (u Unavailable) Query(context.Context, []float32, int) ([]domain.Match, error) {
	return nil, u.err()
}

// Ping always fails.
func (u Unavailable) Ping(context.Context) error {
	return u.err()
}

func (u Unavailable) err() error {
	reason := u.Reason
	if reason == "" {
		reason = "Pinecone index is not initialized."
	}
	return apperrors.Unavailable("vector index", reason)
}

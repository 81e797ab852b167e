// Package embedding turns a prompt into the query vector for the active
// variant.
package embedding

import (
	"context"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
)

// Embedder produces a vector for a text input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Model() string
}

// Unavailable is the embedder used when none could be built at startup.
// Every call fails with a connection-kind error.
type Unavailable struct {
	Reason string
	Dims   int
}

// UnavailableFor returns the Unavailable embedder for variant v.
func UnavailableFor(v domain.Variant) Unavailable {
	reason := "Multimodal embedder is not initialized."
	if v == domain.VariantHybrid {
		reason = "Text and image embedders are not initialized."
	}
	return Unavailable{Reason: reason, Dims: v.Dimensions()}
}

// Embed always fails.
func (u Unavailable) Embed(context.Context, string) ([]float32, error) {
	reason := u.Reason
	if reason == "" {
		reason = "Multimodal embedder is not initialized."
	}
	return nil, apperrors.Unavailable("embedding", reason)
}

// Dimensions returns the configured dimension.
func (u Unavailable) Dimensions() int { return u.Dims }

// Model returns "unavailable".
func (u Unavailable) Model() string { return "unavailable" }

package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Hybrid concatenates a sentence embedding and a CLIP text embedding of the
// same prompt, in that order.
type Hybrid struct {
	text Embedder
	clip Embedder
}

// NewHybrid combines text and clip.
func NewHybrid(text, clip Embedder) *Hybrid {
	return &Hybrid{text: text, clip: clip}
}

// Embed runs both models concurrently. The first failure cancels the other
// call.
func (h *Hybrid) Embed(ctx context.Context, text string) ([]float32, error) {
	var textVec, clipVec []float32

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := h.text.Embed(gctx, text)
		if err != nil {
			return fmt.Errorf("text embedding: %w", err)
		}
		textVec = v
		return nil
	})
	g.Go(func() error {
		v, err := h.clip.Embed(gctx, text)
		if err != nil {
			return fmt.Errorf("clip embedding: %w", err)
		}
		clipVec = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]float32, 0, len(textVec)+len(clipVec))
	out = append(out, textVec...)
	return append(out, clipVec...), nil
}

// Dimensions is the sum of both models' dimensions.
func (h *Hybrid) Dimensions() int {
	return h.text.Dimensions() + h.clip.Dimensions()
}

// Model names both models.
func (h *Hybrid) Model() string {
	return h.text.Model() + "+" + h.clip.Model()
}

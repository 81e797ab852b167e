// Package generator writes marketing copy for recommended products.
package generator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/logger"
)

// FallbackDescription replaces any description the model fails to write.
const FallbackDescription = "Discover a wonderful new addition for your home."

// ErrEmptyOutput is returned when the model answers with blank text.
var ErrEmptyOutput = errors.New("model returned an empty description")

var (
	fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "description_fallbacks_total",
			Help: "Product descriptions replaced by the fallback text, by reason.",
		},
		[]string{"reason"},
	)

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "description_generation_duration_seconds",
		Help:    "Time spent generating one product description.",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	})
)

// Description is the text for one product and whether it is the fallback.
type Description struct {
	Text     string
	Fallback bool
}

// Chain renders the prompt, runs the model and trims the output.
type Chain struct {
	template *Template
	model    Model
}

// NewChain pipes tmpl into model.
func NewChain(tmpl *Template, model Model) *Chain {
	return &Chain{template: tmpl, model: model}
}

// Run returns the model's description of p.
func (c *Chain) Run(ctx context.Context, p domain.Product) (string, error) {
	prompt, err := c.template.Render(p.Title, p.CategoryLabel())
	if err != nil {
		return "", err
	}
	out, err := c.model.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

// Generator describes products, substituting FallbackDescription when the
// model fails. An uninitialized model is not papered over: its
// connection-kind error is returned.
type Generator struct {
	chain  *Chain
	logger *slog.Logger
}

// New returns a generator for chain.
func New(chain *Chain, logger *slog.Logger) *Generator {
	return &Generator{chain: chain, logger: logger}
}

// Describe returns the description of p.
func (g *Generator) Describe(ctx context.Context, p domain.Product) (Description, error) {
	start := time.Now()
	text, err := g.chain.Run(ctx, p)
	generationDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		return Description{Text: text}, nil
	}
	if apperrors.IsUnavailable(err) {
		return Description{}, err
	}

	reason := "error"
	switch {
	case errors.Is(err, ErrEmptyOutput):
		reason = "empty"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, context.Canceled):
		reason = "canceled"
	}
	fallbacksTotal.WithLabelValues(reason).Inc()
	logger.WithContext(ctx, g.logger).WarnContext(ctx, "description generation failed, using fallback",
		slog.String("product_id", p.ID),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
	return Description{Text: FallbackDescription, Fallback: true}, nil
}

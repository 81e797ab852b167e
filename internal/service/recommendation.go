package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/embedding"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/event"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/generator"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/repository"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/logger"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/tracing"
)

const tracerName = "github.com/AGtheOG/ikarus3d-advisorBot/internal/service"

// MsgEmptyPrompt is returned when a blank prompt is rejected.
const MsgEmptyPrompt = "Prompt cannot be empty."

var (
	recommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Recommendation requests by variant and outcome.",
		},
		[]string{"variant", "outcome"},
	)

	recommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "End-to-end latency of successful recommendation requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"variant"},
	)
)

// Describer writes the marketing description of one product.
type Describer interface {
	Describe(ctx context.Context, p domain.Product) (generator.Description, error)
}

// RecommendationConfig holds the tunables of RecommendationService.
type RecommendationConfig struct {
	Variant     domain.Variant
	TopK        int
	Concurrency int
}

// RecommendationService turns a prompt into described product matches.
type RecommendationService struct {
	cfg       RecommendationConfig
	embedder  embedding.Embedder
	index     vectorindex.Index
	describer Describer
	logs      repository.QueryLogRepository
	publisher event.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewRecommendationService creates a new recommendation service. A nil
// publisher disables events.
func NewRecommendationService(
	cfg RecommendationConfig,
	embedder embedding.Embedder,
	index vectorindex.Index,
	describer Describer,
	logs repository.QueryLogRepository,
	publisher event.Publisher,
	logger *slog.Logger,
) *RecommendationService {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if publisher == nil {
		publisher = event.Noop{}
	}
	return &RecommendationService{
		cfg:       cfg,
		embedder:  embedder,
		index:     index,
		describer: describer,
		logs:      logs,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Variant returns the embedding variant the service serves.
func (s *RecommendationService) Variant() domain.Variant { return s.cfg.Variant }

// Recommend embeds prompt, looks up the closest products and describes each
// one. The result has one entry per index match, in match order.
func (s *RecommendationService) Recommend(ctx context.Context, prompt string) (recs []domain.Recommendation, err error) {
	variant := string(s.cfg.Variant)
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "RecommendationService.Recommend")
	span.SetAttributes(
		attribute.String("advisor.variant", variant),
		attribute.Int("advisor.top_k", s.cfg.TopK),
	)
	defer func() {
		tracing.End(span, err)
		recommendRequests.WithLabelValues(variant, outcome(err)).Inc()
	}()

	if s.cfg.Variant.RequiresPrompt() && strings.TrimSpace(prompt) == "" {
		return nil, apperrors.InvalidInput(MsgEmptyPrompt)
	}

	start := s.now()
	queryID := uuid.NewString()
	ctx = logger.WithQueryID(ctx, queryID)
	log := logger.WithContext(ctx, s.logger)

	vector, err := s.embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("embed prompt: %w", err)
	}

	matches, err := s.index.Query(ctx, vector, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	recs, fallbacks, err := s.describe(ctx, matches)
	if err != nil {
		return nil, err
	}

	elapsed := s.now().Sub(start)
	recommendDuration.WithLabelValues(variant).Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.Int("advisor.matches", len(recs)),
		attribute.Int("advisor.fallbacks", fallbacks),
	)

	s.record(ctx, &domain.QueryLog{
		ID:         queryID,
		Prompt:     prompt,
		Variant:    s.cfg.Variant,
		ProductIDs: productIDs(recs),
		Fallbacks:  fallbacks,
		LatencyMs:  elapsed.Milliseconds(),
		CreatedAt:  start.UTC(),
	})

	log.InfoContext(ctx, "recommendations served",
		slog.Int("count", len(recs)),
		slog.Int("fallbacks", fallbacks),
		slog.Int64("latency_ms", elapsed.Milliseconds()),
	)
	return recs, nil
}

// describe maps matches to products and generates their descriptions with
// bounded concurrency. Output order follows matches.
func (s *RecommendationService) describe(ctx context.Context, matches []domain.Match) ([]domain.Recommendation, int, error) {
	recs := make([]domain.Recommendation, len(matches))
	fallback := make([]bool, len(matches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, m := range matches {
		product := domain.ProductFromMatch(s.cfg.Variant, m)
		recs[i].Product = product
		g.Go(func() error {
			d, err := s.describer.Describe(gctx, product)
			if err != nil {
				return fmt.Errorf("describe product %s: %w", product.ID, err)
			}
			recs[i].GeneratedDescription = d.Text
			fallback[i] = d.Fallback
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	n := 0
	for _, f := range fallback {
		if f {
			n++
		}
	}
	return recs, n, nil
}

// record stores and publishes the query log. Failures are logged only.
func (s *RecommendationService) record(ctx context.Context, q *domain.QueryLog) {
	log := logger.WithContext(ctx, s.logger)
	if s.logs != nil {
		if err := s.logs.Save(ctx, q); err != nil {
			log.WarnContext(ctx, "failed to save query log", slog.String("error", err.Error()))
		}
	}
	if err := s.publisher.PublishRecommendationServed(ctx, q); err != nil {
		log.WarnContext(ctx, "failed to publish recommendation event", slog.String("error", err.Error()))
	}
}

// Recent returns the latest served queries, newest first.
func (s *RecommendationService) Recent(ctx context.Context, limit int) ([]domain.QueryLog, error) {
	if s.logs == nil {
		return []domain.QueryLog{}, nil
	}
	logs, err := s.logs.Recent(ctx, repository.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent query logs: %w", err)
	}
	if logs == nil {
		logs = []domain.QueryLog{}
	}
	return logs, nil
}

func productIDs(recs []domain.Recommendation) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.Product.ID
	}
	return ids
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.IsUnavailable(err):
		return "unavailable"
	case apperrors.HTTPStatus(err) < 500:
		return "rejected"
	default:
		return "error"
	}
}

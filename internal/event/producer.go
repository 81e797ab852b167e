package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	pkgkafka "github.com/AGtheOG/ikarus3d-advisorBot/pkg/kafka"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/logger"
)

// Event type and routing constants.
const (
	TypeRecommendationServed = "recommendation.served"
	AggregateTypeQuery       = "query"
	SourceAdvisorAPI         = "advisor-api"
)

// TopicRecommendationServed is the default topic for served recommendations.
var TopicRecommendationServed = pkgkafka.Topic("recommendation", "served")

// RecommendationServedData is the payload of a recommendation.served event.
type RecommendationServedData struct {
	QueryID    string         `json:"query_id"`
	Prompt     string         `json:"prompt"`
	Variant    domain.Variant `json:"variant"`
	ProductIDs []string       `json:"product_ids"`
	Fallbacks  int            `json:"fallbacks"`
	LatencyMs  int64          `json:"latency_ms"`
}

// Publisher announces served recommendations.
type Publisher interface {
	PublishRecommendationServed(ctx context.Context, log *domain.QueryLog) error
}

// EventWriter is satisfied by *pkgkafka.Producer.
type EventWriter interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes recommendation events to Kafka.
type Producer struct {
	kafka  EventWriter
	topic  string
	logger *slog.Logger
}

// NewProducer creates a producer writing to topic. An empty topic uses
// TopicRecommendationServed.
func NewProducer(kafka EventWriter, topic string, logger *slog.Logger) *Producer {
	if topic == "" {
		topic = TopicRecommendationServed
	}
	return &Producer{kafka: kafka, topic: topic, logger: logger}
}

// PublishRecommendationServed publishes a recommendation.served event keyed
// by the query ID.
func (p *Producer) PublishRecommendationServed(ctx context.Context, l *domain.QueryLog) error {
	data := RecommendationServedData{
		QueryID:    l.ID,
		Prompt:     l.Prompt,
		Variant:    l.Variant,
		ProductIDs: l.ProductIDs,
		Fallbacks:  l.Fallbacks,
		LatencyMs:  l.LatencyMs,
	}

	ev, err := pkgkafka.NewEvent(TypeRecommendationServed, l.ID, AggregateTypeQuery, SourceAdvisorAPI, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", TypeRecommendationServed, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		ev.WithCorrelationID(id)
	}
	ev.WithMetadata("variant", string(l.Variant))

	if err := p.kafka.Publish(ctx, p.topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", TypeRecommendationServed, err)
	}

	p.logger.DebugContext(ctx, "published recommendation.served event",
		slog.String("query_id", l.ID),
		slog.Int("products", len(l.ProductIDs)),
	)
	return nil
}

// Noop drops every event. It is used when no brokers are configured.
type Noop struct{}

// PublishRecommendationServed does nothing.
func (Noop) PublishRecommendationServed(context.Context, *domain.QueryLog) error { return nil }

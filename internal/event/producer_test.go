package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	pkgkafka "github.com/AGtheOG/ikarus3d-advisorBot/pkg/kafka"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/logger"
)

type recordingWriter struct {
	topic string
	event *pkgkafka.Event
	err   error
}

func (r *recordingWriter) Publish(_ context.Context, topic string, ev *pkgkafka.Event) error {
	r.topic = topic
	r.event = ev
	return r.err
}

func servedLog() *domain.QueryLog {
	return &domain.QueryLog{
		ID:         "q-42",
		Prompt:     "scandinavian dining table",
		Variant:    domain.VariantHybrid,
		ProductIDs: []string{"p1", "p2", "p3"},
		Fallbacks:  1,
		LatencyMs:  1200,
	}
}

func TestPublishRecommendationServed(t *testing.T) {
	w := &recordingWriter{}
	p := NewProducer(w, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := logger.WithCorrelationID(context.Background(), "corr-7")

	require.NoError(t, p.PublishRecommendationServed(ctx, servedLog()))

	assert.Equal(t, "advisor.recommendation.served", w.topic)
	require.NotNil(t, w.event)
	assert.Equal(t, TypeRecommendationServed, w.event.EventType)
	assert.Equal(t, "q-42", w.event.AggregateID)
	assert.Equal(t, "corr-7", w.event.CorrelationID)
	assert.Equal(t, "hybrid", w.event.Metadata["variant"])

	var data RecommendationServedData
	require.NoError(t, json.Unmarshal(w.event.Data, &data))
	assert.Equal(t, []string{"p1", "p2", "p3"}, data.ProductIDs)
	assert.Equal(t, int64(1200), data.LatencyMs)
}

func TestPublishRecommendationServed_CustomTopicAndError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := NewProducer(w, "furniture.recs", slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := p.PublishRecommendationServed(context.Background(), servedLog())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, "furniture.recs", w.topic)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.PublishRecommendationServed(context.Background(), servedLog()))
}

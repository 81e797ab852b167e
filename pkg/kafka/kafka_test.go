package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func servedEvent(t *testing.T) *Event {
	t.Helper()
	ev, err := NewEvent("recommendation.served", "q-1", "query", "advisor", map[string]any{"product_ids": []string{"p1", "p2"}})
	require.NoError(t, err)
	return ev
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "advisor.recommendation.served", Topic("recommendation", "served"))
}

func TestNewEvent_Envelope(t *testing.T) {
	ev := servedEvent(t).WithCorrelationID("corr-1").WithMetadata("variant", "clip")

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, 1, ev.Version)
	assert.Equal(t, "UTC", ev.Timestamp.Location().String())
	assert.Equal(t, "clip", ev.Metadata["variant"])

	raw, err := ev.Marshal()
	require.NoError(t, err)
	var back Event
	require.NoError(t, json.Unmarshal(raw, &back))

	var data struct {
		ProductIDs []string `json:"product_ids"`
	}
	require.NoError(t, json.Unmarshal(back.Data, &data))
	assert.Equal(t, []string{"p1", "p2"}, data.ProductIDs)
	assert.Equal(t, "corr-1", back.CorrelationID)
}

func TestNewEvent_UnencodableData(t *testing.T) {
	_, err := NewEvent("x", "id", "t", "s", make(chan int))
	assert.Error(t, err)
}

func TestProducer_PublishWritesHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, []string{"localhost:9092"}, quietLogger())
	topic := Topic("recommendation", "served")
	before := testutil.ToFloat64(ProducerMessagesPublished.WithLabelValues(topic))

	require.NoError(t, p.Publish(context.Background(), topic, servedEvent(t).WithCorrelationID("corr-9")))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	carrier := NewHeaderCarrier(&msg)
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, "q-1", string(msg.Key))
	assert.Equal(t, "recommendation.served", carrier.Get("event_type"))
	assert.Equal(t, "corr-9", carrier.Get("correlation_id"))
	assert.Equal(t, before+1, testutil.ToFloat64(ProducerMessagesPublished.WithLabelValues(topic)))
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, nil, quietLogger())

	err := p.Publish(context.Background(), "advisor.test.failed", servedEvent(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Equal(t, float64(1), testutil.ToFloat64(ProducerPublishErrors.WithLabelValues("advisor.test.failed")))
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewProducerWithWriter(w, nil, nil).Close())
	assert.True(t, w.closed)
}

func TestMessage_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	msg, err := Message(ctx, "t", servedEvent(t))
	require.NoError(t, err)

	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", NewHeaderCarrier(&msg).Get("traceparent"))
}

func TestHeaderCarrier_SetOverwrites(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "a", Value: []byte("1")}}}
	c := NewHeaderCarrier(&msg)

	c.Set("a", "2")
	c.Set("b", "3")

	assert.Equal(t, "2", c.Get("a"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"a", "b"}, c.Keys())
	assert.Len(t, msg.Headers, 2)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	assert.Error(t, PingBrokers(context.Background(), nil))
}

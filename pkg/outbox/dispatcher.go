package outbox

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Dispatcher turns outbox rows into Kafka messages on one topic.
type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
	tracer   trace.Tracer
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic, tracer: otel.Tracer("outbox")}
}

// Dispatch publishes one row keyed by its aggregate id, so every event of one
// order or payment lands on the same partition in commit order. The stored
// traceparent travels unchanged; the publish span is its child.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	if event.Traceparent != "" {
		ctx = propagation.TraceContext{}.Extract(ctx, propagation.MapCarrier{"traceparent": event.Traceparent})
	}
	ctx, span := d.tracer.Start(ctx, "outbox.publish "+event.Type,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", d.topic),
			attribute.String("outbox.aggregate_id", event.AggregateID),
			attribute.Int64("outbox.id", event.ID),
		))
	defer span.End()

	msg := kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: messageHeaders(event),
		Time:    event.CreatedAt,
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish")
		d.log.ErrorContext(ctx, "outbox publish failed", "outbox_id", event.ID, "type", event.Type, "retry", event.RetryCount, "err", err)
		return err
	}
	d.log.DebugContext(ctx, "outbox published", "outbox_id", event.ID, "type", event.Type, "aggregate_id", event.AggregateID)
	return nil
}

func messageHeaders(event Event) []kafka.Header {
	headers := make([]kafka.Header, 0, len(event.Headers)+3)
	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: "event_type", Value: []byte(event.Type)})
	if event.AggregateType != "" {
		headers = append(headers, kafka.Header{Key: "aggregate_type", Value: []byte(event.AggregateType)})
	}
	if event.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(event.Traceparent)})
	}
	return headers
}

package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/ordersaga/libs/events"
	otelx "github.com/md-rashed-zaman/ordersaga/libs/otel"
)

// Recorder appends events to the outbox. It performs no network I/O; a failure
// here must fail the enclosing domain transaction.
type Recorder struct {
	repo     Repository
	registry *events.Registry
	now      func() time.Time
}

func NewRecorder(repo Repository, registry *events.Registry) *Recorder {
	return &Recorder{repo: repo, registry: registry, now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, aggregateType, aggregateID, eventType string, payload events.Payload) (Event, error) {
	schema, raw, err := r.registry.Encode(eventType, payload)
	if err != nil {
		return Event{}, err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	e := Event{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         schema.Topic,
		Payload:       raw,
		SchemaRef:     schema.Ref,
		Traceparent:   traceparent,
		Tracestate:    tracestate,
		CreatedAt:     r.now().UTC(),
	}
	if err := r.repo.Insert(ctx, e); err != nil {
		return Event{}, fmt.Errorf("outbox insert %s: %w", eventType, err)
	}
	return e, nil
}

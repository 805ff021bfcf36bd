// Package bus is the transport-neutral message bus port. Messages are keyed by
// aggregate id; implementations keep per-key order and deliver at least once.
package bus

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
	HeaderSchemaRef = "schema_ref"
	HeaderError     = "error"
)

type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

func (m Message) Header(key string) string {
	return m.Headers[key]
}

type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	Publish(ctx context.Context, msgs ...Message) error
}

// Subscriber delivers messages of topic to handler until ctx is done. A message
// is acknowledged only when handler returns nil.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler Handler) error
}

// InjectTrace writes W3C trace headers for ctx into headers.
func InjectTrace(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
}

func ExtractTrace(ctx context.Context, msg Message) context.Context {
	if len(msg.Headers) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
}

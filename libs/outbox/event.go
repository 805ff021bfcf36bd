// Package outbox records domain events in the same local transaction as the
// aggregate change, and relays them to the bus afterwards.
package outbox

import (
	"context"
	"time"
)

// Event is one pending outbox row. It exists iff the change it describes
// committed, and it is removed once the bus acknowledges it.
type Event struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	Payload       []byte
	SchemaRef     string
	Traceparent   string
	Tracestate    string
	Attempts      int
	LastError     string
	CreatedAt     time.Time
}

// DeadLetter is an event the relay gave up on.
type DeadLetter struct {
	Event
	Reason   string
	FailedAt time.Time
}

// Repository is the storage port used by the recorder and the relay.
// Insert must run inside the caller's transaction.
type Repository interface {
	Insert(ctx context.Context, e Event) error
	FetchPending(ctx context.Context, limit int) ([]Event, error)
	Delete(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) (int, error)
	DeadLetter(ctx context.Context, e Event, reason string) error
	DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
}

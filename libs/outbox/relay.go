package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/bus"
	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	otelx "github.com/md-rashed-zaman/ordersaga/libs/otel"
)

type RelayConfig struct {
	PollEvery   time.Duration
	BatchSize   int
	MaxAttempts int
}

// RelayStats summarises one relay cycle.
type RelayStats struct {
	Published    int
	Failed       int
	DeadLettered int
}

// Relay publishes pending outbox rows and deletes them once acknowledged. A
// crash between publish and delete republishes the row, so delivery is at
// least once.
type Relay struct {
	tx       db.Transactor
	repo     Repository
	pub      bus.Publisher
	registry *events.Registry
	logger   *slog.Logger
	cfg      RelayConfig
}

func NewRelay(tx db.Transactor, repo Repository, pub bus.Publisher, registry *events.Registry, logger *slog.Logger, cfg RelayConfig) *Relay {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &Relay{tx: tx, repo: repo, pub: pub, registry: registry, logger: logger, cfg: cfg}
}

func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("outbox relay cycle failed", "err", err)
			}
		}
	}
}

// RunOnce relays one batch. Per-row publish and decode failures are recorded
// on the row and never abort the batch; only store errors are returned.
func (r *Relay) RunOnce(ctx context.Context) (RelayStats, error) {
	var stats RelayStats
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		stats = RelayStats{}
		pending, err := r.repo.FetchPending(ctx, r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch pending: %w", err)
		}
		for _, e := range pending {
			if err := r.relay(ctx, e, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	if stats.Published+stats.Failed+stats.DeadLettered > 0 {
		r.logger.Debug("outbox relay cycle",
			"published", stats.Published,
			"failed", stats.Failed,
			"dead_lettered", stats.DeadLettered,
		)
	}
	return stats, err
}

func (r *Relay) relay(ctx context.Context, e Event, stats *RelayStats) error {
	pubErr := r.publish(ctx, e)
	switch {
	case pubErr == nil:
		stats.Published++
		return r.repo.Delete(ctx, e.ID)
	case errors.Is(pubErr, apperr.ErrPoison):
		stats.DeadLettered++
		r.logger.Error("outbox event is poison, dead-lettering",
			"err", pubErr, "event_id", e.ID, "event_type", e.EventType)
		return r.repo.DeadLetter(ctx, e, pubErr.Error())
	}

	stats.Failed++
	attempts, err := r.repo.MarkFailed(ctx, e.ID, pubErr.Error())
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", e.ID, err)
	}
	if attempts < r.cfg.MaxAttempts {
		r.logger.Warn("outbox publish failed, will retry",
			"err", pubErr, "event_id", e.ID, "event_type", e.EventType, "attempts", attempts)
		return nil
	}
	stats.DeadLettered++
	e.Attempts = attempts
	r.logger.Error("outbox publish retries exhausted, dead-lettering",
		"err", pubErr, "event_id", e.ID, "event_type", e.EventType, "attempts", attempts)
	return r.repo.DeadLetter(ctx, e, pubErr.Error())
}

func (r *Relay) publish(ctx context.Context, e Event) error {
	msgCtx := otelx.ContextWithTraceContext(ctx, e.Traceparent, e.Tracestate)
	msgCtx, span := otel.Tracer("outbox").Start(msgCtx, "outbox.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination", e.Topic),
			attribute.String("event.type", e.EventType),
			attribute.String("event.id", e.ID),
		),
	)
	defer span.End()

	if _, err := r.registry.Decode(e.SchemaRef, e.Payload); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	value, err := events.Envelope{
		EventID:     e.ID,
		EventType:   e.EventType,
		AggregateID: e.AggregateID,
		SchemaRef:   e.SchemaRef,
		Payload:     e.Payload,
		Timestamp:   e.CreatedAt,
	}.Marshal()
	if err != nil {
		return apperr.Poison("envelope: %v", err)
	}

	headers := map[string]string{
		bus.HeaderEventID:   e.ID,
		bus.HeaderEventType: e.EventType,
		bus.HeaderSchemaRef: e.SchemaRef,
	}
	bus.InjectTrace(msgCtx, headers)

	if err := r.pub.Publish(ctx, bus.Message{
		Topic:   e.Topic,
		Key:     e.AggregateID,
		Value:   value,
		Headers: headers,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return err
	}
	return nil
}

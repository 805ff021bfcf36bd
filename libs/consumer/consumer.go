// Package consumer turns bus messages into typed event handler calls with
// dedupe, bounded retries and dead-lettering.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/bus"
	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/inbox"
)

// Handler applies one decoded event. It must be idempotent: the bus delivers
// at least once.
type Handler func(ctx context.Context, env events.Envelope, payload events.Payload) error

var errDuplicate = errors.New("event already processed")

type Consumer struct {
	name       string
	sub        bus.Subscriber
	registry   *events.Registry
	logger     *slog.Logger
	tx         db.Transactor
	inbox      inbox.Store
	dlq        bus.Publisher
	maxElapsed time.Duration

	handlers map[string]Handler
	topics   []string
}

type Option func(*Consumer)

// WithInbox records every applied event id in the same transaction as the
// handler's effect and skips ids already recorded.
func WithInbox(tx db.Transactor, store inbox.Store) Option {
	return func(c *Consumer) {
		c.tx = tx
		c.inbox = store
	}
}

// WithDeadLetter publishes unprocessable messages (poison, validation,
// not found) to "<topic>.dlq".
func WithDeadLetter(pub bus.Publisher) Option {
	return func(c *Consumer) { c.dlq = pub }
}

func WithMaxElapsed(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.maxElapsed = d
		}
	}
}

func New(name string, sub bus.Subscriber, registry *events.Registry, logger *slog.Logger, opts ...Option) *Consumer {
	c := &Consumer{
		name:       name,
		sub:        sub,
		registry:   registry,
		logger:     logger,
		maxElapsed: 30 * time.Second,
		handlers:   map[string]Handler{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle routes eventType to h and subscribes to the event's topic.
func (c *Consumer) Handle(eventType string, h Handler) {
	schema, ok := c.registry.ByType(eventType)
	if !ok {
		panic("consumer: unknown event type " + eventType)
	}
	c.handlers[eventType] = h
	for _, t := range c.topics {
		if t == schema.Topic {
			return
		}
	}
	c.topics = append(c.topics, schema.Topic)
}

func (c *Consumer) Topics() []string {
	return c.topics
}

// Run subscribes to every routed topic and blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, topic := range c.topics {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			c.logger.Info("consumer subscribed", "consumer", c.name, "topic", topic)
			if err := c.sub.Subscribe(ctx, topic, c.Dispatch); err != nil && ctx.Err() == nil {
				c.logger.Error("consumer stopped", "err", err, "consumer", c.name, "topic", topic)
			}
		}(topic)
	}
	wg.Wait()
}

// Dispatch handles one message. A nil return acknowledges it. Only
// non-retryable failures are dead-lettered; a retryable error that outlives
// the backoff window is returned so the message stays unacked.
func (c *Consumer) Dispatch(ctx context.Context, msg bus.Message) error {
	ctx, span := otel.Tracer("consumer").Start(bus.ExtractTrace(ctx, msg), "consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.consumer", c.name),
		),
	)
	defer span.End()

	env, err := events.UnmarshalEnvelope(msg.Value)
	if err != nil {
		return c.deadLetter(ctx, msg, err)
	}
	span.SetAttributes(
		attribute.String("event.id", env.EventID),
		attribute.String("event.type", env.EventType),
	)

	h, ok := c.handlers[env.EventType]
	if !ok {
		c.logger.DebugContext(ctx, "event ignored", "consumer", c.name, "event_type", env.EventType)
		return nil
	}
	payload, err := c.registry.DecodeEnvelope(env)
	if err != nil {
		return c.deadLetter(ctx, msg, err)
	}

	// A started handler is not interrupted by shutdown; retries are.
	work := context.WithoutCancel(ctx)
	op := func() (struct{}, error) {
		err := c.apply(work, env, payload, h)
		if errors.Is(err, errDuplicate) || (err != nil && !apperr.Retryable(err)) {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			c.logger.WarnContext(ctx, "event handler failed, retrying",
				"err", err, "consumer", c.name, "event_id", env.EventID, "event_type", env.EventType)
		}
		return struct{}{}, err
	}
	_, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.maxElapsed),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errDuplicate):
		c.logger.InfoContext(ctx, "duplicate event ignored",
			"consumer", c.name, "event_id", env.EventID, "event_type", env.EventType)
		return nil
	case ctx.Err() != nil:
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if apperr.Retryable(err) {
		// Unacked: the subscriber redelivers in place until the fault clears.
		c.logger.ErrorContext(ctx, "event handler still failing, leaving unacked",
			"err", err, "consumer", c.name, "event_id", env.EventID, "event_type", env.EventType)
		return err
	}
	return c.deadLetter(ctx, msg, err)
}

func (c *Consumer) apply(ctx context.Context, env events.Envelope, payload events.Payload, h Handler) error {
	if c.inbox == nil {
		return h(ctx, env, payload)
	}
	return c.tx.WithinTx(ctx, func(ctx context.Context) error {
		first, err := c.inbox.Record(ctx, c.name, env.EventID, env.EventType)
		if err != nil {
			return err
		}
		if !first {
			return errDuplicate
		}
		return h(ctx, env, payload)
	})
}

func (c *Consumer) deadLetter(ctx context.Context, msg bus.Message, cause error) error {
	c.logger.ErrorContext(ctx, "event dead-lettered",
		"err", cause,
		"consumer", c.name,
		"topic", msg.Topic,
		"event_id", msg.Header(bus.HeaderEventID),
	)
	if c.dlq == nil {
		return nil
	}
	headers := make(map[string]string, len(msg.Headers)+1)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[bus.HeaderError] = cause.Error()
	return c.dlq.Publish(ctx, bus.Message{
		Topic:   events.DeadLetterTopic(msg.Topic),
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
}

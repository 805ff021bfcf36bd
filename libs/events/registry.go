package events

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
)

// Payload is implemented by every event body.
type Payload interface {
	Validate() error
}

// Schema binds an event type to its topic, a versioned schema reference and
// the decoder for that reference.
type Schema struct {
	EventType string
	Topic     string
	Ref       string
	decode    func(raw []byte) (Payload, error)
}

// Define builds a schema whose payload decodes into T.
func Define[T Payload](eventType, topic, ref string) Schema {
	return Schema{
		EventType: eventType,
		Topic:     topic,
		Ref:       ref,
		decode: func(raw []byte) (Payload, error) {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

type Registry struct {
	byType map[string]Schema
	byRef  map[string]Schema
}

func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{byType: map[string]Schema{}, byRef: map[string]Schema{}}
	for _, s := range schemas {
		r.byType[s.EventType] = s
		r.byRef[s.Ref] = s
	}
	return r
}

func (r *Registry) ByType(eventType string) (Schema, bool) {
	s, ok := r.byType[eventType]
	return s, ok
}

// Encode validates and serializes payload for eventType.
func (r *Registry) Encode(eventType string, payload Payload) (Schema, []byte, error) {
	s, ok := r.byType[eventType]
	if !ok {
		return Schema{}, nil, apperr.Validation("unknown event type %q", eventType)
	}
	if err := payload.Validate(); err != nil {
		return Schema{}, nil, apperr.Validation("%s payload: %v", eventType, err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Schema{}, nil, apperr.Validation("%s payload: %v", eventType, err)
	}
	return s, raw, nil
}

// Decode resolves ref and returns the validated payload. Every failure is poison.
func (r *Registry) Decode(ref string, raw []byte) (Payload, error) {
	s, ok := r.byRef[ref]
	if !ok {
		return nil, apperr.Poison("unknown schema ref %q", ref)
	}
	p, err := s.decode(raw)
	if err != nil {
		return nil, apperr.Poison("decode %s: %v", ref, err)
	}
	if err := p.Validate(); err != nil {
		return nil, apperr.Poison("invalid %s: %v", ref, err)
	}
	return p, nil
}

// DecodeEnvelope decodes env.Payload, falling back to the event type when the
// schema ref is absent.
func (r *Registry) DecodeEnvelope(env Envelope) (Payload, error) {
	ref := env.SchemaRef
	if ref == "" {
		s, ok := r.byType[env.EventType]
		if !ok {
			return nil, apperr.Poison("unknown event type %q", env.EventType)
		}
		ref = s.Ref
	}
	return r.Decode(ref, env.Payload)
}

// As type-asserts a decoded payload.
func As[T Payload](p Payload) (T, error) {
	v, ok := p.(T)
	if !ok {
		var zero T
		return zero, apperr.Poison("payload is %T, want %T", p, zero)
	}
	return v, nil
}

// Default lists every contract exchanged by the services.
func Default() *Registry {
	return NewRegistry(
		Define[OrderCreatedPayload](OrderCreated, TopicOrders, "order.created.v1"),
		Define[OrderStatusChangedPayload](OrderStatusChanged, TopicOrderStatus, "order.status_changed.v1"),
		Define[OrderCompensationPayload](OrderCancelled, TopicOrderCancellations, "order.cancelled.v1"),
		Define[OrderCompensationPayload](OrderRefunded, TopicOrderCancellations, "order.refunded.v1"),
		Define[PaymentSucceededPayload](PaymentSuccess, TopicPaymentSuccess, "payment.succeeded.v1"),
		Define[PaymentFailedPayload](PaymentFailed, TopicPaymentFailed, "payment.failed.v1"),
		Define[PaymentRefundedPayload](PaymentRefunded, TopicPaymentRefunds, "payment.refunded.v1"),
		Define[InventoryChangedPayload](InventoryReserved, TopicInventory, "inventory.reserved.v1"),
		Define[InventoryChangedPayload](InventoryReleased, TopicInventory, "inventory.released.v1"),
		Define[InventoryChangedPayload](InventoryAdded, TopicInventory, "inventory.added.v1"),
		Define[InventoryRejectedPayload](InventoryRejected, TopicInventory, "inventory.rejected.v1"),
		Define[NotificationPayload](NotificationSent, TopicNotifications, "notification.sent.v1"),
		Define[NotificationPayload](NotificationFailed, TopicNotifications, "notification.failed.v1"),
	)
}

// NewEnvelope encodes payload into an envelope stamped with now.
func (r *Registry) NewEnvelope(eventID, aggregateID, eventType string, payload Payload) (Envelope, error) {
	schema, raw, err := r.Encode(eventType, payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:     eventID,
		EventType:   eventType,
		AggregateID: aggregateID,
		SchemaRef:   schema.Ref,
		Payload:     raw,
		Timestamp:   time.Now().UTC(),
	}, nil
}

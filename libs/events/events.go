// Package events defines the cross-service event contracts: topics, event
// types, payloads and the envelope carried on the bus.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
)

const (
	TopicOrders             = "orders"
	TopicOrderStatus        = "order-status-events"
	TopicOrderCancellations = "order-cancellations"
	TopicPaymentSuccess     = "payment-success"
	TopicPaymentFailed      = "payment-failed"
	TopicPaymentRefunds     = "payment-refunds"
	TopicInventory          = "inventory-events"
	TopicNotifications      = "notifications"
)

// DeadLetterTopic is where consumers park messages they cannot process.
func DeadLetterTopic(topic string) string {
	return topic + ".dlq"
}

const (
	AggregateOrder        = "Order"
	AggregateInventory    = "Inventory"
	AggregatePayment      = "Payment"
	AggregateNotification = "Notification"
)

const (
	OrderCreated       = "ORDER_CREATED"
	OrderStatusChanged = "ORDER_STATUS_CHANGED"
	OrderCancelled     = "ORDER_CANCELLED"
	OrderRefunded      = "ORDER_REFUNDED"

	PaymentSuccess  = "PAYMENT_SUCCESS"
	PaymentFailed   = "PAYMENT_FAILED"
	PaymentRefunded = "PAYMENT_REFUNDED"

	InventoryReserved = "INVENTORY_RESERVED"
	InventoryReleased = "INVENTORY_RELEASED"
	InventoryAdded    = "INVENTORY_ADDED"
	InventoryRejected = "INVENTORY_REJECTED"

	NotificationSent   = "NOTIFICATION_SENT"
	NotificationFailed = "NOTIFICATION_FAILED"
)

// Envelope is the message value published for every outbox row.
type Envelope struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	SchemaRef   string          `json:"schema_ref"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, apperr.Poison("envelope: %v", err)
	}
	if env.EventID == "" || env.EventType == "" {
		return Envelope{}, apperr.Poison("envelope missing event_id or event_type")
	}
	return env, nil
}

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

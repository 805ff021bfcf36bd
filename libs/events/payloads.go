package events

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OrderCreatedPayload struct {
	OrderID    string          `json:"orderId"`
	CustomerID string          `json:"customerId"`
	ProductID  string          `json:"productId"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func (p OrderCreatedPayload) Validate() error {
	return errors.Join(
		required("orderId", p.OrderID),
		required("customerId", p.CustomerID),
		required("productId", p.ProductID),
		positive("quantity", p.Quantity),
		nonNegative("amount", p.Amount),
	)
}

type OrderStatusChangedPayload struct {
	OrderID   string    `json:"orderId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	ChangedAt time.Time `json:"changedAt"`
}

func (p OrderStatusChangedPayload) Validate() error {
	return errors.Join(
		required("orderId", p.OrderID),
		required("newStatus", p.NewStatus),
	)
}

// OrderCompensationPayload is carried by ORDER_CANCELLED and ORDER_REFUNDED.
type OrderCompensationPayload struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason"`
}

func (p OrderCompensationPayload) Validate() error {
	return errors.Join(
		required("orderId", p.OrderID),
		required("productId", p.ProductID),
		positive("quantity", p.Quantity),
	)
}

type PaymentSucceededPayload struct {
	OrderID       string          `json:"orderId"`
	CustomerID    string          `json:"customerId"`
	PaymentID     string          `json:"paymentId"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transactionId"`
}

func (p PaymentSucceededPayload) Validate() error {
	return errors.Join(
		required("orderId", p.OrderID),
		required("customerId", p.CustomerID),
	)
}

type PaymentFailedPayload struct {
	OrderID    string          `json:"orderId"`
	CustomerID string          `json:"customerId"`
	PaymentID  string          `json:"paymentId"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
}

func (p PaymentFailedPayload) Validate() error {
	return required("orderId", p.OrderID)
}

type PaymentRefundedPayload struct {
	OrderID    string          `json:"orderId"`
	CustomerID string          `json:"customerId"`
	PaymentID  string          `json:"paymentId"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
}

func (p PaymentRefundedPayload) Validate() error {
	return required("orderId", p.OrderID)
}

// InventoryChangedPayload is carried by INVENTORY_RESERVED, _RELEASED and _ADDED.
type InventoryChangedPayload struct {
	ProductID string `json:"productId"`
	OrderID   string `json:"orderId,omitempty"`
	Quantity  int    `json:"quantity"`
	Remaining int    `json:"remaining"`
}

func (p InventoryChangedPayload) Validate() error {
	return errors.Join(
		required("productId", p.ProductID),
		positive("quantity", p.Quantity),
	)
}

type InventoryRejectedPayload struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Reason    string `json:"reason"`
}

func (p InventoryRejectedPayload) Validate() error {
	return errors.Join(
		required("orderId", p.OrderID),
		required("productId", p.ProductID),
	)
}

type NotificationPayload struct {
	NotificationID string `json:"notificationId"`
	OrderID        string `json:"orderId"`
	CustomerID     string `json:"customerId"`
	Channel        string `json:"channel"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
}

func (p NotificationPayload) Validate() error {
	return errors.Join(
		required("notificationId", p.NotificationID),
		required("orderId", p.OrderID),
	)
}

func positive(field string, v int) error {
	if v <= 0 {
		return errors.New(field + " must be positive")
	}
	return nil
}

func nonNegative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return errors.New(field + " must not be negative")
	}
	return nil
}

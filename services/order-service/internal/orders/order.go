package orders

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
)

type Status string

const (
	StatusCreated         Status = "CREATED"
	StatusPaid            Status = "PAID"
	StatusShipped         Status = "SHIPPED"
	StatusDelivered       Status = "DELIVERED"
	StatusRefundRequested Status = "REFUND_REQUESTED"
	StatusRefunded        Status = "REFUNDED"
	StatusCancelled       Status = "CANCELLED"
)

var (
	ErrNotFound          = fmt.Errorf("%w: order", apperr.ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("%w: invalid order transition", apperr.ErrValidation)
	ErrTerminalState     = fmt.Errorf("%w: order is in a terminal state", apperr.ErrConflict)
	ErrVersionConflict   = fmt.Errorf("%w: order was modified concurrently", apperr.ErrConflict)
)

var transitions = map[Status][]Status{
	StatusCreated:         {StatusPaid, StatusRefundRequested, StatusCancelled},
	StatusPaid:            {StatusShipped, StatusRefundRequested, StatusCancelled},
	StatusShipped:         {StatusDelivered},
	StatusRefundRequested: {StatusRefunded},
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusDelivered || s == StatusRefunded
}

func (s Status) CanTransitionTo(to Status) bool {
	return slices.Contains(transitions[s], to)
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusCreated, StatusPaid, StatusShipped, StatusDelivered, StatusRefundRequested, StatusRefunded, StatusCancelled:
		return s, nil
	}
	return "", apperr.Validation("unknown order status %q", raw)
}

type Order struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customerId"`
	ProductID      string          `json:"productId"`
	Quantity       int             `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	Status         Status          `json:"status"`
	TrackingNumber string          `json:"trackingNumber,omitempty"`
	CancelReason   string          `json:"cancelReason,omitempty"`
	RefundReason   string          `json:"refundReason,omitempty"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewOrder validates a placement and returns the order in CREATED.
func NewOrder(id, customerID, productID string, quantity int, price decimal.Decimal, now time.Time) (Order, error) {
	customerID = strings.TrimSpace(customerID)
	productID = strings.TrimSpace(productID)
	switch {
	case customerID == "":
		return Order{}, apperr.Validation("customer id is required")
	case productID == "":
		return Order{}, apperr.Validation("product id is required")
	case quantity <= 0:
		return Order{}, apperr.Validation("quantity must be positive")
	case price.IsNegative():
		return Order{}, apperr.Validation("price must not be negative")
	}
	return Order{
		ID:         id,
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   quantity,
		Price:      price.Round(2),
		Status:     StatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (o Order) Amount() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

func (o *Order) transition(to Status, now time.Time) error {
	switch {
	case o.Status.Terminal():
		return fmt.Errorf("%w: %s -> %s", ErrTerminalState, o.Status, to)
	case !o.Status.CanTransitionTo(to):
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

func (o *Order) MarkPaid(now time.Time) error {
	return o.transition(StatusPaid, now)
}

// Cancel is only permitted before shipping.
func (o *Order) Cancel(reason string, now time.Time) error {
	if o.Status == StatusShipped || o.Status == StatusDelivered {
		return fmt.Errorf("%w: cannot cancel a %s order", ErrInvalidTransition, o.Status)
	}
	if err := o.transition(StatusCancelled, now); err != nil {
		return err
	}
	o.CancelReason = strings.TrimSpace(reason)
	return nil
}

func (o *Order) Ship(trackingNumber string, now time.Time) error {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return apperr.Validation("tracking number is required")
	}
	if err := o.transition(StatusShipped, now); err != nil {
		return err
	}
	o.TrackingNumber = trackingNumber
	return nil
}

func (o *Order) Deliver(now time.Time) error {
	return o.transition(StatusDelivered, now)
}

func (o *Order) RequestRefund(reason string, now time.Time) error {
	if err := o.transition(StatusRefundRequested, now); err != nil {
		return err
	}
	o.RefundReason = strings.TrimSpace(reason)
	return nil
}

func (o *Order) CompleteRefund(now time.Time) error {
	return o.transition(StatusRefunded, now)
}

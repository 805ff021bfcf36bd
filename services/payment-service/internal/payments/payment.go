package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusSuccess  Status = "SUCCESS"
	StatusFailed   Status = "FAILED"
	StatusRefunded Status = "REFUNDED"
	// StatusVoided marks an order cancelled before its payment existed.
	StatusVoided Status = "VOIDED"
)

var (
	ErrNotFound        = fmt.Errorf("%w: payment", apperr.ErrNotFound)
	ErrVersionConflict = fmt.Errorf("%w: payment was modified concurrently", apperr.ErrConflict)
	ErrInvalidState    = fmt.Errorf("%w: invalid payment transition", apperr.ErrValidation)
	// ErrChargeInFlight is returned when a refund races the charge it undoes.
	ErrChargeInFlight = fmt.Errorf("%w: charge still in flight", apperr.ErrTransient)
)

// Payment is keyed by order id: an order has at most one payment.
type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	CustomerID    string          `json:"customerId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        Status          `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	RefundID      string          `json:"refundId,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func NewPending(id, orderID, customerID string, amount decimal.Decimal, now time.Time) (Payment, error) {
	switch {
	case strings.TrimSpace(orderID) == "":
		return Payment{}, apperr.Validation("order id is required")
	case amount.IsNegative():
		return Payment{}, apperr.Validation("amount must not be negative")
	}
	return Payment{
		ID:         id,
		OrderID:    orderID,
		CustomerID: customerID,
		Amount:     amount,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func NewVoided(id, orderID, customerID, reason string, now time.Time) Payment {
	return Payment{
		ID:            id,
		OrderID:       orderID,
		CustomerID:    customerID,
		Amount:        decimal.Zero,
		Status:        StatusVoided,
		FailureReason: reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (p *Payment) Succeed(transactionID string, now time.Time) error {
	if p.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, p.Status, StatusSuccess)
	}
	p.Status = StatusSuccess
	p.TransactionID = transactionID
	p.UpdatedAt = now
	return nil
}

func (p *Payment) Fail(reason string, now time.Time) error {
	if p.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, p.Status, StatusFailed)
	}
	p.Status = StatusFailed
	p.FailureReason = reason
	p.UpdatedAt = now
	return nil
}

// CheckRefundable reports whether a refund would change p. A REFUNDED payment
// is unchanged, not an error.
func (p Payment) CheckRefundable() (bool, error) {
	switch p.Status {
	case StatusSuccess:
		return true, nil
	case StatusRefunded:
		return false, nil
	case StatusPending:
		return false, ErrChargeInFlight
	default:
		return false, fmt.Errorf("%w: nothing to refund for a %s payment", ErrInvalidState, p.Status)
	}
}

func (p *Payment) Refund(refundID string, now time.Time) (bool, error) {
	changed, err := p.CheckRefundable()
	if err != nil || !changed {
		return false, err
	}
	p.Status = StatusRefunded
	p.RefundID = refundID
	p.UpdatedAt = now
	return true, nil
}

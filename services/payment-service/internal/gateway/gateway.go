// Package gateway is the port to whatever actually moves money.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
)

// ErrDeclined is a definitive refusal. Any other error is treated as
// retryable by callers.
var ErrDeclined = fmt.Errorf("%w: payment declined", apperr.ErrValidation)

// DeclineError carries the provider's reason for a decline.
type DeclineError struct {
	Reason string
}

func (e *DeclineError) Error() string { return "payment declined: " + e.Reason }
func (e *DeclineError) Unwrap() error { return ErrDeclined }

func Declined(reason string) error {
	return &DeclineError{Reason: reason}
}

func DeclineReason(err error) string {
	var d *DeclineError
	if errors.As(err, &d) {
		return d.Reason
	}
	return err.Error()
}

type ChargeRequest struct {
	OrderID        string
	CustomerID     string
	Amount         decimal.Decimal
	IdempotencyKey string
}

type ChargeResult struct {
	TransactionID string
}

type RefundRequest struct {
	OrderID        string
	TransactionID  string
	Amount         decimal.Decimal
	IdempotencyKey string
}

type RefundResult struct {
	RefundID string
}

// Gateway implementations must honour IdempotencyKey: a retried call with the
// same key returns the first outcome.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}

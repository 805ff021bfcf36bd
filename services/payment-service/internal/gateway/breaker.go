package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
)

type breaker struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker trips after repeated gateway failures and then fails fast with
// a transient error. Declines count as successful calls.
func WithBreaker(next Gateway, name string, logger *slog.Logger) Gateway {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrDeclined)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("payment gateway breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breaker) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	return execute(b.cb, func() (ChargeResult, error) { return b.next.Charge(ctx, req) })
}

func (b *breaker) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	return execute(b.cb, func() (RefundResult, error) { return b.next.Refund(ctx, req) })
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return *new(T), fmt.Errorf("%w: payment gateway: %w", apperr.ErrTransient, err)
	}
	if err != nil {
		return *new(T), err
	}
	return res.(T), nil
}

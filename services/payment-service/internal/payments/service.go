package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
	"github.com/md-rashed-zaman/ordersaga/services/payment-service/internal/gateway"
)

type Repository interface {
	GetByOrder(ctx context.Context, orderID string) (Payment, bool, error)
	Insert(ctx context.Context, p Payment) error
	// Update writes p only if the stored version equals expectedVersion.
	Update(ctx context.Context, p Payment, expectedVersion int64) error
}

type EventRecorder interface {
	Record(ctx context.Context, aggregateType, aggregateID, eventType string, payload events.Payload) (outbox.Event, error)
}

// Service charges orders and refunds them on compensation. The payment row,
// keyed by order id, is the idempotency record: no inbox is needed.
type Service struct {
	tx       db.Transactor
	repo     Repository
	recorder EventRecorder
	gateway  gateway.Gateway
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(tx db.Transactor, repo Repository, recorder EventRecorder, gw gateway.Gateway, logger *slog.Logger) *Service {
	return &Service{
		tx:       tx,
		repo:     repo,
		recorder: recorder,
		gateway:  gw,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) GetByOrder(ctx context.Context, orderID string) (Payment, error) {
	p, ok, err := s.repo.GetByOrder(ctx, orderID)
	if err != nil {
		return Payment{}, err
	}
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

// Charge pays for a placed order exactly once. The PENDING row is committed
// before the gateway call so a crash mid-charge resumes with the same
// idempotency key instead of charging twice.
func (s *Service) Charge(ctx context.Context, order events.OrderCreatedPayload) (Payment, error) {
	var pay Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, ok, err := s.repo.GetByOrder(ctx, order.OrderID)
		if err != nil {
			return err
		}
		if ok {
			pay = existing
			return nil
		}
		if pay, err = NewPending(uuid.NewString(), order.OrderID, order.CustomerID, order.Amount, s.now()); err != nil {
			return err
		}
		return s.repo.Insert(ctx, pay)
	})
	if err != nil {
		return Payment{}, err
	}
	if pay.Status != StatusPending {
		s.logger.InfoContext(ctx, "payment already settled", "order_id", pay.OrderID, "status", pay.Status)
		return pay, nil
	}

	res, chargeErr := s.gateway.Charge(ctx, gateway.ChargeRequest{
		OrderID:        pay.OrderID,
		CustomerID:     pay.CustomerID,
		Amount:         pay.Amount,
		IdempotencyKey: "charge-" + pay.OrderID,
	})
	if chargeErr != nil && !errors.Is(chargeErr, gateway.ErrDeclined) {
		return Payment{}, chargeErr
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.GetByOrder(ctx, pay.OrderID)
		if err != nil {
			return err
		}
		if cur.Status != StatusPending {
			pay = cur
			return nil
		}
		version := cur.Version
		if chargeErr != nil {
			err = cur.Fail(gateway.DeclineReason(chargeErr), s.now())
		} else {
			err = cur.Succeed(res.TransactionID, s.now())
		}
		if err != nil {
			return err
		}
		cur.Version = version + 1
		if err := s.repo.Update(ctx, cur, version); err != nil {
			return err
		}
		pay = cur
		if cur.Status == StatusSuccess {
			return s.record(ctx, cur, events.PaymentSuccess, events.PaymentSucceededPayload{
				OrderID:       cur.OrderID,
				CustomerID:    cur.CustomerID,
				PaymentID:     cur.ID,
				Amount:        cur.Amount,
				TransactionID: cur.TransactionID,
			})
		}
		return s.record(ctx, cur, events.PaymentFailed, events.PaymentFailedPayload{
			OrderID:    cur.OrderID,
			CustomerID: cur.CustomerID,
			PaymentID:  cur.ID,
			Amount:     cur.Amount,
			Reason:     cur.FailureReason,
		})
	})
	if err != nil {
		return Payment{}, err
	}
	s.logger.InfoContext(ctx, "payment settled", "order_id", pay.OrderID, "status", pay.Status)
	return pay, nil
}

// RefundOrder undoes an order's payment. Orders with nothing to refund are
// no-ops; an order never charged gets a VOIDED tombstone so a late
// ORDER_CREATED is not charged.
func (s *Service) RefundOrder(ctx context.Context, orderID, customerID, reason string) (Payment, error) {
	var pay Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, ok, err := s.repo.GetByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !ok {
			pay = NewVoided(uuid.NewString(), orderID, customerID, reason, s.now())
			return s.repo.Insert(ctx, pay)
		}
		pay = cur
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	changed, err := pay.CheckRefundable()
	switch {
	case errors.Is(err, ErrChargeInFlight):
		return Payment{}, err
	case err != nil || !changed:
		s.logger.InfoContext(ctx, "nothing to refund", "order_id", orderID, "status", pay.Status)
		return pay, nil
	}

	res, err := s.gateway.Refund(ctx, gateway.RefundRequest{
		OrderID:        orderID,
		TransactionID:  pay.TransactionID,
		Amount:         pay.Amount,
		IdempotencyKey: "refund-" + orderID,
	})
	if err != nil {
		return Payment{}, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.GetByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		version := cur.Version
		changed, err := cur.Refund(res.RefundID, s.now())
		if err != nil || !changed {
			pay = cur
			return err
		}
		cur.Version = version + 1
		if err := s.repo.Update(ctx, cur, version); err != nil {
			return err
		}
		pay = cur
		return s.record(ctx, cur, events.PaymentRefunded, events.PaymentRefundedPayload{
			OrderID:    cur.OrderID,
			CustomerID: cur.CustomerID,
			PaymentID:  cur.ID,
			Amount:     cur.Amount,
			Reason:     reason,
		})
	})
	if err != nil {
		return Payment{}, err
	}
	s.logger.InfoContext(ctx, "payment refunded", "order_id", orderID, "refund_id", pay.RefundID)
	return pay, nil
}

func (s *Service) record(ctx context.Context, p Payment, eventType string, payload events.Payload) error {
	_, err := s.recorder.Record(ctx, events.AggregatePayment, p.OrderID, eventType, payload)
	return err
}

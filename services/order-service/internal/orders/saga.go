package orders

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/consumer"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
)

// Register wires the order side of the saga: payment outcomes and inventory
// rejections drive the order state machine.
func (s *Service) Register(c *consumer.Consumer) {
	c.Handle(events.PaymentSuccess, s.onPaymentSucceeded)
	c.Handle(events.PaymentFailed, s.onPaymentFailed)
	c.Handle(events.InventoryRejected, s.onInventoryRejected)
}

func (s *Service) onPaymentSucceeded(ctx context.Context, _ events.Envelope, payload events.Payload) error {
	p, err := events.As[events.PaymentSucceededPayload](payload)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, p.OrderID, func(o *Order, now time.Time) ([]pendingEvent, error) {
		if o.Status != StatusCreated {
			s.logger.InfoContext(ctx, "payment success ignored", "order_id", o.ID, "status", o.Status)
			return nil, errUnchanged
		}
		return nil, o.MarkPaid(now)
	})
	return err
}

func (s *Service) onPaymentFailed(ctx context.Context, _ events.Envelope, payload events.Payload) error {
	p, err := events.As[events.PaymentFailedPayload](payload)
	if err != nil {
		return err
	}
	return s.compensate(ctx, p.OrderID, "payment failed: "+p.Reason)
}

func (s *Service) onInventoryRejected(ctx context.Context, _ events.Envelope, payload events.Payload) error {
	p, err := events.As[events.InventoryRejectedPayload](payload)
	if err != nil {
		return err
	}
	return s.compensate(ctx, p.OrderID, "inventory rejected: "+p.Reason)
}

// compensate cancels an order that has not shipped yet. Orders already past
// that point, or already cancelled, are left alone.
func (s *Service) compensate(ctx context.Context, id, reason string) error {
	_, err := s.mutate(ctx, id, func(o *Order, now time.Time) ([]pendingEvent, error) {
		if o.Status != StatusCreated && o.Status != StatusPaid {
			s.logger.InfoContext(ctx, "compensation skipped", "order_id", o.ID, "status", o.Status, "reason", reason)
			return nil, errUnchanged
		}
		if err := o.Cancel(reason, now); err != nil {
			return nil, err
		}
		return []pendingEvent{{events.OrderCancelled, compensation(*o, o.CancelReason)}}, nil
	})
	return err
}

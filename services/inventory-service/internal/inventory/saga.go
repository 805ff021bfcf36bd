package inventory

import (
	"context"

	"github.com/md-rashed-zaman/ordersaga/libs/consumer"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
)

// Register subscribes inventory to order placement and to both order
// compensations.
func (s *Service) Register(c *consumer.Consumer) {
	c.Handle(events.OrderCreated, s.onOrderCreated)
	c.Handle(events.OrderCancelled, s.onOrderCompensation)
	c.Handle(events.OrderRefunded, s.onOrderCompensation)
}

func (s *Service) onOrderCreated(ctx context.Context, _ events.Envelope, payload events.Payload) error {
	p, err := events.As[events.OrderCreatedPayload](payload)
	if err != nil {
		return err
	}
	_, err = s.ReserveForOrder(ctx, p.OrderID, p.ProductID, p.Quantity)
	return err
}

func (s *Service) onOrderCompensation(ctx context.Context, _ events.Envelope, payload events.Payload) error {
	p, err := events.As[events.OrderCompensationPayload](payload)
	if err != nil {
		return err
	}
	_, err = s.Release(ctx, p.OrderID, p.ProductID, p.Quantity)
	return err
}

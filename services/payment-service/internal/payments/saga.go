package payments

import (
	"context"

	"github.com/md-rashed-zaman/ordersaga/libs/consumer"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
)

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
	_, err = s.Charge(ctx, p)
	return err
}

func (s *Service) onOrderCompensation(ctx context.Context, _ events.Envelope, payload events.Payload) error {
	p, err := events.As[events.OrderCompensationPayload](payload)
	if err != nil {
		return err
	}
	_, err = s.RefundOrder(ctx, p.OrderID, p.CustomerID, p.Reason)
	return err
}

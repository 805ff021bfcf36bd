package notify

import (
	"context"

	"github.com/md-rashed-zaman/ordersaga/libs/consumer"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
)

func (s *Service) Register(c *consumer.Consumer) {
	c.Handle(events.PaymentSuccess, s.onPaymentSuccess)
	c.Handle(events.PaymentFailed, s.onPaymentFailed)
}

func (s *Service) onPaymentSuccess(ctx context.Context, env events.Envelope, payload events.Payload) error {
	p, err := events.As[events.PaymentSucceededPayload](payload)
	if err != nil {
		return err
	}
	subject, body := orderConfirmation(p.OrderID, p.CustomerID)
	_, err = s.Notify(ctx, Request{OrderID: p.OrderID, CustomerID: p.CustomerID, Subject: subject, Body: body, SourceEvent: env.EventType})
	return err
}

func (s *Service) onPaymentFailed(ctx context.Context, env events.Envelope, payload events.Payload) error {
	p, err := events.As[events.PaymentFailedPayload](payload)
	if err != nil {
		return err
	}
	subject, body := paymentFailure(p.OrderID, p.CustomerID, p.Reason)
	_, err = s.Notify(ctx, Request{OrderID: p.OrderID, CustomerID: p.CustomerID, Subject: subject, Body: body, SourceEvent: env.EventType})
	return err
}

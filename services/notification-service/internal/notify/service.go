package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/email"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type Repository interface {
	Insert(ctx context.Context, n Notification) error
	// List returns newest first.
	List(ctx context.Context, f Filter) ([]Notification, error)
}

type EventRecorder interface {
	Record(ctx context.Context, aggregateType, aggregateID, eventType string, payload events.Payload) (outbox.Event, error)
}

type Config struct {
	// EmailEnabled false records SIMULATED entries without touching SMTP.
	EmailEnabled bool
	EmailDomain  string
}

type Service struct {
	tx       db.Transactor
	repo     Repository
	recorder EventRecorder
	sender   email.Sender
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(tx db.Transactor, repo Repository, recorder EventRecorder, sender email.Sender, cfg Config, logger *slog.Logger) *Service {
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = "example.com"
	}
	return &Service{
		tx:       tx,
		repo:     repo,
		recorder: recorder,
		sender:   sender,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type Request struct {
	OrderID     string
	CustomerID  string
	Subject     string
	Body        string
	SourceEvent string
}

// Notify delivers one email and appends it to the history together with its
// NOTIFICATION_SENT or NOTIFICATION_FAILED event. A delivery failure is
// recorded, not returned.
func (s *Service) Notify(ctx context.Context, req Request) (Notification, error) {
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.CustomerID) == "" {
		return Notification{}, fmt.Errorf("%w: orderId and customerId are required", ErrInvalid)
	}
	n := Notification{
		ID:          uuid.NewString(),
		OrderID:     req.OrderID,
		CustomerID:  req.CustomerID,
		Channel:     ChannelEmail,
		Recipient:   req.CustomerID + "@" + s.cfg.EmailDomain,
		Subject:     req.Subject,
		Message:     req.Body,
		Status:      StatusSent,
		SourceEvent: req.SourceEvent,
		CreatedAt:   s.now(),
	}

	if !s.cfg.EmailEnabled {
		n.Status = StatusSimulated
		s.logger.InfoContext(ctx, "email simulated", "order_id", n.OrderID, "recipient", n.Recipient)
	} else if err := s.sender.Send(ctx, email.Message{To: n.Recipient, Subject: n.Subject, Body: n.Message}); err != nil {
		n.Status = StatusFailed
		n.Reason = err.Error()
		s.logger.ErrorContext(ctx, "email send failed", "err", err, "order_id", n.OrderID, "recipient", n.Recipient)
	}

	eventType := events.NotificationSent
	if n.Status == StatusFailed {
		eventType = events.NotificationFailed
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, n); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, events.AggregateNotification, n.OrderID, eventType, events.NotificationPayload{
			NotificationID: n.ID,
			OrderID:        n.OrderID,
			CustomerID:     n.CustomerID,
			Channel:        n.Channel,
			Status:         string(n.Status),
			Reason:         n.Reason,
		})
		return err
	})
	if err != nil {
		return Notification{}, err
	}
	s.logger.InfoContext(ctx, "notification recorded", "order_id", n.OrderID, "status", n.Status)
	return n, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Notification, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	f.Limit = min(f.Limit, maxListLimit)
	return s.repo.List(ctx, f)
}

// SendConfirmation sends the order confirmation again on operator request.
func (s *Service) SendConfirmation(ctx context.Context, orderID, customerID string) (Notification, error) {
	subject, body := orderConfirmation(orderID, customerID)
	return s.Notify(ctx, Request{OrderID: orderID, CustomerID: customerID, Subject: subject, Body: body, SourceEvent: "MANUAL"})
}

func orderConfirmation(orderID, customerID string) (string, string) {
	subject := "Order Confirmation - Order #" + orderID
	body := fmt.Sprintf("Dear %s,\n\nYour order #%s has been placed successfully!\n\n"+
		"Order Details:\n- Order ID: %s\n- Customer: %s\n\n"+
		"Thank you for your purchase!\n\nBest regards,\nOrder Management System",
		customerID, orderID, orderID, customerID)
	return subject, body
}

func paymentFailure(orderID, customerID, reason string) (string, string) {
	subject := "Payment Failed - Order #" + orderID
	body := fmt.Sprintf("Dear %s,\n\nWe could not process the payment for order #%s (%s). "+
		"The order has been cancelled and no amount was charged.\n\n"+
		"Best regards,\nOrder Management System",
		customerID, orderID, reason)
	return subject, body
}

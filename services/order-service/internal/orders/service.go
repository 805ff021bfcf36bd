package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
)

type Repository interface {
	Insert(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	// Update writes o only if the stored version still equals expectedVersion.
	Update(ctx context.Context, o Order, expectedVersion int64) error
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	List(ctx context.Context, limit int) ([]Order, error)
}

// Cache is a read-through cache for single orders.
type Cache interface {
	Get(ctx context.Context, id string) (Order, bool)
	Set(ctx context.Context, o Order)
	Invalidate(ctx context.Context, id string)
}

type NoCache struct{}

func (NoCache) Get(context.Context, string) (Order, bool) { return Order{}, false }
func (NoCache) Set(context.Context, Order)                {}
func (NoCache) Invalidate(context.Context, string)        {}

type EventRecorder interface {
	Record(ctx context.Context, aggregateType, aggregateID, eventType string, payload events.Payload) (outbox.Event, error)
}

type PlaceOrder struct {
	CustomerID string
	ProductID  string
	Quantity   int
	Price      decimal.Decimal
}

type Service struct {
	tx       db.Transactor
	repo     Repository
	recorder EventRecorder
	cache    Cache
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(tx db.Transactor, repo Repository, recorder EventRecorder, cache Cache, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NoCache{}
	}
	return &Service{
		tx:       tx,
		repo:     repo,
		recorder: recorder,
		cache:    cache,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Place stores a CREATED order and its ORDER_CREATED event atomically.
func (s *Service) Place(ctx context.Context, cmd PlaceOrder) (Order, error) {
	o, err := NewOrder(uuid.NewString(), cmd.CustomerID, cmd.ProductID, cmd.Quantity, cmd.Price, s.now())
	if err != nil {
		return Order{}, err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, o); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, events.AggregateOrder, o.ID, events.OrderCreated, events.OrderCreatedPayload{
			OrderID:    o.ID,
			CustomerID: o.CustomerID,
			ProductID:  o.ProductID,
			Quantity:   o.Quantity,
			Price:      o.Price,
			Amount:     o.Amount(),
			Status:     string(o.Status),
			CreatedAt:  o.CreatedAt,
		})
		return err
	})
	if err != nil {
		return Order{}, err
	}
	s.logger.InfoContext(ctx, "order placed", "order_id", o.ID, "customer_id", o.CustomerID, "product_id", o.ProductID)
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	if o, ok := s.cache.Get(ctx, id); ok {
		return o, nil
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	s.cache.Set(ctx, o)
	return o, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

func (s *Service) ListAll(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	return s.repo.List(ctx, limit)
}

func (s *Service) Cancel(ctx context.Context, id, reason string) (Order, error) {
	return s.mutate(ctx, id, func(o *Order, now time.Time) ([]pendingEvent, error) {
		if err := o.Cancel(reason, now); err != nil {
			return nil, err
		}
		return []pendingEvent{{events.OrderCancelled, compensation(*o, o.CancelReason)}}, nil
	})
}

func (s *Service) Ship(ctx context.Context, id, trackingNumber string) (Order, error) {
	return s.mutate(ctx, id, func(o *Order, now time.Time) ([]pendingEvent, error) {
		return nil, o.Ship(trackingNumber, now)
	})
}

func (s *Service) Deliver(ctx context.Context, id string) (Order, error) {
	return s.mutate(ctx, id, func(o *Order, now time.Time) ([]pendingEvent, error) {
		return nil, o.Deliver(now)
	})
}

func (s *Service) RequestRefund(ctx context.Context, id, reason string) (Order, error) {
	return s.mutate(ctx, id, func(o *Order, now time.Time) ([]pendingEvent, error) {
		return nil, o.RequestRefund(reason, now)
	})
}

// ProcessRefund completes a requested refund and triggers the same
// compensations as a cancellation.
func (s *Service) ProcessRefund(ctx context.Context, id string) (Order, error) {
	return s.mutate(ctx, id, func(o *Order, now time.Time) ([]pendingEvent, error) {
		if err := o.CompleteRefund(now); err != nil {
			return nil, err
		}
		return []pendingEvent{{events.OrderRefunded, compensation(*o, o.RefundReason)}}, nil
	})
}

// UpdateStatus is the administrative transition; it applies the same rules
// and emits the same events as the dedicated commands.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (Order, error) {
	switch to {
	case StatusCancelled:
		return s.Cancel(ctx, id, "status update")
	case StatusRefunded:
		return s.ProcessRefund(ctx, id)
	}
	return s.mutate(ctx, id, func(o *Order, now time.Time) ([]pendingEvent, error) {
		return nil, o.transition(to, now)
	})
}

type pendingEvent struct {
	eventType string
	payload   events.Payload
}

// errUnchanged lets a mutation decline without writing anything.
var errUnchanged = errors.New("order unchanged")

// mutate loads the order, applies fn, and persists the result with a version
// check. ORDER_STATUS_CHANGED and fn's events are recorded in the same tx.
func (s *Service) mutate(ctx context.Context, id string, fn func(o *Order, now time.Time) ([]pendingEvent, error)) (Order, error) {
	var out Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		from, version := o.Status, o.Version

		extra, err := fn(&o, s.now())
		if err != nil {
			out = o
			return err
		}
		o.Version = version + 1
		if err := s.repo.Update(ctx, o, version); err != nil {
			return err
		}

		pending := append([]pendingEvent{{events.OrderStatusChanged, events.OrderStatusChangedPayload{
			OrderID:   o.ID,
			OldStatus: string(from),
			NewStatus: string(o.Status),
			ChangedAt: o.UpdatedAt,
		}}}, extra...)
		for _, e := range pending {
			if _, err := s.recorder.Record(ctx, events.AggregateOrder, o.ID, e.eventType, e.payload); err != nil {
				return err
			}
		}
		// A saga handler's tx commits only when the consumer's inbox tx does.
		db.AfterCommit(ctx, func() { s.cache.Invalidate(context.WithoutCancel(ctx), id) })
		out = o
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return out, nil
	}
	if err != nil {
		return Order{}, err
	}
	s.logger.InfoContext(ctx, "order status changed", "order_id", out.ID, "status", out.Status, "version", out.Version)
	return out, nil
}

func compensation(o Order, reason string) events.OrderCompensationPayload {
	return events.OrderCompensationPayload{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		Reason:     reason,
	}
}

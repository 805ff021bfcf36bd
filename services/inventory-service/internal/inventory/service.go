package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
)

type Repository interface {
	GetItem(ctx context.Context, productID string) (Item, error)
	InsertItem(ctx context.Context, it Item) error
	// UpdateItem writes it only if the stored version equals expectedVersion.
	UpdateItem(ctx context.Context, it Item, expectedVersion int64) error
	GetReservation(ctx context.Context, orderID string) (Reservation, bool, error)
	SaveReservation(ctx context.Context, r Reservation) error
}

type EventRecorder interface {
	Record(ctx context.Context, aggregateType, aggregateID, eventType string, payload events.Payload) (outbox.Event, error)
}

type Service struct {
	tx       db.Transactor
	repo     Repository
	recorder EventRecorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(tx db.Transactor, repo Repository, recorder EventRecorder, logger *slog.Logger) *Service {
	return &Service{
		tx:       tx,
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Get(ctx context.Context, productID string) (Item, error) {
	return s.repo.GetItem(ctx, productID)
}

// AddStock restocks a product, creating it when unknown.
func (s *Service) AddStock(ctx context.Context, productID string, qty int) (Item, error) {
	var out Item
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		it, err := s.repo.GetItem(ctx, productID)
		created := errors.Is(err, ErrNotFound)
		switch {
		case created:
			if it, err = NewItem(productID, s.now()); err != nil {
				return err
			}
		case err != nil:
			return err
		}
		version := it.Version
		if err := it.Add(qty, s.now()); err != nil {
			return err
		}
		if created {
			err = s.repo.InsertItem(ctx, it)
		} else {
			it.Version = version + 1
			err = s.repo.UpdateItem(ctx, it, version)
		}
		if err != nil {
			return err
		}
		out = it
		return s.record(ctx, events.InventoryAdded, it.ProductID, events.InventoryChangedPayload{
			ProductID: it.ProductID,
			Quantity:  qty,
			Remaining: it.Quantity,
		})
	})
	if err != nil {
		return Item{}, err
	}
	s.logger.InfoContext(ctx, "stock added", "product_id", out.ProductID, "quantity", qty, "remaining", out.Quantity)
	return out, nil
}

// Deduct removes stock outside any order, for manual adjustments.
func (s *Service) Deduct(ctx context.Context, productID string, qty int) (Item, error) {
	var out Item
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		it, err := s.deduct(ctx, productID, qty)
		if err != nil {
			return err
		}
		out = it
		return s.record(ctx, events.InventoryReserved, it.ProductID, events.InventoryChangedPayload{
			ProductID: it.ProductID,
			Quantity:  qty,
			Remaining: it.Quantity,
		})
	})
	return out, err
}

func (s *Service) deduct(ctx context.Context, productID string, qty int) (Item, error) {
	it, err := s.repo.GetItem(ctx, productID)
	if err != nil {
		return Item{}, err
	}
	version := it.Version
	if err := it.Deduct(qty, s.now()); err != nil {
		// it still holds the stored quantity.
		return it, err
	}
	it.Version = version + 1
	if err := s.repo.UpdateItem(ctx, it, version); err != nil {
		return Item{}, err
	}
	return it, nil
}

// ReserveForOrder deducts an order's stock once. Insufficient stock or an
// unknown product is recorded as a rejection rather than failing, so the
// order side can compensate.
func (s *Service) ReserveForOrder(ctx context.Context, orderID, productID string, qty int) (Reservation, error) {
	var out Reservation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if r, ok, err := s.repo.GetReservation(ctx, orderID); err != nil {
			return err
		} else if ok {
			s.logger.InfoContext(ctx, "reservation already settled", "order_id", orderID, "status", r.Status)
			out = r
			return nil
		}

		now := s.now()
		r := Reservation{OrderID: orderID, ProductID: productID, Quantity: qty, CreatedAt: now, UpdatedAt: now}
		it, err := s.deduct(ctx, productID, qty)
		switch {
		case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrNotFound):
			r.Status = ReservationRejected
			r.Reason = err.Error()
			if err := s.repo.SaveReservation(ctx, r); err != nil {
				return err
			}
			out = r
			return s.record(ctx, events.InventoryRejected, productID, events.InventoryRejectedPayload{
				OrderID:   orderID,
				ProductID: productID,
				Requested: qty,
				Available: it.Quantity,
				Reason:    rejectionReason(err),
			})
		case err != nil:
			return err
		}

		r.Status = ReservationReserved
		if err := s.repo.SaveReservation(ctx, r); err != nil {
			return err
		}
		out = r
		return s.record(ctx, events.InventoryReserved, productID, events.InventoryChangedPayload{
			ProductID: productID,
			OrderID:   orderID,
			Quantity:  qty,
			Remaining: it.Quantity,
		})
	})
	if err != nil {
		return Reservation{}, err
	}
	s.logger.InfoContext(ctx, "reservation settled", "order_id", orderID, "product_id", productID, "status", out.Status)
	return out, nil
}

// Release gives an order's reserved stock back. Releasing an order that was
// never reserved writes a RELEASED tombstone so a late ORDER_CREATED does not
// deduct.
func (s *Service) Release(ctx context.Context, orderID, productID string, qty int) (Reservation, error) {
	var out Reservation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, ok, err := s.repo.GetReservation(ctx, orderID)
		if err != nil {
			return err
		}
		now := s.now()
		if !ok {
			out = Reservation{OrderID: orderID, ProductID: productID, Quantity: qty, Status: ReservationReleased,
				Reason: "released before reservation", CreatedAt: now, UpdatedAt: now}
			return s.repo.SaveReservation(ctx, out)
		}
		if r.Status != ReservationReserved {
			s.logger.InfoContext(ctx, "release skipped", "order_id", orderID, "status", r.Status)
			out = r
			return nil
		}

		it, err := s.repo.GetItem(ctx, r.ProductID)
		if err != nil {
			return err
		}
		version := it.Version
		if err := it.Restore(r.Quantity, now); err != nil {
			return err
		}
		it.Version = version + 1
		if err := s.repo.UpdateItem(ctx, it, version); err != nil {
			return err
		}
		r.Status = ReservationReleased
		r.UpdatedAt = now
		if err := s.repo.SaveReservation(ctx, r); err != nil {
			return err
		}
		out = r
		return s.record(ctx, events.InventoryReleased, r.ProductID, events.InventoryChangedPayload{
			ProductID: r.ProductID,
			OrderID:   orderID,
			Quantity:  r.Quantity,
			Remaining: it.Quantity,
		})
	})
	if err != nil {
		return Reservation{}, err
	}
	s.logger.InfoContext(ctx, "reservation released", "order_id", orderID, "status", out.Status)
	return out, nil
}

func (s *Service) record(ctx context.Context, eventType, productID string, payload events.Payload) error {
	_, err := s.recorder.Record(ctx, events.AggregateInventory, productID, eventType, payload)
	return err
}

func rejectionReason(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "unknown product"
	}
	return "insufficient stock"
}

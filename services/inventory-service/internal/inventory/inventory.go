package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
)

var (
	ErrNotFound          = fmt.Errorf("%w: product", apperr.ErrNotFound)
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", apperr.ErrValidation)
	ErrVersionConflict   = fmt.Errorf("%w: inventory was modified concurrently", apperr.ErrConflict)
)

// Item is the stock level of one product. Quantity never drops below zero.
type Item struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewItem(productID string, now time.Time) (Item, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Item{}, apperr.Validation("product id is required")
	}
	return Item{ProductID: productID, UpdatedAt: now}, nil
}

func (i *Item) Deduct(qty int, now time.Time) error {
	if err := checkQuantity(qty); err != nil {
		return err
	}
	if i.Quantity < qty {
		return fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficientStock, i.ProductID, i.Quantity, qty)
	}
	i.Quantity -= qty
	i.UpdatedAt = now
	return nil
}

func (i *Item) Restore(qty int, now time.Time) error {
	return i.Add(qty, now)
}

func (i *Item) Add(qty int, now time.Time) error {
	if err := checkQuantity(qty); err != nil {
		return err
	}
	i.Quantity += qty
	i.UpdatedAt = now
	return nil
}

func checkQuantity(qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity must be positive")
	}
	return nil
}

type ReservationStatus string

const (
	ReservationReserved ReservationStatus = "RESERVED"
	ReservationReleased ReservationStatus = "RELEASED"
	ReservationRejected ReservationStatus = "REJECTED"
)

// Reservation records what happened to an order's stock. It is keyed by order
// id, which makes reserve and release idempotent.
type Reservation struct {
	OrderID   string            `json:"orderId"`
	ProductID string            `json:"productId"`
	Quantity  int               `json:"quantity"`
	Status    ReservationStatus `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

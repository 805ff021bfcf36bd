package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	notificationapp "github.com/md-rashed-zaman/ordersaga/services/notification-service/app"
	orderapp "github.com/md-rashed-zaman/ordersaga/services/order-service/app"
	paymentapp "github.com/md-rashed-zaman/ordersaga/services/payment-service/app"
)

type Scenario struct {
	ProductID    string
	InitialStock int
	CustomerID   string
	Orders       int
	Quantity     int
	Price        decimal.Decimal
	// Cancel cancels every order once its payment settled.
	Cancel bool
	// CancelEarly cancels every order right after placing it, racing the
	// charge and the stock reservation.
	CancelEarly bool
	Timeout     time.Duration
}

type OrderReport struct {
	OrderID       string `json:"orderId"`
	OrderStatus   string `json:"orderStatus"`
	PaymentStatus string `json:"paymentStatus"`
	Notifications int    `json:"notifications"`
}

type Report struct {
	ProductID  string        `json:"productId"`
	StockStart int           `json:"stockStart"`
	StockEnd   int           `json:"stockEnd"`
	Orders     []OrderReport `json:"orders"`
}

var errTimeout = errors.New("saga did not settle in time")

// Run seeds stock, places the orders and waits for every saga to settle.
func (c *Cluster) Run(ctx context.Context, s Scenario) (Report, error) {
	if _, err := c.Inventory.Inventory.AddStock(ctx, s.ProductID, s.InitialStock); err != nil {
		return Report{}, fmt.Errorf("seed stock: %w", err)
	}

	ids := make([]string, 0, s.Orders)
	for range s.Orders {
		o, err := c.Orders.Orders.Place(ctx, orderapp.PlaceOrder{
			CustomerID: s.CustomerID,
			ProductID:  s.ProductID,
			Quantity:   s.Quantity,
			Price:      s.Price,
		})
		if err != nil {
			return Report{}, fmt.Errorf("place order: %w", err)
		}
		ids = append(ids, o.ID)
		if s.CancelEarly {
			if _, err := c.Orders.Orders.Cancel(ctx, o.ID, "customer request"); err != nil {
				return Report{}, fmt.Errorf("cancel order %s: %w", o.ID, err)
			}
		}
	}
	if s.CancelEarly {
		if !WaitFor(ctx, s.Timeout, func() bool { return c.allCancelled(ctx, ids) && c.stockSettled(ctx, s, ids) }) {
			return c.report(ctx, s, ids), errTimeout
		}
		return c.report(ctx, s, ids), nil
	}
	if !WaitFor(ctx, s.Timeout, func() bool { return c.allSettled(ctx, ids) && c.stockSettled(ctx, s, ids) }) {
		return c.report(ctx, s, ids), errTimeout
	}

	if s.Cancel {
		for _, id := range ids {
			o, err := c.Orders.Orders.Get(ctx, id)
			if err != nil {
				return Report{}, err
			}
			if o.Status == orderapp.StatusCancelled {
				continue
			}
			if _, err := c.Orders.Orders.Cancel(ctx, id, "customer request"); err != nil {
				return Report{}, fmt.Errorf("cancel order %s: %w", id, err)
			}
		}
		if !WaitFor(ctx, s.Timeout, func() bool { return c.allCancelled(ctx, ids) && c.stockSettled(ctx, s, ids) }) {
			return c.report(ctx, s, ids), errTimeout
		}
	}
	return c.report(ctx, s, ids), nil
}

func (c *Cluster) paymentStatus(ctx context.Context, orderID string) paymentapp.Status {
	p, err := c.Payments.Payments.GetByOrder(ctx, orderID)
	if err != nil {
		return ""
	}
	return p.Status
}

func (c *Cluster) notifications(ctx context.Context, orderID string) []notificationapp.Notification {
	list, _ := c.Notifications.Notifications.List(ctx, notificationapp.Filter{OrderID: orderID})
	return list
}

// allSettled holds once every order reached a state its payment agrees with
// and the customer heard about every charge attempt.
func (c *Cluster) allSettled(ctx context.Context, ids []string) bool {
	undone := []paymentapp.Status{paymentapp.StatusFailed, paymentapp.StatusRefunded, paymentapp.StatusVoided}
	for _, id := range ids {
		o, err := c.Orders.Orders.Get(ctx, id)
		if err != nil {
			return false
		}
		ps := c.paymentStatus(ctx, id)
		switch o.Status {
		case orderapp.StatusPaid:
			if ps != paymentapp.StatusSuccess {
				return false
			}
		case orderapp.StatusCancelled:
			if !slices.Contains(undone, ps) {
				return false
			}
		default:
			return false
		}
		if ps != paymentapp.StatusVoided && len(c.notifications(ctx, id)) == 0 {
			return false
		}
	}
	return true
}

func (c *Cluster) allCancelled(ctx context.Context, ids []string) bool {
	for _, id := range ids {
		o, err := c.Orders.Orders.Get(ctx, id)
		if err != nil || o.Status != orderapp.StatusCancelled {
			return false
		}
	}
	return c.allSettled(ctx, ids)
}

// stockSettled holds once stock reflects exactly the orders still PAID.
func (c *Cluster) stockSettled(ctx context.Context, s Scenario, ids []string) bool {
	want := s.InitialStock
	for _, id := range ids {
		if o, err := c.Orders.Orders.Get(ctx, id); err == nil && o.Status == orderapp.StatusPaid {
			want -= s.Quantity
		}
	}
	it, err := c.Inventory.Inventory.Get(ctx, s.ProductID)
	return err == nil && it.Quantity == want
}

func (c *Cluster) report(ctx context.Context, s Scenario, ids []string) Report {
	r := Report{ProductID: s.ProductID, StockStart: s.InitialStock}
	if it, err := c.Inventory.Inventory.Get(ctx, s.ProductID); err == nil {
		r.StockEnd = it.Quantity
	}
	for _, id := range ids {
		or := OrderReport{OrderID: id, PaymentStatus: string(c.paymentStatus(ctx, id)), Notifications: len(c.notifications(ctx, id))}
		if o, err := c.Orders.Orders.Get(ctx, id); err == nil {
			or.OrderStatus = string(o.Status)
		}
		r.Orders = append(r.Orders, or)
	}
	return r
}

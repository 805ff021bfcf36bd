package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
)

func newTestOrder(t *testing.T, status Status) Order {
	t.Helper()
	o, err := NewOrder("o-1", "C1", "SKU1", 5, decimal.RequireFromString("10.00"), time.Unix(0, 0).UTC())
	require.NoError(t, err)
	o.Status = status
	return o
}

func TestNewOrderValidates(t *testing.T) {
	now := time.Now()
	price := decimal.RequireFromString("10")
	cases := map[string]func() (Order, error){
		"customer": func() (Order, error) { return NewOrder("o", " ", "SKU1", 1, price, now) },
		"product":  func() (Order, error) { return NewOrder("o", "C1", "", 1, price, now) },
		"quantity": func() (Order, error) { return NewOrder("o", "C1", "SKU1", 0, price, now) },
		"price":    func() (Order, error) { return NewOrder("o", "C1", "SKU1", 1, decimal.NewFromInt(-1), now) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fn()
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestAmount(t *testing.T) {
	o := newTestOrder(t, StatusCreated)
	assert.Equal(t, "50.00", o.Amount().StringFixed(2))
}

func TestCancel(t *testing.T) {
	for _, from := range []Status{StatusCreated, StatusPaid} {
		o := newTestOrder(t, from)
		require.NoError(t, o.Cancel(" payment failed ", time.Now()))
		assert.Equal(t, StatusCancelled, o.Status)
		assert.Equal(t, "payment failed", o.CancelReason)
	}
	for _, from := range []Status{StatusShipped, StatusDelivered} {
		o := newTestOrder(t, from)
		err := o.Cancel("too late", time.Now())
		require.ErrorIs(t, err, ErrInvalidTransition)
		require.ErrorIs(t, err, apperr.ErrValidation)
		assert.Equal(t, from, o.Status)
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, from := range []Status{StatusCancelled, StatusRefunded, StatusDelivered} {
		o := newTestOrder(t, from)
		err := o.MarkPaid(time.Now())
		require.Error(t, err)
		assert.Equal(t, from, o.Status)
	}
	o := newTestOrder(t, StatusCancelled)
	require.ErrorIs(t, o.Cancel("again", time.Now()), ErrTerminalState)
}

func TestTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusCreated, StatusPaid, true},
		{StatusCreated, StatusShipped, false},
		{StatusPaid, StatusShipped, true},
		{StatusPaid, StatusCreated, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusRefundRequested, false},
		{StatusRefundRequested, StatusRefunded, true},
		{StatusRefundRequested, StatusCancelled, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			o := newTestOrder(t, tc.from)
			err := o.transition(tc.to, time.Now())
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.to, o.Status)
				return
			}
			require.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestShipRequiresTrackingNumber(t *testing.T) {
	o := newTestOrder(t, StatusPaid)
	require.ErrorIs(t, o.Ship(" ", time.Now()), apperr.ErrValidation)
	require.NoError(t, o.Ship("TRK-1", time.Now()))
	assert.Equal(t, "TRK-1", o.TrackingNumber)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" paid ")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, s)

	_, err = ParseStatus("COMPLETED")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

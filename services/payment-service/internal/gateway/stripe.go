package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
)

type StripeConfig struct {
	SecretKey     string
	PaymentMethod string
	Currency      string
}

// Stripe charges through confirmed PaymentIntents. The order id travels as
// metadata and the idempotency key is forwarded unchanged.
type Stripe struct {
	paymentMethod string
	currency      string
}

func NewStripe(cfg StripeConfig) (*Stripe, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is required for the stripe gateway")
	}
	if cfg.PaymentMethod == "" {
		cfg.PaymentMethod = "pm_card_visa"
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	stripe.Key = key
	return &Stripe{paymentMethod: cfg.PaymentMethod, currency: cfg.Currency}, nil
}

func (g *Stripe) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount.Shift(2).Round(0).IntPart()),
		Currency:      stripe.String(g.currency),
		PaymentMethod: stripe.String(g.paymentMethod),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("customer_id", req.CustomerID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return ChargeResult{}, classify(err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return ChargeResult{}, Declined(fmt.Sprintf("payment intent %s is %s", pi.ID, pi.Status))
	}
	return ChargeResult{TransactionID: pi.ID}, nil
}

func (g *Stripe) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(req.TransactionID)}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("order_id", req.OrderID)

	r, err := refund.New(params)
	if err != nil {
		return RefundResult{}, classify(err)
	}
	return RefundResult{RefundID: r.ID}, nil
}

func classify(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
		return Declined(se.Msg)
	}
	return fmt.Errorf("stripe: %w", err)
}

var _ Gateway = (*Stripe)(nil)

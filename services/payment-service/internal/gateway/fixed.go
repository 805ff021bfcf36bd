package gateway

import (
	"context"
	"sync"
)

// Fixed always gives the same outcome and counts calls. It backs the
// PAYMENT_GATEWAY=succeed|fail modes and tests.
type Fixed struct {
	Decline bool
	Reason  string
	// Err, when set, is returned from every call instead of an outcome.
	Err error

	mu      sync.Mutex
	charges int
	refunds int
}

func (g *Fixed) Charge(_ context.Context, req ChargeRequest) (ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges++
	switch {
	case g.Err != nil:
		return ChargeResult{}, g.Err
	case g.Decline && g.Reason == "":
		return ChargeResult{}, Declined("card declined")
	case g.Decline:
		return ChargeResult{}, Declined(g.Reason)
	}
	return ChargeResult{TransactionID: "txn_" + req.IdempotencyKey}, nil
}

func (g *Fixed) Refund(_ context.Context, req RefundRequest) (RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	if g.Err != nil {
		return RefundResult{}, g.Err
	}
	return RefundResult{RefundID: "re_" + req.IdempotencyKey}, nil
}

func (g *Fixed) Calls() (charges, refunds int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges, g.refunds
}

func (g *Fixed) SetError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Err = err
}

var _ Gateway = (*Fixed)(nil)

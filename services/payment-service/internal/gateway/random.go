package gateway

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

// Random approves a fixed share of charges. Outcomes are remembered per
// idempotency key.
type Random struct {
	successRatio float64
	float        func() float64

	mu       sync.Mutex
	outcomes map[string]outcome
}

type outcome struct {
	id  string
	err error
}

func NewRandom(successRatio float64, float func() float64) *Random {
	if float == nil {
		float = rand.Float64
	}
	return &Random{successRatio: successRatio, float: float, outcomes: map[string]outcome{}}
}

func (g *Random) Charge(_ context.Context, req ChargeRequest) (ChargeResult, error) {
	o := g.remember(req.IdempotencyKey, func() outcome {
		if g.float() < g.successRatio {
			return outcome{id: "txn_" + uuid.NewString()}
		}
		return outcome{err: Declined("insufficient funds")}
	})
	return ChargeResult{TransactionID: o.id}, o.err
}

func (g *Random) Refund(_ context.Context, req RefundRequest) (RefundResult, error) {
	o := g.remember(req.IdempotencyKey, func() outcome {
		return outcome{id: "re_" + uuid.NewString()}
	})
	return RefundResult{RefundID: o.id}, o.err
}

func (g *Random) remember(key string, decide func() outcome) outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	if o, ok := g.outcomes[key]; ok && key != "" {
		return o
	}
	o := decide()
	if key != "" {
		g.outcomes[key] = o
	}
	return o
}

var _ Gateway = (*Random)(nil)

package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
)

// Transactor runs fn inside one local transaction. Implementations join an
// outer transaction already carried by ctx instead of nesting.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type hooksKey struct{}

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// WithCommitHooks gives ctx a hook list for AfterCommit. The outermost
// transaction calls run once it has committed and drops the list otherwise.
func WithCommitHooks(ctx context.Context) (_ context.Context, run func()) {
	h := &commitHooks{}
	return context.WithValue(ctx, hooksKey{}, h), func() {
		h.mu.Lock()
		fns := h.fns
		h.fns = nil
		h.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
}

// AfterCommit defers fn until the transaction carried by ctx commits. Outside
// a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(hooksKey{}).(*commitHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// RequireTx fails when ctx carries no transaction. Writers that must share the
// caller's commit, like the outbox recorder, call it first.
func RequireTx(ctx context.Context) (pgx.Tx, error) {
	tx, ok := TxFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no transaction in context", apperr.ErrValidation)
	}
	return tx, nil
}

func (p *Pool) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := p.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", apperr.ErrTransient, err)
	}
	rollback := func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }
	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()

	txCtx, runHooks := WithCommitHooks(context.WithValue(ctx, txKey{}, tx))
	if err := fn(txCtx); err != nil {
		rollback()
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit tx: %w", apperr.ErrTransient, err)
	}
	runHooks()
	return nil
}

var _ Transactor = (*Pool)(nil)

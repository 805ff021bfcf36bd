// Package memstore is a process-local transactional store. A transaction holds
// the store lock and snapshots every table; on error or panic the snapshots are
// restored so callers see all writes of a transaction or none of them.
package memstore

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/db"
)

type table interface {
	snapshot() func()
}

type Store struct {
	mu     sync.Mutex
	tables []table
}

func New() *Store {
	return &Store{}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// RequireTx mirrors db.RequireTx for code that must run inside WithinTx.
func (s *Store) RequireTx(ctx context.Context) error {
	if !s.inTx(ctx) {
		return apperr.Validation("no transaction in context")
	}
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	ctx, runHooks := db.WithCommitHooks(context.WithValue(ctx, txKey{}, s))
	if err := s.commit(ctx, fn); err != nil {
		return err
	}
	// Hooks run after the lock is released so they may read the store.
	runHooks()
	return nil
}

func (s *Store) commit(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	restores := make([]func(), 0, len(s.tables))
	for _, t := range s.tables {
		restores = append(restores, t.snapshot())
	}
	undo := func() {
		for _, restore := range restores {
			restore()
		}
	}
	defer func() {
		if r := recover(); r != nil {
			undo()
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		undo()
		return err
	}
	return nil
}

// view runs fn under the store lock unless ctx already owns it.
func (s *Store) view(ctx context.Context, fn func()) {
	if s.inTx(ctx) {
		fn()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

var _ db.Transactor = (*Store)(nil)

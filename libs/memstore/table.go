package memstore

import (
	"context"
	"slices"
)

// Table is a keyed collection that remembers insertion order.
type Table[V any] struct {
	store *Store
	rows  map[string]V
	keys  []string
}

func NewTable[V any](s *Store) *Table[V] {
	t := &Table[V]{store: s, rows: map[string]V{}}
	s.mu.Lock()
	s.tables = append(s.tables, t)
	s.mu.Unlock()
	return t
}

func (t *Table[V]) snapshot() func() {
	rows := make(map[string]V, len(t.rows))
	for k, v := range t.rows {
		rows[k] = v
	}
	keys := slices.Clone(t.keys)
	return func() {
		t.rows = rows
		t.keys = keys
	}
}

func (t *Table[V]) Get(ctx context.Context, key string) (V, bool) {
	var (
		v  V
		ok bool
	)
	t.store.view(ctx, func() { v, ok = t.rows[key] })
	return v, ok
}

// Insert adds a row and reports false when the key already exists.
func (t *Table[V]) Insert(ctx context.Context, key string, v V) bool {
	inserted := false
	t.store.view(ctx, func() {
		if _, exists := t.rows[key]; exists {
			return
		}
		t.rows[key] = v
		t.keys = append(t.keys, key)
		inserted = true
	})
	return inserted
}

func (t *Table[V]) Put(ctx context.Context, key string, v V) {
	t.store.view(ctx, func() {
		if _, exists := t.rows[key]; !exists {
			t.keys = append(t.keys, key)
		}
		t.rows[key] = v
	})
}

func (t *Table[V]) Delete(ctx context.Context, key string) bool {
	deleted := false
	t.store.view(ctx, func() {
		if _, exists := t.rows[key]; !exists {
			return
		}
		delete(t.rows, key)
		t.keys = slices.DeleteFunc(t.keys, func(k string) bool { return k == key })
		deleted = true
	})
	return deleted
}

// Scan visits rows in insertion order until fn returns false.
func (t *Table[V]) Scan(ctx context.Context, fn func(key string, v V) bool) {
	t.store.view(ctx, func() {
		for _, k := range t.keys {
			if !fn(k, t.rows[k]) {
				return
			}
		}
	})
}

func (t *Table[V]) Len(ctx context.Context) int {
	n := 0
	t.store.view(ctx, func() { n = len(t.rows) })
	return n
}

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	seen []Message
}

func (r *recorder) handle(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, msg)
	return nil
}

func (r *recorder) values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.seen))
	for _, m := range r.seen {
		out = append(out, string(m.Value))
	}
	return out
}

func TestMemoryBrokerKeepsPerKeyOrder(t *testing.T) {
	b := NewMemoryBroker(WithPartitions(3))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 20; i++ {
		require.NoError(t, b.Publish(ctx, Message{Topic: "orders", Key: "o-1", Value: []byte(fmt.Sprint(i))}))
	}

	rec := &recorder{}
	go func() { _ = b.Subscriber("payment").Subscribe(ctx, "orders", rec.handle) }()

	require.Eventually(t, func() bool { return len(rec.values()) == 20 }, time.Second, 5*time.Millisecond)
	for i, v := range rec.values() {
		assert.Equal(t, fmt.Sprint(i), v)
	}
}

func TestMemoryBrokerGroupsAreIndependent(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inventory, payment := &recorder{}, &recorder{}
	go func() { _ = b.Subscriber("inventory").Subscribe(ctx, "orders", inventory.handle) }()
	go func() { _ = b.Subscriber("payment").Subscribe(ctx, "orders", payment.handle) }()

	require.NoError(t, b.Publish(ctx, Message{Topic: "orders", Key: "o-1", Value: []byte("a")}))

	require.Eventually(t, func() bool {
		return len(inventory.values()) == 1 && len(payment.values()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryBrokerRedeliversUntilHandled(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	attempts := 0
	handler := func(context.Context, Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("store unavailable")
		}
		return nil
	}
	go func() { _ = b.Subscriber("g").Subscribe(ctx, "orders", handler) }()
	require.NoError(t, b.Publish(ctx, Message{Topic: "orders", Key: "o-1"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 3
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryBrokerDuplicateDelivery(t *testing.T) {
	b := NewMemoryBroker(WithDuplicateDelivery())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go func() { _ = b.Subscriber("g").Subscribe(ctx, "orders", rec.handle) }()
	require.NoError(t, b.Publish(ctx, Message{Topic: "orders", Key: "o-1", Value: []byte("x")}))

	require.Eventually(t, func() bool { return len(rec.values()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestMemoryBrokerPublishHook(t *testing.T) {
	down := errors.New("broker down")
	b := NewMemoryBroker(WithPublishHook(func(m Message) error {
		if m.Key == "bad" {
			return down
		}
		return nil
	}))
	ctx := context.Background()

	require.ErrorIs(t, b.Publish(ctx, Message{Topic: "orders", Key: "bad"}), down)
	require.NoError(t, b.Publish(ctx, Message{Topic: "orders", Key: "good"}))
	assert.Len(t, b.Messages("orders"), 1)
}

func TestSubscribeReturnsOnCancel(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Subscriber("g").Subscribe(ctx, "orders", func(context.Context, Message) error { return nil })
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscribe did not return after cancel")
	}
}

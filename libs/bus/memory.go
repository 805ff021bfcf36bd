package bus

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// MemoryBroker is an in-process partitioned log. Each consumer group keeps its
// own offset per partition, so subscribers that start late still see every
// message, and a failing handler blocks its partition until it succeeds.
type MemoryBroker struct {
	mu         sync.Mutex
	cond       *sync.Cond
	partitions int
	duplicate  bool
	hook       func(Message) error
	retryDelay time.Duration

	logs    map[string][][]Message
	offsets map[offsetKey]int
}

type offsetKey struct {
	group     string
	topic     string
	partition int
}

type MemoryOption func(*MemoryBroker)

func WithPartitions(n int) MemoryOption {
	return func(b *MemoryBroker) {
		if n > 0 {
			b.partitions = n
		}
	}
}

// WithDuplicateDelivery hands every message to the handler twice, the way a
// relay crash between publish and delete would.
func WithDuplicateDelivery() MemoryOption {
	return func(b *MemoryBroker) { b.duplicate = true }
}

// WithPublishHook lets tests fail publishes selectively.
func WithPublishHook(hook func(Message) error) MemoryOption {
	return func(b *MemoryBroker) { b.hook = hook }
}

func NewMemoryBroker(opts ...MemoryOption) *MemoryBroker {
	b := &MemoryBroker{
		partitions: 4,
		retryDelay: 20 * time.Millisecond,
		logs:       map[string][][]Message{},
		offsets:    map[offsetKey]int{},
	}
	b.cond = sync.NewCond(&b.mu)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *MemoryBroker) partition(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(b.partitions))
}

func (b *MemoryBroker) topicLog(topic string) [][]Message {
	log, ok := b.logs[topic]
	if !ok {
		log = make([][]Message, b.partitions)
		b.logs[topic] = log
	}
	return log
}

func (b *MemoryBroker) Publish(ctx context.Context, msgs ...Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range msgs {
		if b.hook != nil {
			if err := b.hook(m); err != nil {
				return err
			}
		}
		m.Headers = cloneHeaders(m.Headers)
		log := b.topicLog(m.Topic)
		p := b.partition(m.Key)
		log[p] = append(log[p], m)
	}
	b.cond.Broadcast()
	return nil
}

// Messages returns everything published to topic, partition by partition.
func (b *MemoryBroker) Messages(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, part := range b.logs[topic] {
		out = append(out, part...)
	}
	return out
}

// Subscriber returns a subscriber bound to a consumer group.
func (b *MemoryBroker) Subscriber(group string) Subscriber {
	return memorySubscriber{broker: b, group: group}
}

type memorySubscriber struct {
	broker *MemoryBroker
	group  string
}

func (s memorySubscriber) Subscribe(ctx context.Context, topic string, handler Handler) error {
	b := s.broker
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	var wg sync.WaitGroup
	for p := 0; p < b.partitions; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			b.consume(ctx, offsetKey{group: s.group, topic: topic, partition: p}, handler)
		}(p)
	}
	wg.Wait()
	return nil
}

func (b *MemoryBroker) consume(ctx context.Context, key offsetKey, handler Handler) {
	for {
		b.mu.Lock()
		for ctx.Err() == nil && b.offsets[key] >= len(b.topicLog(key.topic)[key.partition]) {
			b.cond.Wait()
		}
		if ctx.Err() != nil {
			b.mu.Unlock()
			return
		}
		offset := b.offsets[key]
		msg := b.logs[key.topic][key.partition][offset]
		b.mu.Unlock()

		msg.Headers = cloneHeaders(msg.Headers)
		err := handler(ctx, msg)
		if err == nil && b.duplicate {
			err = handler(ctx, msg)
		}
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.retryDelay):
			}
			continue
		}

		b.mu.Lock()
		b.offsets[key] = offset + 1
		b.mu.Unlock()
	}
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

var (
	_ Publisher  = (*MemoryBroker)(nil)
	_ Subscriber = memorySubscriber{}
)

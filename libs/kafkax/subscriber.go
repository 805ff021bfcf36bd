package kafkax

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/ordersaga/libs/bus"
)

// Subscriber reads one consumer group. Offsets are committed only after the
// handler succeeds, so a crash mid-handler means redelivery.
type Subscriber struct {
	brokers []string
	groupID string
	logger  *slog.Logger
}

func NewSubscriber(brokers, groupID string, logger *slog.Logger) (*Subscriber, error) {
	list := SplitBrokers(brokers)
	if len(list) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	return &Subscriber{brokers: list, groupID: groupID, logger: logger}, nil
}

func (s *Subscriber) Subscribe(ctx context.Context, topic string, handler bus.Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.brokers,
		GroupID:  s.groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("kafka fetch error", "err", err, "topic", topic)
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		// Retry in place: skipping would let a later offset commit over this one.
		for {
			err := handler(ctx, fromKafka(msg))
			if err == nil {
				break
			}
			s.logger.Error("kafka handler error", "err", err, "topic", topic, "offset", msg.Offset)
			if !sleep(ctx, time.Second) {
				return nil
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			s.logger.Error("kafka commit error", "err", err, "topic", topic, "offset", msg.Offset)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ bus.Subscriber = (*Subscriber)(nil)

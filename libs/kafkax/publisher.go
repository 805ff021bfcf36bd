package kafkax

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/ordersaga/libs/bus"
)

// Publisher writes bus messages to Kafka. The hash balancer sends every key to
// one partition, which is what keeps per-aggregate order.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers string) (*Publisher, error) {
	list := SplitBrokers(brokers)
	if len(list) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	return &Publisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(list...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}}, nil
}

func (p *Publisher) Publish(ctx context.Context, msgs ...bus.Message) error {
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toKafka(m))
	}
	return p.writer.WriteMessages(ctx, out...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ bus.Publisher = (*Publisher)(nil)

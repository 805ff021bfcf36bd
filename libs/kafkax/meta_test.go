package kafkax

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"github.com/md-rashed-zaman/ordersaga/libs/bus"
)

func TestMessageConversion(t *testing.T) {
	in := bus.Message{
		Topic: "orders",
		Key:   "o-1",
		Value: []byte(`{}`),
		Headers: map[string]string{
			bus.HeaderEventID:   "e-1",
			bus.HeaderEventType: "ORDER_CREATED",
		},
	}
	km := toKafka(in)
	assert.Equal(t, []byte("o-1"), km.Key)
	assert.Equal(t, "ORDER_CREATED", HeaderValue(km.Headers, bus.HeaderEventType))

	out := fromKafka(km)
	assert.Equal(t, in, out)
}

func TestFromKafkaFallsBackToKeyForEventID(t *testing.T) {
	out := fromKafka(kafka.Message{Topic: "orders", Key: []byte("o-9")})
	assert.Equal(t, "o-9", out.Header(bus.HeaderEventID))
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"kafka:9092", "kafka-2:9092"}, SplitBrokers(" kafka:9092, ,kafka-2:9092"))
	assert.Empty(t, SplitBrokers(""))
}

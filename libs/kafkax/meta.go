package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/ordersaga/libs/bus"
)

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func toKafka(m bus.Message) kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return kafka.Message{
		Topic:   m.Topic,
		Key:     []byte(m.Key),
		Value:   m.Value,
		Headers: headers,
	}
}

// fromKafka keeps the last value of a repeated header, matching the
// overwrite semantics of the trace propagator.
func fromKafka(m kafka.Message) bus.Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers[bus.HeaderEventID] == "" {
		headers[bus.HeaderEventID] = string(m.Key)
	}
	return bus.Message{
		Topic:   m.Topic,
		Key:     string(m.Key),
		Value:   m.Value,
		Headers: headers,
	}
}

package kafka

import segkafka "github.com/segmentio/kafka-go"

// HeaderCarrier exposes a Kafka message's headers as an OpenTelemetry
// propagation.TextMapCarrier, so the trace that opened a session rides its
// confirmation request out and comes back attached to the response.
type HeaderCarrier []segkafka.Header

// Get returns the value of the first header named key, or "".
func (c HeaderCarrier) Get(key string) string {
	for _, h := range c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set stores key/value, dropping any header already using the key.
func (c *HeaderCarrier) Set(key, value string) {
	filtered := (*c)[:0]
	for _, h := range *c {
		if h.Key != key {
			filtered = append(filtered, h)
		}
	}
	*c = append(filtered, segkafka.Header{Key: key, Value: []byte(value)})
}

// Keys lists every header key present on the message.
func (c HeaderCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = h.Key
	}
	return keys
}

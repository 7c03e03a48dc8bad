package confirm

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-field-robots/rmf-task/internal/kafka"
)

type fakeProducer struct {
	topics []string
	keys   []string
	values [][]byte
	err    error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

// fakeConsumer replays a fixed batch of messages through the handler.
type fakeConsumer struct {
	messages []kafka.Message
}

func (c *fakeConsumer) Subscribe(ctx context.Context, handler kafka.HandlerFunc) error {
	for _, m := range c.messages {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeConsumer) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKafkaSource_RequestPublishesToken(t *testing.T) {
	producer := &fakeProducer{}
	src := NewKafkaSource(producer, NewRouter(), "confirm.requests", discardLogger())

	require.NoError(t, src.Request(context.Background(), "token-a"))

	require.Len(t, producer.values, 1)
	assert.Equal(t, "confirm.requests", producer.topics[0])
	assert.Equal(t, "token-a", producer.keys[0])
	assert.Equal(t, []byte("token-a"), producer.values[0])
}

func TestKafkaSource_RunDispatchesResponses(t *testing.T) {
	router := NewRouter()
	src := NewKafkaSource(&fakeProducer{}, router, "confirm.requests", discardLogger())

	var matched, unmatched int
	src.OnDispatch = func(ok bool) {
		if ok {
			matched++
		} else {
			unmatched++
		}
	}

	confirmed := false
	cancel, err := src.Watch("token-a", func(time.Time) { confirmed = true })
	require.NoError(t, err)
	defer cancel()

	consumer := &fakeConsumer{messages: []kafka.Message{
		{Topic: "confirm.responses", Value: []byte("token-a")},
		{Topic: "confirm.responses", Value: []byte("someone-elses-token")},
		{Topic: "confirm.responses", Value: []byte("  ")}, // blank payloads are skipped
	}}

	require.NoError(t, src.Run(context.Background(), consumer))

	assert.True(t, confirmed)
	assert.Equal(t, 1, matched)
	assert.Equal(t, 1, unmatched)
}

func TestKafkaSource_RunTrimsTokenWhitespace(t *testing.T) {
	router := NewRouter()
	src := NewKafkaSource(&fakeProducer{}, router, "confirm.requests", discardLogger())

	confirmed := false
	cancel, err := src.Watch("token-a", func(time.Time) { confirmed = true })
	require.NoError(t, err)
	defer cancel()

	consumer := &fakeConsumer{messages: []kafka.Message{
		{Topic: "confirm.responses", Value: []byte("token-a\n")},
	}}

	require.NoError(t, src.Run(context.Background(), consumer))
	assert.True(t, confirmed)
}

package confirm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/universal-field-robots/rmf-task/internal/kafka"
)

// KafkaSource is the networked Source: requests are published to a request
// topic for supervisor consoles to see, and confirmations flow back on a
// response topic consumed by Run.
//
// Messages on both topics carry the raw correlation token as the value (and
// as the key, so one token always lands on one partition).
type KafkaSource struct {
	producer     kafka.Producer
	router       *Router
	requestTopic string
	logger       *slog.Logger

	// OnDispatch, if set, observes every response processed by Run and
	// whether it matched a local watcher. Set it before calling Run.
	OnDispatch func(matched bool)
}

// NewKafkaSource creates a KafkaSource publishing requests to requestTopic.
func NewKafkaSource(producer kafka.Producer, router *Router, requestTopic string, logger *slog.Logger) *KafkaSource {
	return &KafkaSource{
		producer:     producer,
		router:       router,
		requestTopic: requestTopic,
		logger:       logger,
	}
}

// Request publishes the token on the request topic.
func (s *KafkaSource) Request(ctx context.Context, token string) error {
	return s.producer.Publish(ctx, s.requestTopic, token, []byte(token))
}

// Watch registers fn with the underlying Router.
func (s *KafkaSource) Watch(token string, fn func(arrivedAt time.Time)) (func(), error) {
	return s.router.Watch(token, fn)
}

// Run consumes the response topic until ctx is cancelled, dispatching each
// confirmation to its watcher. Tokens nobody here is watching are logged at
// debug and dropped.
func (s *KafkaSource) Run(ctx context.Context, consumer kafka.Consumer) error {
	return consumer.Subscribe(ctx, func(_ context.Context, msg kafka.Message) error {
		token := strings.TrimSpace(string(msg.Value))
		if token == "" {
			return nil
		}

		matched := s.router.Dispatch(token, time.Now())
		if s.OnDispatch != nil {
			s.OnDispatch(matched)
		}
		if !matched {
			s.logger.Debug("confirmation for unknown token ignored",
				slog.String("token", token),
				slog.Int64("offset", msg.Offset),
			)
		}
		return nil
	})
}

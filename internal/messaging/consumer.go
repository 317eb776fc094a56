package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts    = 3
	defaultHandlerTimeout = 5 * time.Second
)

// Handler processes a single event. Handlers are synchronous and easy to test.
type Handler[T any] func(ctx context.Context, event *T) error

// ConsumerOption configures a Consumer.
type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	maxAttempts    int
	handlerTimeout time.Duration
}

// WithMaxAttempts bounds how many times one message is handed to the handler before it is
// dropped. Values below 1 are ignored.
func WithMaxAttempts(n int) ConsumerOption {
	return func(c *consumerConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithHandlerTimeout bounds a single handler invocation.
func WithHandlerTimeout(d time.Duration) ConsumerOption {
	return func(c *consumerConfig) {
		if d > 0 {
			c.handlerTimeout = d
		}
	}
}

// Consumer subscribes to a topic and feeds decoded events to a typed handler.
//
// A payload that cannot be decoded is acked and dropped, since redelivery cannot fix it.
// A handler failure nacks the message so the transport redelivers it, up to the configured
// number of attempts.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	logger     *zap.Logger
	config     consumerConfig

	// attempts is only touched by the consume loop.
	attempts map[string]int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewConsumer creates a consumer of T events published on topic.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
	opts ...ConsumerOption,
) *Consumer[T] {
	config := consumerConfig{
		maxAttempts:    defaultMaxAttempts,
		handlerTimeout: defaultHandlerTimeout,
	}

	for _, opt := range opts {
		opt(&config)
	}

	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		logger:     logger.With(zap.String("topic", topic)),
		config:     config,
		attempts:   make(map[string]int),
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer subscribes to.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Start subscribes and processes messages in the background until ctx is cancelled or
// Shutdown is called.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		cancel()

		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}

	c.cancel = cancel

	go c.consume(ctx, msgs)

	return nil
}

func (c *Consumer[T]) consume(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.process(ctx, msg)
		}
	}
}

func (c *Consumer[T]) process(ctx context.Context, msg *message.Message) {
	logger := c.logger.With(zap.String("message_uuid", msg.UUID))

	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		logger.Error("dropping undecodable event", zap.Error(err))
		msg.Ack()

		return
	}

	handlerCtx, cancel := context.WithTimeout(ctx, c.config.handlerTimeout)
	err := c.handler(handlerCtx, &event)

	cancel()

	if err == nil {
		delete(c.attempts, msg.UUID)
		msg.Ack()
		logger.Debug("processed event")

		return
	}

	c.attempts[msg.UUID]++
	attempt := c.attempts[msg.UUID]

	if attempt >= c.config.maxAttempts {
		delete(c.attempts, msg.UUID)
		logger.Error("dropping event after repeated failures",
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		msg.Ack()

		return
	}

	logger.Warn("failed to handle event", zap.Int("attempt", attempt), zap.Error(err))
	msg.Nack()
}

// Shutdown stops the consumer and waits for the in-flight message to complete.
// It is a no-op for a consumer that was never started.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	<-c.done

	return nil
}

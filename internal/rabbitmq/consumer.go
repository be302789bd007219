package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliveryHandler processes one delivery and is responsible for acking it
type DeliveryHandler func(ctx context.Context, delivery amqp.Delivery)

// Consumer runs a handler over the deliveries of a durable queue
type Consumer struct {
	prefetchCount int
	consumerTag   string
	logger        *slog.Logger
}

// ConsumerOption configures the consumer
type ConsumerOption func(*Consumer)

// WithPrefetchCount sets the prefetch count
func WithPrefetchCount(count int) ConsumerOption {
	return func(c *Consumer) {
		c.prefetchCount = count
	}
}

// WithConsumerTag sets the consumer tag
func WithConsumerTag(tag string) ConsumerOption {
	return func(c *Consumer) {
		c.consumerTag = tag
	}
}

// WithConsumerLogger sets the logger
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// NewConsumer creates a new consumer
func NewConsumer(options ...ConsumerOption) *Consumer {
	c := &Consumer{
		prefetchCount: 10,
		logger:        slog.Default(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Consume declares the queue, then hands every delivery to handler until
// ctx is done or the broker closes the delivery channel. A cancelled ctx
// returns nil; a closed delivery channel returns ErrConsumerCancelled.
func (c *Consumer) Consume(ctx context.Context, ch Channel, queue string, handler DeliveryHandler) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return c.fail(queue, "declare", err)
	}
	if err := ch.Qos(c.prefetchCount, 0, false); err != nil {
		return c.fail(queue, "qos", fmt.Errorf("failed to set QoS: %w", err))
	}
	deliveries, err := ch.Consume(queue, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return c.fail(queue, "consume", err)
	}

	c.logger.Info("subscribed to queue",
		"queue", queue,
		"consumerTag", c.consumerTag,
		"prefetchCount", c.prefetchCount)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped", "queue", queue)
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed", "queue", queue)
				return c.fail(queue, "consume", ErrConsumerCancelled)
			}
			handler(ctx, delivery)
		}
	}
}

func (c *Consumer) fail(queue, op string, err error) error {
	return &ConsumerError{
		Queue:       queue,
		ConsumerTag: c.consumerTag,
		Op:          op,
		Err:         err,
		Timestamp:   time.Now(),
	}
}

// Package rabbitmq serves validation requests over RabbitMQ using
// request/reply messaging.
package rabbitmq

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/glimte/protoreg/internal/rabbitmq"
	"github.com/glimte/protoreg/internal/reliability"
	"github.com/glimte/protoreg/schema"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ProtocolHeader names the header carrying the protocol of a request.
// Requests without it are validated against their routing key.
const ProtocolHeader = "protocol"

// Validator is the registry view the service needs
type Validator interface {
	ValidateJSONFor(protocol string, data []byte) (*schema.ValidationResult, error)
}

// ChannelSource opens broker channels, e.g. *rabbitmq.ConnectionManager
type ChannelSource interface {
	Channel() (rabbitmq.Channel, error)
}

// Reply is the body published to the reply queue of a request
type Reply struct {
	Protocol string                   `json:"protocol"`
	Valid    bool                     `json:"valid"`
	Errors   []schema.ValidationError `json:"errors"`
	Error    string                   `json:"error,omitempty"`
}

// ValidationService consumes validation requests and publishes a Reply for
// each one to its ReplyTo queue
type ValidationService struct {
	validator Validator
	channels  ChannelSource
	queue     string
	prefetch  int
	retry     reliability.RetryPolicy
	logger    *slog.Logger
}

// ServiceOption configures the validation service
type ServiceOption func(*ValidationService)

// WithQueue sets the request queue
func WithQueue(queue string) ServiceOption {
	return func(s *ValidationService) {
		s.queue = queue
	}
}

// WithPrefetch sets how many unacknowledged requests the broker delivers at once
func WithPrefetch(count int) ServiceOption {
	return func(s *ValidationService) {
		s.prefetch = count
	}
}

// WithRetryDelay resubscribes after a fixed pause when the channel is lost
func WithRetryDelay(delay time.Duration) ServiceOption {
	return func(s *ValidationService) {
		s.retry = reliability.NewFixedDelay(delay, -1)
	}
}

// WithRetryPolicy sets the policy spacing resubscription attempts. The
// attempt count restarts whenever a channel opens.
func WithRetryPolicy(policy reliability.RetryPolicy) ServiceOption {
	return func(s *ValidationService) {
		s.retry = policy
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *ValidationService) {
		s.logger = logger
	}
}

// NewValidationService creates a validation service
func NewValidationService(validator Validator, channels ChannelSource, opts ...ServiceOption) *ValidationService {
	s := &ValidationService{
		validator: validator,
		channels:  channels,
		queue:     "protoreg.validate",
		prefetch:  10,
		retry:     reliability.NewExponentialBackoff(time.Second, 30*time.Second, 2.0, -1),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Queue returns the request queue name
func (s *ValidationService) Queue() string {
	return s.queue
}

// Run consumes requests until ctx is done. A lost channel is reopened as
// the retry policy allows; Run returns nil once ctx is cancelled and the
// last error once the policy gives up.
func (s *ValidationService) Run(ctx context.Context) error {
	consumer := rabbitmq.NewConsumer(
		rabbitmq.WithPrefetchCount(s.prefetch),
		rabbitmq.WithConsumerTag("protoreg-"+uuid.NewString()),
		rabbitmq.WithConsumerLogger(s.logger),
	)

	for attempt := 0; ; attempt++ {
		ch, err := s.channels.Channel()
		if err == nil {
			attempt = 0
			err = consumer.Consume(ctx, ch, s.queue, func(ctx context.Context, d amqp.Delivery) {
				s.Handle(ctx, ch, d)
			})
			_ = ch.Close()
			if err == nil {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		retry, delay := s.retry.ShouldRetry(attempt, err)
		if !retry {
			s.logger.Error("validation consumer stopped", "queue", s.queue, "error", err)
			return err
		}
		s.logger.Warn("validation consumer interrupted",
			"queue", s.queue,
			"error", err,
			"attempt", attempt+1,
			"retryIn", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// Handle validates one request, publishes the reply and settles the
// delivery. The delivery is acked once the reply is published and
// requeued if publishing fails. Requests without ReplyTo are acked and dropped.
func (s *ValidationService) Handle(ctx context.Context, ch rabbitmq.Channel, d amqp.Delivery) {
	protocol := protocolOf(d)
	if d.ReplyTo == "" {
		s.logger.Warn("dropping validation request without reply queue",
			"protocol", protocol,
			"messageId", d.MessageId)
		s.ack(d)
		return
	}

	reply := s.Validate(protocol, d.Body)
	body, err := json.Marshal(reply)
	if err != nil {
		s.logger.Error("failed to encode reply", "protocol", protocol, "error", err)
		s.ack(d)
		return
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		MessageId:     uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Headers:       amqp.Table{ProtocolHeader: protocol},
		Body:          body,
	}
	if err := ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, msg); err != nil {
		pubErr := &rabbitmq.PublishError{RoutingKey: d.ReplyTo, Err: err, Timestamp: time.Now()}
		s.logger.Error("failed to publish reply", "error", pubErr, "correlationId", d.CorrelationId)
		if nackErr := d.Nack(false, true); nackErr != nil {
			s.logger.Error("failed to nack message", "error", nackErr, "originalError", err)
		}
		return
	}

	s.logger.Debug("validation request handled",
		"protocol", protocol,
		"valid", reply.Valid,
		"errors", len(reply.Errors),
		"correlationId", d.CorrelationId)
	s.ack(d)
}

// Validate builds the reply for a request body
func (s *ValidationService) Validate(protocol string, body []byte) Reply {
	reply := Reply{Protocol: protocol, Errors: []schema.ValidationError{}}
	result, err := s.validator.ValidateJSONFor(protocol, body)
	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	reply.Valid = result.Valid
	reply.Errors = result.Errors
	return reply
}

func (s *ValidationService) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		s.logger.Error("failed to ack message", "error", err, "messageId", d.MessageId)
	}
}

func protocolOf(d amqp.Delivery) string {
	switch v := d.Headers[ProtocolHeader].(type) {
	case string:
		if v != "" {
			return v
		}
	case []byte:
		if len(v) > 0 {
			return string(v)
		}
	}
	return d.RoutingKey
}

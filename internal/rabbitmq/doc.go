// Package rabbitmq provides the RabbitMQ plumbing of the validation service.
//
// This package includes:
//   - ConnectionManager: Manages the broker connection with automatic reconnection
//   - Channel: The subset of *amqp.Channel the service uses, so it can be mocked
//   - Consumer: Runs a delivery handler over a queue until cancelled
//
// Deliveries are acknowledged by the handler, never automatically.
package rabbitmq

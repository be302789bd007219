package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SchemaSource is the view of the protocol registry a health check needs
type SchemaSource interface {
	Frozen() bool
	Len() int
}

// RegistryChecker reports whether the schema registry finished loading
type RegistryChecker struct {
	source SchemaSource
}

// NewRegistryChecker creates a checker for the schema registry
func NewRegistryChecker(source SchemaSource) *RegistryChecker {
	return &RegistryChecker{source: source}
}

func (c *RegistryChecker) Name() string {
	return "schemas"
}

func (c *RegistryChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]any),
	}

	count := c.source.Len()
	frozen := c.source.Frozen()
	result.Details["protocols"] = count
	result.Details["frozen"] = frozen

	switch {
	case count == 0:
		result.Status = StatusUnhealthy
		result.Message = "no protocols registered"
	case !frozen:
		result.Status = StatusDegraded
		result.Message = "registry is still initializing"
	default:
		result.Status = StatusHealthy
		result.Message = fmt.Sprintf("%d protocols registered", count)
	}

	result.Duration = time.Since(start)
	return result
}

// BrokerConnection is the connection state a broker check needs
type BrokerConnection interface {
	IsConnected() bool
}

// RabbitMQChecker checks the broker connection of the validation service.
// Registered as the connection's state listener it reports a lost
// connection as degraded while reconnect attempts are still running.
type RabbitMQChecker struct {
	conn BrokerConnection

	mu           sync.Mutex
	reconnecting int
	lastErr      error
}

// NewRabbitMQChecker creates a new RabbitMQ health checker
func NewRabbitMQChecker(conn BrokerConnection) *RabbitMQChecker {
	return &RabbitMQChecker{conn: conn}
}

func (c *RabbitMQChecker) Name() string {
	return "rabbitmq"
}

// OnConnected implements the connection state listener
func (c *RabbitMQChecker) OnConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnecting = 0
	c.lastErr = nil
}

// OnDisconnected implements the connection state listener. A disconnect
// ends any reconnect in progress until the next attempt is announced.
func (c *RabbitMQChecker) OnDisconnected(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnecting = 0
	c.lastErr = err
}

// OnReconnecting implements the connection state listener
func (c *RabbitMQChecker) OnReconnecting(attempt int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnecting = attempt
}

func (c *RabbitMQChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]any),
	}

	c.mu.Lock()
	attempt, lastErr := c.reconnecting, c.lastErr
	c.mu.Unlock()

	connected := c.conn.IsConnected()
	result.Details["connected"] = connected
	switch {
	case connected:
		result.Status = StatusHealthy
		result.Message = "connection is healthy"
	case attempt > 0:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("reconnecting (attempt %d)", attempt)
		result.Details["attempt"] = attempt
	default:
		result.Status = StatusUnhealthy
		result.Message = "not connected"
	}
	if !connected && lastErr != nil {
		result.Error = lastErr.Error()
	}

	result.Duration = time.Since(start)
	return result
}

// ComponentChecker allows checking custom components
type ComponentChecker struct {
	name    string
	checker func(ctx context.Context) (Status, string, map[string]any, error)
}

// NewComponentChecker creates a checker for custom components
func NewComponentChecker(name string, checker func(ctx context.Context) (Status, string, map[string]any, error)) *ComponentChecker {
	return &ComponentChecker{
		name:    name,
		checker: checker,
	}
}

func (c *ComponentChecker) Name() string {
	return c.name
}

func (c *ComponentChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]any),
	}

	status, message, details, err := c.checker(ctx)

	result.Status = status
	result.Message = message
	if details != nil {
		result.Details = details
	}
	if err != nil {
		result.Error = err.Error()
	}
	result.Duration = time.Since(start)

	return result
}

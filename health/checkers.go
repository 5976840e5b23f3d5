package health

import (
	"context"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connector is the broker connection a BrokerChecker exercises.
type Connector interface {
	Connect(ctx context.Context) error
	Channel() (*amqp.Channel, error)
}

// BrokerChecker checks that a broker accepts the connection and serves a channel
type BrokerChecker struct {
	name   string
	conn   Connector
	logger *slog.Logger
}

// NewBrokerChecker creates a broker health checker. A nil logger uses the default logger.
func NewBrokerChecker(name string, conn Connector, logger *slog.Logger) *BrokerChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrokerChecker{
		name:   name,
		conn:   conn,
		logger: logger,
	}
}

func (c *BrokerChecker) Name() string {
	return c.name
}

func (c *BrokerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	if err := c.conn.Connect(ctx); err != nil {
		c.logger.Warn("broker connection failed", "profile", c.name, "error", err)
		result.Status = StatusUnhealthy
		result.Message = "Connection failed"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	ch, err := c.conn.Channel()
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Failed to create channel"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}
	defer ch.Close()

	err = ch.ExchangeDeclarePassive(
		"amq.direct", // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		result.Status = StatusDegraded
		result.Message = "Exchange check failed"
		result.Error = err.Error()
	} else {
		result.Status = StatusHealthy
		result.Message = "Connection success"
	}

	result.Duration = time.Since(start)
	result.Details["response_time_ms"] = result.Duration.Milliseconds()

	return result
}

package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channelOpener opens channels for the publisher
type channelOpener interface {
	Channel() (*amqp.Channel, error)
}

// Publisher handles message publishing to RabbitMQ
type Publisher struct {
	opener         channelOpener
	confirmTimeout time.Duration
	publishTimeout time.Duration
	confirmMode    bool
	mandatory      bool
	logger         *slog.Logger
}

// PublisherOption configures the publisher
type PublisherOption func(*Publisher)

// WithConfirmTimeout sets the confirmation timeout
func WithConfirmTimeout(timeout time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.confirmTimeout = timeout
	}
}

// WithPublishTimeout sets the publish timeout
func WithPublishTimeout(timeout time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.publishTimeout = timeout
	}
}

// WithConfirmMode enables/disables publisher confirms
func WithConfirmMode(enabled bool) PublisherOption {
	return func(p *Publisher) {
		p.confirmMode = enabled
	}
}

// WithMandatory makes the broker return messages that no queue accepts
func WithMandatory(mandatory bool) PublisherOption {
	return func(p *Publisher) {
		p.mandatory = mandatory
	}
}

// WithPublisherLogger sets the publisher logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a new publisher
func NewPublisher(manager *ConnectionManager, options ...PublisherOption) *Publisher {
	p := &Publisher{
		opener:         manager,
		confirmTimeout: 5 * time.Second,
		publishTimeout: 10 * time.Second,
		confirmMode:    true,
		logger:         slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Publish publishes msg once and, in confirm mode, waits for the broker ack.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.publishTimeout)
		defer cancel()
	}

	if err := p.publish(ctx, exchange, routingKey, msg); err != nil {
		return &PublishError{
			Exchange:   exchange,
			RoutingKey: routingKey,
			Mandatory:  p.mandatory,
			Err:        err,
			Timestamp:  time.Now(),
		}
	}

	p.logger.Debug("message published",
		"exchange", exchange,
		"routingKey", routingKey,
		"messageId", msg.MessageId,
		"size", len(msg.Body))

	return nil
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	if p.opener == nil {
		return ErrInvalidConfiguration
	}

	ch, err := p.opener.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	var (
		confirms <-chan amqp.Confirmation
		returns  <-chan amqp.Return
	)
	if p.confirmMode {
		if err := ch.Confirm(false); err != nil {
			return fmt.Errorf("failed to enable confirms: %w", err)
		}
		confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	}
	if p.mandatory {
		returns = ch.NotifyReturn(make(chan amqp.Return, 1))
	}

	if err := ch.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		p.mandatory,
		false, // immediate
		msg,
	); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	if !p.confirmMode {
		return nil
	}

	return p.awaitConfirm(ctx, confirms, returns)
}

// awaitConfirm waits for the broker verdict on the single published message.
func (p *Publisher) awaitConfirm(ctx context.Context, confirms <-chan amqp.Confirmation, returns <-chan amqp.Return) error {
	timeout := time.NewTimer(p.confirmTimeout)
	defer timeout.Stop()

	select {
	case ret := <-returns:
		return fmt.Errorf("%w: %d %s", ErrMandatoryFailed, ret.ReplyCode, ret.ReplyText)

	case confirm, ok := <-confirms:
		if !ok {
			return ErrConnectionClosed
		}
		if !confirm.Ack {
			return ErrPublishNotConfirmed
		}
		// the return, if any, arrives before the ack
		select {
		case ret := <-returns:
			return fmt.Errorf("%w: %d %s", ErrMandatoryFailed, ret.ReplyCode, ret.ReplyText)
		default:
		}
		return nil

	case <-timeout.C:
		return ErrPublishTimeout

	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrOperationCancelled, ctx.Err())
	}
}

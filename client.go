// Copyright 2024 Mmate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mqstep

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/mqstep/config"
	"github.com/glimte/mqstep/health"
	"github.com/glimte/mqstep/internal/rabbitmq"
	"github.com/glimte/mqstep/step"
)

// AppID is set on every published message
const AppID = "mqstep"

// ErrNoHost is returned for a profile without broker host
var ErrNoHost = errors.New("mqstep: profile has no host")

// connection is the part of rabbitmq.ConnectionManager the client uses
type connection interface {
	Connect(ctx context.Context) error
	Channel() (*amqp.Channel, error)
	Close() error
}

// sender is the part of rabbitmq.Publisher the client uses
type sender interface {
	Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error
}

// Client publishes step messages to the broker of one profile
type Client struct {
	profile config.Profile
	conn    connection
	sender  sender
	logger  *slog.Logger
	newID   func() string
	now     func() time.Time
}

// NewClient creates a client for profile. The connection is opened by the
// first Publish or Check.
func NewClient(profile config.Profile, options ...ClientOption) (*Client, error) {
	if profile.Host == "" {
		return nil, ErrNoHost
	}

	cfg := &clientConfig{
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(cfg)
	}

	connOpts := []rabbitmq.ConnectionOption{
		rabbitmq.WithLogger(cfg.logger),
	}
	if profile.VirtualHost != "" {
		connOpts = append(connOpts, rabbitmq.WithVirtualHost(profile.VirtualHost))
	}
	if profile.Secure {
		connOpts = append(connOpts, rabbitmq.WithTLS(cfg.tlsConfig))
	}
	if cfg.connectTimeout > 0 {
		connOpts = append(connOpts, rabbitmq.WithConnectTimeout(cfg.connectTimeout))
	}
	if cfg.connectionName != "" {
		connOpts = append(connOpts, rabbitmq.WithConnectionName(cfg.connectionName))
	}
	manager := rabbitmq.NewConnectionManager(profile.URL(), connOpts...)

	pubOpts := []rabbitmq.PublisherOption{
		rabbitmq.WithPublisherLogger(cfg.logger),
		rabbitmq.WithConfirmMode(!cfg.noConfirm),
		rabbitmq.WithMandatory(cfg.mandatory),
	}
	if cfg.confirmTimeout > 0 {
		pubOpts = append(pubOpts, rabbitmq.WithConfirmTimeout(cfg.confirmTimeout))
	}

	return &Client{
		profile: profile,
		conn:    manager,
		sender:  rabbitmq.NewPublisher(manager, pubOpts...),
		logger:  cfg.logger,
		newID:   uuid.NewString,
		now:     time.Now,
	}, nil
}

// Connect opens the connection if it is not open yet
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Publish sends msg as a persistent message and waits for the broker to
// confirm it.
func (c *Client) Publish(ctx context.Context, msg step.Message) error {
	if err := c.conn.Connect(ctx); err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    c.newID(),
		Timestamp:    c.now(),
		AppId:        AppID,
		Body:         msg.Body,
	}

	if err := c.sender.Publish(ctx, msg.Exchange, msg.RoutingKey, publishing); err != nil {
		c.logger.Warn("message not confirmed",
			"profile", c.profile.Name,
			"messageId", publishing.MessageId,
			"retryable", rabbitmq.IsRetryable(err),
			"error", err)
		return err
	}

	c.logger.Debug("message confirmed",
		"profile", c.profile.Name,
		"messageId", publishing.MessageId)
	return nil
}

// Check tests the connection to the broker
func (c *Client) Check(ctx context.Context) health.CheckResult {
	return health.NewBrokerChecker(c.profile.Name, c.conn, c.logger).Check(ctx)
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// NewDialer returns a step.Dialer creating clients with options. The returned
// publisher is already connected.
func NewDialer(options ...ClientOption) step.Dialer {
	return func(ctx context.Context, profile config.Profile) (step.Publisher, error) {
		client, err := NewClient(profile, options...)
		if err != nil {
			return nil, err
		}
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Dial connects to the broker of profile with default options
func Dial(ctx context.Context, profile config.Profile) (step.Publisher, error) {
	return NewDialer()(ctx, profile)
}

// clientConfig holds client configuration
type clientConfig struct {
	logger         *slog.Logger
	connectTimeout time.Duration
	confirmTimeout time.Duration
	connectionName string
	tlsConfig      *tls.Config
	mandatory      bool
	noConfirm      bool
}

// ClientOption configures the client
type ClientOption func(*clientConfig)

// WithLogger sets the logger for all components
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithConnectTimeout bounds the time spent connecting to the broker
func WithConnectTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.connectTimeout = timeout
	}
}

// WithConfirmTimeout bounds the wait for the broker confirmation
func WithConfirmTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.confirmTimeout = timeout
	}
}

// WithConnectionName names the connection in the broker management UI
func WithConnectionName(name string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.connectionName = name
	}
}

// WithTLSConfig sets the TLS configuration used for secure profiles
func WithTLSConfig(tlsConfig *tls.Config) ClientOption {
	return func(cfg *clientConfig) {
		cfg.tlsConfig = tlsConfig
	}
}

// WithMandatory fails publishing when no queue is bound to the routing key
func WithMandatory(mandatory bool) ClientOption {
	return func(cfg *clientConfig) {
		cfg.mandatory = mandatory
	}
}

// WithConfirmMode enables/disables publisher confirms
func WithConfirmMode(enabled bool) ClientOption {
	return func(cfg *clientConfig) {
		cfg.noConfirm = !enabled
	}
}

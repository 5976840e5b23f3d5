package mqstep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/glimte/mqstep/config"
	"github.com/glimte/mqstep/health"
	"github.com/glimte/mqstep/step"
)

type mockConnection struct {
	mock.Mock
}

func (m *mockConnection) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockConnection) Channel() (*amqp.Channel, error) {
	args := m.Called()
	ch, _ := args.Get(0).(*amqp.Channel)
	return ch, args.Error(1)
}

func (m *mockConnection) Close() error {
	args := m.Called()
	return args.Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	args := m.Called(ctx, exchange, routingKey, msg)
	return args.Error(0)
}

var testProfile = config.Profile{Name: "rabbit-test", Host: "localhost", Port: 5672, Username: "guest", Password: "guest"}

func newTestClient(conn connection, s sender) *Client {
	return &Client{
		profile: testProfile,
		conn:    conn,
		sender:  s,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:   func() string { return "message-1" },
		now:     func() time.Time { return time.Unix(1700000000, 0) },
	}
}

func TestNewClient(t *testing.T) {
	t.Run("requires a host", func(t *testing.T) {
		_, err := NewClient(config.Profile{Name: "empty"})
		assert.ErrorIs(t, err, ErrNoHost)
	})

	t.Run("does not connect", func(t *testing.T) {
		client, err := NewClient(testProfile, WithConnectTimeout(time.Second), WithMandatory(true))
		require.NoError(t, err)
		assert.NotNil(t, client.conn)
		assert.NotNil(t, client.sender)
		assert.NoError(t, client.Close())
	})
}

func TestClientPublish(t *testing.T) {
	msg := step.Message{
		Exchange:    "FD-exchange",
		RoutingKey:  "frogdevelopment.test",
		ContentType: step.ContentTypeJSON,
		Body:        []byte(`{"key1":"value_test"}`),
	}

	t.Run("stamps and sends the message", func(t *testing.T) {
		conn := &mockConnection{}
		s := &mockSender{}
		conn.On("Connect", mock.Anything).Return(nil)
		s.On("Publish", mock.Anything, "FD-exchange", "frogdevelopment.test", amqp.Publishing{
			ContentType:  step.ContentTypeJSON,
			DeliveryMode: amqp.Persistent,
			MessageId:    "message-1",
			Timestamp:    time.Unix(1700000000, 0),
			AppId:        AppID,
			Body:         msg.Body,
		}).Return(nil)

		client := newTestClient(conn, s)
		require.NoError(t, client.Publish(context.Background(), msg))

		conn.AssertExpectations(t)
		s.AssertExpectations(t)
	})

	t.Run("connection failure skips publishing", func(t *testing.T) {
		conn := &mockConnection{}
		s := &mockSender{}
		refused := errors.New("connection refused")
		conn.On("Connect", mock.Anything).Return(refused)

		client := newTestClient(conn, s)
		err := client.Publish(context.Background(), msg)

		assert.ErrorIs(t, err, refused)
		s.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("broker errors are returned", func(t *testing.T) {
		conn := &mockConnection{}
		s := &mockSender{}
		nacked := errors.New("nacked")
		conn.On("Connect", mock.Anything).Return(nil)
		s.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nacked)

		client := newTestClient(conn, s)
		assert.ErrorIs(t, client.Publish(context.Background(), msg), nacked)
	})
}

func TestClientCheck(t *testing.T) {
	conn := &mockConnection{}
	conn.On("Connect", mock.Anything).Return(errors.New("no route to host"))

	client := newTestClient(conn, &mockSender{})
	result := client.Check(context.Background())

	assert.Equal(t, "rabbit-test", result.Name)
	assert.Equal(t, health.StatusUnhealthy, result.Status)
	assert.False(t, result.Healthy())
}

func TestDial(t *testing.T) {
	t.Run("invalid profile", func(t *testing.T) {
		_, err := Dial(context.Background(), config.Profile{})
		assert.ErrorIs(t, err, ErrNoHost)
	})

	t.Run("unreachable broker", func(t *testing.T) {
		dial := NewDialer(WithConnectTimeout(500 * time.Millisecond))
		_, err := dial(context.Background(), config.Profile{Name: "down", Host: "127.0.0.1", Port: 1})
		assert.Error(t, err)
	})
}

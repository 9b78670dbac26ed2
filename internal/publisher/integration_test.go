//go:build integration

package publisher

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"fitsync/internal/domain"
	"fitsync/internal/testutil"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) config(name string) Config {
	return Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-" + name,
		RoutingKey: "test-routing-key-" + name,
		QueueName:  "test-queue-" + name,
	}
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	pub, err := NewRabbitMQ(s.config("connect"), s.logger)
	s.NoError(err)
	s.NotNil(pub)

	err = pub.Close()
	s.NoError(err)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishActivity() {
	cfg := s.config("activity")

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	activity := testutil.Activity(domain.ProviderStrava, "123")
	activity.HasStreams = true
	activity.Description = testutil.Ptr("Easy loop")

	err = pub.PublishActivity(s.ctx, activity, 3600)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	s.Equal("application/json", msg.ContentType)
	s.Equal(EventActivitySynced, msg.Type)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)

	var received ActivityMessage
	err = json.Unmarshal(msg.Body, &received)
	s.Require().NoError(err)
	s.Equal(msg.MessageId, received.EventID)
	s.Equal(EventActivitySynced, received.Event)
	s.Equal("strava_123", received.Activity.ID)
	s.Equal(domain.ProviderStrava, received.Activity.Source)
	s.Equal("Easy loop", *received.Activity.Description)
	s.True(received.Activity.HasStreams)
	s.Equal(3600, received.Samples)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishInOrder() {
	cfg := s.config("order")

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	for _, id := range []string{"1", "2"} {
		s.Require().NoError(pub.PublishActivity(s.ctx, testutil.Activity(domain.ProviderGarmin, id), 0))
	}

	msgs := s.consumeMessages(cfg, 2)
	s.Require().Len(msgs, 2)

	for i, want := range []string{"garmin_1", "garmin_2"} {
		msg := msgs[i]

		var received ActivityMessage
		s.Require().NoError(json.Unmarshal(msg.Body, &received))
		s.Equal(want, received.Activity.ID)
	}
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	msgs := s.consumeMessages(cfg, 1)
	if len(msgs) == 0 {
		return nil
	}
	return &msgs[0]
}

func (s *RabbitMQIntegrationSuite) consumeMessages(cfg Config, n int) []amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	var out []amqp.Delivery
	for len(out) < n {
		select {
		case msg := <-msgs:
			out = append(out, msg)
		case <-time.After(5 * time.Second):
			s.Fail("Timeout waiting for message")
			return out
		}
	}
	return out
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

type AMQPConfig struct {
	URL      string
	Exchange string
}

type amqpSender struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAMQPSender publishes events on a durable topic exchange, routed by the
// topic name of each event.
func NewAMQPSender(ctx context.Context, cfg AMQPConfig) (Sender, func(), error) {
	logger := logging.GetFromContext(ctx)

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to message broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	logger.Info().Str("exchange", cfg.Exchange).Msg("connected to message broker")

	s := &amqpSender{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
	}

	return s, s.close, nil
}

func (s *amqpSender) Send(ctx context.Context, event types.AlertEventRecorded) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.channel.PublishWithContext(ctx, s.exchange, event.TopicName(), false, false, msg)
	if err != nil {
		logger := logging.GetFromContext(ctx)
		logger.Error().Err(err).Str("topic", event.TopicName()).Msg("failed to publish event")
		return fmt.Errorf("failed to publish %s: %w", event.TopicName(), err)
	}

	return nil
}

func (s *amqpSender) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channel.Close()
	s.conn.Close()
}

func newPublishing(event types.AlertEventRecorded) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, err
	}

	return amqp.Publishing{
		ContentType:  event.ContentType(),
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.Timestamp,
		Type:         AlertEventRecordedType,
		Body:         body,
	}, nil
}

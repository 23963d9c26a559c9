package events

import (
	"context"
	"errors"
	"fmt"
	"io"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
	yaml "gopkg.in/yaml.v2"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

const (
	EventSource            = "github.com/diwise/iot-energy-mgmt"
	AlertEventRecordedType = "ecoenergy.alertEventRecorded"
)

//go:generate moq -rm -out sender_mock.go . Sender

type Sender interface {
	Send(ctx context.Context, event types.AlertEventRecorded) error
}

type eventSender struct {
	subscribers map[string][]SubscriberConfig
}

// New returns a sender that posts cloud events over http to the subscribers
// configured for each event type.
func New(cfg *Config) Sender {
	e := &eventSender{
		subscribers: make(map[string][]SubscriberConfig),
	}

	if cfg != nil {
		for _, s := range cfg.Notifications {
			e.subscribers[s.Type] = append(e.subscribers[s.Type], s.Subscribers...)
		}
	}

	return e
}

func (e *eventSender) Send(ctx context.Context, message types.AlertEventRecorded) error {
	subscribers := e.subscribers[AlertEventRecordedType]
	if len(subscribers) == 0 {
		return nil
	}

	c, err := cloudevents.NewClientHTTP()
	if err != nil {
		return err
	}

	event, err := newCloudEvent(message)
	if err != nil {
		return err
	}

	logger := logging.GetFromContext(ctx)

	for _, s := range subscribers {
		ctxWithTarget := cloudevents.ContextWithTarget(ctx, s.Endpoint)

		result := c.Send(ctxWithTarget, event)
		if cloudevents.IsUndelivered(result) || errors.Is(result, unix.ECONNREFUSED) {
			logger.Error().Err(result).Msgf("failed to send event to %s", s.Endpoint)
			err = fmt.Errorf("%w", result)
		}
	}

	return err
}

func newCloudEvent(message types.AlertEventRecorded) (cloudevents.Event, error) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetTime(message.Timestamp)
	event.SetSource(EventSource)
	event.SetType(AlertEventRecordedType)
	event.SetSubject(fmt.Sprintf("device:%d", message.DeviceID))

	err := event.SetData(cloudevents.ApplicationJSON, message)
	if err != nil {
		return cloudevents.Event{}, err
	}

	return event, nil
}

type multiSender []Sender

// Combine returns a sender that hands each event to all of senders and
// reports every failure.
func Combine(senders ...Sender) Sender {
	return multiSender(senders)
}

func (m multiSender) Send(ctx context.Context, event types.AlertEventRecorded) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type SubscriberConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type Notification struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Type        string             `yaml:"type"`
	Subscribers []SubscriberConfig `yaml:"subscribers"`
}

type Config struct {
	Notifications []Notification `yaml:"notifications"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

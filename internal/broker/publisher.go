package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/internal/config"
	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/internal/metrics"
)

// UnroutedKey replaces an empty routing key on transports that need one.
const UnroutedKey = "unrouted"

// Publisher hands envelopes to the durable broker.
type Publisher interface {
	Publish(ctx context.Context, env *domain.DomainEventEnvelope, routingKey, correlationID string) error
	Close() error
}

// NewPublisher connects the publisher selected by cfg.Driver.
func NewPublisher(ctx context.Context, cfg config.BrokerConfig, logger zerolog.Logger) (Publisher, error) {
	var (
		p   Publisher
		err error
	)
	switch cfg.Driver {
	case "kafka", "":
		p, err = NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, logger)
	case "rabbitmq":
		p, err = NewRabbitPublisher(ctx, cfg.RabbitMQ, logger)
	case "nats":
		p, err = NewNATSPublisher(ctx, cfg.NATS, logger)
	default:
		return nil, fmt.Errorf("unsupported broker driver: %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(p, cfg.Driver), nil
}

func transportKey(routingKey string) string {
	if routingKey == "" {
		return UnroutedKey
	}
	return routingKey
}

// brokerMessageID is the id a broker dedups on: the chat message id, which is
// stable across re-publishes. The event id is used only when it is missing.
func brokerMessageID(env *domain.DomainEventEnvelope, correlationID string) string {
	if correlationID != "" {
		return correlationID
	}
	return env.EventID
}

func encodeEnvelope(env *domain.DomainEventEnvelope) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return body, nil
}

type instrumented struct {
	Publisher
	driver string
}

// Instrument records publish counts and latency for p.
func Instrument(p Publisher, driver string) Publisher {
	if driver == "" {
		driver = "kafka"
	}
	return &instrumented{Publisher: p, driver: driver}
}

func (i *instrumented) Publish(ctx context.Context, env *domain.DomainEventEnvelope, routingKey, correlationID string) error {
	start := time.Now()
	err := i.Publisher.Publish(ctx, env, routingKey, correlationID)
	metrics.PublishDuration.Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.Published.WithLabelValues(i.driver, result).Inc()
	return err
}

package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/pkg/log"
)

// EnvelopeHandler processes an envelope read back from the broker.
type EnvelopeHandler interface {
	HandleEnvelope(ctx context.Context, env *domain.DomainEventEnvelope) error
}

// KafkaConsumer replays envelopes published by any instance.
type KafkaConsumer struct {
	consumer *kafka.Consumer
	topic    string
	handler  EnvelopeHandler
	logger   zerolog.Logger
	doneCh   chan struct{}
}

// NewKafkaConsumer creates a consumer. groupID must be unique per instance
// so that every instance sees every envelope.
func NewKafkaConsumer(brokers, topic, groupID string, handler EnvelopeHandler, logger zerolog.Logger) (*KafkaConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &KafkaConsumer{
		consumer: c,
		topic:    topic,
		handler:  handler,
		logger:   logger.With().Str(log.FieldComponent, "broker.kafka_consumer").Logger(),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start subscribes and consumes in a background goroutine until ctx is done.
func (kc *KafkaConsumer) Start(ctx context.Context) error {
	if err := kc.consumer.Subscribe(kc.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", kc.topic, err)
	}

	kc.logger.Info().Str("topic", kc.topic).Msg("kafka envelope consumer started")

	go kc.consumeLoop(ctx)

	return nil
}

func (kc *KafkaConsumer) consumeLoop(ctx context.Context) {
	defer close(kc.doneCh)

	for {
		select {
		case <-ctx.Done():
			kc.logger.Info().Msg("kafka envelope consumer shutting down")
			return
		default:
			msg, err := kc.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				kc.logger.Error().Err(err).Msg("kafka envelope consumer error")
				continue
			}

			kc.processMessage(context.WithoutCancel(ctx), msg.Value)
		}
	}
}

func (kc *KafkaConsumer) processMessage(ctx context.Context, value []byte) {
	var env domain.DomainEventEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		kc.logger.Warn().Err(err).Msg("failed to unmarshal envelope")
		return
	}

	if err := kc.handler.HandleEnvelope(ctx, &env); err != nil {
		kc.logger.Error().Err(err).
			Str(log.FieldEventID, env.EventID).
			Str(log.FieldRoutingKey, env.RoutingKey).
			Msg("failed to handle envelope")
	}
}

// Done is closed when the consume loop has exited.
func (kc *KafkaConsumer) Done() <-chan struct{} {
	return kc.doneCh
}

// Close waits for the consume loop to exit, then closes the consumer.
func (kc *KafkaConsumer) Close() error {
	<-kc.doneCh
	if err := kc.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}

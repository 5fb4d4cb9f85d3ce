package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/pkg/log"
)

// Kafka header names carried on every envelope.
const (
	HeaderRoutingKey    = "routing_key"
	HeaderCorrelationID = "correlation_id"
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderProducer      = "producer"
)

// KafkaPublisher produces envelopes to a single topic and waits for the
// delivery report of each one.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   zerolog.Logger
	doneCh   chan struct{}
}

func NewKafkaPublisher(brokers, topic string, partitions int, logger zerolog.Logger) (*KafkaPublisher, error) {
	logger = logger.With().Str(log.FieldComponent, "broker.kafka").Logger()

	// Ensure topic exists with desired partition count
	if err := ensureTopic(brokers, topic, partitions); err != nil {
		logger.Warn().Err(err).Str("topic", topic).Msg("failed to ensure topic (may already exist)")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          5,
		"compression.type":   "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kp := &KafkaPublisher{
		producer: p,
		topic:    topic,
		logger:   logger,
		doneCh:   make(chan struct{}),
	}

	go kp.eventLoop()

	return kp, nil
}

func ensureTopic(brokers, topic string, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{
		{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		},
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}

	return nil
}

// eventLoop drains producer-level events; per-message reports go to the
// channel passed to Produce.
func (kp *KafkaPublisher) eventLoop() {
	for e := range kp.producer.Events() {
		switch ev := e.(type) {
		case kafka.Error:
			kp.logger.Error().Err(ev).Bool("fatal", ev.IsFatal()).Msg("kafka producer error")
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				kp.logger.Error().Err(ev.TopicPartition.Error).Msg("kafka delivery failed")
			}
		}
	}
	close(kp.doneCh)
}

func (kp *KafkaPublisher) Publish(ctx context.Context, env *domain.DomainEventEnvelope, routingKey, correlationID string) error {
	value, err := encodeEnvelope(env)
	if err != nil {
		return err
	}

	delivery := make(chan kafka.Event, 1)

	// Key by sender so one user's turns stay ordered within a partition.
	err = kp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &kp.topic,
			Partition: kafka.PartitionAny,
		},
		Key:     []byte(env.UserID),
		Value:   value,
		Headers: kafkaHeaders(env, routingKey, correlationID),
	}, delivery)
	if err != nil {
		return fmt.Errorf("failed to produce envelope: %w", err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("waiting for kafka delivery: %w", ctx.Err())
	case e := <-delivery:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected kafka delivery event: %v", e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("kafka delivery failed: %w", m.TopicPartition.Error)
		}
		return nil
	}
}

func kafkaHeaders(env *domain.DomainEventEnvelope, routingKey, correlationID string) []kafka.Header {
	return []kafka.Header{
		{Key: HeaderRoutingKey, Value: []byte(transportKey(routingKey))},
		{Key: HeaderCorrelationID, Value: []byte(correlationID)},
		{Key: HeaderEventID, Value: []byte(env.EventID)},
		{Key: HeaderEventType, Value: []byte(env.EventType)},
		{Key: HeaderProducer, Value: []byte(env.Producer)},
	}
}

func (kp *KafkaPublisher) Close() error {
	kp.producer.Flush(5000)
	kp.producer.Close()
	<-kp.doneCh
	return nil
}

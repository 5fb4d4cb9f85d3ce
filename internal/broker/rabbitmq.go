package broker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/internal/config"
	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/pkg/log"
)

const maxDialDelay = 60 * time.Second

var ErrNotConfirmed = errors.New("broker did not confirm publish")

// RabbitPublisher publishes envelopes to a topic exchange in confirm mode.
// The routing key of each envelope is the AMQP routing key.
type RabbitPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   zerolog.Logger
	mu       sync.Mutex
}

func NewRabbitPublisher(ctx context.Context, cfg config.RabbitMQConfig, logger zerolog.Logger) (*RabbitPublisher, error) {
	logger = logger.With().Str(log.FieldComponent, "broker.rabbitmq").Logger()

	conn, err := DialWithRetry(ctx, cfg.URL, cfg.RetryAttempts, cfg.RetryDelay, logger)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("confirm mode: %w", err)
	}

	return &RabbitPublisher{
		conn:     conn,
		ch:       ch,
		exchange: cfg.Exchange,
		logger:   logger,
	}, nil
}

// DialWithRetry connects with exponential backoff, capped at one minute per
// wait. It gives up early when ctx is cancelled.
func DialWithRetry(ctx context.Context, url string, attempts int, delay time.Duration, logger zerolog.Logger) (*amqp.Connection, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error

	for i := 1; i <= attempts; i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			if i > 1 {
				logger.Info().Int("attempt", i).Msg("rabbitmq connected")
			}
			return conn, nil
		}
		lastErr = err

		if i == attempts {
			break
		}

		sleep := backoff(delay, i)
		logger.Warn().Err(err).Int("attempt", i).Dur("sleep", sleep).Msg("rabbitmq dial failed")

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, lastErr)
}

func backoff(base time.Duration, attempt int) time.Duration {
	sleep := base * time.Duration(math.Pow(2, float64(attempt-1)))
	if sleep > maxDialDelay || sleep <= 0 {
		sleep = maxDialDelay
	}
	return sleep
}

func (r *RabbitPublisher) Publish(ctx context.Context, env *domain.DomainEventEnvelope, routingKey, correlationID string) error {
	body, err := encodeEnvelope(env)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dc, err := r.ch.PublishWithDeferredConfirmWithContext(ctx, r.exchange, transportKey(routingKey), false, false, rabbitPublishing(env, body, routingKey, correlationID))
	if err != nil {
		return fmt.Errorf("publish to %s: %w", r.exchange, err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for confirm: %w", err)
	}
	if !acked {
		return ErrNotConfirmed
	}
	return nil
}

// rabbitPublishing carries the chat message id as MessageId so consumers can
// dedup redeliveries of one message; the event id travels as a header.
func rabbitPublishing(env *domain.DomainEventEnvelope, body []byte, routingKey, correlationID string) amqp.Publishing {
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     brokerMessageID(env, correlationID),
		CorrelationId: correlationID,
		Type:          env.EventType,
		Timestamp:     env.OccurredAt,
		AppId:         env.Producer,
		Headers: amqp.Table{
			HeaderEventID:    env.EventID,
			HeaderRoutingKey: transportKey(routingKey),
		},
		Body: body,
	}
}

func (r *RabbitPublisher) Close() error {
	if err := r.ch.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("failed to close channel")
	}
	return r.conn.Close()
}

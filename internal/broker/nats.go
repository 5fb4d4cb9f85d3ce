package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/internal/config"
	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/pkg/log"
)

// NATSPublisher publishes envelopes into a JetStream stream. Each routing
// key becomes a subject under the configured prefix.
type NATSPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
	logger zerolog.Logger
}

func NewNATSPublisher(ctx context.Context, cfg config.NATSConfig, logger zerolog.Logger) (*NATSPublisher, error) {
	logger = logger.With().Str(log.FieldComponent, "broker.nats").Logger()

	nc, err := nats.Connect(cfg.URL,
		nats.Name("chat-presence"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{cfg.SubjectPrefix + ".>"},
		Retention:  jetstream.LimitsPolicy,
		Storage:    jetstream.FileStorage,
		MaxAge:     7 * 24 * time.Hour,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", cfg.Stream, err)
	}

	return &NATSPublisher{
		nc:     nc,
		js:     js,
		prefix: cfg.SubjectPrefix,
		logger: logger,
	}, nil
}

func subjectFor(prefix, routingKey string) string {
	return prefix + "." + transportKey(routingKey)
}

func (n *NATSPublisher) Publish(ctx context.Context, env *domain.DomainEventEnvelope, routingKey, correlationID string) error {
	body, err := encodeEnvelope(env)
	if err != nil {
		return err
	}

	msg := natsMsg(n.prefix, env, body, routingKey, correlationID)
	if _, err := n.js.PublishMsg(ctx, msg, jetstream.WithMsgID(brokerMessageID(env, correlationID))); err != nil {
		return fmt.Errorf("jetstream publish %s: %w", msg.Subject, err)
	}
	return nil
}

// natsMsg builds the message for one envelope. The JetStream dedup id is set
// at publish time from the chat message id.
func natsMsg(prefix string, env *domain.DomainEventEnvelope, body []byte, routingKey, correlationID string) *nats.Msg {
	msg := nats.NewMsg(subjectFor(prefix, routingKey))
	msg.Data = body
	msg.Header.Set(HeaderCorrelationID, correlationID)
	msg.Header.Set(HeaderEventID, env.EventID)
	msg.Header.Set(HeaderEventType, env.EventType)
	msg.Header.Set(HeaderProducer, env.Producer)
	return msg
}

func (n *NATSPublisher) Close() error {
	return n.nc.Drain()
}

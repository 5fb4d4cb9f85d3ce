package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/internal/broker"
	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/internal/idgen"
	"github.com/pcidesk/chat-presence/internal/metrics"
	"github.com/pcidesk/chat-presence/pkg/log"
)

const defaultPublishTimeout = 5 * time.Second

// Notifier delivers a named event to every connection in a group.
type Notifier interface {
	SendToGroup(groupID, event string, payload interface{}) error
}

// CounterpartResolver finds the linked partner of a user.
type CounterpartResolver interface {
	ResolveMerchantFor(officerID string) (string, bool)
	ResolveOfficerFor(merchantID string) (string, bool)
}

// Outcome reports what a Route call did.
type Outcome struct {
	Envelope     *domain.DomainEventEnvelope
	RoutingKey   string
	TargetGroups []string
	Delivered    int
	Published  bool
	Faults     []error
}

// HasFault reports whether the outcome recorded a fault of kind.
func (o *Outcome) HasFault(kind domain.FaultKind) bool {
	for _, err := range o.Faults {
		if domain.IsFault(err, kind) {
			return true
		}
	}
	return false
}

type Config struct {
	InstanceID     string
	PublishTimeout time.Duration
}

// Router classifies inbound chat messages, fans live ones out through the
// hub and publishes one envelope per message.
type Router struct {
	notifier  Notifier
	resolver  CounterpartResolver
	publisher broker.Publisher
	ids       idgen.Generator
	cfg       Config
	now       func() time.Time
	marshal   func(v interface{}) ([]byte, error)
	logger    zerolog.Logger
}

func New(notifier Notifier, resolver CounterpartResolver, publisher broker.Publisher, ids idgen.Generator, cfg Config, logger zerolog.Logger) *Router {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	return &Router{
		notifier:  notifier,
		resolver:  resolver,
		publisher: publisher,
		ids:       ids,
		cfg:       cfg,
		now:       time.Now,
		marshal:   json.Marshal,
		logger:    logger.With().Str(log.FieldComponent, "router").Logger(),
	}
}

// Route processes one inbound message. fromInternal marks a redelivery of
// something this process already handled: the envelope is rebuilt but
// nothing is sent or published.
func (r *Router) Route(ctx context.Context, msg *domain.ChatMessage, fromInternal bool) Outcome {
	decision := Decide(msg.Type)
	logger := r.logger.With().
		Str(log.FieldMessageID, msg.ID).
		Str(log.FieldMessageType, msg.Type.String()).
		Str(log.FieldRoutingKey, decision.RoutingKey).
		Logger()

	out := Outcome{RoutingKey: decision.RoutingKey}

	if !decision.Routed() {
		out.Faults = append(out.Faults, r.fault(domain.FaultUnknownRoute, "router.classify", domain.ErrUnroutedMessage))
		logger.Warn().Msg("message type has no route")
	}
	metrics.MessagesRouted.WithLabelValues(routingLabel(decision.RoutingKey)).Inc()

	env, err := r.buildEnvelope(msg, decision.RoutingKey)
	out.Envelope = env
	if err != nil {
		out.Faults = append(out.Faults, err)
		logger.Error().Err(err).Msg("envelope payload encoding failed")
	}

	if fromInternal {
		out.Faults = append(out.Faults, r.fault(domain.FaultSelfEcho, "router.route", domain.ErrInternalEcho))
		logger.Debug().Msg("internal redelivery, skipping fan-out and publish")
		return out
	}

	if decision.Live {
		decision.TargetGroups = r.targets(msg, decision)
		out.TargetGroups = decision.TargetGroups
		delivered, faults := r.fanout(msg, decision, logger)
		out.Delivered = delivered
		out.Faults = append(out.Faults, faults...)
	}

	if err := r.publish(ctx, env, decision.RoutingKey, msg.ID); err != nil {
		out.Faults = append(out.Faults, err)
		logger.Error().Err(err).Str(log.FieldEventID, env.EventID).Msg("envelope publish failed")
	} else {
		out.Published = true
	}

	return out
}

// Fanout performs only the live delivery step, for envelopes replayed from
// another instance. Non-live types deliver nothing.
func (r *Router) Fanout(_ context.Context, msg *domain.ChatMessage) (int, []error) {
	decision := Decide(msg.Type)
	if !decision.Live {
		return 0, nil
	}
	logger := r.logger.With().
		Str(log.FieldMessageID, msg.ID).
		Str(log.FieldRoutingKey, decision.RoutingKey).
		Logger()
	decision.TargetGroups = r.targets(msg, decision)
	return r.fanout(msg, decision, logger)
}

// fanout sends the recipient event to every group in decision.TargetGroups
// and one echo to the sender's own group. Send failures are recorded and do not stop the
// remaining sends.
func (r *Router) fanout(msg *domain.ChatMessage, decision domain.RoutingDecision, logger zerolog.Logger) (int, []error) {
	var (
		delivered int
		faults    []error
	)

	if len(decision.TargetGroups) == 0 {
		logger.Debug().Msg("no counterpart to deliver to")
	}

	send := func(groupID, event string) {
		if err := r.notifier.SendToGroup(groupID, event, msg); err != nil {
			metrics.GroupSends.WithLabelValues("error").Inc()
			faults = append(faults, r.fault(domain.FaultTransientDelivery, "router.fanout", fmt.Errorf("group %s: %w", groupID, err)))
			logger.Warn().Err(err).Str(log.FieldGroupID, groupID).Str(log.FieldEventName, event).Msg("group send failed")
			return
		}
		metrics.GroupSends.WithLabelValues("ok").Inc()
		delivered++
	}

	for _, groupID := range decision.TargetGroups {
		send(groupID, decision.RecipientEvent)
	}
	send(domain.UserGroup(msg.SenderID), decision.EchoEvent)

	return delivered, faults
}

func (r *Router) targets(msg *domain.ChatMessage, decision domain.RoutingDecision) []string {
	seen := make(map[string]struct{}, len(msg.CounterpartIDs))
	var groups []string
	for _, id := range msg.CounterpartIDs {
		if id == "" || id == msg.SenderID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		groups = append(groups, domain.UserGroup(id))
	}
	if len(groups) > 0 || r.resolver == nil {
		return groups
	}

	var (
		partner string
		ok      bool
	)
	switch decision.SenderRole {
	case domain.RoleComplianceOfficer:
		partner, ok = r.resolver.ResolveMerchantFor(msg.SenderID)
	case domain.RoleMerchant:
		partner, ok = r.resolver.ResolveOfficerFor(msg.SenderID)
	}
	if ok {
		groups = append(groups, domain.UserGroup(partner))
	}
	return groups
}

func (r *Router) publish(ctx context.Context, env *domain.DomainEventEnvelope, routingKey, correlationID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, env, routingKey, correlationID); err != nil {
		return r.fault(domain.FaultTransientDelivery, "router.publish", err)
	}
	return nil
}

// buildEnvelope fills every field it can. A payload that fails to encode
// leaves Payload empty and is reported as a fault; the envelope is still
// returned.
func (r *Router) buildEnvelope(msg *domain.ChatMessage, routingKey string) (*domain.DomainEventEnvelope, error) {
	env := &domain.DomainEventEnvelope{
		EventID:       r.newEventID(),
		EventType:     domain.EventTypeChatMessage,
		EntityType:    domain.EntityTypeChatMessage,
		Action:        domain.ActionChatSent,
		Message:       msg.Body,
		OccurredAt:    r.now().UTC(),
		Processed:     false,
		TenantID:      msg.TenantID,
		UserID:        msg.SenderID,
		CorrelationID: msg.ID,
		RoutingKey:    routingKey,
		Producer:      r.cfg.InstanceID,
	}

	payload, err := r.marshal(msg)
	if err != nil {
		return env, r.fault(domain.FaultPayloadEncoding, "router.envelope", err)
	}
	env.Payload = payload
	return env, nil
}

func (r *Router) newEventID() string {
	id, err := r.ids.Generate()
	if err != nil {
		r.logger.Warn().Err(err).Str("generator", r.ids.Kind()).Msg("event id generation failed, using fallback")
		id, _ = idgen.UUIDGenerator{}.Generate()
	}
	return id
}

func (r *Router) fault(kind domain.FaultKind, op string, err error) error {
	metrics.Faults.WithLabelValues(kind.String()).Inc()
	return domain.NewFault(kind, op, err)
}

func routingLabel(key string) string {
	if key == "" {
		return broker.UnroutedKey
	}
	return key
}

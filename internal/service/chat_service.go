package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/internal/activity"
	"github.com/pcidesk/chat-presence/internal/audit"
	"github.com/pcidesk/chat-presence/internal/dedup"
	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/internal/hub"
	"github.com/pcidesk/chat-presence/internal/metrics"
	"github.com/pcidesk/chat-presence/internal/presence"
	"github.com/pcidesk/chat-presence/internal/router"
	"github.com/pcidesk/chat-presence/pkg/log"
)

type chatService struct {
	hub        *hub.Hub
	router     *router.Router
	dedup      dedup.Store
	registry   *presence.Registry
	activity   activity.Store
	instanceID string
	now        func() time.Time
	logger     zerolog.Logger
}

func NewChatService(
	h *hub.Hub,
	r *router.Router,
	store dedup.Store,
	reg *presence.Registry,
	act activity.Store,
	instanceID string,
	logger zerolog.Logger,
) ChatService {
	return &chatService{
		hub:        h,
		router:     r,
		dedup:      store,
		registry:   reg,
		activity:   act,
		instanceID: instanceID,
		now:        time.Now,
		logger:     logger.With().Str(log.FieldComponent, "chat_service").Logger(),
	}
}

func (s *chatService) HandleConnect(ctx context.Context, c *hub.Client) error {
	session := c.Session

	for _, groupID := range []string{domain.UserGroup(session.UserID), domain.PopulationGroup(session.Role)} {
		if err := s.hub.JoinGroup(c.ID, groupID); err != nil {
			return fmt.Errorf("join %s: %w", groupID, err)
		}
	}
	s.touch(ctx, session.UserID)

	audit.LogWithDetail(ctx, audit.ActionConnect, session.UserID, string(session.Role), "client connected")

	return c.SendMessage(&domain.ConnectedMessage{
		Type:         domain.MsgTypeConnected,
		ConnectionID: c.ID,
		UserID:       session.UserID,
		Role:         session.Role,
	})
}

func (s *chatService) HandleChatMessage(ctx context.Context, c *hub.Client, in *domain.ChatMessageWS) error {
	session := c.Session
	l := log.Ctx(ctx)

	if in.MessageID == "" {
		metrics.Faults.WithLabelValues(domain.FaultMalformedInput.String()).Inc()
		l.Warn().Msg("chat message without message_id dropped")
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "message_id is required"))
	}

	mt := domain.ParseMessageType(in.MessageType)
	if role, ok := mt.SenderRole(); ok && role != session.Role {
		audit.LogWithDetail(ctx, audit.ActionRoleMismatch, session.UserID, mt.String(), "message type not allowed for role")
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "message type not allowed for your role"))
	}

	msg := &domain.ChatMessage{
		ID:             in.MessageID,
		SenderID:       session.UserID,
		CounterpartIDs: in.CounterpartIDs,
		Type:           mt,
		Body:           in.Body,
		Timestamp:      s.now().UTC(),
		TenantID:       session.TenantID,
	}

	s.touch(ctx, session.UserID)

	// Claim the id before any fan-out or publish; concurrent deliveries of
	// the same id get exactly one winner.
	duplicate := !s.dedup.MarkProcessed(ctx, msg.ID)
	out := s.router.Route(ctx, msg, duplicate)

	if duplicate {
		metrics.MessagesDuplicate.Inc()
		audit.LogWithDetail(ctx, audit.ActionDuplicate, session.UserID, msg.ID, "duplicate message ignored")
	} else {
		s.applyPresence(ctx, msg)
		audit.LogWithDetail(ctx, audit.ActionSendMessage, session.UserID, out.RoutingKey, "chat message routed")
	}

	ack := &domain.AckMessage{
		Type:       domain.MsgTypeAck,
		MessageID:  msg.ID,
		RoutingKey: out.RoutingKey,
		Duplicate:  duplicate,
	}
	if out.Envelope != nil {
		ack.EventID = out.Envelope.EventID
	}
	return c.SendMessage(ack)
}

func (s *chatService) HandleHeartbeat(ctx context.Context, c *hub.Client) error {
	now := s.now()
	s.touch(ctx, c.Session.UserID)
	return c.SendMessage(&domain.HeartbeatAckMessage{
		Type:      domain.MsgTypeHeartbeatAck,
		Timestamp: now.UnixMilli(),
	})
}

// HandleDisconnect only records the event. The hub has already released the
// connection's groups; presence links survive until an explicit farewell.
func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	session := c.Session
	now := s.now()

	l := log.Ctx(ctx)
	l.Info().
		Dur("connected_for", now.Sub(session.ConnectedAt)).
		Dur("idle_for", now.Sub(session.LastActiveAt())).
		Msg("client disconnected")

	audit.Log(ctx, audit.ActionDisconnect, session.UserID, "client disconnected")
	return nil
}

// HandleEnvelope replays an envelope read back from the broker. Envelopes
// produced here were already delivered locally; remote ones are fanned out
// to local connections once per event.
func (s *chatService) HandleEnvelope(ctx context.Context, env *domain.DomainEventEnvelope) error {
	msg, err := env.ChatMessage()
	if err != nil {
		return domain.NewFault(domain.FaultMalformedInput, "service.envelope", err)
	}

	if env.Producer == s.instanceID {
		s.router.Route(ctx, msg, true)
		return nil
	}

	if !s.dedup.MarkProcessed(ctx, s.replayKey(env.EventID)) {
		s.logger.Debug().Str(log.FieldEventID, env.EventID).Msg("envelope already replayed")
		return nil
	}

	delivered, faults := s.router.Fanout(ctx, msg)
	s.applyPresence(ctx, msg)

	s.logger.Debug().
		Str(log.FieldEventID, env.EventID).
		Str(log.FieldMessageID, msg.ID).
		Int("delivered", delivered).
		Int("faults", len(faults)).
		Msg("remote envelope replayed")
	return nil
}

func (s *chatService) replayKey(eventID string) string {
	return "replay:" + s.instanceID + ":" + eventID
}

// applyPresence maintains officer/merchant links: an officer's first contact
// links the pair and a farewell from either side ends it.
func (s *chatService) applyPresence(ctx context.Context, msg *domain.ChatMessage) {
	switch msg.Type {
	case domain.MessageTypeOfficerFirstContact:
		merchantID := firstCounterpart(msg)
		if merchantID == "" {
			s.logger.Debug().Str(log.FieldMessageID, msg.ID).Msg("first contact without merchant, not linking")
			return
		}
		if err := s.registry.Link(msg.SenderID, merchantID); err != nil {
			s.logger.Warn().Err(err).Str(log.FieldMessageID, msg.ID).Msg("link failed")
			return
		}
		audit.LogTarget(ctx, audit.ActionLink, msg.SenderID, merchantID, "officer linked to merchant")

	case domain.MessageTypeOfficerFarewell:
		merchantID, _ := s.registry.ResolveMerchantFor(msg.SenderID)
		s.registry.UnlinkOfficer(msg.SenderID)
		audit.LogTarget(ctx, audit.ActionUnlink, msg.SenderID, merchantID, "officer ended conversation")

	case domain.MessageTypeMerchantFarewell:
		officerID, _ := s.registry.ResolveOfficerFor(msg.SenderID)
		s.registry.UnlinkMerchant(msg.SenderID)
		audit.LogTarget(ctx, audit.ActionUnlink, msg.SenderID, officerID, "merchant ended conversation")
	}
}

func firstCounterpart(msg *domain.ChatMessage) string {
	for _, id := range msg.CounterpartIDs {
		if id != "" && id != msg.SenderID {
			return id
		}
	}
	return ""
}

func (s *chatService) touch(ctx context.Context, userID string) {
	if err := s.activity.Touch(ctx, userID, s.now()); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to record activity")
	}
}

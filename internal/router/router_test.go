package router

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/internal/presence"
)

type send struct {
	group string
	event string
}

type fakeNotifier struct {
	mu      sync.Mutex
	sends   []send
	failFor map[string]bool
}

func (n *fakeNotifier) SendToGroup(groupID, event string, _ interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[groupID] {
		return errors.New("connection reset")
	}
	n.sends = append(n.sends, send{group: groupID, event: event})
	return nil
}

type published struct {
	env           *domain.DomainEventEnvelope
	routingKey    string
	correlationID string
	hasDeadline   bool
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []published
	err   error
}

func (p *fakePublisher) Publish(ctx context.Context, env *domain.DomainEventEnvelope, routingKey, correlationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := ctx.Deadline()
	p.calls = append(p.calls, published{env: env, routingKey: routingKey, correlationID: correlationID, hasDeadline: ok})
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "evt-" + strconv.Itoa(g.n), nil
}

func (g *seqIDs) Kind() string { return "seq" }

type brokenIDs struct{}

func (brokenIDs) Generate() (string, error) { return "", errors.New("entropy exhausted") }
func (brokenIDs) Kind() string              { return "broken" }

var fixedNow = time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)

type fixture struct {
	router    *Router
	notifier  *fakeNotifier
	publisher *fakePublisher
	registry  *presence.Registry
}

func newFixture() *fixture {
	f := &fixture{
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		registry:  presence.NewRegistry(),
	}
	f.router = New(f.notifier, f.registry, f.publisher, &seqIDs{}, Config{InstanceID: "node-a"}, zerolog.Nop())
	f.router.now = func() time.Time { return fixedNow }
	return f
}

func chat(id, sender string, mt domain.MessageType, counterparts ...string) *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:             id,
		SenderID:       sender,
		CounterpartIDs: counterparts,
		Type:           mt,
		Body:           "hello from " + sender,
		Timestamp:      fixedNow,
		TenantID:       "tenant-1",
	}
}

func TestRoute_MerchantRegularChat(t *testing.T) {
	f := newFixture()
	msg := chat("m-1", "M1", domain.MessageTypeMerchantRegular, "O1")

	out := f.router.Route(context.Background(), msg, false)

	want := []send{
		{group: "O1", event: domain.EventReceiveMerchantRegularChat},
		{group: "M1", event: domain.EventEchoMerchantRegularChat},
	}
	if len(f.notifier.sends) != len(want) {
		t.Fatalf("sends = %+v, want %+v", f.notifier.sends, want)
	}
	for i := range want {
		if f.notifier.sends[i] != want[i] {
			t.Errorf("send[%d] = %+v, want %+v", i, f.notifier.sends[i], want[i])
		}
	}

	if len(f.publisher.calls) != 1 {
		t.Fatalf("publishes = %d, want 1", len(f.publisher.calls))
	}
	call := f.publisher.calls[0]
	if call.routingKey != "merchant_sent_regular_chat" {
		t.Errorf("routing key = %q", call.routingKey)
	}
	if call.correlationID != "m-1" {
		t.Errorf("correlation id = %q", call.correlationID)
	}
	if !call.hasDeadline {
		t.Error("publish should run under a timeout")
	}

	env := out.Envelope
	if env.Message != msg.Body {
		t.Errorf("envelope message = %q, want %q", env.Message, msg.Body)
	}
	if env.EventID == "" || env.EventID == msg.ID {
		t.Errorf("event id = %q must be fresh and differ from message id", env.EventID)
	}
	if env.Processed {
		t.Error("envelope must not be marked processed")
	}
	if env.UserID != "M1" || env.TenantID != "tenant-1" || env.Producer != "node-a" {
		t.Errorf("envelope identity = %+v", env)
	}
	if env.EntityType != domain.EntityTypeChatMessage || env.EventType != domain.EventTypeChatMessage || env.Action != domain.ActionChatSent {
		t.Errorf("envelope literals = %+v", env)
	}
	if !env.OccurredAt.Equal(fixedNow) {
		t.Errorf("occurred at = %v", env.OccurredAt)
	}
	decoded, err := env.ChatMessage()
	if err != nil || decoded.ID != "m-1" || decoded.Type != domain.MessageTypeMerchantRegular {
		t.Errorf("payload = %+v, %v", decoded, err)
	}

	if !out.Published || out.Delivered != 2 || len(out.Faults) != 0 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestRoute_FromInternalSendsAndPublishesNothing(t *testing.T) {
	f := newFixture()
	msg := chat("m-1", "M1", domain.MessageTypeMerchantRegular, "O1")

	out := f.router.Route(context.Background(), msg, true)

	if len(f.notifier.sends) != 0 {
		t.Errorf("sends = %+v, want none", f.notifier.sends)
	}
	if len(f.publisher.calls) != 0 {
		t.Errorf("publishes = %d, want 0", len(f.publisher.calls))
	}
	if out.Envelope == nil || out.Envelope.CorrelationID != "m-1" {
		t.Errorf("envelope should still be built: %+v", out.Envelope)
	}
	if !out.HasFault(domain.FaultSelfEcho) {
		t.Errorf("faults = %v, want self echo", out.Faults)
	}
}

func TestRoute_MerchantFirstContactIsNotLive(t *testing.T) {
	f := newFixture()
	out := f.router.Route(context.Background(), chat("m-1", "M1", domain.MessageTypeMerchantFirstContact, "O1"), false)

	if len(f.notifier.sends) != 0 {
		t.Errorf("first contact must not fan out: %+v", f.notifier.sends)
	}
	if len(f.publisher.calls) != 1 || f.publisher.calls[0].routingKey != "merchant_sent_first_chat" {
		t.Errorf("publishes = %+v", f.publisher.calls)
	}
	if out.RoutingKey != domain.RoutingKeyMerchantFirstChat {
		t.Errorf("routing key = %q", out.RoutingKey)
	}
}

func TestRoute_UnroutedStillBuildsAndPublishes(t *testing.T) {
	f := newFixture()
	msg := chat("m-1", "M1", domain.ParseMessageType("merchant_hello"), "O1")

	out := f.router.Route(context.Background(), msg, false)

	if out.RoutingKey != "" || out.Envelope.RoutingKey != "" {
		t.Errorf("routing key = %q, want empty", out.RoutingKey)
	}
	if out.Envelope.Message != msg.Body {
		t.Errorf("envelope message = %q", out.Envelope.Message)
	}
	if len(f.notifier.sends) != 0 {
		t.Errorf("unrouted message fanned out: %+v", f.notifier.sends)
	}
	if len(f.publisher.calls) != 1 {
		t.Errorf("publishes = %d, want 1", len(f.publisher.calls))
	}
	if !out.HasFault(domain.FaultUnknownRoute) {
		t.Errorf("faults = %v, want unknown route", out.Faults)
	}
}

func TestRoute_CounterpartFallsBackToRegistry(t *testing.T) {
	f := newFixture()
	_ = f.registry.Link("O1", "M1")

	f.router.Route(context.Background(), chat("m-1", "O1", domain.MessageTypeOfficerRegular), false)
	f.router.Route(context.Background(), chat("m-2", "M1", domain.MessageTypeMerchantRegular), false)

	want := []send{
		{group: "M1", event: domain.EventReceiveOfficerRegularChat},
		{group: "O1", event: domain.EventEchoOfficerRegularChat},
		{group: "O1", event: domain.EventReceiveMerchantRegularChat},
		{group: "M1", event: domain.EventEchoMerchantRegularChat},
	}
	if len(f.notifier.sends) != len(want) {
		t.Fatalf("sends = %+v", f.notifier.sends)
	}
	for i := range want {
		if f.notifier.sends[i] != want[i] {
			t.Errorf("send[%d] = %+v, want %+v", i, f.notifier.sends[i], want[i])
		}
	}
}

func TestRoute_NoCounterpartStillEchoes(t *testing.T) {
	f := newFixture()
	out := f.router.Route(context.Background(), chat("m-1", "O9", domain.MessageTypeOfficerFirstContact), false)

	if len(f.notifier.sends) != 1 || f.notifier.sends[0] != (send{group: "O9", event: domain.EventEchoOfficerFirstChat}) {
		t.Errorf("sends = %+v", f.notifier.sends)
	}
	if out.Delivered != 1 || !out.Published {
		t.Errorf("outcome = %+v", out)
	}
}

func TestRoute_DuplicateCounterpartsSentOnce(t *testing.T) {
	f := newFixture()
	out := f.router.Route(context.Background(), chat("m-1", "O1", domain.MessageTypeOfficerRegular, "M1", "M1", "", "O1"), false)

	if len(f.notifier.sends) != 2 {
		t.Errorf("sends = %+v, want one recipient and one echo", f.notifier.sends)
	}
	if len(out.TargetGroups) != 1 || out.TargetGroups[0] != "M1" {
		t.Errorf("target groups = %v, want [M1]", out.TargetGroups)
	}
}

func TestRoute_TargetGroupsFromRegistry(t *testing.T) {
	f := newFixture()
	_ = f.registry.Link("O1", "M1")

	out := f.router.Route(context.Background(), chat("m-1", "M1", domain.MessageTypeMerchantRegular), false)
	if len(out.TargetGroups) != 1 || out.TargetGroups[0] != "O1" {
		t.Errorf("target groups = %v, want [O1]", out.TargetGroups)
	}

	// Non-live types resolve no targets.
	out = f.router.Route(context.Background(), chat("m-2", "M1", domain.MessageTypeMerchantFirstContact, "O1"), false)
	if len(out.TargetGroups) != 0 {
		t.Errorf("non-live target groups = %v", out.TargetGroups)
	}
}

func TestRoute_SendFailureDoesNotStopPublish(t *testing.T) {
	f := newFixture()
	f.notifier.failFor = map[string]bool{"O1": true}

	out := f.router.Route(context.Background(), chat("m-1", "M1", domain.MessageTypeMerchantRegular, "O1"), false)

	if !out.HasFault(domain.FaultTransientDelivery) {
		t.Errorf("faults = %v", out.Faults)
	}
	if out.Delivered != 1 {
		t.Errorf("delivered = %d, want echo only", out.Delivered)
	}
	if len(f.publisher.calls) != 1 || !out.Published {
		t.Error("publish must still happen after a send failure")
	}
}

func TestRoute_PublishFailureIsRecorded(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("broker unavailable")

	out := f.router.Route(context.Background(), chat("m-1", "M1", domain.MessageTypeMerchantRegular, "O1"), false)

	if out.Published {
		t.Error("Published should be false")
	}
	if !out.HasFault(domain.FaultTransientDelivery) {
		t.Errorf("faults = %v", out.Faults)
	}
	if out.Delivered != 2 {
		t.Errorf("delivered = %d; fan-out is independent of publish", out.Delivered)
	}
}

func TestRoute_PayloadEncodingFailureIsFailSoft(t *testing.T) {
	f := newFixture()
	f.router.marshal = func(interface{}) ([]byte, error) { return nil, errors.New("unsupported value") }

	msg := chat("m-1", "M1", domain.MessageTypeMerchantRegular, "O1")
	out := f.router.Route(context.Background(), msg, false)

	if !out.HasFault(domain.FaultPayloadEncoding) {
		t.Errorf("faults = %v", out.Faults)
	}
	env := out.Envelope
	if env == nil || len(env.Payload) != 0 {
		t.Fatalf("envelope = %+v, want partial envelope without payload", env)
	}
	if env.Message != msg.Body || env.EventID == "" || env.CorrelationID != "m-1" {
		t.Errorf("partial envelope missing fields: %+v", env)
	}
	if !out.Published {
		t.Error("partial envelope should still be published")
	}
}

func TestRoute_EventIDFallback(t *testing.T) {
	f := newFixture()
	f.router.ids = brokenIDs{}

	out := f.router.Route(context.Background(), chat("m-1", "M1", domain.MessageTypeMerchantRegular, "O1"), false)
	if out.Envelope.EventID == "" {
		t.Error("event id must be populated even when the generator fails")
	}
}

func TestFanout(t *testing.T) {
	f := newFixture()

	delivered, faults := f.router.Fanout(context.Background(), chat("m-1", "O1", domain.MessageTypeOfficerFarewell, "M1"))
	if delivered != 2 || len(faults) != 0 {
		t.Errorf("delivered = %d, faults = %v", delivered, faults)
	}
	if len(f.publisher.calls) != 0 {
		t.Error("Fanout must not publish")
	}

	delivered, _ = f.router.Fanout(context.Background(), chat("m-2", "M1", domain.MessageTypeMerchantFirstContact, "O1"))
	if delivered != 0 {
		t.Errorf("non-live fan-out delivered %d", delivered)
	}
}

func TestDecide_Table(t *testing.T) {
	tests := []struct {
		mt        domain.MessageType
		key       string
		live      bool
		recipient string
		echo      string
	}{
		{domain.MessageTypeMerchantFirstContact, "merchant_sent_first_chat", false, "", ""},
		{domain.MessageTypeMerchantRegular, "merchant_sent_regular_chat", true, "ReceiveMerchantRegularChat", "EchoMerchantRegularChat"},
		{domain.MessageTypeMerchantFarewell, "merchant_sent_farewell_chat", true, "ReceiveMerchantFarewellChat", "EchoMerchantFarewellChat"},
		{domain.MessageTypeOfficerFirstContact, "compliance_officer_sent_first_chat", true, "ReceiveComplianceOfficerFirstChat", "EchoComplianceOfficerFirstChat"},
		{domain.MessageTypeOfficerRegular, "compliance_officer_sent_regular_chat", true, "ReceiveComplianceOfficerRegularChat", "EchoComplianceOfficerRegularChat"},
		{domain.MessageTypeOfficerFarewell, "compliance_officer_sent_farewell_chat", true, "ReceiveComplianceOfficerFarewellChat", "EchoComplianceOfficerFarewellChat"},
		{domain.MessageTypeUnrouted, "", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.mt.String(), func(t *testing.T) {
			d := Decide(tt.mt)
			if d.RoutingKey != tt.key || d.Live != tt.live || d.RecipientEvent != tt.recipient || d.EchoEvent != tt.echo {
				t.Errorf("Decide(%v) = %+v", tt.mt, d)
			}
		})
	}
}

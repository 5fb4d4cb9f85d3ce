package domain

import (
	"encoding/json"
	"time"
)

// Literals stamped on every chat envelope.
const (
	EntityTypeChatMessage = "chat_message"
	EventTypeChatMessage  = "ChatMessageSent"
	ActionChatSent        = "sent"
)

// DomainEventEnvelope is the durable record published for every accepted
// inbound chat message.
type DomainEventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EntityType    string          `json:"entity_type"`
	Action        string          `json:"action"`
	Message       string          `json:"message"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Processed     bool            `json:"processed"`
	TenantID      string          `json:"tenant_id,omitempty"`
	UserID        string          `json:"user_id"`
	CorrelationID string          `json:"correlation_id"`
	RoutingKey    string          `json:"routing_key"`
	Producer      string          `json:"producer,omitempty"`
}

// ChatMessage decodes the envelope payload.
func (e *DomainEventEnvelope) ChatMessage() (*ChatMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

package service

import (
	"context"

	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/internal/hub"
)

type ChatService interface {
	HandleConnect(ctx context.Context, client *hub.Client) error
	HandleChatMessage(ctx context.Context, client *hub.Client, msg *domain.ChatMessageWS) error
	HandleHeartbeat(ctx context.Context, client *hub.Client) error
	HandleDisconnect(ctx context.Context, client *hub.Client) error
	HandleEnvelope(ctx context.Context, env *domain.DomainEventEnvelope) error
}

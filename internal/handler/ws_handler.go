package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/internal/audit"
	"github.com/pcidesk/chat-presence/internal/config"
	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/internal/hub"
	"github.com/pcidesk/chat-presence/internal/idgen"
	"github.com/pcidesk/chat-presence/internal/service"
	"github.com/pcidesk/chat-presence/pkg/jwt"
	"github.com/pcidesk/chat-presence/pkg/log"
	"github.com/pcidesk/chat-presence/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

type WSHandler struct {
	hub     *hub.Hub
	service service.ChatService
	tokens  TokenValidator
	ids     idgen.Generator
	wsCfg   config.WebSocketConfig
	logger  zerolog.Logger
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, tokens TokenValidator, ids idgen.Generator, wsCfg config.WebSocketConfig, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		tokens:  tokens,
		ids:     ids,
		wsCfg:   wsCfg,
		logger:  logger,
	}
}

// bearerToken reads the token from the Authorization header, falling back to
// the access_token query parameter for browser clients.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// authorize resolves the caller's identity. Exactly one of the two chat
// roles must be present.
func (h *WSHandler) authorize(r *http.Request) (*jwt.Claims, domain.Role, int) {
	token := bearerToken(r)
	if token == "" {
		return nil, "", http.StatusUnauthorized
	}
	claims, err := h.tokens.Validate(token)
	if err != nil {
		return nil, "", http.StatusUnauthorized
	}

	isMerchant := claims.HasRole(string(domain.RoleMerchant))
	isOfficer := claims.HasRole(string(domain.RoleComplianceOfficer))
	switch {
	case isMerchant && !isOfficer:
		return claims, domain.RoleMerchant, http.StatusOK
	case isOfficer && !isMerchant:
		return claims, domain.RoleComplianceOfficer, http.StatusOK
	default:
		return claims, "", http.StatusForbidden
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := log.Ctx(r.Context())

	claims, role, status := h.authorize(r)
	if status != http.StatusOK {
		userID := ""
		if claims != nil {
			userID = claims.UserID
		}
		audit.LogWithDetail(r.Context(), audit.ActionAuthFailed, userID, http.StatusText(status), "websocket auth rejected")
		if status == http.StatusUnauthorized {
			response.Unauthorized(w, "missing or invalid token")
		} else {
			response.Forbidden(w, "exactly one chat role required")
		}
		return
	}

	connID, err := h.ids.Generate()
	if err != nil {
		l.Error().Err(err).Msg("failed to generate connection id")
		response.InternalError(w, "failed to allocate connection")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := domain.NewSession(connID, claims.UserID, claims.TenantID, role)
	client := hub.NewClient(h.hub, conn, session, h.wsCfg)

	// The request context ends with the handler; connections outlive it.
	ctx := log.WithLogger(context.Background(), h.logger)
	ctx = log.WithConnection(ctx, connID, claims.UserID, string(role))

	h.hub.Register(client)
	if err := h.service.HandleConnect(ctx, client); err != nil {
		l.Error().Err(err).Msg("connect failed")
		h.hub.Unregister(client)
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(
		func(c *hub.Client, message []byte) { h.handleMessage(ctx, c, message) },
		func(c *hub.Client) { h.service.HandleDisconnect(ctx, c) },
	)
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	l := log.Ctx(ctx)

	if !h.hub.ValidateJSON(message) {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypeChatMessage:
		var msg domain.ChatMessageWS
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid chat_message"))
			return
		}
		if err := h.service.HandleChatMessage(ctx, client, &msg); err != nil {
			l.Error().Err(err).Msg("chat message failed")
		}

	case domain.MsgTypeHeartbeat:
		if err := h.service.HandleHeartbeat(ctx, client); err != nil {
			l.Error().Err(err).Msg("heartbeat failed")
		}

	case domain.MsgTypePing:
		client.SendMessage(map[string]string{"type": domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}

func (h *WSHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chat/ws", h.HandleWebSocket).Methods(http.MethodGet)
}

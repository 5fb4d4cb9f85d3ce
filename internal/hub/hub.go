package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/internal/config"
	"github.com/pcidesk/chat-presence/internal/metrics"
	"github.com/pcidesk/chat-presence/pkg/log"
)

var (
	ErrHubClosed         = errors.New("hub is closed")
	ErrUnknownConnection = errors.New("connection is not registered")
)

// EventFrame is the envelope every group send is wrapped in.
type EventFrame struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

type groupMessage struct {
	GroupID string
	Message []byte
}

// Hub tracks live connections and the named groups they belong to.
type Hub struct {
	clients   map[string]*Client            // connectionID -> client
	groups    map[string]map[string]*Client // groupID -> connectionID -> client
	broadcast chan *groupMessage
	quit      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
	config    config.WebSocketConfig
	logger    zerolog.Logger
}

func NewHub(cfg config.WebSocketConfig, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		groups:    make(map[string]map[string]*Client),
		broadcast: make(chan *groupMessage, 256),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		config:    cfg,
		logger:    logger.With().Str(log.FieldComponent, "hub").Logger(),
	}
}

// Run delivers queued group messages until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			h.closeAll()
			return

		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.RLock()
			for _, client := range h.groups[msg.GroupID] {
				if !client.trySend(msg.Message) {
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range slow {
				h.logger.Warn().Str(log.FieldConnectionID, client.ID).Msg("send buffer full, dropping connection")
				h.Unregister(client)
			}
		}
	}
}

// Stop ends Run and closes every registered connection's send channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	metrics.ConnectionsTotal.Inc()
	h.logger.Debug().Str(log.FieldConnectionID, client.ID).Msg("client registered")
}

// Unregister drops the client and all its group memberships. Calling it
// more than once is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.ID]
	if ok {
		h.removeLocked(client)
	}
	h.mu.Unlock()

	if ok {
		metrics.ConnectionsActive.Dec()
		h.logger.Debug().Str(log.FieldConnectionID, client.ID).Msg("client unregistered")
	}
}

func (h *Hub) removeLocked(client *Client) {
	for groupID, members := range h.groups {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.groups, groupID)
		}
	}
	delete(h.clients, client.ID)
	client.close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	n := len(h.clients)
	for _, client := range h.clients {
		h.removeLocked(client)
	}
	h.mu.Unlock()

	metrics.ConnectionsActive.Sub(float64(n))
	h.logger.Info().Int("connections", n).Msg("hub stopped")
}

// JoinGroup adds a registered connection to groupID. Joining twice is a no-op.
func (h *Hub) JoinGroup(connectionID, groupID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connectionID]
	if !ok {
		return fmt.Errorf("join group %s: %w", groupID, ErrUnknownConnection)
	}
	if _, ok := h.groups[groupID]; !ok {
		h.groups[groupID] = make(map[string]*Client)
	}
	h.groups[groupID][connectionID] = client

	h.logger.Debug().Str(log.FieldConnectionID, connectionID).Str(log.FieldGroupID, groupID).Msg("client joined group")
	return nil
}

func (h *Hub) LeaveGroup(connectionID, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.groups[groupID]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(h.groups, groupID)
		}
	}
}

// SendToGroup queues event for every connection in groupID. A group with no
// members is not an error.
func (h *Hub) SendToGroup(groupID, event string, payload interface{}) error {
	data, err := json.Marshal(EventFrame{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", event, err)
	}

	select {
	case <-h.quit:
		return ErrHubClosed
	default:
	}

	select {
	case h.broadcast <- &groupMessage{GroupID: groupID, Message: data}:
		return nil
	case <-h.quit:
		return ErrHubClosed
	}
}

func (h *Hub) GroupSize(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupID])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

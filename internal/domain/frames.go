package domain

// WebSocket frame types from client.
const (
	MsgTypeChatMessage = "chat_message"
	MsgTypeHeartbeat   = "heartbeat"
	MsgTypePing        = "ping"
)

// WebSocket frame types to client.
const (
	MsgTypeConnected    = "connected"
	MsgTypeAck          = "ack"
	MsgTypeHeartbeatAck = "heartbeat_ack"
	MsgTypeError        = "error"
	MsgTypePong         = "pong"
)

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseMessage is the base structure for all WebSocket frames.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server frames

type ChatMessageWS struct {
	Type           string   `json:"type"`
	MessageID      string   `json:"message_id"`
	MessageType    string   `json:"message_type"`
	CounterpartIDs []string `json:"counterpart_ids,omitempty"`
	Body           string   `json:"body"`
}

// Server -> Client frames

type ConnectedMessage struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
	Role         Role   `json:"role"`
}

type AckMessage struct {
	Type       string `json:"type"`
	MessageID  string `json:"message_id"`
	EventID    string `json:"event_id,omitempty"`
	RoutingKey string `json:"routing_key,omitempty"`
	Duplicate  bool   `json:"duplicate,omitempty"`
}

type HeartbeatAckMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
